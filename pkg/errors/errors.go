// Package errors provides custom error types for the fundatrack system.
// These errors enable programmatic classification of failures (transient
// vs. permanent, retry-exhausted, per-listing vs. run-fatal), which drives
// the retry and fallback behaviour of the extraction layer.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is reports whether any error in err's chain matches target.
// It's an alias for the standard library errors.Is for convenience.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// It's an alias for the standard library errors.As for convenience.
var As = errors.As

// Common sentinel errors for the fundatrack system
var (
	// ErrNotFound indicates that a requested record was not found
	ErrNotFound = errors.New("not found")

	// ErrTransient indicates a failure that is expected to clear on retry
	// (timeouts, connection resets, rate-limit responses)
	ErrTransient = errors.New("transient failure")

	// ErrRetryExhausted indicates that an operation kept failing after the
	// configured number of retry attempts
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrRunInFlight indicates that a run is already executing for a scope
	ErrRunInFlight = errors.New("run already in flight for scope")

	// ErrRunFinalized indicates an attempt to mutate a finalized run
	ErrRunFinalized = errors.New("run already finalized")
)

// ErrorKind classifies a source failure for the retry/fallback decision.
type ErrorKind string

const (
	// KindTransient marks failures worth retrying against the same source.
	KindTransient ErrorKind = "transient"
	// KindPermanent marks failures that no amount of retrying will fix.
	KindPermanent ErrorKind = "permanent"
)

// ExtractionError represents a failure of a source adapter.
type ExtractionError struct {
	Kind    ErrorKind
	Origin  string // source identifier, e.g. "funda_api" or "funda_html"
	Message string
	Err     error
}

// Error implements the error interface
func (e *ExtractionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s extraction failed (%s): %s", e.Origin, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s extraction failed (%s): %v", e.Origin, e.Kind, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support: transient extraction errors match
// ErrTransient so the retry policy can classify them without type switches.
func (e *ExtractionError) Is(target error) bool {
	return target == ErrTransient && e.Kind == KindTransient
}

// NewTransientError creates an ExtractionError marked transient.
func NewTransientError(origin, message string, err error) *ExtractionError {
	return &ExtractionError{Kind: KindTransient, Origin: origin, Message: message, Err: err}
}

// NewPermanentError creates an ExtractionError marked permanent.
func NewPermanentError(origin, message string, err error) *ExtractionError {
	return &ExtractionError{Kind: KindPermanent, Origin: origin, Message: message, Err: err}
}

// AllSourcesFailed indicates that the primary and the fallback source both
// exhausted their retries. It carries both underlying errors for diagnostics.
type AllSourcesFailed struct {
	PrimaryErr   error
	SecondaryErr error
}

// Error implements the error interface
func (e *AllSourcesFailed) Error() string {
	if e.SecondaryErr == nil {
		return fmt.Sprintf("all sources failed: primary: %v (fallback disabled)", e.PrimaryErr)
	}
	return fmt.Sprintf("all sources failed: primary: %v; secondary: %v", e.PrimaryErr, e.SecondaryErr)
}

// Unwrap returns the underlying errors so errors.Is can see both chains.
func (e *AllSourcesFailed) Unwrap() []error {
	if e.SecondaryErr == nil {
		return []error{e.PrimaryErr}
	}
	return []error{e.PrimaryErr, e.SecondaryErr}
}

// ValidationError represents a per-listing validation failure.
type ValidationError struct {
	SourceID string
	Field    string
	Message  string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("listing %s: validation failed for field %s: %s", e.SourceID, e.Field, e.Message)
	}
	return fmt.Sprintf("listing %s: validation failed: %s", e.SourceID, e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(sourceID, field, message string) *ValidationError {
	return &ValidationError{SourceID: sourceID, Field: field, Message: message}
}

// ConfigError represents invalid configuration detected before a run starts.
// Configuration errors fail fast and are never retried.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error in %s: %s: %v", e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("config error in %s: %s", e.Component, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// NotFoundError represents a record lookup miss.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// StoreError represents a failure of the persistence layer while processing
// one listing. It is caught by the reconciliation loop, counted, and never
// aborts the batch.
type StoreError struct {
	Operation string
	SourceID  string
	Err       error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.SourceID != "" {
		return fmt.Sprintf("store %s failed for %s: %v", e.Operation, e.SourceID, e.Err)
	}
	return fmt.Sprintf("store %s failed: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *StoreError) Unwrap() error {
	return e.Err
}

// WrapStore wraps a persistence failure with its operation and listing context.
func WrapStore(operation, sourceID string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Operation: operation, SourceID: sourceID, Err: err}
}

// IsTransient checks if an error should be retried against the same source.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsRetryExhausted checks if an error is a retry exhaustion.
func IsRetryExhausted(err error) bool {
	return errors.Is(err, ErrRetryExhausted)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsAllSourcesFailed checks if an error is a terminal extraction failure.
func IsAllSourcesFailed(err error) bool {
	var asf *AllSourcesFailed
	return errors.As(err, &asf)
}
