package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/fundatrack/fundatrack/pkg/errors"
)

func TestExtractionError(t *testing.T) {
	t.Run("transient matches sentinel", func(t *testing.T) {
		err := pkgerrors.NewTransientError("funda_api", "request timed out", nil)
		assert.True(t, pkgerrors.IsTransient(err))
		assert.True(t, errors.Is(err, pkgerrors.ErrTransient))
		assert.Contains(t, err.Error(), "funda_api")
		assert.Contains(t, err.Error(), "transient")
	})

	t.Run("permanent does not match sentinel", func(t *testing.T) {
		err := pkgerrors.NewPermanentError("funda_api", "schema changed", nil)
		assert.False(t, pkgerrors.IsTransient(err))
		assert.Contains(t, err.Error(), "permanent")
	})

	t.Run("wrapped transient stays classifiable", func(t *testing.T) {
		base := pkgerrors.NewTransientError("funda_html", "", errors.New("connection reset"))
		wrapped := errors.Join(errors.New("page 3 failed"), base)
		assert.True(t, pkgerrors.IsTransient(wrapped))
	})

	t.Run("unwrap", func(t *testing.T) {
		cause := errors.New("tcp dial failed")
		err := pkgerrors.NewTransientError("funda_api", "", cause)
		assert.Equal(t, cause, errors.Unwrap(err))
	})
}

func TestRetryExhausted(t *testing.T) {
	inner := pkgerrors.NewTransientError("funda_api", "rate limited", nil)
	exhausted := errors.Join(pkgerrors.ErrRetryExhausted, inner)

	assert.True(t, pkgerrors.IsRetryExhausted(exhausted))
	// A retry-exhausted error keeps its transient classification.
	assert.True(t, pkgerrors.IsTransient(exhausted))
	assert.False(t, pkgerrors.IsRetryExhausted(inner))
}

func TestAllSourcesFailed(t *testing.T) {
	t.Run("carries both errors", func(t *testing.T) {
		primary := pkgerrors.NewPermanentError("funda_api", "410 gone", nil)
		secondary := pkgerrors.NewTransientError("funda_html", "timeout", nil)
		err := &pkgerrors.AllSourcesFailed{PrimaryErr: primary, SecondaryErr: secondary}

		require.True(t, pkgerrors.IsAllSourcesFailed(err))
		assert.ErrorIs(t, err, primary)
		assert.ErrorIs(t, err, secondary)
		assert.Contains(t, err.Error(), "primary")
		assert.Contains(t, err.Error(), "secondary")
	})

	t.Run("fallback disabled", func(t *testing.T) {
		err := &pkgerrors.AllSourcesFailed{PrimaryErr: errors.New("boom")}
		assert.Contains(t, err.Error(), "fallback disabled")
	})

	t.Run("non-matching error", func(t *testing.T) {
		assert.False(t, pkgerrors.IsAllSourcesFailed(errors.New("boom")))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := pkgerrors.NewValidationError("42901823", "postal_code", "expected 4 digits + 2 letters")
		assert.Equal(t, "listing 42901823: validation failed for field postal_code: expected 4 digits + 2 letters", err.Error())
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("without field", func(t *testing.T) {
		err := pkgerrors.NewValidationError("42901823", "", "empty payload")
		assert.Equal(t, "listing 42901823: validation failed: empty payload", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})
}

func TestConfigError(t *testing.T) {
	cause := errors.New("parse failure")
	err := pkgerrors.NewConfigError("ratelimit", "min_interval must be positive", cause)

	assert.Contains(t, err.Error(), "ratelimit")
	assert.Contains(t, err.Error(), "min_interval must be positive")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestNotFoundError(t *testing.T) {
	err := pkgerrors.NewNotFoundError("property", "42901823")
	assert.Equal(t, "property 42901823 not found", err.Error())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestWrapStore(t *testing.T) {
	t.Run("nil passthrough", func(t *testing.T) {
		assert.NoError(t, pkgerrors.WrapStore("upsert", "42901823", nil))
	})

	t.Run("wraps with context", func(t *testing.T) {
		cause := errors.New("database is locked")
		err := pkgerrors.WrapStore("upsert", "42901823", cause)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upsert")
		assert.Contains(t, err.Error(), "42901823")
		assert.ErrorIs(t, err, cause)
	})
}
