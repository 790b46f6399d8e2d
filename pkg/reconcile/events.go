package reconcile

import (
	"github.com/rs/zerolog"

	"github.com/fundatrack/fundatrack/pkg/listing"
)

// ListingOutcome classifies what reconciliation did with one listing.
type ListingOutcome string

const (
	OutcomeNew     ListingOutcome = "new"
	OutcomeUpdated ListingOutcome = "updated"
	OutcomeError   ListingOutcome = "error"
)

// Sink receives progress events synchronously during a run. Implementations
// must not assume they outlive the run; a panicking or misbehaving sink is
// logged and ignored, never allowed to affect the run outcome.
type Sink interface {
	RunStarted(run *RunMetadata)

	// SourceFallbackTriggered fires at the moment fallback to the secondary
	// source begins, whether or not the secondary then produces a batch.
	SourceFallbackTriggered(scope listing.Scope, reason error)

	ListingProcessed(sourceID string, outcome ListingOutcome)
	RunFinished(run *RunMetadata)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RunStarted(*RunMetadata)                      {}
func (NopSink) SourceFallbackTriggered(listing.Scope, error) {}
func (NopSink) ListingProcessed(string, ListingOutcome)      {}
func (NopSink) RunFinished(*RunMetadata)                     {}

// LogSink writes each event as a structured log line.
type LogSink struct {
	Log *zerolog.Logger
}

func (s LogSink) RunStarted(run *RunMetadata) {
	s.Log.Info().
		Str("run_id", run.RunID).
		Str("scope", run.Scope.String()).
		Msg("Run started")
}

func (s LogSink) SourceFallbackTriggered(scope listing.Scope, reason error) {
	s.Log.Warn().
		Str("scope", scope.String()).
		Err(reason).
		Msg("Primary source exhausted, falling back")
}

func (s LogSink) ListingProcessed(sourceID string, outcome ListingOutcome) {
	s.Log.Debug().
		Str("source_id", sourceID).
		Str("outcome", string(outcome)).
		Msg("Listing processed")
}

func (s LogSink) RunFinished(run *RunMetadata) {
	s.Log.Info().
		Str("run_id", run.RunID).
		Int("found", run.ListingsFound).
		Int("new", run.ListingsNew).
		Int("updated", run.ListingsUpdated).
		Int("errors", run.Errors).
		Int("delisted", run.DelistedCount).
		Str("source_used", string(run.SourceUsed)).
		Msg("Run finished")
}

// emit invokes one sink callback, containing any panic the sink raises.
func emit(log *zerolog.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("Progress sink panicked")
		}
	}()
	fn()
}
