package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fundatrack/fundatrack/pkg/listing"
)

// SourceUsed records which adapter produced a run's batch.
type SourceUsed string

const (
	// SourcePrimary means the structured API served the whole batch.
	SourcePrimary SourceUsed = "primary"

	// SourceSecondary means the HTML fallback served the whole batch.
	SourceSecondary SourceUsed = "secondary"

	// SourceNone means extraction failed before any batch was produced.
	SourceNone SourceUsed = "none"
)

// RunMetadata summarizes one extract-then-reconcile execution over a single
// scope. Created at run start, finalized exactly once at run end, immutable
// afterward.
type RunMetadata struct {
	RunID           string
	Scope           listing.Scope
	StartedAt       time.Time
	FinishedAt      *time.Time
	ListingsFound   int
	ListingsNew     int
	ListingsUpdated int
	Errors          int
	DelistedCount   int
	SourceUsed      SourceUsed
}

// Finished reports whether the run has been finalized.
func (r *RunMetadata) Finished() bool {
	return r.FinishedAt != nil
}

// Duration returns the wall time of a finished run, zero while in flight.
func (r *RunMetadata) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Tracker creates and finalizes runs and serves the read surface health
// queries work from.
type Tracker struct {
	store Store
}

// NewTracker creates a run tracker over the given store.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// Start opens a new run for the scope and persists its initial row.
func (t *Tracker) Start(ctx context.Context, scope listing.Scope) (*RunMetadata, error) {
	run := &RunMetadata{
		RunID:      uuid.NewString(),
		Scope:      scope,
		StartedAt:  time.Now().UTC(),
		SourceUsed: SourceNone,
	}
	if err := t.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Finalize stamps the finish time and persists the final statistics.
func (t *Tracker) Finalize(ctx context.Context, run *RunMetadata) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	return t.store.FinalizeRun(ctx, run)
}

// Recent returns up to limit historical runs for the scope, newest first.
func (t *Tracker) Recent(ctx context.Context, scope listing.Scope, limit int) ([]RunMetadata, error) {
	return t.store.RecentRuns(ctx, scope, limit)
}
