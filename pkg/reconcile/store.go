package reconcile

import (
	"context"
	"time"

	"github.com/fundatrack/fundatrack/pkg/listing"
)

// Store is the persistence boundary the engine reconciles against. It is the
// exclusive owner of the durable schema; implementations live under
// internal/store.
type Store interface {
	// FindBySourceID returns the record with the given natural key, or an
	// error matching errors.ErrNotFound.
	FindBySourceID(ctx context.Context, sourceID string) (*PropertyRecord, error)

	// Upsert atomically creates or updates a record keyed by SourceID and
	// returns the stored form with its synthetic ID populated.
	Upsert(ctx context.Context, rec *PropertyRecord) (*PropertyRecord, error)

	// AppendPriceObservation records a price point. Appending an already
	// present (propertyID, observedAt) pair is a no-op.
	AppendPriceObservation(ctx context.Context, propertyID int64, price int, observedAt time.Time) error

	// PriceHistory returns all observations for a property, oldest first.
	PriceHistory(ctx context.Context, propertyID int64) ([]PriceObservation, error)

	// FindActiveInScope returns the active records in a scope as a
	// SourceID to synthetic ID mapping.
	FindActiveInScope(ctx context.Context, scope listing.Scope) (map[string]int64, error)

	// MarkDelisted transitions the given records to delisted without
	// touching LastSeenAt.
	MarkDelisted(ctx context.Context, propertyIDs []int64) error

	// CreateRun persists a freshly started run.
	CreateRun(ctx context.Context, run *RunMetadata) error

	// FinalizeRun persists the finished run statistics. A run already
	// finalized returns an error matching errors.ErrRunFinalized.
	FinalizeRun(ctx context.Context, run *RunMetadata) error

	// RecentRuns returns up to limit runs for the scope, newest first.
	RecentRuns(ctx context.Context, scope listing.Scope, limit int) ([]RunMetadata, error)
}
