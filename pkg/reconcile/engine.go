package reconcile

import (
	"context"

	"github.com/fundatrack/fundatrack/pkg/errors"
	"github.com/fundatrack/fundatrack/pkg/listing"
	"github.com/fundatrack/fundatrack/pkg/logging"
)

// Engine reconciles extracted batches against the store. One engine instance
// serves one run at a time; disjoint scopes may run concurrent engines.
type Engine struct {
	store Store
	sink  Sink
}

// NewEngine creates an engine over the given store. A nil sink discards
// progress events.
func NewEngine(store Store, sink Sink) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{store: store, sink: sink}
}

// Reconcile folds a complete batch into the store and fills in the run's
// statistics. Per-listing failures are counted, not propagated; the batch
// always runs to completion. Delisting is computed only after the whole
// batch is processed, so a truncated extraction must not reach this method.
func (e *Engine) Reconcile(ctx context.Context, run *RunMetadata, listings []listing.Listing) error {
	log := logging.FromContext(ctx)

	run.ListingsFound = len(listings)
	seen := make(map[string]struct{}, len(listings))

	for i := range listings {
		l := &listings[i]
		if err := listing.Validate(l); err != nil {
			run.Errors++
			log.Error().
				Err(err).
				Str("source_id", l.SourceID).
				Msg("Rejected invalid listing")
			emit(log, func() { e.sink.ListingProcessed(l.SourceID, OutcomeError) })
			continue
		}

		// The listing is in the batch, so its record is shielded from
		// delisting even if the store rejects the write below.
		seen[l.SourceID] = struct{}{}

		outcome, err := e.processListing(ctx, *l)
		if err != nil {
			run.Errors++
			log.Error().
				Err(err).
				Str("source_id", l.SourceID).
				Msg("Failed to reconcile listing")
		} else {
			switch outcome {
			case OutcomeNew:
				run.ListingsNew++
			case OutcomeUpdated:
				run.ListingsUpdated++
			}
		}
		emit(log, func() { e.sink.ListingProcessed(l.SourceID, outcome) })
	}

	delisted, err := e.delistMissing(ctx, run.Scope, seen)
	if err != nil {
		return err
	}
	run.DelistedCount = delisted

	return nil
}

// processListing runs the lookup-merge-append sequence for one validated
// listing.
func (e *Engine) processListing(ctx context.Context, l listing.Listing) (ListingOutcome, error) {
	stored, err := e.store.FindBySourceID(ctx, l.SourceID)
	switch {
	case errors.IsNotFound(err):
		return e.insertListing(ctx, l)
	case err != nil:
		return OutcomeError, err
	default:
		return e.updateListing(ctx, stored, l)
	}
}

// insertListing creates a record for a first observation. A present price
// counts as a change and opens the price history.
func (e *Engine) insertListing(ctx context.Context, l listing.Listing) (ListingOutcome, error) {
	rec, err := e.store.Upsert(ctx, newRecord(l))
	if err != nil {
		return OutcomeError, err
	}
	if price, ok := l.Price.Get(); ok {
		if err := e.store.AppendPriceObservation(ctx, rec.ID, price, l.ObservedAt); err != nil {
			return OutcomeError, err
		}
	}
	return OutcomeNew, nil
}

// updateListing merges a repeat observation into the stored record. A price
// observation is appended only when the incoming price carries a value that
// differs from the stored one; a missing price never overwrites known data.
func (e *Engine) updateListing(ctx context.Context, stored *PropertyRecord, l listing.Listing) (ListingOutcome, error) {
	priceChanged := false
	if price, ok := l.Price.Get(); ok {
		priceChanged = stored.Price.Or(price-1) != price
	}

	stored.merge(l)
	rec, err := e.store.Upsert(ctx, stored)
	if err != nil {
		return OutcomeError, err
	}

	if priceChanged {
		price, _ := l.Price.Get()
		if err := e.store.AppendPriceObservation(ctx, rec.ID, price, l.ObservedAt); err != nil {
			return OutcomeError, err
		}
	}
	return OutcomeUpdated, nil
}

// delistMissing transitions every active record in scope that the batch did
// not mention. Runs once per scope per run, after the full batch is known.
func (e *Engine) delistMissing(ctx context.Context, scope listing.Scope, seen map[string]struct{}) (int, error) {
	active, err := e.store.FindActiveInScope(ctx, scope)
	if err != nil {
		return 0, err
	}

	var missing []int64
	for sourceID, propertyID := range active {
		if _, ok := seen[sourceID]; !ok {
			missing = append(missing, propertyID)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	if err := e.store.MarkDelisted(ctx, missing); err != nil {
		return 0, err
	}
	return len(missing), nil
}
