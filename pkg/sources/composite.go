package sources

import (
	"context"

	"github.com/fundatrack/fundatrack/pkg/errors"
	"github.com/fundatrack/fundatrack/pkg/listing"
	"github.com/fundatrack/fundatrack/pkg/logging"
)

// ExtractResult is the tagged outcome of one extraction call. The whole batch
// comes from whichever source actually produced it; there is no per-listing
// mixing within one call.
type ExtractResult struct {
	Listings   []listing.Listing
	SourceUsed listing.Origin

	// FallbackReason carries the primary's terminal error when the batch
	// came from the secondary source, nil otherwise.
	FallbackReason error
}

// Composite drives the primary source under retry and, on exhaustion, falls
// back to the secondary source under its own retry. Fallback is triggered
// only by the primary's failure, never by an empty successful result.
type Composite struct {
	primary   Source
	secondary Source
	retry     RetryPolicy
	fallback  bool

	// onFallback, when set, is invoked with the primary's terminal error at
	// the moment fallback begins. The caller wires this to its progress sink.
	onFallback func(scope listing.Scope, err error)
}

// NewComposite creates a composite extractor over a primary and a secondary
// source. Both sources are retried with the same policy but keep independent
// rate limiters inside their adapters.
func NewComposite(primary, secondary Source, retry RetryPolicy, fallbackEnabled bool) *Composite {
	return &Composite{
		primary:   primary,
		secondary: secondary,
		retry:     retry,
		fallback:  fallbackEnabled,
	}
}

// OnFallback registers a callback invoked at the moment fallback to the
// secondary source begins, whether or not the secondary then succeeds.
func (c *Composite) OnFallback(fn func(scope listing.Scope, err error)) {
	c.onFallback = fn
}

// Extract runs the primary search under retry; on a terminal primary failure
// it runs the secondary search under its own retry. If both fail the whole
// extraction fails with *errors.AllSourcesFailed carrying both errors.
func (c *Composite) Extract(ctx context.Context, filters listing.Filters) (*ExtractResult, error) {
	log := logging.FromContext(ctx)

	listings, primaryErr := c.search(ctx, c.primary, filters)
	if primaryErr == nil {
		return &ExtractResult{Listings: listings, SourceUsed: c.primary.Origin()}, nil
	}

	if !c.fallback {
		log.Error().Err(primaryErr).Msg("Primary source failed and fallback is disabled")
		return nil, &errors.AllSourcesFailed{PrimaryErr: primaryErr}
	}

	log.Warn().
		Err(primaryErr).
		Str("fallback", c.secondary.ID().String()).
		Msg("Primary source exhausted, falling back")
	if c.onFallback != nil {
		c.onFallback(filters.Scope(), primaryErr)
	}

	listings, secondaryErr := c.search(ctx, c.secondary, filters)
	if secondaryErr == nil {
		return &ExtractResult{
			Listings:       listings,
			SourceUsed:     c.secondary.Origin(),
			FallbackReason: primaryErr,
		}, nil
	}

	log.Error().
		AnErr("primary_err", primaryErr).
		AnErr("secondary_err", secondaryErr).
		Msg("All sources failed")
	return nil, &errors.AllSourcesFailed{PrimaryErr: primaryErr, SecondaryErr: secondaryErr}
}

// search runs one source under the retry policy.
func (c *Composite) search(ctx context.Context, src Source, filters listing.Filters) ([]listing.Listing, error) {
	ctx = logging.WithSource(ctx, src.ID().String())

	var listings []listing.Listing
	err := c.retry.Do(ctx, src.ID().String()+" search", func(ctx context.Context) error {
		var searchErr error
		listings, searchErr = src.Search(ctx, filters)
		return searchErr
	})
	if err != nil {
		return nil, err
	}
	return listings, nil
}
