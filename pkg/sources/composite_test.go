package sources_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundatrack/fundatrack/pkg/errors"
	"github.com/fundatrack/fundatrack/pkg/listing"
	"github.com/fundatrack/fundatrack/pkg/sources"
)

// fakeSource scripts a source adapter for composite tests.
type fakeSource struct {
	id       sources.ID
	origin   listing.Origin
	listings []listing.Listing
	errs     []error // consumed per call; nil entry means success
	calls    int
}

func (f *fakeSource) ID() sources.ID         { return f.id }
func (f *fakeSource) Origin() listing.Origin { return f.origin }

func (f *fakeSource) Search(_ context.Context, _ listing.Filters) ([]listing.Listing, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.listings, nil
}

func fakeListings(n int) []listing.Listing {
	out := make([]listing.Listing, n)
	for i := range out {
		out[i] = listing.Listing{
			SourceID:   fmt.Sprintf("id-%d", i),
			URL:        fmt.Sprintf("https://www.funda.nl/koop/amsterdam/huis-%d/", i),
			Region:     "Amsterdam",
			Kind:       listing.KindBuy,
			Price:      listing.Value(400000 + i*10000),
			ObservedAt: time.Now().UTC(),
		}
	}
	return out
}

func testFilters() listing.Filters {
	return listing.Filters{Region: "Amsterdam", Kind: listing.KindBuy}
}

func TestExtractPrimarySucceeds(t *testing.T) {
	primary := &fakeSource{id: sources.FundaAPIID, origin: listing.OriginPrimary, listings: fakeListings(3)}
	secondary := &fakeSource{id: sources.FundaHTMLID, origin: listing.OriginSecondary}

	c := sources.NewComposite(primary, secondary, testPolicy(), true)
	result, err := c.Extract(context.Background(), testFilters())

	require.NoError(t, err)
	assert.Len(t, result.Listings, 3)
	assert.Equal(t, listing.OriginPrimary, result.SourceUsed)
	assert.Equal(t, 0, secondary.calls)
}

func TestExtractEmptySuccessIsNotFallback(t *testing.T) {
	// An empty result set is a valid success, not a failure.
	primary := &fakeSource{id: sources.FundaAPIID, origin: listing.OriginPrimary}
	secondary := &fakeSource{id: sources.FundaHTMLID, origin: listing.OriginSecondary, listings: fakeListings(2)}

	c := sources.NewComposite(primary, secondary, testPolicy(), true)
	result, err := c.Extract(context.Background(), testFilters())

	require.NoError(t, err)
	assert.Empty(t, result.Listings)
	assert.Equal(t, listing.OriginPrimary, result.SourceUsed)
	assert.Equal(t, 0, secondary.calls)
}

func TestExtractFallbackOnPermanentPrimaryFailure(t *testing.T) {
	primary := &fakeSource{
		id: sources.FundaAPIID, origin: listing.OriginPrimary,
		errs: []error{errors.NewPermanentError("funda_api", "410 gone", nil)},
	}
	secondary := &fakeSource{id: sources.FundaHTMLID, origin: listing.OriginSecondary, listings: fakeListings(5)}

	var fallbackScope listing.Scope
	var fallbackErr error
	c := sources.NewComposite(primary, secondary, testPolicy(), true)
	c.OnFallback(func(scope listing.Scope, err error) {
		fallbackScope = scope
		fallbackErr = err
	})

	result, err := c.Extract(context.Background(), testFilters())

	require.NoError(t, err)
	assert.Len(t, result.Listings, 5)
	assert.Equal(t, listing.OriginSecondary, result.SourceUsed)
	assert.Equal(t, 1, primary.calls) // permanent failures are not retried
	assert.Equal(t, testFilters().Scope(), fallbackScope)
	assert.Error(t, fallbackErr)
	assert.Equal(t, fallbackErr, result.FallbackReason)
}

func TestExtractFallbackAfterRetryExhaustion(t *testing.T) {
	transient := errors.NewTransientError("funda_api", "timeout", nil)
	primary := &fakeSource{
		id: sources.FundaAPIID, origin: listing.OriginPrimary,
		errs: []error{transient, transient, transient},
	}
	secondary := &fakeSource{id: sources.FundaHTMLID, origin: listing.OriginSecondary, listings: fakeListings(1)}

	c := sources.NewComposite(primary, secondary, testPolicy(), true)
	result, err := c.Extract(context.Background(), testFilters())

	require.NoError(t, err)
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, listing.OriginSecondary, result.SourceUsed)
}

func TestExtractBothFail(t *testing.T) {
	primaryErr := errors.NewPermanentError("funda_api", "410 gone", nil)
	secondaryErr := errors.NewPermanentError("funda_html", "markup changed", nil)
	primary := &fakeSource{id: sources.FundaAPIID, origin: listing.OriginPrimary, errs: []error{primaryErr}}
	secondary := &fakeSource{id: sources.FundaHTMLID, origin: listing.OriginSecondary, errs: []error{secondaryErr}}

	var fallbackErr error
	c := sources.NewComposite(primary, secondary, testPolicy(), true)
	c.OnFallback(func(_ listing.Scope, err error) { fallbackErr = err })

	result, err := c.Extract(context.Background(), testFilters())

	assert.Nil(t, result)
	require.Error(t, err)

	var asf *errors.AllSourcesFailed
	require.ErrorAs(t, err, &asf)
	assert.ErrorIs(t, asf.PrimaryErr, primaryErr)
	assert.ErrorIs(t, asf.SecondaryErr, secondaryErr)

	// Fallback was attempted, so the callback fires even though the
	// secondary failed too.
	assert.ErrorIs(t, fallbackErr, primaryErr)
}

func TestExtractFallbackDisabled(t *testing.T) {
	primary := &fakeSource{
		id: sources.FundaAPIID, origin: listing.OriginPrimary,
		errs: []error{errors.NewPermanentError("funda_api", "410 gone", nil)},
	}
	secondary := &fakeSource{id: sources.FundaHTMLID, origin: listing.OriginSecondary, listings: fakeListings(5)}

	c := sources.NewComposite(primary, secondary, testPolicy(), false)
	_, err := c.Extract(context.Background(), testFilters())

	require.Error(t, err)
	assert.True(t, errors.IsAllSourcesFailed(err))
	assert.Equal(t, 0, secondary.calls)
}
