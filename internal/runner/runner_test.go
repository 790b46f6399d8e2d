package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundatrack/fundatrack/internal/store/sqlite"
	"github.com/fundatrack/fundatrack/pkg/errors"
	"github.com/fundatrack/fundatrack/pkg/listing"
	"github.com/fundatrack/fundatrack/pkg/reconcile"
	"github.com/fundatrack/fundatrack/pkg/sources"
)

// fakeExtractor returns a scripted result, optionally blocking until
// released so tests can hold a scope in flight. A non-nil fallbackErr makes
// it report fallback mid-extraction the way the composite does.
type fakeExtractor struct {
	result      *sources.ExtractResult
	err         error
	fallbackErr error
	release     chan struct{}

	onFallback func(scope listing.Scope, err error)
}

func (f *fakeExtractor) OnFallback(fn func(scope listing.Scope, err error)) {
	f.onFallback = fn
}

func (f *fakeExtractor) Extract(ctx context.Context, filters listing.Filters) (*sources.ExtractResult, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fallbackErr != nil && f.onFallback != nil {
		f.onFallback(filters.Scope(), f.fallbackErr)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testFilters() listing.Filters {
	return listing.Filters{Region: "Amsterdam", Kind: listing.KindBuy}
}

func testListing(sourceID string) listing.Listing {
	return listing.Listing{
		SourceID:   sourceID,
		URL:        "https://www.funda.nl/koop/amsterdam/" + sourceID + "/",
		Address:    "Herengracht " + sourceID,
		Region:     "Amsterdam",
		Kind:       listing.KindBuy,
		Price:      listing.Value(450000),
		ObservedAt: time.Now().UTC(),
	}
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// eventSink records run-level events.
type eventSink struct {
	mu        sync.Mutex
	started   int
	finished  int
	fallbacks []error
}

func (s *eventSink) RunStarted(*reconcile.RunMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
}

func (s *eventSink) SourceFallbackTriggered(_ listing.Scope, reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallbacks = append(s.fallbacks, reason)
}

func (s *eventSink) ListingProcessed(string, reconcile.ListingOutcome) {}

func (s *eventSink) RunFinished(*reconcile.RunMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished++
}

func TestRunHappyPath(t *testing.T) {
	store := newTestStore(t)
	sink := &eventSink{}
	extractor := &fakeExtractor{result: &sources.ExtractResult{
		Listings:   []listing.Listing{testListing("1"), testListing("2")},
		SourceUsed: listing.OriginPrimary,
	}}

	r := New(extractor, store, sink)
	run, err := r.Run(context.Background(), testFilters())

	require.NoError(t, err)
	assert.True(t, run.Finished())
	assert.Equal(t, 2, run.ListingsFound)
	assert.Equal(t, 2, run.ListingsNew)
	assert.Equal(t, reconcile.SourcePrimary, run.SourceUsed)
	assert.Equal(t, 1, sink.started)
	assert.Equal(t, 1, sink.finished)
	assert.Empty(t, sink.fallbacks)

	recent, err := r.Recent(context.Background(), testFilters().Scope(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, run.RunID, recent[0].RunID)
}

func TestRunRecordsFallback(t *testing.T) {
	store := newTestStore(t)
	sink := &eventSink{}
	primaryErr := errors.New("primary down")
	extractor := &fakeExtractor{
		result: &sources.ExtractResult{
			Listings:       []listing.Listing{testListing("1")},
			SourceUsed:     listing.OriginSecondary,
			FallbackReason: primaryErr,
		},
		fallbackErr: primaryErr,
	}

	r := New(extractor, store, sink)
	run, err := r.Run(context.Background(), testFilters())

	require.NoError(t, err)
	assert.Equal(t, reconcile.SourceSecondary, run.SourceUsed)
	require.Len(t, sink.fallbacks, 1)
	assert.Equal(t, primaryErr, sink.fallbacks[0])
}

func TestRunFinalizesFailedExtraction(t *testing.T) {
	store := newTestStore(t)
	sink := &eventSink{}
	primaryErr := errors.New("api down")
	extractor := &fakeExtractor{
		err: &errors.AllSourcesFailed{
			PrimaryErr:   primaryErr,
			SecondaryErr: errors.New("html down"),
		},
		fallbackErr: primaryErr,
	}

	r := New(extractor, store, sink)
	run, err := r.Run(context.Background(), testFilters())

	require.Error(t, err)
	assert.True(t, errors.IsAllSourcesFailed(err))

	// The run is still finalized so health monitoring sees the failure.
	require.NotNil(t, run)
	assert.True(t, run.Finished())
	assert.Equal(t, 0, run.ListingsFound)
	assert.Equal(t, 1, run.Errors)
	assert.Equal(t, reconcile.SourceNone, run.SourceUsed)
	assert.Equal(t, 1, sink.finished)

	// Fallback was attempted before the secondary failed, so the sink still
	// heard about it.
	require.Len(t, sink.fallbacks, 1)
	assert.Equal(t, primaryErr, sink.fallbacks[0])

	report := reconcile.AssessRun(run)
	assert.Equal(t, reconcile.HealthCritical, report.Level)
}

func TestRunRejectsSameScopeInFlight(t *testing.T) {
	store := newTestStore(t)
	release := make(chan struct{})
	extractor := &fakeExtractor{
		result:  &sources.ExtractResult{SourceUsed: listing.OriginPrimary},
		release: release,
	}

	r := New(extractor, store, nil)

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, err := r.Run(context.Background(), testFilters())
		assert.NoError(t, err)
	}()

	// Wait for the first run to hold the scope.
	scope := testFilters().Scope()
	require.Eventually(t, func() bool {
		if r.acquire(scope) {
			r.release(scope)
			return false
		}
		return true
	}, time.Second, 5*time.Millisecond)

	_, err := r.Run(context.Background(), testFilters())
	assert.ErrorIs(t, err, errors.ErrRunInFlight)

	// A disjoint scope is not blocked.
	otherDone := make(chan struct{})
	go func() {
		defer close(otherDone)
		_, err := r.Run(context.Background(), listing.Filters{Region: "Utrecht", Kind: listing.KindRent})
		assert.NoError(t, err)
	}()

	close(release)
	<-firstDone
	<-otherDone
}

func TestRunPlan(t *testing.T) {
	store := newTestStore(t)
	extractor := &fakeExtractor{result: &sources.ExtractResult{
		Listings:   []listing.Listing{testListing("1")},
		SourceUsed: listing.OriginPrimary,
	}}

	r := New(extractor, store, nil)
	runs, errs := r.RunPlan(context.Background(), []listing.Filters{
		{Region: "Amsterdam", Kind: listing.KindBuy},
		{Region: "Utrecht", Kind: listing.KindRent},
	})

	require.Len(t, runs, 2)
	for i := range runs {
		assert.NoError(t, errs[i])
		require.NotNil(t, runs[i])
		assert.True(t, runs[i].Finished())
	}
	assert.NotEqual(t, runs[0].RunID, runs[1].RunID)
}

func TestRunRejectsInvalidScope(t *testing.T) {
	store := newTestStore(t)
	r := New(&fakeExtractor{}, store, nil)

	_, err := r.Run(context.Background(), listing.Filters{Region: "", Kind: listing.KindBuy})
	assert.Error(t, err)
}
