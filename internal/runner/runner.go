// Package runner orchestrates one extract-then-reconcile run per scope and
// serializes concurrent runs over the same scope.
package runner

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fundatrack/fundatrack/pkg/errors"
	"github.com/fundatrack/fundatrack/pkg/listing"
	"github.com/fundatrack/fundatrack/pkg/logging"
	"github.com/fundatrack/fundatrack/pkg/reconcile"
	"github.com/fundatrack/fundatrack/pkg/sources"
)

// Extractor is the slice of the composite source the runner needs.
type Extractor interface {
	Extract(ctx context.Context, filters listing.Filters) (*sources.ExtractResult, error)
}

// FallbackNotifier is implemented by extractors that report the moment
// fallback to the secondary source begins. The runner forwards the
// notification to its progress sink, including runs where the secondary
// then fails as well.
type FallbackNotifier interface {
	OnFallback(fn func(scope listing.Scope, err error))
}

// Runner drives runs end to end: start run, extract, reconcile, finalize.
// Disjoint scopes may run concurrently; a second run over a scope already in
// flight is rejected with ErrRunInFlight.
type Runner struct {
	extractor Extractor
	store     reconcile.Store
	tracker   *reconcile.Tracker
	engine    *reconcile.Engine
	sink      reconcile.Sink

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a runner. A nil sink discards progress events.
func New(extractor Extractor, store reconcile.Store, sink reconcile.Sink) *Runner {
	if sink == nil {
		sink = reconcile.NopSink{}
	}
	r := &Runner{
		extractor: extractor,
		store:     store,
		tracker:   reconcile.NewTracker(store),
		engine:    reconcile.NewEngine(store, sink),
		sink:      sink,
		inFlight:  make(map[string]struct{}),
	}
	if notifier, ok := extractor.(FallbackNotifier); ok {
		notifier.OnFallback(func(scope listing.Scope, err error) {
			emitSafe(logging.Default(), func() { r.sink.SourceFallbackTriggered(scope, err) })
		})
	}
	return r
}

// Run executes one complete run over the filters' scope. The returned
// RunMetadata is always finalized, including when extraction fails: a failed
// extraction finalizes with zero listings and a non-zero error count so
// health monitoring sees the failure rather than silence.
func (r *Runner) Run(ctx context.Context, filters listing.Filters) (*reconcile.RunMetadata, error) {
	scope := filters.Scope()
	if err := scope.Validate(); err != nil {
		return nil, errors.NewConfigError("runner", "invalid scope", err)
	}

	if !r.acquire(scope) {
		return nil, errors.ErrRunInFlight
	}
	defer r.release(scope)

	run, err := r.tracker.Start(ctx, scope)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithRunID(ctx, run.RunID)
	ctx = logging.WithScope(ctx, scope.String())
	log := logging.FromContext(ctx)

	emitSafe(log, func() { r.sink.RunStarted(run) })

	result, extractErr := r.extractor.Extract(ctx, filters)
	if extractErr != nil {
		run.SourceUsed = reconcile.SourceNone
		run.Errors = 1
		log.Error().Err(extractErr).Msg("Extraction failed, finalizing empty run")
		if err := r.tracker.Finalize(ctx, run); err != nil {
			log.Error().Err(err).Msg("Failed to finalize run")
		}
		emitSafe(log, func() { r.sink.RunFinished(run) })
		return run, extractErr
	}

	// SourceFallbackTriggered is emitted by the fallback hook registered in
	// New, at the moment fallback begins; here the result only tags the run.
	switch result.SourceUsed {
	case listing.OriginSecondary:
		run.SourceUsed = reconcile.SourceSecondary
	default:
		run.SourceUsed = reconcile.SourcePrimary
	}

	if err := r.engine.Reconcile(ctx, run, result.Listings); err != nil {
		run.Errors++
		log.Error().Err(err).Msg("Reconciliation failed")
	}

	if err := r.tracker.Finalize(ctx, run); err != nil {
		return run, err
	}
	emitSafe(log, func() { r.sink.RunFinished(run) })

	report := reconcile.AssessRun(run)
	if report.Level != reconcile.HealthOK {
		log.Warn().
			Str("health", string(report.Level)).
			Strs("reasons", report.Reasons).
			Msg("Run finished degraded")
	}
	return run, nil
}

// RunPlan executes every scope in the plan, disjoint scopes concurrently.
// It returns the finalized runs in plan order; entries that failed before a
// run could start are nil, with the error at the same index.
func (r *Runner) RunPlan(ctx context.Context, filters []listing.Filters) ([]*reconcile.RunMetadata, []error) {
	runs := make([]*reconcile.RunMetadata, len(filters))
	errs := make([]error, len(filters))

	var wg sync.WaitGroup
	for i, f := range filters {
		wg.Add(1)
		go func(i int, f listing.Filters) {
			defer wg.Done()
			runs[i], errs[i] = r.Run(ctx, f)
		}(i, f)
	}
	wg.Wait()
	return runs, errs
}

// Recent exposes the tracker's read surface for health queries.
func (r *Runner) Recent(ctx context.Context, scope listing.Scope, limit int) ([]reconcile.RunMetadata, error) {
	return r.tracker.Recent(ctx, scope, limit)
}

func (r *Runner) acquire(scope listing.Scope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := scope.String()
	if _, busy := r.inFlight[key]; busy {
		return false
	}
	r.inFlight[key] = struct{}{}
	return true
}

func (r *Runner) release(scope listing.Scope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, scope.String())
}

// emitSafe invokes one sink callback, containing any panic the sink raises.
func emitSafe(log *zerolog.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("Progress sink panicked")
		}
	}()
	fn()
}
