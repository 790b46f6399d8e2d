package sources

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum interval between successive operations
// issued by one adapter instance. Primary and secondary adapters each own an
// independent limiter, so fallback traffic is not throttled by the primary's
// request history.
//
// Wait blocks until at least the minimum interval has elapsed since the
// previous Wait returned. A zero or negative interval disables limiting.
type RateLimiter struct {
	minInterval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewRateLimiter creates a limiter with the given minimum interval between
// operations.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{minInterval: minInterval}
}

// Wait blocks until the minimum interval since the previous Wait returned has
// elapsed, or the context is cancelled. The first call never blocks.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r.minInterval <= 0 {
		return ctx.Err()
	}

	r.mu.Lock()
	remaining := r.minInterval - time.Since(r.last)
	r.mu.Unlock()

	if remaining > 0 {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	r.mu.Lock()
	r.last = time.Now()
	r.mu.Unlock()
	return nil
}

// MinInterval returns the configured minimum interval.
func (r *RateLimiter) MinInterval() time.Duration {
	return r.minInterval
}
