package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/fundatrack/fundatrack/pkg/errors"
	"github.com/fundatrack/fundatrack/pkg/logging"
)

// Retry defaults. The delay sequence is min(2^attempt, cap) seconds:
// attempt 1 -> 2s, attempt 2 -> 4s, attempt 3 -> 8s.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = time.Second
	DefaultBackoffCap  = 10 * time.Second
)

// RetryPolicy wraps a single operation with bounded exponential-backoff
// retry. Only errors classified transient are retried; anything else
// propagates immediately. After exhausting attempts the last error is
// propagated tagged with errors.ErrRetryExhausted.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BackoffBase is the unit of the exponential sequence. The delay after
	// attempt n is BackoffBase * 2^n. Production keeps the 1s default;
	// tests shrink it.
	BackoffBase time.Duration

	// BackoffCap bounds the delay between attempts.
	BackoffCap time.Duration
}

// DefaultRetryPolicy returns the production retry policy: 3 attempts,
// 2s/4s/8s backoff capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BackoffBase: DefaultBackoffBase,
		BackoffCap:  DefaultBackoffCap,
	}
}

// Validate checks the policy parameters. Invalid parameters fail fast as a
// ConfigError before any run starts.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.NewConfigError("retry", "max attempts must be at least 1", nil)
	}
	if p.BackoffBase <= 0 {
		return errors.NewConfigError("retry", "backoff base must be positive", nil)
	}
	if p.BackoffCap < p.BackoffBase {
		return errors.NewConfigError("retry", "backoff cap must be at least the base", nil)
	}
	return nil
}

// Delay returns the backoff delay after the given attempt (1-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BackoffBase << uint(attempt) // base * 2^attempt
	if d > p.BackoffCap || d <= 0 {
		return p.BackoffCap
	}
	return d
}

// Do runs fn, retrying transient failures up to MaxAttempts with exponential
// backoff. Permanent failures propagate immediately without retry.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	log := logging.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !errors.IsTransient(lastErr) {
			return lastErr
		}

		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		log.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", p.MaxAttempts).
			Dur("backoff", delay).
			Err(lastErr).
			Msg("Transient failure, backing off")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%s: %w after %d attempts: %w", op, errors.ErrRetryExhausted, p.MaxAttempts, lastErr)
}
