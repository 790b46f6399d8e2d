package sources_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundatrack/fundatrack/pkg/errors"
	"github.com/fundatrack/fundatrack/pkg/sources"
)

// testPolicy shrinks the backoff base so tests complete quickly while keeping
// the production attempt count.
func testPolicy() sources.RetryPolicy {
	return sources.RetryPolicy{
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		BackoffCap:  10 * time.Millisecond,
	}
}

func TestDelaySequence(t *testing.T) {
	p := sources.DefaultRetryPolicy()

	// The production sequence: attempt 1 -> 2s, 2 -> 4s, 3 -> 8s, capped at 10s.
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
	assert.Equal(t, 10*time.Second, p.Delay(4))
	assert.Equal(t, 10*time.Second, p.Delay(30))
}

func TestRetryThenSuccess(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), "search", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.NewTransientError("funda_api", "timeout", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPermanentErrorNotRetried(t *testing.T) {
	calls := 0
	permanent := errors.NewPermanentError("funda_api", "schema changed", nil)
	err := testPolicy().Do(context.Background(), "search", func(context.Context) error {
		calls++
		return permanent
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, permanent)
	assert.False(t, errors.IsRetryExhausted(err))
}

func TestRetryExhaustion(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), "search", func(context.Context) error {
		calls++
		return errors.NewTransientError("funda_api", "rate limited", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, errors.IsRetryExhausted(err))
	// The underlying transient classification survives the exhaustion tag.
	assert.True(t, errors.IsTransient(err))
}

func TestRetryContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := sources.RetryPolicy{MaxAttempts: 3, BackoffBase: time.Hour, BackoffCap: 2 * time.Hour}
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, "search", func(context.Context) error {
			calls++
			return errors.NewTransientError("funda_api", "timeout", nil)
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, sources.DefaultRetryPolicy().Validate())

	bad := []sources.RetryPolicy{
		{MaxAttempts: 0, BackoffBase: time.Second, BackoffCap: time.Second},
		{MaxAttempts: 3, BackoffBase: 0, BackoffCap: time.Second},
		{MaxAttempts: 3, BackoffBase: 10 * time.Second, BackoffCap: time.Second},
	}
	for _, p := range bad {
		err := p.Validate()
		require.Error(t, err)
		var cerr *errors.ConfigError
		assert.ErrorAs(t, err, &cerr)
	}
}
