package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoVal_SucceedsFirstTry(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastRetryConfig(3), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, calls)
}

func TestDoVal_RetriesTransient(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastRetryConfig(3), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(errors.New("flaky"), 503)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 3, calls)
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetryConfig(3), func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("down"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, IsTransient(err))
}

func TestDoVal_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetryConfig(3), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_CustomShouldRetry(t *testing.T) {
	cfg := fastRetryConfig(3)
	cfg.ShouldRetry = func(err error) bool { return err.Error() == "again" }

	calls := 0
	_, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("again")
		}
		return 0, errors.New("stop")
	})
	require.EqualError(t, err, "stop")
	assert.Equal(t, 2, calls)
}

func TestDoVal_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := DoVal(ctx, fastRetryConfig(5), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("flaky"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "no retry after cancellation")
}

func TestDoVal_OnRetryCallback(t *testing.T) {
	cfg := fastRetryConfig(3)
	var attempts []int
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_, _ = DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		return 0, NewTransientError(errors.New("flaky"), 503)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestComputeBackoff_GrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     2.0,
	}

	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 300*time.Millisecond, computeBackoff(2, cfg), "capped at MaxBackoff")
	assert.Equal(t, 300*time.Millisecond, computeBackoff(5, cfg))
}

func TestComputeBackoff_JitterStaysInRange(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
	for range 50 {
		d := computeBackoff(0, cfg)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}
