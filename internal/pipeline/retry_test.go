package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestWithRetryEventualSuccess(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "flaky fetch", fastRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "dead fetch", fastRetryConfig(3), func() error {
		calls++
		return fmt.Errorf("still down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Contains(t, err.Error(), "still down")
}

func TestWithRetryCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := fastRetryConfig(5)
	cfg.InitialDelay = time.Minute // forces the wait path

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- withRetry(ctx, "slow fetch", cfg, func() error {
			calls++
			return fmt.Errorf("nope")
		})
	}()

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cancelled")
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("withRetry did not return after cancellation")
	}
}
