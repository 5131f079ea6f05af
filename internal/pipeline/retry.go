package pipeline

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryConfig defines retry behavior for one operation type
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
	Jitter            bool          `json:"jitter"`
}

// Default retry configurations per operation type. Catalog fetches go over
// the network and warrant more patience than local file writes.
var DefaultRetryConfigs = map[string]RetryConfig{
	"ingestion": {
		MaxAttempts:       3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	},
	"export": {
		MaxAttempts:       3,
		InitialDelay:      2 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	},
}

// backoffDelay computes the delay before the given attempt (1-based)
func (c RetryConfig) backoffDelay(attempt int) time.Duration {
	delay := float64(c.InitialDelay) * math.Pow(c.BackoffMultiplier, float64(attempt-1))
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if c.Jitter {
		// up to 25% random spread so parallel fetches don't retry in lockstep
		delay += delay * 0.25 * rand.Float64()
	}
	return time.Duration(delay)
}

// withRetry runs op, retrying with backoff on failure until MaxAttempts is
// reached or the context is cancelled.
func withRetry(ctx context.Context, opName string, cfg RetryConfig, op func() error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := op(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == attempts {
			break
		}

		delay := cfg.backoffDelay(attempt)
		fmt.Printf("🔁 Retry %d/%d for %s in %v: %v\n", attempt, attempts-1, opName, delay, lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled during retry: %w", opName, ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", opName, attempts, lastErr)
}
