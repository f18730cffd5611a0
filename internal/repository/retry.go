package repository

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryConfig defines retry behavior configuration
type RetryConfig struct {
	MaxAttempts   int           // Maximum number of attempts, including the first
	BaseDelay     time.Duration // Base delay between retries
	MaxDelay      time.Duration // Maximum delay between retries
	BackoffFactor float64       // Exponential backoff multiplier
	JitterFactor  float64       // Jitter factor to prevent thundering herd

	// OnRetry, when set, is called before each wait with the failed attempt
	// number (starting at 1) and its error.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// ExhaustedError is returned when every attempt ended in a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// RetryableOperation is one attempt of a transaction; attempt starts at 1.
type RetryableOperation func(ctx context.Context, attempt int) error

// RetryOnConflict runs operation until it succeeds, fails with a
// non-conflict error, or MaxAttempts is reached. Each attempt must redo its
// reads: state from a conflicted attempt is never carried over.
func RetryOnConflict(ctx context.Context, config RetryConfig, operation RetryableOperation) error {
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation(ctx, attempt)
		if err == nil {
			return nil
		}
		if !IsConflict(err) {
			return err
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt, err)
		}

		timer := time.NewTimer(config.calculateDelay(attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// calculateDelay calculates the delay for the given retry number
func (c RetryConfig) calculateDelay(retry int) time.Duration {
	factor := c.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}
	backoff := float64(c.BaseDelay) * math.Pow(factor, float64(retry))

	jitter := backoff * c.JitterFactor * (rand.Float64() - 0.5) * 2
	delay := time.Duration(backoff + jitter)

	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}
