package rtcvoice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior for failed operations.
//
// Retry is for collaborators with idempotent request/response semantics,
// such as the text/speech relay's upstream calls. Session negotiation is
// deliberately NOT retried: every attempt consumes a fresh ephemeral
// credential and a fresh capture grant, so a failed negotiation is surfaced
// to the caller instead.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	// Set to 0 to disable retries.
	MaxRetries int

	// BaseDelay is the initial delay between retries.
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// Multiplier is the exponential backoff factor.
	Multiplier float64

	// Jitter adds randomness to retry delays, value between 0.0 and 1.0.
	Jitter float64

	// RetryableErrors decides if an error should trigger a retry.
	// If nil, all errors are considered retryable.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns a sensible default retry configuration:
// three attempts with exponential backoff, never retrying configuration,
// credential or negotiation errors.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
		RetryableErrors: func(err error) bool {
			if errors.Is(err, ErrInvalidConfig) ||
				errors.Is(err, ErrCredentialFailed) ||
				errors.Is(err, ErrNegotiationFailed) {
				return false
			}
			return true
		},
	}
}

// RetryableOperation represents an operation that can be retried.
type RetryableOperation func() error

// WithRetry executes an operation with retry logic based on the provided
// configuration, respecting context cancellation between attempts.
func WithRetry(ctx context.Context, config RetryConfig, op RetryableOperation) error {
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if config.RetryableErrors != nil && !config.RetryableErrors(err) {
			return fmt.Errorf("non-retryable error: %w", err)
		}
		if attempt == config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(calculateDelay(attempt, config)):
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}

// calculateDelay computes the delay for a retry attempt with exponential
// backoff and random jitter. The MaxDelay cap is applied after jitter, so
// the returned delay never exceeds it.
func calculateDelay(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt))
	if config.Jitter > 0 {
		delay += delay * config.Jitter * (2*rand.Float64() - 1)
	}
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
