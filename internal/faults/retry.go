package faults

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls bounded retries with exponential backoff.
type RetryConfig struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig is used when no custom config is supplied.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:        3,
	BaseDelay:         time.Second,
	MaxDelay:          30 * time.Second,
	BackoffMultiplier: 2,
}

// Delay returns the backoff delay for the given zero-based attempt,
// capped at MaxDelay.
func (c RetryConfig) Delay(attempt int) time.Duration {
	d := float64(c.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= c.BackoffMultiplier
	}
	if d > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(d)
}

// ExecuteWithRetry runs fn up to MaxRetries+1 times. Non-retryable fault kinds
// run exactly once regardless of MaxRetries. Once attempts are exhausted the
// last error is wrapped with the operation name and attempt count.
func (s *Service) ExecuteWithRetry(ctx context.Context, operation string, fn func(ctx context.Context) error, cfg *RetryConfig) error {
	c := DefaultRetryConfig
	if cfg != nil {
		c = *cfg
	}

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", operation, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		kind := Classify(lastErr)
		retryable := IsRetryable(kind)
		s.logger.Warn("operation attempt failed",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.String("fault_type", string(kind)),
			zap.Bool("retryable", retryable),
			zap.Error(lastErr),
		)
		if !retryable || attempt == c.MaxRetries {
			s.Record(kind, lastErr.Error(), RecordOpts{
				Context:    Context{Operation: operation},
				RetryCount: attempt,
				MaxRetries: c.MaxRetries,
			})
			return fmt.Errorf("%s failed after %d attempt(s): %w", operation, attempt+1, lastErr)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		case <-time.After(c.Delay(attempt)):
		}
	}
	return fmt.Errorf("%s failed after %d attempt(s): %w", operation, c.MaxRetries+1, lastErr)
}
