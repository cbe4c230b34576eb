package faults

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:        maxRetries,
		BaseDelay:         time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestExecuteWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	svc := NewService(nil)
	attempts := 0
	err := svc.ExecuteWithRetry(context.Background(), "flaky", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return New(TypeNetwork, "connection reset")
		}
		return nil
	}, fastRetryConfig(3))

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestExecuteWithRetryExhaustsAttempts(t *testing.T) {
	svc := NewService(nil)
	attempts := 0
	err := svc.ExecuteWithRetry(context.Background(), "always-down", func(ctx context.Context) error {
		attempts++
		return New(TypeExternalAPI, "service unavailable")
	}, fastRetryConfig(2))

	require.Error(t, err)
	require.Equal(t, 3, attempts) // initial try + 2 retries
	require.Contains(t, err.Error(), "always-down failed after 3 attempt(s)")

	storedErrs, _ := svc.Counts()
	require.Equal(t, 1, storedErrs)
}

func TestExecuteWithRetryNonRetryableRunsOnce(t *testing.T) {
	svc := NewService(nil)
	attempts := 0
	err := svc.ExecuteWithRetry(context.Background(), "bad-input", func(ctx context.Context) error {
		attempts++
		return New(TypeValidation, "title is required")
	}, fastRetryConfig(5))

	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestExecuteWithRetryRespectsContextCancel(t *testing.T) {
	svc := NewService(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := svc.ExecuteWithRetry(ctx, "cancelled", func(ctx context.Context) error {
		attempts++
		return nil
	}, fastRetryConfig(1))

	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, attempts)
}

func TestRetryConfigDelayCaps(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second, BackoffMultiplier: 2}
	require.Equal(t, time.Second, cfg.Delay(0))
	require.Equal(t, 2*time.Second, cfg.Delay(1))
	require.Equal(t, 4*time.Second, cfg.Delay(2))
	require.Equal(t, 5*time.Second, cfg.Delay(3))
	require.Equal(t, 5*time.Second, cfg.Delay(10))
}

func TestRecordErrorClassifiesAndStores(t *testing.T) {
	svc := NewService(nil)
	pe := svc.RecordError(errors.New("request failed with status 429"), Context{Operation: "transcribe"})

	require.NotEmpty(t, pe.ID)
	require.Equal(t, TypeRateLimit, pe.Type)
	require.Equal(t, SeverityLow, pe.Severity)
	require.True(t, pe.Retryable)
	require.Equal(t, "transcribe", pe.Context.Operation)

	got, ok := svc.Error(pe.ID)
	require.True(t, ok)
	require.Equal(t, pe, got)
}
