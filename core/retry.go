package core

import (
	"context"
	"fmt"
	"log"
	"time"
)

// RetryConfig controls the exponential backoff used by RetryWithBackoff.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryConfig matches the provider adapters' default policy.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
}

// RetryWithBackoff runs op up to cfg.MaxAttempts times with exponential
// backoff (2x factor). Non-retryable errors abort immediately without
// further attempts, as does context cancellation.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, op func() error) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		waitTime := cfg.BaseDelay * (1 << (attempt - 1))
		log.Printf("🔄 Retrying operation after %v (attempt %d/%d): %v", waitTime, attempt, cfg.MaxAttempts, lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(waitTime):
		}
	}

	return lastErr
}
