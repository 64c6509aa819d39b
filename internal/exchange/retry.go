package exchange

import (
	"context"
	"time"

	"github.com/jpillora/backoff"

	"github.com/riverforge/combine-trader/internal/xerrors"
	"github.com/riverforge/combine-trader/internal/xlog"
)

// RetryConfig parameterizes the backoff-and-retry wrapper.
type RetryConfig struct {
	MaxRetries int
	MinDelay   time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, MinDelay: 250 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// WithRetry retries fn according to the error taxonomy: Transient
// NetworkError and RateLimited are retried with jittered exponential
// backoff; every other error (in particular AuthenticationError) is
// surfaced immediately.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	b := &backoff.Backoff{Min: cfg.MinDelay, Max: cfg.MaxDelay, Jitter: true}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !xerrors.Retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxRetries {
			break
		}

		d := b.Duration()
		xlog.Warnf("⏳ [exchange] retrying after %v (attempt %d/%d): %v", d, attempt+1, cfg.MaxRetries, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return lastErr
}
