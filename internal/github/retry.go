package github

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryPolicy controls how individual API calls are retried on transient
// failures. It is passed into the client explicitly instead of being baked
// into call sites. Rate-limit and not-found errors are never retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy matches the upstream behaviour: up to 5 attempts with
// exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// doWithRetry runs fn, retrying transient errors per the policy.
func doWithRetry(ctx context.Context, policy RetryPolicy, logger *slog.Logger, op string, fn func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := policy.InitialBackoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNotFound) {
			return err
		}
		if attempt == attempts {
			break
		}
		logger.Debug("retrying github call", "op", op, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}
	return err
}
