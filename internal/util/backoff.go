// ABOUTME: Backoff and polling helpers for remote resources that settle asynchronously
// ABOUTME: Used while waiting for a freshly created vector index to become ready
package util

import (
	"context"
	"math/rand/v2"
	"time"
)

// MaxBackoff caps any single wait returned by CalculateBackoff
const MaxBackoff = 30 * time.Second

// CalculateBackoff returns exponential backoff with jitter.
// The delay doubles each attempt, capped at MaxBackoff, with up to ±25% jitter.
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	// keep the shift from overflowing
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > MaxBackoff || backoff <= 0 {
		backoff = MaxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(backoff)/2+1)) - backoff/4
	return backoff + jitter
}

// PollUntil calls check until it reports done, returns an error, or ctx ends.
// Waits between checks follow CalculateBackoff. A check error is returned as-is;
// it is never retried.
func PollUntil(ctx context.Context, baseDelay time.Duration, check func(context.Context) (bool, error)) error {
	for attempt := 0; ; attempt++ {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		timer := time.NewTimer(CalculateBackoff(baseDelay, attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
