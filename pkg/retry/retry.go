// Package retry provides the bounded retry discipline shared by every
// provider call: a fixed attempt budget with attempt-indexed linear backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds a retried operation.
type Policy struct {
	Attempts int           // total attempts including the first
	Backoff  time.Duration // wait before retry k is Backoff * k
}

// DefaultPolicy matches the provider-call contract: 3 attempts, 1s base.
var DefaultPolicy = Policy{Attempts: 3, Backoff: time.Second}

// Do runs fn until it succeeds or the attempt budget is exhausted. The first
// success wins; the delay before the k-th retry is Backoff * k (linear, not
// exponential). Context cancellation aborts the wait and returns ctx.Err().
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := policy.Backoff * time.Duration(attempt)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
