package storage

import (
	"context"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 100 * time.Millisecond
)

// WithRetry executes op, retrying transient database failures with
// exponential backoff (baseDelay, baseDelay*2, baseDelay*4, ...).
// Non-transient errors abort after a single attempt; exhausting the attempt
// budget surfaces the last error unchanged.
func WithRetry[T any](ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !isTransient(err) || attempt >= maxAttempts {
			return zero, err
		}

		timer := time.NewTimer(baseDelay << (attempt - 1))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}
}

func withRetry[T any](ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	return WithRetry(ctx, defaultMaxAttempts, defaultBaseDelay, op)
}
