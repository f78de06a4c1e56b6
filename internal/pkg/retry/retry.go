// Package retry bounds store calls with a per-attempt timeout and retries
// transient outages with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
)

const maxDelay = 5 * time.Second

type Policy struct {
	// Attempts counts the first try. Values below one mean a single try.
	Attempts  int
	BaseDelay time.Duration
	// Timeout bounds a single attempt. Zero relies on the caller's context.
	Timeout time.Duration
	OnRetry func()
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Only attendance.ErrStoreUnavailable is retried.
func Do[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay

	for attempt := 1; ; attempt++ {
		v, err := callOnce(ctx, p.Timeout, fn)
		if err == nil || !attendance.IsRetryable(err) || attempt >= attempts {
			return v, err
		}

		slog.Warn("store call failed, retrying",
			"op", op,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err,
		)
		if p.OnRetry != nil {
			p.OnRetry()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, attendance.Cancelled(ctx.Err())
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// callOnce bounds a single attempt by timeout. An attempt that runs out of
// its own budget while the caller is still waiting counts as a store outage,
// not a cancellation, so it stays retryable.
func callOnce[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return v, fmt.Errorf("%w: %s timeout exceeded", attendance.ErrStoreUnavailable, timeout)
	}
	return v, err
}
