package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds Retry. Attempt n (0-based) waits BaseDelay * 2^n before
// the next try, capped at MaxDelay when set.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Permanent marks err so Retry returns it without further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry calls fn until it succeeds, returns a Permanent error, the retries
// are exhausted or ctx is done. The error of the last attempt is returned.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = backoff.DefaultMaxInterval
	}
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxDelay,
	}
	tries := uint(1)
	if p.MaxRetries > 0 {
		tries += uint(p.MaxRetries)
	}

	res, err := backoff.Retry(ctx, func() (T, error) {
		return fn(ctx)
	},
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(tries),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.DebugContext(ctx, "retrying", "error", err, "next", next)
		}),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return res, err
}
