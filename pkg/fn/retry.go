package fn

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryOpts configures Retry.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	// Jitter spreads each wait over [0.5, 1.5) of its nominal value.
	Jitter bool
	// Retryable reports whether a failed attempt may be repeated. Nil
	// retries every error.
	Retryable func(error) bool
	// OnRetry, when set, is told about each failed attempt that will be
	// retried and how long Retry will wait first.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultRetry is three attempts starting at one second.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

// delay is the wait after the given failed attempt (1-based): doubling from
// InitialWait, capped at MaxWait.
func (o RetryOpts) delay(attempt int) time.Duration {
	d := o.InitialWait << (attempt - 1)
	if d <= 0 || (o.MaxWait > 0 && d > o.MaxWait) {
		d = o.MaxWait
	}
	if o.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()))
		if o.MaxWait > 0 && d > o.MaxWait {
			d = o.MaxWait
		}
	}
	return d
}

// Retry calls f until it succeeds, the error is not retryable, attempts run
// out or ctx is done. It returns the last Result, or ctx.Err() when the
// context ends during a wait.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	attempts := max(opts.MaxAttempts, 1)
	for attempt := 1; ; attempt++ {
		res := f(ctx)
		if res.IsOk() || attempt == attempts {
			return res
		}
		if opts.Retryable != nil && !opts.Retryable(res.err) {
			return res
		}

		wait := opts.delay(attempt)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, res.err, wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return Err[T](ctx.Err())
		case <-t.C:
		}
	}
}
