package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned by Wait when the next free slot is further away
// than LimiterOpts.MaxWait.
var ErrRateLimited = errors.New("resilience: rate limited")

// LimiterOpts configures outbound call pacing.
type LimiterOpts struct {
	Rate  float64 // calls per second
	Burst int
	// MaxWait bounds how long Wait may queue a caller. Zero waits for as
	// long as the context allows.
	MaxWait time.Duration
}

// Limiter paces calls to a backend with a token bucket.
type Limiter struct {
	lim     *rate.Limiter
	maxWait time.Duration
	waiting atomic.Int64
	now     func() time.Time
}

// NewLimiter creates a Limiter. A non-positive Burst means 1.
func NewLimiter(opts LimiterOpts) *Limiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Limiter{
		lim:     rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
		maxWait: opts.MaxWait,
		now:     time.Now,
	}
}

// Allow takes a token if one is available now.
func (l *Limiter) Allow() bool { return l.lim.AllowN(l.now(), 1) }

// Waiting reports how many callers are queued in Wait.
func (l *Limiter) Waiting() int64 { return l.waiting.Load() }

// Wait blocks until a token is available, ctx is done, or the wait would
// exceed MaxWait.
func (l *Limiter) Wait(ctx context.Context) error {
	now := l.now()
	r := l.lim.ReserveN(now, 1)
	if !r.OK() {
		return ErrRateLimited
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	if l.maxWait > 0 && delay > l.maxWait {
		r.CancelAt(now)
		return fmt.Errorf("%w: next slot in %s", ErrRateLimited, delay.Round(time.Millisecond))
	}

	l.waiting.Add(1)
	defer l.waiting.Add(-1)
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
