// Package resilience guards calls to the model backends with a circuit
// breaker and a token-bucket limiter.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pochini/pochini/pkg/fn"
)

// State of a Breaker.
type State int

const (
	StateClosed   State = iota // calls flow
	StateOpen                  // calls are rejected
	StateHalfOpen              // a few trials are let through
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the backend while the breaker
// is open.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// BreakerOpts configures a Breaker.
type BreakerOpts struct {
	// FailThreshold is how many consecutive failures open the breaker.
	FailThreshold int
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// HalfOpenMax is how many trials may run while half-open.
	HalfOpenMax int
	// IsFailure reports whether err counts against the backend. Nil counts
	// every error except a cancelled caller.
	IsFailure func(error) bool
	// OnStateChange, when set, is called after each transition, outside the
	// breaker's lock.
	OnStateChange func(from, to State)
}

// DefaultBreakerOpts opens after five straight failures and lets a trial
// call through after thirty seconds.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

func callerGone(err error) bool { return errors.Is(err, context.Canceled) }

// Breaker stops calling a backend that keeps failing.
type Breaker struct {
	opts BreakerOpts
	now  func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trials   int
}

// NewBreaker creates a Breaker; zero fields take their defaults.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = DefaultBreakerOpts.HalfOpenMax
	}
	if opts.IsFailure == nil {
		opts.IsFailure = func(err error) bool { return !callerGone(err) }
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	s, changed := b.refresh()
	b.mu.Unlock()
	b.notify(changed, StateOpen, s)
	return s
}

// refresh moves an expired open breaker to half-open. Must hold mu.
func (b *Breaker) refresh() (State, bool) {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state = StateHalfOpen
		b.trials = 0
		return b.state, true
	}
	return b.state, false
}

// setState switches state and reports the previous one. Must hold mu.
func (b *Breaker) setState(to State) State {
	from := b.state
	b.state = to
	b.failures = 0
	b.trials = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	return from
}

func (b *Breaker) notify(changed bool, from, to State) {
	if changed && from != to && b.opts.OnStateChange != nil {
		b.opts.OnStateChange(from, to)
	}
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	s, changed := b.refresh()
	var err error
	switch s {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if b.trials >= b.opts.HalfOpenMax {
			err = ErrCircuitOpen
		} else {
			b.trials++
		}
	}
	b.mu.Unlock()
	b.notify(changed, StateOpen, StateHalfOpen)
	return err
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	var from, to State
	changed := false
	switch {
	case err != nil && b.opts.IsFailure(err):
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.opts.FailThreshold {
			from, to, changed = b.setState(StateOpen), StateOpen, true
		}
	case err != nil:
		// Not the backend's fault; a half-open trial slot is handed back.
		if b.state == StateHalfOpen && b.trials > 0 {
			b.trials--
		}
	case b.state == StateHalfOpen:
		from, to, changed = b.setState(StateClosed), StateClosed, true
	default:
		b.failures = 0
	}
	b.mu.Unlock()
	b.notify(changed, from, to)
}

// Call runs f unless the breaker is open.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := f(ctx)
	b.record(err)
	return err
}

// CallResult is Call for functions returning an fn.Result.
func CallResult[T any](b *Breaker, ctx context.Context, f func(context.Context) fn.Result[T]) fn.Result[T] {
	if err := b.admit(); err != nil {
		return fn.Err[T](err)
	}
	res := f(ctx)
	_, err := res.Unwrap()
	b.record(err)
	return res
}
