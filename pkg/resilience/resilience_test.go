package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pochini/pochini/pkg/fn"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

var errBoom = errors.New("boom")

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

func TestBreakerTripsAndRecovers(t *testing.T) {
	c := &clock{t: time.Unix(1000, 0)}
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Timeout: 10 * time.Second, HalfOpenMax: 1})
	b.now = c.now
	ctx := context.Background()

	b.Call(ctx, fail)
	if b.State() != StateClosed {
		t.Fatalf("expected closed after 1 failure, got %s", b.State())
	}
	b.Call(ctx, fail)
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
	if err := b.Call(ctx, ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	c.advance(10 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}
	if err := b.Call(ctx, ok); err != nil {
		t.Fatalf("trial should pass: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after trial, got %s", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Second})
	b.now = c.now
	ctx := context.Background()

	b.Call(ctx, fail)
	c.advance(time.Second)
	b.Call(ctx, fail)
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
}

func TestCallResult(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1})
	ctx := context.Background()

	r := CallResult(b, ctx, func(context.Context) fn.Result[int] { return fn.Ok(3) })
	if v, err := r.Unwrap(); err != nil || v != 3 {
		t.Fatalf("got %d, %v", v, err)
	}
	CallResult(b, ctx, func(context.Context) fn.Result[int] { return fn.Err[int](errBoom) })
	r = CallResult(b, ctx, func(context.Context) fn.Result[int] { return fn.Ok(1) })
	if _, err := r.Unwrap(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	if StateHalfOpen.String() != "half-open" || State(9).String() != "unknown" {
		t.Fatal("unexpected state names")
	}
}

func TestLimiterAllowAndRefill(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	l := NewLimiter(LimiterOpts{Rate: 1, Burst: 2})
	l.now = c.now

	if !l.Allow() || !l.Allow() {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow() {
		t.Fatal("third call should be limited")
	}
	c.advance(time.Second)
	if !l.Allow() {
		t.Fatal("token should refill after 1s")
	}
}

func TestLimiterWaitHonoursContext(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 0.001, Burst: 1})
	l.Allow()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestBreakerIgnoresCancelledCallers(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1})
	ctx := context.Background()
	b.Call(ctx, func(context.Context) error { return context.Canceled })
	if b.State() != StateClosed {
		t.Fatalf("a cancelled caller must not open the breaker, got %s", b.State())
	}
	b.Call(ctx, func(context.Context) error { return context.DeadlineExceeded })
	if b.State() != StateOpen {
		t.Fatalf("a backend timeout counts as failure, got %s", b.State())
	}
}

func TestBreakerOnStateChange(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	var got []string
	b := NewBreaker(BreakerOpts{
		FailThreshold: 1,
		Timeout:       time.Second,
		OnStateChange: func(from, to State) { got = append(got, from.String()+">"+to.String()) },
	})
	b.now = c.now
	ctx := context.Background()

	b.Call(ctx, fail)
	c.advance(time.Second)
	b.Call(ctx, ok)

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(got) != len(want) {
		t.Fatalf("transitions: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLimiterMaxWait(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 0.01, Burst: 1, MaxWait: 50 * time.Millisecond})
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first token is free: %v", err)
	}
	start := time.Now()
	if err := l.Wait(context.Background()); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if time.Since(start) > 40*time.Millisecond {
		t.Error("an over-budget wait should fail fast")
	}
	if l.Waiting() != 0 {
		t.Errorf("no caller should be queued, got %d", l.Waiting())
	}
}

func TestLimiterWaitSucceeds(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 100, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
}
