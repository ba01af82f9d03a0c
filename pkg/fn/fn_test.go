package fn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestResult(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("expected ok")
	}
	if v, err := r.Unwrap(); v != 42 || err != nil {
		t.Fatalf("got %d, %v", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() {
		t.Fatal("expected err")
	}
	if e.UnwrapOr(7) != 7 {
		t.Fatal("expected fallback")
	}

	if FromPair(1, errors.New("x")).IsOk() {
		t.Fatal("FromPair should carry the error")
	}
}

var fastRetry = RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var calls int
	r := Retry(context.Background(), fastRetry, func(context.Context) Result[string] {
		calls++
		if calls < 3 {
			return Err[string](errors.New("transient"))
		}
		return Ok("done")
	})
	if v, err := r.Unwrap(); err != nil || v != "done" {
		t.Fatalf("got %q, %v", v, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	opts := fastRetry
	opts.Retryable = func(err error) bool { return !errors.Is(err, fatal) }

	var calls int
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		calls++
		return Err[int](fatal)
	})
	if _, err := r.Unwrap(); !errors.Is(err, fatal) {
		t.Fatalf("expected fatal, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := RetryOpts{MaxAttempts: 5, InitialWait: time.Hour, MaxWait: time.Hour}
	r := Retry(ctx, opts, func(context.Context) Result[int] {
		cancel()
		return Err[int](errors.New("x"))
	})
	if _, err := r.Unwrap(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStageOfAndTraced(t *testing.T) {
	double := StageOf(func(_ context.Context, n int) (int, error) { return n * 2, nil })
	v, err := TracedStage("double", double).Run(context.Background(), 21)
	if err != nil || v != 42 {
		t.Fatalf("got %d, %v", v, err)
	}

	failing := StageOf(func(context.Context, int) (int, error) { return 0, errors.New("nope") })
	if _, err := TracedStage("fail", failing).Run(context.Background(), 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestRetry_OnRetryAndDelay(t *testing.T) {
	var waits []time.Duration
	opts := RetryOpts{
		MaxAttempts: 4, InitialWait: time.Millisecond, MaxWait: 3 * time.Millisecond,
		OnRetry: func(_ int, _ error, wait time.Duration) { waits = append(waits, wait) },
	}
	Retry(context.Background(), opts, func(context.Context) Result[int] { return Err[int](errors.New("x")) })
	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}
	if len(waits) != len(want) {
		t.Fatalf("got waits %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait %d: got %v, want %v", i, waits[i], want[i])
		}
	}
}

func TestBatchStage_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stage := StageOf(func(ctx context.Context, n int) (int, error) { return n, ctx.Err() })
	_, errs := Partition(BatchStage(1, stage)(ctx, []int{1, 2, 3}))
	if len(errs) != 3 {
		t.Fatalf("expected every item to fail, got %d errors", len(errs))
	}
	if got := BatchStage(2, stage)(context.Background(), nil); len(got) != 0 {
		t.Fatalf("empty input gives empty output, got %d", len(got))
	}
}

func TestBatchStageBoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	stage := StageOf(func(_ context.Context, n int) (int, error) {
		cur := active.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		if n%2 == 0 {
			return 0, errors.New("even")
		}
		return n, nil
	})

	results := BatchStage(2, stage)(context.Background(), []int{1, 2, 3, 4, 5})
	vals, errs := Partition(results)
	if len(vals) != 3 || len(errs) != 2 {
		t.Fatalf("got %d vals, %d errs", len(vals), len(errs))
	}
	if vals[0] != 1 || vals[1] != 3 || vals[2] != 5 {
		t.Fatalf("order not preserved: %v", vals)
	}
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency %d exceeds 2", peak.Load())
	}
}

func TestBatchStageReuseKeepsWorkers(t *testing.T) {
	var started atomic.Int32
	ready := make(chan struct{})
	stage := StageOf(func(_ context.Context, n int) (int, error) {
		if n == 0 {
			return 0, nil
		}
		if started.Add(1) == 3 {
			close(ready)
		}
		select {
		case <-ready:
			return n, nil
		case <-time.After(time.Second):
			return 0, errors.New("workers did not run together")
		}
	})
	batch := BatchStage(3, stage)
	batch(context.Background(), []int{0})
	if _, errs := Partition(batch(context.Background(), []int{1, 2, 3})); len(errs) != 0 {
		t.Fatalf("a short batch must not shrink later batches: %v", errs)
	}
}
