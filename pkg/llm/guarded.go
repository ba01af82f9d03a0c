package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pochini/pochini/pkg/fn"
	"github.com/pochini/pochini/pkg/resilience"
)

// GuardOpts configures Guarded.
type GuardOpts struct {
	Retry   fn.RetryOpts
	Breaker resilience.BreakerOpts
	Limiter resilience.LimiterOpts
}

// DefaultGuardOpts keeps retries short: a user is waiting on the other end.
var DefaultGuardOpts = GuardOpts{
	Retry: fn.RetryOpts{
		MaxAttempts: 2,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     2 * time.Second,
		Jitter:      true,
		Retryable:   retryable,
	},
	Breaker: resilience.DefaultBreakerOpts,
	Limiter: resilience.LimiterOpts{Rate: 5, Burst: 10, MaxWait: 10 * time.Second},
}

// retryable skips errors a second attempt cannot fix.
func retryable(err error) bool {
	return !errors.Is(err, ErrEmptyResponse) &&
		!errors.Is(err, resilience.ErrCircuitOpen) &&
		!errors.Is(err, resilience.ErrRateLimited) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// backendFailure counts errors against the breaker. An empty answer means
// the backend is up.
func backendFailure(err error) bool {
	return !errors.Is(err, ErrEmptyResponse) && !errors.Is(err, context.Canceled)
}

// Guarded protects a Model with a rate limiter, a circuit breaker and retries.
// Streams go through the limiter and breaker but are never retried: chunks
// may already have reached the client.
type Guarded struct {
	next    Model
	breaker *resilience.Breaker
	limiter *resilience.Limiter
	retry   fn.RetryOpts
	logger  *slog.Logger
}

// NewGuarded wraps m.
func NewGuarded(m Model, opts GuardOpts, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultGuardOpts.Retry
	}
	if opts.Limiter.Rate <= 0 {
		opts.Limiter = DefaultGuardOpts.Limiter
	}
	if opts.Breaker.IsFailure == nil {
		opts.Breaker.IsFailure = backendFailure
	}
	if opts.Breaker.OnStateChange == nil {
		opts.Breaker.OnStateChange = func(from, to resilience.State) {
			logger.Warn("llm circuit breaker changed state", "from", from.String(), "to", to.String())
		}
	}
	return &Guarded{
		next:    m,
		breaker: resilience.NewBreaker(opts.Breaker),
		limiter: resilience.NewLimiter(opts.Limiter),
		retry:   opts.Retry,
		logger:  logger,
	}
}

// BreakerState reports the breaker state for health checks.
func (g *Guarded) BreakerState() resilience.State { return g.breaker.State() }

// Generate implements Generator.
func (g *Guarded) Generate(ctx context.Context, req Request) (*Response, error) {
	call := func(ctx context.Context) fn.Result[*Response] {
		if err := g.limiter.Wait(ctx); err != nil {
			return fn.Err[*Response](err)
		}
		return resilience.CallResult(g.breaker, ctx, func(ctx context.Context) fn.Result[*Response] {
			return fn.FromPair(g.next.Generate(ctx, req))
		})
	}
	retry := g.retry
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		g.logger.Warn("llm call failed, retrying", "flow", req.Name, "attempt", attempt, "wait", wait, "err", err)
	}
	res := fn.Retry(ctx, retry, call)
	return res.Unwrap()
}

// Stream implements Streamer.
func (g *Guarded) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var resp *Response
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = g.next.Stream(ctx, req, onChunk)
		return err
	})
	if err != nil {
		g.logger.Warn("llm stream failed", "flow", req.Name, "err", err)
		return nil, err
	}
	return resp, nil
}
