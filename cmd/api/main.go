// Package main implements the POCHINI API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pochini/pochini/engine/advisor"
	"github.com/pochini/pochini/engine/news"
	"github.com/pochini/pochini/internal/wire"
	"github.com/pochini/pochini/pkg/config"
	"github.com/pochini/pochini/pkg/llm"
	"github.com/pochini/pochini/pkg/logging"
	"github.com/pochini/pochini/pkg/metrics"
	"github.com/pochini/pochini/pkg/mid"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, closeLog := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Model ---
	backend, err := wire.Model(ctx, cfg)
	if err != nil {
		return err
	}
	model := llm.NewGuarded(backend, llm.DefaultGuardOpts, logger)

	// --- News feed ---
	store, closeStore, err := wire.NewsStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// --- Recall (optional) ---
	rec, closeRecall, err := wire.Recall(ctx, cfg, backend, logger)
	if err != nil {
		return err
	}
	defer closeRecall()

	// --- Events (optional) ---
	nc, err := wire.NATS(cfg, "pochini-api", logger)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Drain()
	}
	recorder := news.NewRecorder(store, logger, wire.Sinks(nc, cfg.NATS.NewsSubject, rec)...)
	defer recorder.Close()

	reg := metrics.New()
	go metrics.CollectRuntime(ctx, reg, 15*time.Second)

	opts := []advisor.Option{advisor.WithMetrics(reg)}
	srv := &server{
		store:     store,
		recorder:  recorder,
		metrics:   reg,
		logger:    logger,
		now:       time.Now,
		upgrader:  websocket.Upgrader{CheckOrigin: originChecker(cfg.CORSOrigin)},
		llmState:  model.BreakerState,
		fallbacks: store.Fallbacks,
	}
	if rec != nil {
		opts = append(opts, advisor.WithRecall(rec))
		srv.recall = rec
	}
	srv.advisor = advisor.New(model, logger, opts...)

	handler := newHandler(srv, cfg)
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "llm", cfg.LLM.Provider,
			"news_backend", cfg.News.Backend, "recall", rec != nil, "nats", nc != nil)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

// newHandler wraps the routes in the middleware chain. Metrics sits inside
// OTel so that it sees the matched route pattern. A non-positive rate
// disables per-IP limiting.
func newHandler(s *server, cfg *config.Config) http.Handler {
	chain := []mid.Middleware{
		mid.Recover(s.logger, internalError),
		mid.Logger(s.logger),
		mid.CORS(cfg.CORSOrigin),
	}
	if cfg.RateLimit.RPS > 0 {
		var opts []mid.LimiterOption
		if cfg.RateLimit.TrustProxy {
			opts = append(opts, mid.TrustProxy())
		}
		limiter := mid.NewIPLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, opts...)
		chain = append(chain, mid.RateLimit(limiter, tooManyRequests))
	}
	chain = append(chain, mid.OTel("pochini-api"), mid.Metrics(s.metrics))
	return mid.Chain(s.routes(), chain...)
}

// originChecker allows websocket upgrades from the configured CORS origin.
func originChecker(origin string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if origin == "*" {
			return true
		}
		o := r.Header.Get("Origin")
		return o == "" || o == origin
	}
}
