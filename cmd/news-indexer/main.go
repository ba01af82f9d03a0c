// Package main runs the news indexer: it consumes news.created events from
// NATS and writes each article into the Qdrant recall index.
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

	"github.com/pochini/pochini/internal/wire"
	"github.com/pochini/pochini/pkg/config"
	"github.com/pochini/pochini/pkg/logging"
	"github.com/pochini/pochini/pkg/metrics"
	"github.com/pochini/pochini/pkg/natsutil"
)

const queueGroup = "pochini-news-indexer"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	metricsAddr := flag.String("metrics", ":9091", "address for /metrics and /health, empty to disable")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, closeLog := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg, *metricsAddr, logger); err != nil {
		logger.Error("indexer exited with error", "err", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, metricsAddr string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.NATS.URL == "" || cfg.Qdrant.URL == "" {
		return errors.New("news-indexer: NATS_URL and QDRANT_URL are required")
	}
	backend, err := wire.Model(ctx, cfg)
	if err != nil {
		return err
	}
	rec, closeRecall, err := wire.Recall(ctx, cfg, backend, logger)
	if err != nil {
		return err
	}
	defer closeRecall()

	nc, err := wire.NATS(cfg, queueGroup, logger)
	if err != nil {
		return err
	}
	defer nc.Close()

	reg := metrics.New()
	idx := newIndexer(rec, reg, logger)
	sub, err := natsutil.QueueSubscribe(nc, cfg.NATS.NewsSubject, queueGroup, logger, idx.handle)
	if err != nil {
		return fmt.Errorf("news-indexer: subscribe %s: %w", cfg.NATS.NewsSubject, err)
	}
	logger.Info("news indexer started", "subject", cfg.NATS.NewsSubject, "collection", cfg.Qdrant.Collection)

	var httpSrv *http.Server
	if metricsAddr != "" {
		go metrics.CollectRuntime(ctx, reg, 15*time.Second)
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", reg.Handler())
		mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
			if !nc.IsConnected() {
				http.Error(w, "nats disconnected", http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("ok"))
		})
		httpSrv = &http.Server{Addr: metricsAddr, Handler: mux, ReadTimeout: 5 * time.Second}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	if err := sub.Drain(); err != nil {
		logger.Warn("subscription drain failed", "err", err)
	}
	if err := nc.Drain(); err != nil {
		logger.Warn("nats drain failed", "err", err)
	}
	if httpSrv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	}
	return nil
}
