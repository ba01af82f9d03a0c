package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/pochini/pochini/engine/news"
	"github.com/pochini/pochini/pkg/metrics"
)

// articleIndexer is the part of *recall.Service the indexer needs.
type articleIndexer interface {
	Index(ctx context.Context, a news.Article) error
}

type indexer struct {
	index   articleIndexer
	timeout time.Duration
	logger  *slog.Logger

	indexed *metrics.Counter
	failed  *metrics.Counter
	skipped *metrics.Counter
	latency *metrics.Histogram
}

func newIndexer(index articleIndexer, reg *metrics.Registry, logger *slog.Logger) *indexer {
	return &indexer{
		index:   index,
		timeout: 30 * time.Second,
		logger:  logger,
		indexed: reg.Counter("news_indexer_articles_total", "Articles indexed.", "result", "ok"),
		failed:  reg.Counter("news_indexer_articles_total", "Articles indexed.", "result", "error"),
		skipped: reg.Counter("news_indexer_articles_total", "Articles indexed.", "result", "skipped"),
		latency: reg.Histogram("news_indexer_duration_seconds", "Time to embed and upsert one article.", nil),
	}
}

// handle indexes one article. Errors are logged; the event is not redelivered.
func (x *indexer) handle(ctx context.Context, a news.Article) {
	if a.ID == "" || !a.Source.Valid() {
		x.skipped.Inc()
		x.logger.Warn("skipping invalid article event", "id", a.ID, "source", a.Source)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	start := time.Now()
	err := x.index.Index(ctx, a)
	x.latency.Since(start)
	if err != nil {
		x.failed.Inc()
		x.logger.Error("index article failed", "id", a.ID, "err", err)
		return
	}
	x.indexed.Inc()
	x.logger.Debug("article indexed", "id", a.ID, "source", a.Source, "duration", time.Since(start))
}
