// Package wire builds the runtime dependencies shared by the POCHINI
// binaries from a loaded configuration.
package wire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/pochini/pochini/engine/news"
	"github.com/pochini/pochini/engine/recall"
	"github.com/pochini/pochini/engine/semantic"
	"github.com/pochini/pochini/pkg/config"
	"github.com/pochini/pochini/pkg/gemini"
	"github.com/pochini/pochini/pkg/llm"
	"github.com/pochini/pochini/pkg/ollama"
)

// Backend is a model client that can also embed text.
type Backend interface {
	llm.Model
	llm.Embedder
}

// ErrMissingAPIKey is returned when Gemini is selected without a key.
var ErrMissingAPIKey = errors.New("wire: GEMINI_API_KEY is not set")

// Closer releases whatever a builder opened. Calling it more than once is
// not supported.
type Closer func()

func noop() {}

// Model connects the configured LLM provider.
func Model(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.LLM.Provider {
	case "ollama":
		c, err := ollama.New(cfg.LLM.OllamaURL, cfg.LLM.ChatModel, cfg.LLM.EmbedModel)
		if err != nil {
			return nil, fmt.Errorf("wire: ollama: %w", err)
		}
		return c, nil
	default:
		if cfg.LLM.GeminiAPIKey == "" {
			return nil, ErrMissingAPIKey
		}
		c, err := gemini.New(ctx, cfg.LLM.GeminiAPIKey, cfg.LLM.GeminiModel, cfg.LLM.EmbedModel)
		if err != nil {
			return nil, fmt.Errorf("wire: gemini: %w", err)
		}
		return c, nil
	}
}

// Primary opens the configured primary feed store, or returns nil when the
// backend is "file" or the document store is not configured.
func Primary(ctx context.Context, cfg *config.Config, logger *slog.Logger) (news.Store, Closer, error) {
	switch cfg.News.Backend {
	case "neo4j":
		if !cfg.DocumentStoreConfigured() {
			logger.Warn("document store not configured, news feed uses the file store only")
			return nil, noop, nil
		}
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URL, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Pass, ""))
		if err != nil {
			return nil, noop, fmt.Errorf("wire: neo4j driver: %w", err)
		}
		closer := func() { driver.Close(context.Background()) }
		if err := driver.VerifyConnectivity(ctx); err != nil {
			// Reads and writes still fall back to the file store.
			logger.Warn("neo4j unreachable at startup", "url", cfg.Neo4j.URL, "err", err)
		}
		gs := news.NewGraphStore(driver, cfg.Neo4j.Database)
		if err := gs.EnsureSchema(ctx); err != nil {
			logger.Warn("neo4j schema setup failed", "err", err)
		}
		return gs, closer, nil
	case "sqlite":
		st, err := news.OpenSQLite(ctx, cfg.News.SQLitePath)
		if err != nil {
			return nil, noop, fmt.Errorf("wire: %w", err)
		}
		return st, func() { st.Close() }, nil
	default:
		return nil, noop, nil
	}
}

// NewsStore returns the primary store behind a FallbackStore whose secondary
// is the JSON file.
func NewsStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*news.FallbackStore, Closer, error) {
	primary, closer, err := Primary(ctx, cfg, logger)
	if err != nil {
		return nil, noop, err
	}
	return &news.FallbackStore{
		Primary:   primary,
		Secondary: news.NewFileStore(cfg.News.File, logger),
		Logger:    logger,
	}, closer, nil
}

// Recall connects the Qdrant index. It returns nil when QDRANT_URL is unset.
func Recall(ctx context.Context, cfg *config.Config, embed llm.Embedder, logger *slog.Logger) (*recall.Service, Closer, error) {
	if cfg.Qdrant.URL == "" {
		return nil, noop, nil
	}
	vs, err := semantic.New(cfg.Qdrant.URL, cfg.Qdrant.Collection)
	if err != nil {
		return nil, noop, fmt.Errorf("wire: %w", err)
	}
	if err := vs.EnsureCollection(ctx, cfg.Qdrant.Dims); err != nil {
		logger.Warn("qdrant collection setup failed", "collection", cfg.Qdrant.Collection, "err", err)
	}
	opts := recall.DefaultOptions()
	opts.Dims = cfg.Qdrant.Dims
	return recall.New(embed, vs, opts, logger), func() { vs.Close() }, nil
}

// NATS connects the event bus. It returns nil when NATS_URL is unset.
func NATS(cfg *config.Config, name string, logger *slog.Logger) (*nats.Conn, error) {
	if cfg.NATS.URL == "" {
		return nil, nil
	}
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("wire: nats connect: %w", err)
	}
	return nc, nil
}

// Sinks picks where stored articles go next: a NATS event when the bus is
// connected, otherwise straight into the recall index when one exists.
func Sinks(nc *nats.Conn, subject string, rec *recall.Service) []news.Sink {
	switch {
	case nc != nil:
		return []news.Sink{news.PublishSink(nc, subject)}
	case rec != nil:
		return []news.Sink{news.SinkFunc(rec.Index)}
	default:
		return nil
	}
}
