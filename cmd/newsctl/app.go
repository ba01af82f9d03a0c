package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pochini/pochini/engine/news"
	"github.com/pochini/pochini/engine/recall"
	"github.com/pochini/pochini/internal/wire"
	"github.com/pochini/pochini/pkg/config"
	"github.com/pochini/pochini/pkg/logging"
)

// recallService is the part of *recall.Service the commands use.
type recallService interface {
	IndexAll(ctx context.Context, articles []news.Article) (int, []error)
	Similar(ctx context.Context, text string, k int) ([]recall.Match, error)
	Reset(ctx context.Context) error
}

// App carries configuration and the store openers shared by all commands.
// Tests replace the openers.
type App struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger

	openFeed   func(ctx context.Context) (news.Store, wire.Closer, error)
	openStore  func(ctx context.Context, backend string) (news.Store, wire.Closer, error)
	openRecall func(ctx context.Context) (recallService, wire.Closer, error)
}

// load reads the configuration once and installs the default openers.
func (a *App) load() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.logger == nil {
		a.logger, _ = logging.New(logging.Options{Level: cfg.Log.Level, Text: true, Output: os.Stderr})
	}
	if a.openFeed == nil {
		a.openFeed = func(ctx context.Context) (news.Store, wire.Closer, error) {
			return wire.NewsStore(ctx, a.cfg, a.logger)
		}
	}
	if a.openStore == nil {
		a.openStore = a.defaultOpenStore
	}
	if a.openRecall == nil {
		a.openRecall = a.defaultOpenRecall
	}
	return nil
}

func (a *App) defaultOpenStore(ctx context.Context, backend string) (news.Store, wire.Closer, error) {
	if backend == "file" {
		return news.NewFileStore(a.cfg.News.File, a.logger), func() {}, nil
	}
	c := *a.cfg
	c.News.Backend = backend
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	st, closer, err := wire.Primary(ctx, &c, a.logger)
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		return nil, nil, fmt.Errorf("newsctl: %s store is not configured", backend)
	}
	return st, closer, nil
}

func (a *App) defaultOpenRecall(ctx context.Context) (recallService, wire.Closer, error) {
	if a.cfg.Qdrant.URL == "" {
		return nil, nil, errors.New("newsctl: QDRANT_URL is not set")
	}
	backend, err := wire.Model(ctx, a.cfg)
	if err != nil {
		return nil, nil, err
	}
	rec, closer, err := wire.Recall(ctx, a.cfg, backend, a.logger)
	if err != nil {
		return nil, nil, err
	}
	return rec, closer, nil
}

func newRootCmd(app *App) *cobra.Command {
	if app == nil {
		app = &App{}
	}
	cmd := &cobra.Command{
		Use:           "newsctl",
		Short:         "Inspect and maintain the POCHINI news feed",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load()
		},
	}
	cmd.PersistentFlags().StringVar(&app.configPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(
		newListCmd(app),
		newMigrateCmd(app),
		newReindexCmd(app),
		newSimilarCmd(app),
		newConfigCmd(app),
	)
	return cmd
}
