package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pochini/pochini/engine/news"
)

func newListCmd(app *App) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List feed articles, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, closeFn, err := app.openFeed(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			articles, err := st.List(ctx)
			if err != nil {
				return err
			}
			if limit > 0 && len(articles) > limit {
				articles = articles[:limit]
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(articles)
			}
			if len(articles) == 0 {
				fmt.Fprintln(out, "No articles.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tSOURCE\tTITLE\tID")
			for _, a := range articles {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.CreatedAt.Local().Format(time.DateTime), a.Source, a.Title, a.ID)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of articles to show, 0 for all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newMigrateCmd(app *App) *cobra.Command {
	var from, to string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy feed articles from one backend to another",
		Long: "Copies every article from --from into --to, oldest first. " +
			"Articles already present in the target are skipped, so the command can be re-run.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == to {
				return errors.New("newsctl: --from and --to must differ")
			}
			ctx := cmd.Context()
			src, closeSrc, err := app.openStore(ctx, from)
			if err != nil {
				return err
			}
			defer closeSrc()
			dst, closeDst, err := app.openStore(ctx, to)
			if err != nil {
				return err
			}
			defer closeDst()

			articles, err := news.All(ctx, src)
			if err != nil {
				return fmt.Errorf("newsctl: read %s: %w", from, err)
			}
			slices.Reverse(articles)

			var copied, skipped int
			for _, a := range articles {
				if _, err := dst.Get(ctx, a.ID); err == nil {
					skipped++
					continue
				} else if !errors.Is(err, news.ErrNotFound) {
					return fmt.Errorf("newsctl: check %s: %w", a.ID, err)
				}
				if dryRun {
					copied++
					continue
				}
				if err := dst.Add(ctx, a); err != nil {
					return fmt.Errorf("newsctl: write %s: %w", a.ID, err)
				}
				copied++
			}
			verb := "Copied"
			if dryRun {
				verb = "Would copy"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d articles from %s to %s (%d already present).\n", verb, copied, from, to, skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "file", "Source backend: file, sqlite or neo4j")
	cmd.Flags().StringVar(&to, "to", "", "Target backend: file, sqlite or neo4j")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be copied without writing")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newReindexCmd(app *App) *cobra.Command {
	var fresh bool

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Embed every feed article into the recall index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, closeStore, err := app.openFeed(ctx)
			if err != nil {
				return err
			}
			defer closeStore()
			rec, closeRecall, err := app.openRecall(ctx)
			if err != nil {
				return err
			}
			defer closeRecall()
			if fresh {
				if err := rec.Reset(ctx); err != nil {
					return err
				}
			}

			articles, err := news.All(ctx, st)
			if err != nil {
				return err
			}
			n, errs := rec.IndexAll(ctx, articles)
			for _, err := range errs {
				app.logger.Warn("reindex failed", "err", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d of %d articles.\n", n, len(articles))
			if len(errs) > 0 {
				return fmt.Errorf("newsctl: %d articles failed to index", len(errs))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fresh, "fresh", false, "Drop and recreate the index before embedding")
	return cmd
}

func newSimilarCmd(app *App) *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "similar <text>",
		Short: "Find past consultations similar to text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rec, closeFn, err := app.openRecall(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			matches, err := rec.Similar(ctx, strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "No similar consultations.")
				return nil
			}
			for _, m := range matches {
				fmt.Fprintf(out, "%.2f  %s  [%s]  %s\n", m.Score, m.Title, m.Source, m.ArticleID)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 5, "Number of matches")
	return cmd
}

func newConfigCmd(app *App) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write the effective configuration to a YAML file",
		Long: "Writes the configuration after defaults, the config file and environment overrides " +
			"are applied. The file is created with owner-only permissions since it may hold credentials.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.cfg.Save(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote configuration to %s.\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Path of the YAML file to write")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
