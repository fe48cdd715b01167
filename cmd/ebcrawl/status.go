package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/ebcrawl/internal/config"
	"github.com/nao1215/ebcrawl/internal/database"
	"github.com/nao1215/ebcrawl/internal/feed"
	"github.com/nao1215/ebcrawl/internal/report"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what is stored and whether the blog has new posts",
		Long: `Status prints row counts of the database and the resume cursor, the
newest stored post where the next crawl will stop.

With --feed it also reads the blog's RSS feed and reports how many posts
were published after the cursor, without crawling anything.

Examples:
  ebcrawl status
  ebcrawl status --feed
  ebcrawl status --report json`,
		Args: cobra.NoArgs,
		RunE: runStatusCmd,
	}
	addConfigFlags(cmd)
	cmd.Flags().Bool("feed", false, "Compare the cursor with the RSS feed")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (host:port) for the feed request")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for the feed request")
	cmd.Flags().Int("attempts", config.DefaultAttempts, "Attempts for the feed request")
	return cmd
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	withFeed, err := cmd.Flags().GetBool("feed")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)
	ctx := cmd.Context()

	store, err := database.Open(cfg.DBDir, database.Options{EnableWAL: true})
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return fmt.Errorf("no database in %s: run 'ebcrawl crawl' first", cfg.DBDir)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	status := &report.Status{DBPath: store.Path(), Store: stats}

	if withFeed {
		fetcher, embedded, err := newFetcher(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if embedded != nil {
			defer stopEmbeddedTor(embedded, logger)
		}
		fresh, _, err := feed.Probe(ctx, fetcher, nil, cfg.FeedURL, stats.LastPostURL)
		if err != nil {
			logger.Warn("feed check failed", "url", cfg.FeedURL, "error", err)
			status.FeedError = err.Error()
		} else {
			status.Feed = fresh
		}
	}

	format := report.Format(cfg.Report)
	if cfg.Report == config.ReportNone {
		format = report.FormatText
	}
	out, closeFn, err := reportOutput(cmd.OutOrStdout(), cfg.ReportFile)
	if err != nil {
		return err
	}
	w, err := report.NewWriter(format, out)
	if err != nil {
		return errors.Join(err, closeFn())
	}
	_, err = w.WriteStatus(status)
	return errors.Join(err, closeFn())
}
