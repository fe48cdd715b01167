package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/nao1215/ebcrawl/internal/config"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Crawl on a schedule until interrupted",
		Long: `Watch runs the crawl command repeatedly on a cron schedule until it
receives SIGINT or SIGTERM. A run that is still going when the next one
is due is not overlapped; the due run is skipped.

The schedule accepts standard five-field cron specs and descriptors such
as @hourly or "@every 30m".

Examples:
  # Crawl every six hours
  ebcrawl watch

  # Crawl now, then at minute 15 of every hour, saving images
  ebcrawl watch --now --schedule "15 * * * *" --save-files`,
		Args: cobra.NoArgs,
		RunE: runWatchCmd,
	}
	addCrawlFlags(cmd)
	cmd.Flags().String("schedule", config.DefaultSchedule, "Cron schedule")
	cmd.Flags().Bool("now", false, "Run once immediately instead of waiting for the first tick")
	return cmd
}

func runWatchCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}
	now, err := cmd.Flags().GetBool("now")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	env, err := openEnv(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer env.Close()

	job := func(ctx context.Context) {
		summary, err := env.crawl(ctx)
		if err != nil && !summary.Cancelled {
			logger.Error("crawl failed", "error", err)
		}
		if err := writeReport(cmd.OutOrStdout(), cfg, summary); err != nil {
			logger.Error("report failed", "error", err)
		}
	}
	return runSchedule(ctx, cfg.Schedule, now, job, logger)
}

// runSchedule runs job on the cron schedule until ctx is done, then waits for a
// running job to return. Runs never overlap.
func runSchedule(ctx context.Context, spec string, immediate bool, job func(context.Context), logger *slog.Logger) error {
	l := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)

	id, err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		job(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	c.Start()
	logger.Info("watching", "schedule", spec, "next", c.Entry(id).Next)

	// The immediate run goes through the same chain so it cannot overlap a
	// scheduled one. Stop does not track it, so it is waited for separately.
	var first sync.WaitGroup
	if immediate {
		first.Add(1)
		go func() {
			defer first.Done()
			c.Entry(id).WrappedJob.Run()
		}()
	}

	<-ctx.Done()
	logger.Info("stopping scheduler")
	<-c.Stop().Done()
	first.Wait()
	return nil
}

// cronLogger adapts slog to cron.Logger. Scheduler chatter goes to Debug.
type cronLogger struct {
	logger *slog.Logger
}

// Info implements cron.Logger.
func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

// Error implements cron.Logger.
func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
