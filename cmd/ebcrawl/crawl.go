package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nao1215/ebcrawl/internal/config"
	"github.com/nao1215/ebcrawl/internal/crawler"
	"github.com/nao1215/ebcrawl/internal/database"
	"github.com/nao1215/ebcrawl/internal/fetch"
	"github.com/nao1215/ebcrawl/internal/ingest"
	eblog "github.com/nao1215/ebcrawl/internal/log"
	"github.com/nao1215/ebcrawl/internal/model"
	"github.com/nao1215/ebcrawl/internal/pipeline"
	"github.com/nao1215/ebcrawl/internal/report"
	"github.com/nao1215/ebcrawl/internal/transport"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Fetch new posts and store them",
		Long: `Crawl walks the blog from the newest listing page and stores every post
it has not seen yet, with its tags and threaded comments. The run stops at
the newest post stored by a previous run.

With --start-page the run begins deeper in the archive and skips posts that
are already stored, which resumes an interrupted first crawl.

Examples:
  # Fetch everything new since the last run
  ebcrawl crawl

  # Also download post images into ./files
  ebcrawl crawl --save-files

  # Resume an interrupted backfill from listing page 120
  ebcrawl crawl --start-page 120

  # Route traffic through an embedded Tor daemon
  ebcrawl crawl --tor

  # Write a Markdown run report
  ebcrawl crawl --report markdown -o reports/latest.md`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}
	addCrawlFlags(cmd)
	return cmd
}

// addCrawlFlags registers the flags shared by crawl and watch.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("save-files", false, "Download post images")
	cmd.Flags().Int("start-page", 0, "First listing page to visit; also skips stored posts")
	cmd.Flags().Int("attempts", config.DefaultAttempts, "Attempts per URL, including the first")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay, "Minimum delay between requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	cmd.Flags().Int("concurrency", config.DefaultAssetConcurrency, "Parallel image downloads per post")
	cmd.Flags().String("files-dir", config.DefaultFilesDir, "Directory for downloaded images")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (host:port)")
	cmd.Flags().Bool("tor", false, "Start an embedded Tor daemon and route traffic through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout, "Timeout for embedded Tor startup")
	addConfigFlags(cmd)
}

// addConfigFlags registers the flags every command that reads the
// configuration needs.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .ebcrawl in current, XDG config or home directory)")
	cmd.Flags().String("env-file", config.DefaultEnvFile, "dotenv file with EBCRAWL_* variables")
	cmd.Flags().String("report", string(config.ReportText), "Report format: text, json, markdown or none")
	cmd.Flags().StringP("output", "o", "", "Write report to specified file path (creates directories if needed)")
}

func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	env, err := openEnv(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer env.Close()

	summary, runErr := env.crawl(ctx)
	if err := writeReport(cmd.OutOrStdout(), cfg, summary); err != nil {
		logger.Error("report failed", "error", err)
	}
	if summary.Cancelled {
		logger.Info("crawl interrupted")
		return nil
	}
	return runErr
}

// buildConfig layers defaults, the config file, the environment and the
// flags the user set explicitly, in that order.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit path must exist; otherwise a missing file means defaults.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	envFile, err := flags.GetString("env-file")
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnv(cfg, envFile); err != nil {
		return nil, err
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies the flags that were set on the command line. Flags a
// command does not define are ignored.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	var err error
	if changed("save-files") {
		if cfg.SaveFiles, err = flags.GetBool("save-files"); err != nil {
			return err
		}
	}
	if changed("start-page") {
		if cfg.StartPage, err = flags.GetInt("start-page"); err != nil {
			return err
		}
	}
	if changed("attempts") {
		if cfg.Attempts, err = flags.GetInt("attempts"); err != nil {
			return err
		}
	}
	if changed("delay") {
		if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
			return err
		}
	}
	if changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if changed("concurrency") {
		if cfg.AssetConcurrency, err = flags.GetInt("concurrency"); err != nil {
			return err
		}
	}
	if changed("files-dir") {
		if cfg.FilesDir, err = flags.GetString("files-dir"); err != nil {
			return err
		}
	}
	if changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return err
		}
	}
	if changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return err
		}
	}
	if changed("tor") {
		if cfg.UseEmbeddedTor, err = flags.GetBool("tor"); err != nil {
			return err
		}
	}
	if changed("tor-timeout") {
		if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
			return err
		}
	}
	if changed("schedule") {
		if cfg.Schedule, err = flags.GetString("schedule"); err != nil {
			return err
		}
	}
	if changed("output") {
		if cfg.ReportFile, err = flags.GetString("output"); err != nil {
			return err
		}
	}
	if changed("report") {
		format, err := flags.GetString("report")
		if err != nil {
			return err
		}
		cfg.Report = config.ReportFormat(format)
		if format == "none" {
			cfg.Report = config.ReportNone
		}
	}

	// verbose and log-format are inherited from the root command.
	if verbose, err := flags.GetBool("verbose"); err == nil {
		cfg.Verbose = verbose
	}
	if format, err := flags.GetString("log-format"); err == nil {
		cfg.LogFormat = format
	}
	return nil
}

// setupLogger creates the redacting logger selected by the configuration.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return eblog.NewLogger(w, eblog.Format(cfg.LogFormat), cfg.Verbose)
}

// crawlEnv holds everything a crawl needs. watch reuses one across runs.
type crawlEnv struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *database.Store
	fetcher *fetch.Fetcher
	tor     *transport.EmbeddedTor
}

// openEnv opens the database and builds the HTTP stack. With --tor it
// starts the embedded daemon first; with --proxy it checks the proxy.
func openEnv(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*crawlEnv, error) {
	env := &crawlEnv{cfg: cfg, logger: logger}

	fetcher, embedded, err := newFetcher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	env.fetcher = fetcher
	env.tor = embedded

	store, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	env.store = store
	logger.Info("database opened", "path", store.Path())

	return env, nil
}

// newFetcher builds the transport and fetcher for cfg. The returned
// EmbeddedTor is nil unless cfg asks for it, and must be stopped by the caller.
func newFetcher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*fetch.Fetcher, *transport.EmbeddedTor, error) {
	opts := []transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithCookie(cfg.Cookie),
		transport.WithHeaders(cfg.Headers),
	}

	var embedded *transport.EmbeddedTor
	switch {
	case cfg.UseEmbeddedTor:
		var err error
		embedded, err = startEmbeddedTor(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		proxyOpt, err := embedded.ProxyOption()
		if err != nil {
			stopEmbeddedTor(embedded, logger)
			return nil, nil, err
		}
		opts = append(opts, proxyOpt)
	case cfg.ProxyAddress != "":
		target, err := proxyTarget(cfg.SiteURL)
		if err != nil {
			return nil, nil, err
		}
		if status := transport.CheckProxy(ctx, cfg.ProxyAddress, target); status != transport.ProxyStatusOK {
			return nil, nil, fmt.Errorf("proxy check failed for %s: %w", cfg.ProxyAddress, status.Err())
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		opts = append(opts, transport.WithProxy(cfg.ProxyAddress))
	}

	builder, err := transport.NewBuilder(opts...)
	if err != nil {
		if embedded != nil {
			stopEmbeddedTor(embedded, logger)
		}
		return nil, nil, fmt.Errorf("failed to configure transport: %w", err)
	}

	fetcher := fetch.New(builder,
		fetch.WithAttempts(cfg.Attempts),
		fetch.WithBackoff(cfg.RetryBase, cfg.RetryStep),
		fetch.WithRequestTimeout(cfg.Timeout),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithMaxAssetSize(cfg.MaxAssetSize),
		fetch.WithDelay(cfg.CrawlDelay),
		fetch.WithLogger(logger),
	)
	return fetcher, embedded, nil
}

// proxyTarget returns the host:port the proxy check asks to connect to.
func proxyTarget(siteURL string) (string, error) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return "", fmt.Errorf("invalid site URL: %w", err)
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*transport.EmbeddedTor, error) {
	logger.Info("starting embedded Tor daemon, this may take a few minutes")

	embedded := transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := embedded.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	logger.Info("embedded Tor daemon started", "socksAddr", embedded.SocksAddr())
	return embedded, nil
}

func stopEmbeddedTor(embedded *transport.EmbeddedTor, logger *slog.Logger) {
	logger.Info("stopping embedded Tor daemon")
	if err := embedded.Stop(); err != nil {
		logger.Error("failed to stop embedded Tor", "error", err)
	}
}

// Close releases the database and stops the embedded Tor daemon.
func (e *crawlEnv) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Error("failed to close database", "error", err)
		}
	}
	if e.tor != nil {
		stopEmbeddedTor(e.tor, e.logger)
	}
}

// newCrawler wires one crawl: the post pipeline over the shared fetcher
// and store, and the image ingester when files are saved.
func (e *crawlEnv) newCrawler() (*crawler.Crawler, error) {
	pcfg := pipeline.Config{
		Fetcher:         e.fetcher,
		Repo:            e.store,
		CommentLocation: e.cfg.CommentLocation(),
		Logger:          e.logger,
	}
	if e.cfg.SaveFiles {
		ing, err := ingest.New(e.fetcher, e.store, e.cfg.FilesDir, e.cfg.SiteURL,
			ingest.WithConcurrency(e.cfg.AssetConcurrency),
			ingest.WithLogger(e.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to set up file saving: %w", err)
		}
		pcfg.Ingester = ing
	}

	return crawler.New(e.fetcher, e.store, pipeline.DefaultPipeline(pcfg),
		crawler.WithStartPage(e.cfg.StartPage),
		crawler.WithPagePattern(e.cfg.PagePattern),
		crawler.WithLogger(e.logger),
	), nil
}

// crawl runs one crawl and summarizes it. The summary is never nil.
func (e *crawlEnv) crawl(ctx context.Context) (*model.Summary, error) {
	c, err := e.newCrawler()
	if err != nil {
		return model.NewSummary(nil, nil, err), err
	}

	events := make(chan model.Event, 64)
	var (
		wg        sync.WaitGroup
		collected []model.Event
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			logEvent(e.logger, ev)
			if ev.Kind == model.EventError || ev.Kind == model.EventDiagnostic {
				collected = append(collected, ev)
			}
		}
	}()

	stats, runErr := c.Run(ctx, events)
	close(events)
	wg.Wait()

	fs := e.fetcher.Stats()
	e.logger.Info("crawl finished",
		"saved", stats.PostsSaved,
		"skipped", stats.PostsSkipped,
		"failed", stats.PostsFailed,
		"requests", fs.Requests,
		"retries", fs.Retries,
		"sessionReplacements", fs.SessionReplacements,
		"duration", stats.Duration(),
	)
	return model.NewSummary(stats, collected, runErr), runErr
}

// logEvent bridges crawl events to the logger.
func logEvent(logger *slog.Logger, ev model.Event) {
	attrs := []any{"page", ev.Page}
	if ev.URL != "" {
		attrs = append(attrs, "url", ev.URL)
	}
	switch ev.Kind {
	case model.EventReport:
		logger.Info(ev.Message, attrs...)
	case model.EventPage:
		logger.Debug("visiting", attrs...)
	case model.EventPostSaved:
		logger.Info("post saved", append(attrs, "timings", ev.Message)...)
	case model.EventDiagnostic:
		logger.Warn("recovered", append(attrs, "error", ev.Err)...)
	case model.EventError:
		logger.Error("skipped", append(attrs, "error", ev.Err)...)
	}
}

// reportOutput opens the report destination. The returned close func is
// a no-op for stdout.
func reportOutput(stdout io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // user-provided report path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// writeReport writes the run summary in the configured format.
func writeReport(stdout io.Writer, cfg *config.Config, summary *model.Summary) (err error) {
	if cfg.Report == config.ReportNone {
		return nil
	}
	out, closeFn, err := reportOutput(stdout, cfg.ReportFile)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeFn())
	}()

	w, err := report.NewWriter(report.Format(cfg.Report), out)
	if err != nil {
		return err
	}
	_, err = w.Write(summary)
	return err
}
