package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is used for XDG directories and the config file name.
	AppName = "ebcrawl"

	// DefaultSiteURL is the blog root. Assets outside this origin are never downloaded.
	DefaultSiteURL = "https://ebanoe.it"

	// DefaultPagePattern formats a listing page URL from its index.
	DefaultPagePattern = "https://ebanoe.it/page/%d/"

	// DefaultFeedURL is the WordPress feed used by the status command.
	DefaultFeedURL = "https://ebanoe.it/feed/"

	// DefaultFilesDir is where downloaded assets are written, relative to the working directory.
	DefaultFilesDir = "files"

	// DefaultAttempts is the number of fetch attempts per URL.
	DefaultAttempts = 4

	// DefaultRetryBase and DefaultRetryStep give the backoff sleep
	// base + step*attempt: 5s, 6s, 7s.
	DefaultRetryBase = 5 * time.Second
	DefaultRetryStep = 1 * time.Second

	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 60 * time.Second

	// DefaultCrawlDelay is the minimum gap between requests. Zero disables pacing.
	DefaultCrawlDelay = 0

	// DefaultAssetConcurrency bounds parallel downloads for one post.
	DefaultAssetConcurrency = 8

	// DefaultMaxBodySize limits how much of an HTML page is read.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// DefaultMaxAssetSize limits a single downloaded asset.
	DefaultMaxAssetSize = 50 * 1024 * 1024

	// DefaultUserAgent is sent with every request unless overridden.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	// DefaultSchedule is the cron spec used by the watch command.
	DefaultSchedule = "@every 6h"

	// DefaultTorStartupTimeout bounds embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultCommentUTCOffset is the offset of comment timestamps, which the
	// site renders in Moscow time without a zone.
	DefaultCommentUTCOffset = 3 * time.Hour
)

// ReportFormat selects the run summary output.
type ReportFormat string

// Supported report formats.
const (
	ReportNone     ReportFormat = ""
	ReportText     ReportFormat = "text"
	ReportJSON     ReportFormat = "json"
	ReportMarkdown ReportFormat = "markdown"
)

// Config holds every option of a crawl run. It is built from defaults,
// then the YAML file, then the environment, then command-line flags.
type Config struct {
	// SiteURL is the scheme and host of the blog.
	SiteURL string

	// PagePattern is a fmt pattern with one %d verb for the listing page index.
	PagePattern string

	FeedURL string

	// StartPage is the first listing page to visit. A non-zero value also
	// enables skipping posts that are already stored.
	StartPage int

	// SaveFiles enables asset download.
	SaveFiles bool

	FilesDir string

	// DBDir holds the SQLite database. Defaults to the XDG data directory.
	DBDir string

	Attempts  int
	RetryBase time.Duration
	RetryStep time.Duration
	Timeout   time.Duration

	CrawlDelay time.Duration

	AssetConcurrency int

	MaxBodySize  int64
	MaxAssetSize int64

	UserAgent string

	// Cookie is sent with every request, typically a bot-challenge clearance cookie.
	Cookie string

	Headers map[string]string

	// ProxyAddress is a SOCKS5 proxy in host:port form. Empty means direct.
	ProxyAddress string

	// UseEmbeddedTor starts a private Tor daemon and routes traffic through it.
	UseEmbeddedTor bool

	TorStartupTimeout time.Duration

	// CommentUTCOffset is applied to comment timestamps, which carry no zone.
	CommentUTCOffset time.Duration

	Schedule string

	Verbose   bool
	LogFormat string

	Report     ReportFormat
	ReportFile string

	// ConfigFilePath is the explicit config file path, if one was given.
	ConfigFilePath string
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		SiteURL:           DefaultSiteURL,
		PagePattern:       DefaultPagePattern,
		FeedURL:           DefaultFeedURL,
		FilesDir:          DefaultFilesDir,
		DBDir:             XDGDataDir(),
		Attempts:          DefaultAttempts,
		RetryBase:         DefaultRetryBase,
		RetryStep:         DefaultRetryStep,
		Timeout:           DefaultTimeout,
		CrawlDelay:        DefaultCrawlDelay,
		AssetConcurrency:  DefaultAssetConcurrency,
		MaxBodySize:       DefaultMaxBodySize,
		MaxAssetSize:      DefaultMaxAssetSize,
		UserAgent:         DefaultUserAgent,
		Headers:           make(map[string]string),
		TorStartupTimeout: DefaultTorStartupTimeout,
		CommentUTCOffset:  DefaultCommentUTCOffset,
		Schedule:          DefaultSchedule,
		LogFormat:         "text",
		Report:            ReportText,
	}
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/ebcrawl on Linux.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, e.g. ~/.config/ebcrawl on Linux.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// CommentLocation returns the fixed zone comment timestamps are rendered in.
func (c *Config) CommentLocation() *time.Location {
	return time.FixedZone("site", int(c.CommentUTCOffset/time.Second))
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	u, err := url.Parse(c.SiteURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ErrInvalidSiteURL
	}

	if strings.Count(c.PagePattern, "%d") != 1 {
		return ErrInvalidPagePattern
	}

	if c.StartPage < 0 {
		return ErrInvalidStartPage
	}

	if c.Attempts <= 0 {
		return ErrInvalidAttempts
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.RetryBase < 0 || c.RetryStep < 0 {
		return ErrInvalidRetryDelay
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.AssetConcurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxBodySize < 0 || c.MaxAssetSize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.SaveFiles && c.FilesDir == "" {
		return ErrNoFilesDir
	}

	if c.DBDir == "" {
		return ErrNoDBDir
	}

	if c.UseEmbeddedTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}

	switch c.Report {
	case ReportNone, ReportText, ReportJSON, ReportMarkdown:
	default:
		return ErrInvalidReportFormat
	}

	switch c.LogFormat {
	case "", "text", "json":
	default:
		return ErrInvalidLogFormat
	}

	return nil
}
