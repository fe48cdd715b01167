package config

import "time"

// File is the layout of the .ebcrawl YAML configuration file.
// Zero values leave the corresponding Config field untouched.
type File struct {
	// Site is the blog root URL.
	Site string `yaml:"site,omitempty"`

	// PagePattern formats listing page URLs, e.g. "https://ebanoe.it/page/%d/".
	PagePattern string `yaml:"pagePattern,omitempty"`

	FeedURL string `yaml:"feedUrl,omitempty"`

	FilesDir string `yaml:"filesDir,omitempty"`
	DBDir    string `yaml:"dbDir,omitempty"`

	// Cookie is sent with every request. Prefer EBCRAWL_COOKIE in .env for secrets.
	Cookie string `yaml:"cookie,omitempty"`

	Headers map[string]string `yaml:"headers,omitempty"`

	UserAgent string `yaml:"userAgent,omitempty"`

	// Proxy is a SOCKS5 proxy address in host:port form.
	Proxy string `yaml:"proxy,omitempty"`

	Attempts         int           `yaml:"attempts,omitempty"`
	Timeout          time.Duration `yaml:"timeout,omitempty"`
	Delay            time.Duration `yaml:"delay,omitempty"`
	AssetConcurrency int           `yaml:"assetConcurrency,omitempty"`

	// Schedule is the cron spec for the watch command.
	Schedule string `yaml:"schedule,omitempty"`
}

// Apply copies every non-zero field of the file onto cfg.
// Headers are merged; file entries win over existing keys.
func (f *File) Apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Site != "" {
		cfg.SiteURL = f.Site
	}
	if f.PagePattern != "" {
		cfg.PagePattern = f.PagePattern
	}
	if f.FeedURL != "" {
		cfg.FeedURL = f.FeedURL
	}
	if f.FilesDir != "" {
		cfg.FilesDir = f.FilesDir
	}
	if f.DBDir != "" {
		cfg.DBDir = f.DBDir
	}
	if f.Cookie != "" {
		cfg.Cookie = f.Cookie
	}
	if len(f.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(f.Headers))
		}
		for k, v := range f.Headers {
			cfg.Headers[k] = v
		}
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	if f.Proxy != "" {
		cfg.ProxyAddress = f.Proxy
	}
	if f.Attempts > 0 {
		cfg.Attempts = f.Attempts
	}
	if f.Timeout > 0 {
		cfg.Timeout = f.Timeout
	}
	if f.Delay > 0 {
		cfg.CrawlDelay = f.Delay
	}
	if f.AssetConcurrency > 0 {
		cfg.AssetConcurrency = f.AssetConcurrency
	}
	if f.Schedule != "" {
		cfg.Schedule = f.Schedule
	}
}
