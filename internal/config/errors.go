package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidSiteURL is returned when the site URL is not an absolute http(s) URL.
	ErrInvalidSiteURL = errors.New("invalid site URL: must be absolute, e.g. https://ebanoe.it")

	// ErrInvalidPagePattern is returned when the page pattern lacks exactly one %d verb.
	ErrInvalidPagePattern = errors.New("invalid page pattern: must contain exactly one %d")

	// ErrInvalidStartPage is returned for a negative start page.
	ErrInvalidStartPage = errors.New("invalid start page: must be non-negative")

	// ErrInvalidAttempts is returned when the attempt count is not positive.
	ErrInvalidAttempts = errors.New("invalid attempts: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetryDelay is returned when a backoff duration is negative.
	ErrInvalidRetryDelay = errors.New("invalid retry delay: must be non-negative")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidConcurrency is returned when asset concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid asset concurrency: must be positive")

	// ErrInvalidMaxBodySize is returned when a size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrNoFilesDir is returned when file saving is on but no directory is set.
	ErrNoFilesDir = errors.New("no files directory: --files-dir is required with --save-files")

	// ErrNoDBDir is returned when the database directory is empty.
	ErrNoDBDir = errors.New("no database directory configured")

	// ErrConflictingProxy is returned when both --proxy and --tor are set.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --proxy and --tor cannot be used together")

	// ErrInvalidReportFormat is returned for an unknown report format.
	ErrInvalidReportFormat = errors.New("invalid report format: use text, json or markdown")

	// ErrInvalidLogFormat is returned for an unknown log format.
	ErrInvalidLogFormat = errors.New("invalid log format: use text or json")
)
