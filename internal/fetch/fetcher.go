package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	defaultAttempts    = 4
	defaultRetryBase   = 5 * time.Second
	defaultRetryStep   = time.Second
	defaultTimeout     = 60 * time.Second
	defaultMaxBodySize = 10 * 1024 * 1024
	defaultMaxAsset    = 50 * 1024 * 1024
)

// Fetcher loads pages and assets with retries. It is safe for concurrent use;
// concurrency safety of a given Session is the caller's concern, since a
// replacement is returned rather than swapped in place.
type Fetcher struct {
	factory      ClientFactory
	attempts     int
	retryBase    time.Duration
	retryStep    time.Duration
	timeout      time.Duration
	maxBodySize  int64
	maxAssetSize int64
	limiter      *rate.Limiter
	newTimer     func() backoff.Timer
	logger       *slog.Logger

	requests     atomic.Int64
	retries      atomic.Int64
	replacements atomic.Int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithAttempts sets the total number of attempts per fetch (at least 1).
func WithAttempts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.attempts = n
		}
	}
}

// WithBackoff sets the retry schedule: the n-th retry waits base + step*n.
func WithBackoff(base, step time.Duration) Option {
	return func(f *Fetcher) {
		f.retryBase = base
		f.retryStep = step
	}
}

// WithRequestTimeout bounds a single attempt, body read included.
func WithRequestTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxBodySize limits page bodies.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithMaxAssetSize limits asset downloads.
func WithMaxAssetSize(n int64) Option {
	return func(f *Fetcher) {
		f.maxAssetSize = n
	}
}

// WithDelay spaces requests at least d apart. Zero disables pacing.
func WithDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			f.limiter = nil
		}
	}
}

// WithTimerFactory replaces the timer used for retry sleeps.
func WithTimerFactory(fn func() backoff.Timer) Option {
	return func(f *Fetcher) {
		f.newTimer = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher that builds sessions from factory.
func New(factory ClientFactory, opts ...Option) *Fetcher {
	f := &Fetcher{
		factory:      factory,
		attempts:     defaultAttempts,
		retryBase:    defaultRetryBase,
		retryStep:    defaultRetryStep,
		timeout:      defaultTimeout,
		maxBodySize:  defaultMaxBodySize,
		maxAssetSize: defaultMaxAsset,
		newTimer:     func() backoff.Timer { return nil },
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewSession creates a fresh session from the client factory.
func (f *Fetcher) NewSession() (*Session, error) {
	client, err := f.factory.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return &Session{client: client}, nil
}

// Stats is a snapshot of the Fetcher's counters.
type Stats struct {
	Requests            int64
	Retries             int64
	SessionReplacements int64
}

// Stats returns the counters accumulated since New.
func (f *Fetcher) Stats() Stats {
	return Stats{
		Requests:            f.requests.Load(),
		Retries:             f.retries.Load(),
		SessionReplacements: f.replacements.Load(),
	}
}

// FetchPage returns the body of rawURL. The returned session is the one the
// caller must use next: it differs from s when s was poisoned.
// A nil s starts a new session.
func (f *Fetcher) FetchPage(ctx context.Context, s *Session, rawURL string) (string, *Session, error) {
	var body string
	next, err := f.retry(ctx, s, rawURL, func(resp *http.Response) error {
		data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
		if err != nil {
			return err
		}
		if int64(len(data)) > f.maxBodySize {
			return ErrBodyTooLarge
		}
		body = string(data)
		return nil
	})
	if err != nil {
		return "", next, err
	}
	return body, next, nil
}

// FetchAsset downloads rawURL to dest. The file appears at dest only after
// a complete download; partial data is written to a temporary file in the
// same directory and removed on failure.
func (f *Fetcher) FetchAsset(ctx context.Context, s *Session, rawURL, dest string) (*Session, error) {
	if dest == "" {
		return s, &Error{Kind: KindInvalidArgument, URL: rawURL, Err: ErrInvalidDestination}
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return s, &Error{Kind: KindInvalidArgument, URL: rawURL, Err: fmt.Errorf("failed to create %s: %w", dir, err)}
	}

	return f.retry(ctx, s, rawURL, func(resp *http.Response) error {
		tmp, err := os.CreateTemp(dir, ".download-*")
		if err != nil {
			return err
		}
		tmpName := tmp.Name()

		n, err := io.Copy(tmp, io.LimitReader(resp.Body, f.maxAssetSize+1))
		closeErr := tmp.Close()
		switch {
		case err != nil:
		case n > f.maxAssetSize:
			err = ErrBodyTooLarge
		case closeErr != nil:
			err = closeErr
		default:
			err = os.Rename(tmpName, dest)
		}
		if err != nil {
			_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		}
		return err
	})
}

// retry runs the attempt loop shared by pages and assets.
func (f *Fetcher) retry(ctx context.Context, s *Session, rawURL string, consume func(*http.Response) error) (*Session, error) {
	if err := validateURL(rawURL); err != nil {
		return s, &Error{Kind: KindInvalidArgument, URL: rawURL, Err: err}
	}

	current := s
	if current == nil {
		fresh, err := f.NewSession()
		if err != nil {
			return nil, err
		}
		current = fresh
	}

	attempt := 0
	operation := func() error {
		attempt++
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		err := f.attempt(ctx, current, rawURL, attempt, consume)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		var fe *Error
		if errors.As(err, &fe) {
			switch fe.Kind {
			case KindTooLarge, KindInvalidArgument:
				return backoff.Permanent(err)
			case KindPoisonedSession:
				if attempt >= f.attempts {
					// No retry follows, so keep the session the caller passed.
					return err
				}
				fresh, nerr := f.NewSession()
				if nerr != nil {
					return backoff.Permanent(errors.Join(err, nerr))
				}
				fresh.generation = current.generation + 1
				current = fresh
				f.replacements.Add(1)
				f.logger.Debug("session replaced", "url", rawURL, "generation", current.generation)
			}
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: f.retryBase, step: f.retryStep}, uint64(f.attempts-1)), //nolint:gosec // attempts >= 1
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		f.retries.Add(1)
		f.logger.Debug("retrying fetch", "url", rawURL, "kind", KindOf(err).String(), "wait", wait)
	}

	err := backoff.RetryNotifyWithTimer(operation, policy, notify, f.newTimer())
	return current, err
}

// attempt performs one GET and hands a 2xx response to consume.
func (f *Fetcher) attempt(ctx context.Context, s *Session, rawURL string, n int, consume func(*http.Response) error) error {
	f.requests.Add(1)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &Error{Kind: KindInvalidArgument, URL: rawURL, Attempt: n, Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, URL: rawURL, Attempt: n, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // drain for keep-alive
		return &Error{
			Kind:       classifyStatus(resp.StatusCode),
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Attempt:    n,
			Err:        ErrUnexpectedStatus,
		}
	}

	if err := consume(resp); err != nil {
		kind := KindTransport
		if errors.Is(err, ErrBodyTooLarge) {
			kind = KindTooLarge
		}
		return &Error{Kind: kind, URL: rawURL, StatusCode: resp.StatusCode, Attempt: n, Err: err}
	}
	return nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidURL
	}
	return nil
}
