package ingest

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nao1215/ebcrawl/internal/fetch"
	"github.com/nao1215/ebcrawl/internal/model"
)

const defaultConcurrency = 8

// Downloader fetches one asset to a local path.
type Downloader interface {
	FetchAsset(ctx context.Context, s *fetch.Session, rawURL, dest string) (*fetch.Session, error)
}

// Repository looks up assets stored by earlier runs.
type Repository interface {
	AssetByURL(ctx context.Context, url string) (*model.Asset, error)
}

// Ingester downloads post assets into a directory.
// It is safe for concurrent use.
type Ingester struct {
	downloader  Downloader
	repo        Repository
	dir         string
	site        *url.URL
	concurrency int
	logger      *slog.Logger
	now         func() time.Time

	group singleflight.Group

	mu   sync.Mutex
	done map[string]struct{}
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithConcurrency bounds parallel downloads for one Ingest call.
func WithConcurrency(n int) Option {
	return func(i *Ingester) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingester) {
		i.logger = logger
	}
}

// WithClock overrides the time source used for fetch timestamps.
func WithClock(now func() time.Time) Option {
	return func(i *Ingester) {
		i.now = now
	}
}

// New returns an Ingester that writes into dir and accepts assets hosted
// on siteURL's scheme and host.
func New(downloader Downloader, repo Repository, dir, siteURL string, opts ...Option) (*Ingester, error) {
	site, err := url.Parse(siteURL)
	if err != nil || site.Scheme == "" || site.Host == "" {
		return nil, fmt.Errorf("invalid site URL %q", siteURL)
	}
	if dir == "" {
		return nil, errors.New("files directory must not be empty")
	}

	i := &Ingester{
		downloader:  downloader,
		repo:        repo,
		dir:         dir,
		site:        site,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
		now:         time.Now,
		done:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Dir returns the files directory.
func (i *Ingester) Dir() string {
	return i.dir
}

// Ingest downloads the assets at urls and returns the newly stored ones in
// input order. URLs handled earlier in the run, already stored with their
// file present, or listed twice are skipped. Failed downloads are returned
// as errors and do not stop the others.
func (i *Ingester) Ingest(ctx context.Context, s *fetch.Session, urls []string) ([]model.Asset, []error) {
	var errs []error
	candidates := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		if err := i.accept(raw); err != nil {
			errs = append(errs, fmt.Errorf("skip %s: %w", raw, err))
			continue
		}
		candidates = append(candidates, raw)
	}

	results := make([]*model.Asset, len(candidates))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(i.concurrency)
	for idx, raw := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("download %s: %w", raw, err))
				mu.Unlock()
				return nil
			}

			asset, err := i.ingestOne(ctx, s, raw)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("download %s: %w", raw, err))
				return nil
			}
			results[idx] = asset
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	assets := make([]model.Asset, 0, len(results))
	for _, a := range results {
		if a != nil {
			assets = append(assets, *a)
		}
	}
	return assets, errs
}

// Discard removes the files of assets that will not be persisted and
// forgets their URLs so a later post may download them again.
func (i *Ingester) Discard(assets []model.Asset) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, a := range assets {
		delete(i.done, a.URL)
		p := a.Path
		if p == "" {
			p = filepath.Join(i.dir, a.FileName)
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			i.logger.Warn("failed to remove discarded asset", "path", p, "error", err)
		}
	}
}

// accept applies the same-site and file name rules.
func (i *Ingester) accept(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrForeignAsset, err)
	}
	if !strings.EqualFold(u.Scheme, i.site.Scheme) || !strings.EqualFold(u.Host, i.site.Host) {
		return ErrForeignAsset
	}
	if base := path.Base(u.Path); base == "" || base == "." || base == "/" || strings.HasSuffix(u.Path, "/") {
		return ErrNoFileName
	}
	return nil
}

// ingestOne returns the stored asset, or nil when raw needs no download.
// Concurrent calls for the same URL share one download; only the caller
// that started it receives the asset.
func (i *Ingester) ingestOne(ctx context.Context, s *fetch.Session, raw string) (*model.Asset, error) {
	if i.isDone(raw) {
		return nil, nil
	}

	leader := false
	v, err, _ := i.group.Do(raw, func() (any, error) {
		leader = true
		if i.isDone(raw) {
			return (*model.Asset)(nil), nil
		}
		asset, err := i.download(ctx, s, raw)
		if err != nil {
			return nil, err
		}
		i.markDone(raw)
		return asset, nil
	})
	if !leader {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	asset, _ := v.(*model.Asset)
	return asset, nil
}

func (i *Ingester) download(ctx context.Context, s *fetch.Session, raw string) (*model.Asset, error) {
	existing, err := i.repo.AssetByURL(ctx, raw)
	if err != nil {
		return nil, err
	}

	var name string
	if existing != nil && existing.FileName != "" {
		if _, err := os.Stat(filepath.Join(i.dir, existing.FileName)); err == nil {
			i.logger.Debug("asset already stored", "url", raw, "file", existing.FileName)
			return nil, nil
		}
		// The file is gone: restore it under the recorded name.
		name = filepath.Base(existing.FileName)
	} else {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, err
		}
		name = uuid.NewString() + path.Ext(u.Path)
	}
	dest := filepath.Join(i.dir, name)

	// A replacement session is not handed back: downloads run concurrently
	// and a fresh session only serves the download that needed it.
	if _, err := i.downloader.FetchAsset(ctx, s, raw, dest); err != nil {
		return nil, err
	}

	asset, err := i.describe(raw, name, dest)
	if err != nil {
		_ = os.Remove(dest) //nolint:errcheck // best effort cleanup
		return nil, err
	}
	i.logger.Debug("asset stored", "url", raw, "file", name, "size", asset.Size)
	return asset, nil
}

// describe computes the size, checksum and EXIF summary of a stored file.
func (i *Ingester) describe(raw, name, dest string) (*model.Asset, error) {
	data, err := os.ReadFile(dest) //nolint:gosec // path is built from a generated name
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dest, err)
	}
	sum := sha3.Sum256(data)

	asset := &model.Asset{
		URL:      raw,
		FileName: name,
		Path:     dest,
		Size:     int64(len(data)),
		Checksum: hex.EncodeToString(sum[:]),
		Fetched:  i.now(),
	}
	if hasExifContainer(name) {
		asset.Exif = exifSummary(data)
	}
	return asset, nil
}

func (i *Ingester) isDone(raw string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.done[raw]
	return ok
}

func (i *Ingester) markDone(raw string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.done[raw] = struct{}{}
}
