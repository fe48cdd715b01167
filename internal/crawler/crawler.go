package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/ebcrawl/internal/config"
	"github.com/nao1215/ebcrawl/internal/extract"
	"github.com/nao1215/ebcrawl/internal/fetch"
	"github.com/nao1215/ebcrawl/internal/model"
	"github.com/nao1215/ebcrawl/internal/pipeline"
)

// skippedPage duplicates page 0 on the site.
const skippedPage = 1

// PageFetcher loads listing pages and creates sessions.
type PageFetcher interface {
	NewSession() (*fetch.Session, error)
	FetchPage(ctx context.Context, s *fetch.Session, rawURL string) (string, *fetch.Session, error)
}

// Repository answers the resume questions.
type Repository interface {
	LastPostURL(ctx context.Context) (string, error)
	Exists(ctx context.Context, url string) (bool, error)
}

// PostProcessor runs the per-post steps. *pipeline.Pipeline implements it.
type PostProcessor interface {
	Execute(ctx context.Context, job *pipeline.Job) error
}

// Crawler walks the listing pages and processes every new post.
// A Crawler must not run twice at the same time.
type Crawler struct {
	fetcher   PageFetcher
	repo      Repository
	processor PostProcessor

	// startPage is the first listing page to visit. Non-zero also enables
	// skipping posts that are already stored.
	startPage int

	// pagePattern formats a listing page URL from its index.
	pagePattern string

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithStartPage sets the first listing page to visit.
func WithStartPage(page int) Option {
	return func(c *Crawler) {
		if page >= 0 {
			c.startPage = page
		}
	}
}

// WithPagePattern sets the listing URL pattern, with one %d verb for the index.
func WithPagePattern(pattern string) Option {
	return func(c *Crawler) {
		if pattern != "" {
			c.pagePattern = pattern
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithClock overrides the time source for events and run statistics.
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) {
		c.now = now
	}
}

// New creates a Crawler.
func New(fetcher PageFetcher, repo Repository, processor PostProcessor, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:     fetcher,
		repo:        repo,
		processor:   processor,
		pagePattern: config.DefaultPagePattern,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run holds the state of one Run call.
type run struct {
	*Crawler
	events  chan<- model.Event
	stats   *model.RunStats
	session *fetch.Session
	cursor  string
}

// Run crawls until the last page or the resume boundary. Progress is sent to
// events in order; each send blocks until it is received or ctx is done. A
// nil events channel disables events. Run never closes events.
//
// The returned stats are never nil. The error is non-nil when the page
// count or the cursor cannot be read, or when ctx ends the run early.
func (c *Crawler) Run(ctx context.Context, events chan<- model.Event) (*model.RunStats, error) {
	r := &run{
		Crawler: c,
		events:  events,
		stats:   &model.RunStats{Started: c.now()},
	}
	defer func() { r.stats.Finished = c.now() }()

	r.report(ctx, -1, "start")

	session, err := c.fetcher.NewSession()
	if err != nil {
		return r.stats, err
	}
	r.session = session

	firstURL := c.pageURL(0)
	firstHTML, next, err := c.fetcher.FetchPage(ctx, r.session, firstURL)
	r.keep(next)
	if err != nil {
		return r.stats, r.cancelledOr(ctx, fmt.Errorf("%w: %w", ErrPageCountDiscovery, err))
	}
	count, err := extract.PageCount(firstHTML)
	if err != nil {
		return r.stats, fmt.Errorf("%w: %s: %w", ErrPageCountDiscovery, firstURL, err)
	}
	r.stats.PageCount = count
	r.report(ctx, -1, fmt.Sprintf("pages: %d", count))

	cursor, err := c.repo.LastPostURL(ctx)
	if err != nil {
		return r.stats, fmt.Errorf("%w: %w", ErrCursor, err)
	}
	r.cursor = cursor
	r.stats.Cursor = cursor
	if cursor == "" {
		r.report(ctx, -1, "last: none")
	} else {
		r.report(ctx, -1, "last: "+cursor)
	}

	for page := c.startPage; page <= count; page++ {
		if page == skippedPage {
			continue
		}
		if err := ctx.Err(); err != nil {
			r.stats.Cancelled = true
			return r.stats, err
		}

		var html string
		if page == 0 {
			html = firstHTML
		}
		if stop := r.crawlPage(ctx, page, html); stop {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		r.stats.Cancelled = true
		return r.stats, err
	}
	r.report(ctx, -1, "done")
	return r.stats, nil
}

// crawlPage processes one listing page. html is the already fetched body,
// or "" to fetch it. It reports whether the run must stop.
func (r *run) crawlPage(ctx context.Context, page int, html string) bool {
	pageURL := r.pageURL(page)
	r.stats.PagesVisited = append(r.stats.PagesVisited, page)
	r.emit(ctx, model.Event{Kind: model.EventPage, Page: page, URL: pageURL})

	if html == "" {
		body, next, err := r.fetcher.FetchPage(ctx, r.session, pageURL)
		r.keep(next)
		if err != nil {
			if ctx.Err() != nil {
				return true
			}
			r.fail(ctx, page, pageURL, err)
			return false
		}
		html = body
	}

	links, err := extract.PostLinks(html, pageURL)
	if err != nil {
		r.fail(ctx, page, pageURL, err)
		return false
	}
	r.report(ctx, page, fmt.Sprintf("found: %d posts", len(links)))

	for _, link := range links {
		if ctx.Err() != nil {
			return true
		}
		r.emit(ctx, model.Event{Kind: model.EventPage, Page: page, URL: link})

		if r.cursor != "" && link == r.cursor {
			r.stats.ReachedCursor = true
			r.report(ctx, page, "reached last stored post")
			return true
		}

		if r.startPage != 0 {
			exists, err := r.repo.Exists(ctx, link)
			if err != nil {
				r.fail(ctx, page, link, err)
				continue
			}
			if exists {
				r.stats.PostsSkipped++
				r.report(ctx, page, "already stored: "+link)
				continue
			}
		}

		r.crawlPost(ctx, page, link)
	}
	return false
}

// crawlPost runs the pipeline for one post and records the outcome.
func (r *run) crawlPost(ctx context.Context, page int, link string) {
	job := pipeline.NewJob(link, page, r.session)
	err := r.processor.Execute(ctx, job)
	r.keep(job.Session)

	for _, d := range job.Diagnostics {
		r.stats.Diagnostics++
		r.emit(ctx, model.Event{Kind: model.EventDiagnostic, Page: page, URL: link, Err: d})
	}

	switch {
	case err != nil && ctx.Err() != nil:
		// the run ends; the post is retried next time
	case err != nil:
		r.fail(ctx, page, link, err)
	case job.Duplicate:
		r.stats.PostsSkipped++
		r.report(ctx, page, "already stored: "+link)
	default:
		r.stats.PostsSaved++
		r.stats.CommentsSaved += len(job.Records)
		r.stats.AssetsSaved += len(job.Assets)
		r.emit(ctx, model.Event{
			Kind:    model.EventPostSaved,
			Page:    page,
			URL:     link,
			Message: saveMessage(job),
		})
	}
}

func saveMessage(job *pipeline.Job) string {
	msg := fmt.Sprintf("%d comments, %d assets", len(job.Records), len(job.Assets))
	for _, step := range []string{"fetch", "extract", "thread", "assets", "persist"} {
		if d, ok := job.Timings[step]; ok {
			msg += fmt.Sprintf(", %s %s", step, d.Round(time.Millisecond))
		}
	}
	return msg
}

func (c *Crawler) pageURL(page int) string {
	return fmt.Sprintf(c.pagePattern, page)
}

// keep adopts a replacement session returned by a fetch.
func (r *run) keep(s *fetch.Session) {
	if s != nil {
		r.session = s
	}
}

func (r *run) cancelledOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.stats.Cancelled = true
		return errors.Join(ctxErr, err)
	}
	return err
}

func (r *run) fail(ctx context.Context, page int, url string, err error) {
	if page >= 0 && url != r.pageURL(page) {
		r.stats.PostsFailed++
	}
	r.logger.Warn("crawl item failed", "page", page, "url", url, "error", err)
	r.emit(ctx, model.Event{Kind: model.EventError, Page: page, URL: url, Err: err})
}

func (r *run) report(ctx context.Context, page int, msg string) {
	r.emit(ctx, model.Event{Kind: model.EventReport, Page: page, Message: msg})
}

// emit stamps ev and sends it unless ctx is done.
func (r *run) emit(ctx context.Context, ev model.Event) {
	ev.Time = r.now()
	r.logger.Debug("crawl event", "kind", ev.Kind.String(), "page", ev.Page, "url", ev.URL, "message", ev.Message)
	if r.events == nil {
		return
	}
	select {
	case r.events <- ev:
	case <-ctx.Done():
	}
}
