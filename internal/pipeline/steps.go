package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/ebcrawl/internal/database"
	"github.com/nao1215/ebcrawl/internal/extract"
	"github.com/nao1215/ebcrawl/internal/fetch"
	"github.com/nao1215/ebcrawl/internal/model"
	"github.com/nao1215/ebcrawl/internal/thread"
)

var (
	// ErrOrphanComment is recorded for a comment whose parent could not be
	// found and which was stored as a root instead.
	ErrOrphanComment = errors.New("comment parent not found, stored as root")

	// ErrMissingInput is returned when a step runs before the step that
	// produces its input.
	ErrMissingInput = errors.New("step input missing")
)

// PageFetcher loads HTML pages.
type PageFetcher interface {
	FetchPage(ctx context.Context, s *fetch.Session, rawURL string) (string, *fetch.Session, error)
}

// AssetIngester downloads post assets and removes them again on request.
type AssetIngester interface {
	Ingest(ctx context.Context, s *fetch.Session, urls []string) ([]model.Asset, []error)
	Discard(assets []model.Asset)
}

// Repository persists posts and everything attached to them.
type Repository interface {
	UpsertTags(ctx context.Context, names []string) ([]model.Tag, error)
	SavePost(ctx context.Context, post *model.Post, tags []model.Tag) (int64, error)
	SaveComments(ctx context.Context, postID int64, records []model.CommentRecord) error
	SaveAssets(ctx context.Context, assets []model.Asset) error
	DeletePost(ctx context.Context, id int64) error
}

// FetchStep downloads the article page.
type FetchStep struct {
	fetcher PageFetcher
}

// NewFetchStep creates a FetchStep.
func NewFetchStep(fetcher PageFetcher) *FetchStep {
	return &FetchStep{fetcher: fetcher}
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do fetches job.URL and stores the body in job.HTML.
func (s *FetchStep) Do(ctx context.Context, job *Job) error {
	html, next, err := s.fetcher.FetchPage(ctx, job.Session, job.URL)
	if next != nil {
		job.Session = next
	}
	if err != nil {
		return err
	}
	job.HTML = html
	return nil
}

// ExtractStep parses the article fields, comments and asset URLs.
type ExtractStep struct {
	loc *time.Location
}

// NewExtractStep creates an ExtractStep that reads zone-less comment times in loc.
func NewExtractStep(loc *time.Location) *ExtractStep {
	if loc == nil {
		loc = time.UTC
	}
	return &ExtractStep{loc: loc}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do extracts job.HTML. A missing post field fails the step; skipped
// comments become diagnostics.
func (s *ExtractStep) Do(_ context.Context, job *Job) error {
	if job.HTML == "" {
		return fmt.Errorf("%w: no page body", ErrMissingInput)
	}
	result, err := extract.New(job.HTML, job.URL, extract.WithLocation(s.loc)).Result()
	if err != nil {
		return err
	}
	job.Result = result
	job.diagnose(result.CommentErrors...)
	return nil
}

// ThreadStep rebuilds the comment forest from the flat comment list.
type ThreadStep struct{}

// NewThreadStep creates a ThreadStep.
func NewThreadStep() *ThreadStep {
	return &ThreadStep{}
}

// Name returns the step name.
func (s *ThreadStep) Name() string {
	return "thread"
}

// Do builds job.Forest and job.Records. Every adopted orphan is a diagnostic.
func (s *ThreadStep) Do(_ context.Context, job *Job) error {
	if job.Result == nil {
		return fmt.Errorf("%w: nothing extracted", ErrMissingInput)
	}
	job.Forest = thread.Build(job.Result.Comments)
	job.Records = job.Forest.Records()
	for _, id := range job.Forest.Adopted {
		job.diagnose(fmt.Errorf("%w: comment %d", ErrOrphanComment, id))
	}
	return nil
}

// AssetStep downloads the post's assets. With a nil ingester it does nothing.
type AssetStep struct {
	ingester AssetIngester
}

// NewAssetStep creates an AssetStep.
func NewAssetStep(ingester AssetIngester) *AssetStep {
	return &AssetStep{ingester: ingester}
}

// Name returns the step name.
func (s *AssetStep) Name() string {
	return "assets"
}

// Do ingests job.Result.Assets. Individual download failures are diagnostics.
func (s *AssetStep) Do(ctx context.Context, job *Job) error {
	if s.ingester == nil {
		return nil
	}
	if job.Result == nil {
		return fmt.Errorf("%w: nothing extracted", ErrMissingInput)
	}
	assets, errs := s.ingester.Ingest(ctx, job.Session, job.Result.Assets)
	job.Assets = assets
	job.diagnose(errs...)
	return nil
}

// PersistStep writes the post, its tags, comments and assets.
type PersistStep struct {
	repo     Repository
	ingester AssetIngester
	logger   *slog.Logger
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithDiscarder sets the ingester whose files are removed when a post is not stored.
func WithDiscarder(ingester AssetIngester) PersistStepOption {
	return func(s *PersistStep) {
		s.ingester = ingester
	}
}

// WithPersistLogger sets the logger.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		s.logger = logger
	}
}

// NewPersistStep creates a PersistStep.
func NewPersistStep(repo Repository, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{repo: repo, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do stores tags, then the post, then comments, then assets. A post that is
// already stored marks the job as duplicate and writes nothing. When a later
// write fails the post is deleted again, so a post is either stored with all
// its comments or not at all. Downloaded files of a post that ends up not
// stored are removed.
func (s *PersistStep) Do(ctx context.Context, job *Job) error {
	post := job.Post()
	if post == nil {
		return fmt.Errorf("%w: nothing extracted", ErrMissingInput)
	}

	tags, err := s.repo.UpsertTags(ctx, post.Tags)
	if err != nil {
		s.discard(job)
		return err
	}

	id, err := s.repo.SavePost(ctx, post, tags)
	if errors.Is(err, database.ErrDuplicatePost) {
		job.Duplicate = true
		s.discard(job)
		return nil
	}
	if err != nil {
		s.discard(job)
		return err
	}

	if err := s.repo.SaveComments(ctx, id, job.Records); err != nil {
		s.rollback(ctx, job, id)
		return err
	}
	if err := s.repo.SaveAssets(ctx, job.Assets); err != nil {
		s.rollback(ctx, job, id)
		return err
	}

	job.PostID = id
	return nil
}

func (s *PersistStep) rollback(ctx context.Context, job *Job, id int64) {
	// the delete must run even when ctx was what failed the write
	if err := s.repo.DeletePost(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Error("failed to delete partially stored post", "url", job.URL, "id", id, "error", err)
	}
	s.discard(job)
}

func (s *PersistStep) discard(job *Job) {
	if s.ingester != nil && len(job.Assets) > 0 {
		s.ingester.Discard(job.Assets)
	}
	job.Assets = nil
}

// Config holds what DefaultPipeline needs.
type Config struct {
	Fetcher PageFetcher
	Repo    Repository

	// Ingester is nil when assets are not saved.
	Ingester AssetIngester

	// CommentLocation is the zone of comment timestamps.
	CommentLocation *time.Location

	Logger *slog.Logger
}

// DefaultPipeline builds the standard post pipeline:
// fetch, extract, thread, assets, persist.
func DefaultPipeline(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := New(WithLogger(logger))
	p.AddSteps(
		NewFetchStep(cfg.Fetcher),
		NewExtractStep(cfg.CommentLocation),
		NewThreadStep(),
	)

	if cfg.Ingester != nil {
		p.AddStep(NewAssetStep(cfg.Ingester))
		p.AddStep(NewPersistStep(cfg.Repo, WithDiscarder(cfg.Ingester), WithPersistLogger(logger)))
		return p
	}
	p.AddStep(NewPersistStep(cfg.Repo, WithPersistLogger(logger)))
	return p
}
