package pipeline

import (
	"time"

	"github.com/nao1215/ebcrawl/internal/extract"
	"github.com/nao1215/ebcrawl/internal/fetch"
	"github.com/nao1215/ebcrawl/internal/model"
	"github.com/nao1215/ebcrawl/internal/thread"
)

// Job is the state of one post moving through the pipeline.
type Job struct {
	// URL is the article URL.
	URL string

	// Page is the listing page the URL was found on.
	Page int

	// Session is the fetch session to use. Steps that fetch replace it with
	// the session they ended on, so the caller must read it back after
	// Execute, even when Execute fails.
	Session *fetch.Session

	HTML    string
	Result  *extract.Result
	Forest  *thread.Forest
	Records []model.CommentRecord
	Assets  []model.Asset

	// PostID is the stored post id, set by the persist step.
	PostID int64

	// Duplicate is set when the post was already stored and nothing was written.
	Duplicate bool

	// Diagnostics holds recovered problems in the order they were found.
	Diagnostics []error

	// Timings holds the duration of every executed step, by step name.
	Timings map[string]time.Duration
}

// NewJob returns a Job for the article at url.
func NewJob(url string, page int, s *fetch.Session) *Job {
	return &Job{
		URL:     url,
		Page:    page,
		Session: s,
		Timings: make(map[string]time.Duration),
	}
}

// Post returns the extracted post, or nil before extraction.
func (j *Job) Post() *model.Post {
	if j.Result == nil {
		return nil
	}
	return j.Result.Post
}

func (j *Job) diagnose(errs ...error) {
	for _, err := range errs {
		if err != nil {
			j.Diagnostics = append(j.Diagnostics, err)
		}
	}
}
