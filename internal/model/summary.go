package model

import "time"

// Run outcomes reported by Summary.Status.
const (
	StatusComplete  = "complete"
	StatusUpToDate  = "stopped at last stored post"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Issue is an error or diagnostic attached to a page or post.
type Issue struct {
	Page    int    `json:"page"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message"`
}

// Summary is the outcome of one crawl run, suitable for reporting.
type Summary struct {
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	PageCount    int   `json:"page_count"`
	PagesVisited []int `json:"pages_visited"`

	PostsSaved    int `json:"posts_saved"`
	PostsSkipped  int `json:"posts_skipped"`
	PostsFailed   int `json:"posts_failed"`
	CommentsSaved int `json:"comments_saved"`
	AssetsSaved   int `json:"assets_saved"`

	Cursor        string `json:"cursor,omitempty"`
	ReachedCursor bool   `json:"reached_cursor"`
	Cancelled     bool   `json:"cancelled"`

	// Error is the fatal error that ended the run, if any.
	Error string `json:"error,omitempty"`

	Errors      []Issue `json:"errors,omitempty"`
	Diagnostics []Issue `json:"diagnostics,omitempty"`
}

// NewSummary combines run statistics, the events of the run and the error
// Run returned. stats may be nil when the run never started.
func NewSummary(stats *RunStats, events []Event, runErr error) *Summary {
	s := &Summary{}
	if stats != nil {
		s.Started = stats.Started
		s.Finished = stats.Finished
		s.PageCount = stats.PageCount
		s.PagesVisited = stats.PagesVisited
		s.PostsSaved = stats.PostsSaved
		s.PostsSkipped = stats.PostsSkipped
		s.PostsFailed = stats.PostsFailed
		s.CommentsSaved = stats.CommentsSaved
		s.AssetsSaved = stats.AssetsSaved
		s.Cursor = stats.Cursor
		s.ReachedCursor = stats.ReachedCursor
		s.Cancelled = stats.Cancelled
	}
	if runErr != nil && !s.Cancelled {
		s.Error = runErr.Error()
	}

	for _, ev := range events {
		issue := Issue{Page: ev.Page, URL: ev.URL, Message: ev.Message}
		if ev.Err != nil {
			issue.Message = ev.Err.Error()
		}
		switch ev.Kind {
		case EventError:
			s.Errors = append(s.Errors, issue)
		case EventDiagnostic:
			s.Diagnostics = append(s.Diagnostics, issue)
		}
	}
	return s
}

// Duration returns the run time.
func (s *Summary) Duration() time.Duration {
	if s.Finished.IsZero() || s.Started.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// Status returns one of the Status constants.
func (s *Summary) Status() string {
	switch {
	case s.Error != "":
		return StatusFailed
	case s.Cancelled:
		return StatusCancelled
	case s.ReachedCursor:
		return StatusUpToDate
	default:
		return StatusComplete
	}
}
