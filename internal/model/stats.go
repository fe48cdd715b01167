package model

import "time"

// RunStats summarizes one crawl run.
type RunStats struct {
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	// PageCount is the number of listing pages discovered on the site.
	PageCount int `json:"page_count"`

	// PagesVisited lists the listing page indices that were fetched, in order.
	PagesVisited []int `json:"pages_visited"`

	PostsSaved   int `json:"posts_saved"`
	PostsSkipped int `json:"posts_skipped"`
	PostsFailed  int `json:"posts_failed"`

	CommentsSaved int `json:"comments_saved"`
	AssetsSaved   int `json:"assets_saved"`
	Diagnostics   int `json:"diagnostics"`

	// Cursor is the resume boundary read at the start of the run.
	Cursor string `json:"cursor,omitempty"`

	// ReachedCursor is true when the run stopped early at the resume boundary.
	ReachedCursor bool `json:"reached_cursor"`

	// Cancelled is true when the run was interrupted by its context.
	Cancelled bool `json:"cancelled"`
}

// Duration returns how long the run took.
func (s *RunStats) Duration() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// StoreStats holds row counts of the repository.
type StoreStats struct {
	Posts    int `json:"posts"`
	Comments int `json:"comments"`
	Tags     int `json:"tags"`
	Assets   int `json:"assets"`

	// LastPostURL is the current resume cursor.
	LastPostURL string `json:"last_post_url,omitempty"`

	// LastPublished is the publish time of the newest stored post.
	LastPublished time.Time `json:"last_published,omitempty"`
}
