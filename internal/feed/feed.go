// Package feed compares the blog's RSS feed with the resume cursor.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/nao1215/ebcrawl/internal/fetch"
)

// ErrEmptyFeed is returned when the feed has no items.
var ErrEmptyFeed = errors.New("feed has no items")

// PageFetcher loads a URL.
type PageFetcher interface {
	FetchPage(ctx context.Context, s *fetch.Session, rawURL string) (string, *fetch.Session, error)
}

// Item is one feed entry.
type Item struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published time.Time `json:"published,omitempty"`
}

// Freshness tells how far the store is behind the feed.
type Freshness struct {
	FeedTitle string `json:"feed_title"`
	Items     int    `json:"items"`

	// Newer counts the items listed before the cursor. When the cursor is
	// not in the feed at all every item counts and CursorSeen is false.
	Newer      int  `json:"newer"`
	CursorSeen bool `json:"cursor_seen"`

	Latest *Item `json:"latest,omitempty"`
}

// UpToDate reports whether the newest feed item is the cursor.
func (f *Freshness) UpToDate() bool {
	return f.CursorSeen && f.Newer == 0
}

// Probe fetches feedURL and counts the items newer than cursor, the URL of
// the newest stored post. The feed lists posts newest first.
func Probe(ctx context.Context, fetcher PageFetcher, s *fetch.Session, feedURL, cursor string) (*Freshness, *fetch.Session, error) {
	body, next, err := fetcher.FetchPage(ctx, s, feedURL)
	if err != nil {
		return nil, next, fmt.Errorf("failed to fetch feed: %w", err)
	}

	parsed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, next, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}
	if len(parsed.Items) == 0 {
		return nil, next, ErrEmptyFeed
	}

	f := &Freshness{
		FeedTitle: strings.TrimSpace(parsed.Title),
		Items:     len(parsed.Items),
		Latest:    toItem(parsed.Items[0]),
	}
	for _, item := range parsed.Items {
		if cursor != "" && sameURL(item.Link, cursor) {
			f.CursorSeen = true
			break
		}
		f.Newer++
	}
	return f, next, nil
}

func toItem(item *gofeed.Item) *Item {
	it := &Item{
		Title: strings.TrimSpace(item.Title),
		Link:  strings.TrimSpace(item.Link),
	}
	if item.PublishedParsed != nil {
		it.Published = *item.PublishedParsed
	}
	return it
}

// sameURL compares two post URLs, ignoring a trailing slash.
func sameURL(a, b string) bool {
	return strings.TrimSuffix(strings.TrimSpace(a), "/") == strings.TrimSuffix(strings.TrimSpace(b), "/")
}
