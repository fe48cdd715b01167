package model

import (
	"time"
	"unicode/utf8"
)

// Column limits for persisted text fields.
// Values longer than these are truncated at a rune boundary before writing.
const (
	MaxURLLength      = 1024
	MaxTitleLength    = 128
	MaxPosterLength   = 256
	MaxCategoryLength = 32
	MaxAuthorLength   = 128
	MaxTagLength      = 64
	MaxFileNameLength = 128
)

// Post is one crawled article, identified by its source URL.
// A Post is created once and never modified afterwards except for Updated,
// which is stamped on every write.
type Post struct {
	// ID is the storage identifier. Zero until the post is persisted.
	ID int64 `json:"id,omitempty"`

	// URL is the canonical article URL and the post's identity.
	URL string `json:"url"`

	Title  string `json:"title"`
	Author string `json:"author"`

	// Published is the publish time parsed from the article's datetime
	// attribute. The original offset is preserved.
	Published time.Time `json:"published"`

	// Poster is the cover image URL.
	Poster string `json:"poster"`

	// Content is the outer markup of the article body.
	Content string `json:"content"`

	// Category is optional; empty when the article has none.
	Category string `json:"category,omitempty"`

	// Tags holds tag names in page order.
	Tags []string `json:"tags,omitempty"`

	Updated time.Time `json:"updated"`
}

// Tag is a post label. Names are matched case-sensitively and never duplicated.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Truncate shortens s to at most limit bytes without splitting a rune.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
