package model

import "time"

// FlatComment is a comment as it appears in the page markup, before the
// thread structure is rebuilt. It lives only for the duration of one post's
// extraction.
type FlatComment struct {
	// ID is the site-assigned numeric id, unique within a post.
	ID int64 `json:"id"`

	// ParentID is the site-assigned id of the enclosing comment.
	// Zero means the comment is top-level.
	ParentID int64 `json:"parent_id,omitempty"`

	Author    string    `json:"author"`
	Published time.Time `json:"published"`
	Content   string    `json:"content"`
}

// NoParent marks a CommentRecord without a parent.
const NoParent = -1

// CommentRecord is a comment ready to be persisted.
// Records are produced in depth-first order so that a parent always precedes
// its children; Parent refers to the parent's index in the same slice.
type CommentRecord struct {
	// Parent is the index of the parent record, or NoParent for a root.
	Parent int `json:"parent"`

	Author    string    `json:"author"`
	Published time.Time `json:"published"`
	Content   string    `json:"content"`
}

// IsRoot reports whether the record has no parent.
func (r CommentRecord) IsRoot() bool {
	return r.Parent == NoParent
}
