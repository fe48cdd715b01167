package model

import (
	"fmt"
	"time"
)

// EventKind classifies crawl progress events.
type EventKind int

const (
	// EventReport is an informational progress message.
	EventReport EventKind = iota

	// EventPage announces that the crawler moved to a new page or post URL.
	EventPage

	// EventPostSaved is sent after a post and everything attached to it
	// has been persisted.
	EventPostSaved

	// EventDiagnostic reports a recovered problem: a skipped comment,
	// an adopted orphan comment, a dropped asset.
	EventDiagnostic

	// EventError reports a failure that caused a page or post to be skipped.
	EventError
)

// String returns the lower-case name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventReport:
		return "report"
	case EventPage:
		return "page"
	case EventPostSaved:
		return "post_saved"
	case EventDiagnostic:
		return "diagnostic"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single progress notification emitted by the crawl orchestrator.
// Events are delivered in the order they happen.
type Event struct {
	Kind EventKind `json:"kind"`
	Time time.Time `json:"time"`

	// Page is the listing page index the event belongs to, or -1 when the
	// event is not tied to a page.
	Page int `json:"page"`

	// URL is the page or post URL, when relevant.
	URL string `json:"url,omitempty"`

	Message string `json:"message,omitempty"`

	// Err carries the underlying error for EventError and EventDiagnostic.
	Err error `json:"-"`
}

// String renders the event on one line.
func (e Event) String() string {
	s := fmt.Sprintf("[%s]", e.Kind)
	if e.URL != "" {
		s += " " + e.URL
	}
	if e.Message != "" {
		s += " " + e.Message
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
