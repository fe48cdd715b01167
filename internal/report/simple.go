package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/ebcrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports.
type SimpleWriter struct {
	baseWriter

	// verbose lists every diagnostic instead of only counting them.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary.
func (w *SimpleWriter) Write(s *model.Summary) (int, error) {
	var sb strings.Builder

	rule(&sb, "=")
	sb.WriteString("                          EBCRAWL RUN\n")
	rule(&sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Started:        %s\n", formatTime(s.Started))
	fmt.Fprintf(&sb, "Duration:       %s\n", s.Duration().Round(time.Second))
	fmt.Fprintf(&sb, "Status:         %s\n", s.Status())
	if s.Error != "" {
		fmt.Fprintf(&sb, "Error:          %s\n", s.Error)
	}
	fmt.Fprintf(&sb, "Last stored:    %s\n", orDash(s.Cursor))
	fmt.Fprintf(&sb, "Pages:          %d visited of %d\n", len(s.PagesVisited), s.PageCount)
	sb.WriteString("\n")

	rule(&sb, "-")
	sb.WriteString("RESULTS\n")
	rule(&sb, "-")
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  Posts saved:    %d\n", s.PostsSaved)
	fmt.Fprintf(&sb, "  Posts skipped:  %d\n", s.PostsSkipped)
	fmt.Fprintf(&sb, "  Posts failed:   %d\n", s.PostsFailed)
	fmt.Fprintf(&sb, "  Comments saved: %d\n", s.CommentsSaved)
	fmt.Fprintf(&sb, "  Assets saved:   %d\n", s.AssetsSaved)
	fmt.Fprintf(&sb, "  Diagnostics:    %d\n", len(s.Diagnostics))
	sb.WriteString("\n")

	w.writeIssues(&sb, "ERRORS", s.Errors)
	if w.verbose {
		w.writeIssues(&sb, "DIAGNOSTICS", s.Diagnostics)
	}

	rule(&sb, "=")
	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeIssues(sb *strings.Builder, title string, issues []model.Issue) {
	if len(issues) == 0 {
		return
	}
	rule(sb, "-")
	sb.WriteString(title + "\n")
	rule(sb, "-")
	sb.WriteString("\n")
	for _, issue := range issues {
		loc := issue.URL
		if loc == "" {
			loc = "page " + strconv.Itoa(issue.Page)
		}
		fmt.Fprintf(sb, "  * %s\n    %s\n", loc, issue.Message)
	}
	sb.WriteString("\n")
}

// WriteStatus outputs the store status.
func (w *SimpleWriter) WriteStatus(s *Status) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Database:       %s\n", s.DBPath)
	if s.Store != nil {
		fmt.Fprintf(&sb, "Posts:          %d\n", s.Store.Posts)
		fmt.Fprintf(&sb, "Comments:       %d\n", s.Store.Comments)
		fmt.Fprintf(&sb, "Tags:           %d\n", s.Store.Tags)
		fmt.Fprintf(&sb, "Assets:         %d\n", s.Store.Assets)
		fmt.Fprintf(&sb, "Last stored:    %s\n", orDash(s.Store.LastPostURL))
		fmt.Fprintf(&sb, "Last published: %s\n", formatTime(s.Store.LastPublished))
	}

	switch {
	case s.FeedError != "":
		fmt.Fprintf(&sb, "Feed:           unavailable (%s)\n", s.FeedError)
	case s.Feed != nil:
		switch {
		case s.Feed.UpToDate():
			sb.WriteString("Feed:           up to date\n")
		case s.Feed.CursorSeen:
			fmt.Fprintf(&sb, "Feed:           %d new posts\n", s.Feed.Newer)
		default:
			fmt.Fprintf(&sb, "Feed:           at least %d new posts\n", s.Feed.Newer)
		}
		if s.Feed.Latest != nil {
			fmt.Fprintf(&sb, "Latest in feed: %s\n", s.Feed.Latest.Link)
		}
	}

	return w.output.Write([]byte(sb.String()))
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}
