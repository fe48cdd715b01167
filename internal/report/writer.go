package report

import (
	"fmt"
	"io"
	"time"

	"github.com/nao1215/ebcrawl/internal/feed"
	"github.com/nao1215/ebcrawl/internal/model"
)

// Format names a report format.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Status describes the store, and optionally how far it is behind the feed.
type Status struct {
	DBPath string            `json:"db_path"`
	Store  *model.StoreStats `json:"store"`
	Feed   *feed.Freshness   `json:"feed,omitempty"`

	// FeedError is set when the feed was requested but could not be read.
	FeedError string `json:"feed_error,omitempty"`
}

// Writer writes run summaries and status reports.
type Writer interface {
	// Write outputs a run summary.
	Write(s *model.Summary) (int, error)

	// WriteStatus outputs a store status report.
	WriteStatus(s *Status) (int, error)
}

// NewWriter returns the writer for format.
func NewWriter(format Format, output io.Writer) (Writer, error) {
	switch format {
	case FormatText, "":
		return NewSimpleWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// MultiWriter writes to multiple Writers in turn.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all Writers. Stops on the first error.
func (m *MultiWriter) Write(s *model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(s)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteStatus outputs the status to all Writers. Stops on the first error.
func (m *MultiWriter) WriteStatus(s *Status) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteStatus(s)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

const timeLayout = "2006-01-02 15:04:05 MST"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
