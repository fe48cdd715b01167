package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/ebcrawl/internal/model"
)

// JSONWriter outputs reports in JSON format.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// jsonSummary adds derived fields to the summary.
type jsonSummary struct {
	*model.Summary
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Write outputs the run summary.
func (w *JSONWriter) Write(s *model.Summary) (int, error) {
	return w.writeJSON(jsonSummary{
		Summary:         s,
		Status:          s.Status(),
		DurationSeconds: s.Duration().Round(time.Millisecond).Seconds(),
	})
}

// WriteStatus outputs the store status.
func (w *JSONWriter) WriteStatus(s *Status) (int, error) {
	return w.writeJSON(s)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
