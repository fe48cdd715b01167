package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/ebcrawl/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the run summary.
func (w *MarkdownWriter) Write(s *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("ebcrawl run")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", formatTime(s.Started)},
			{"Duration", s.Duration().Round(time.Second).String()},
			{"Status", w.statusText(s)},
			{"Last stored", code(s.Cursor)},
			{"Pages", strconv.Itoa(len(s.PagesVisited)) + " visited of " + strconv.Itoa(s.PageCount)},
		},
	})
	md.PlainText("")

	md.H2("Results")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Item", "Count"},
		Rows: [][]string{
			{"Posts saved", strconv.Itoa(s.PostsSaved)},
			{"Posts skipped", strconv.Itoa(s.PostsSkipped)},
			{"Posts failed", strconv.Itoa(s.PostsFailed)},
			{"Comments saved", strconv.Itoa(s.CommentsSaved)},
			{"Assets saved", strconv.Itoa(s.AssetsSaved)},
			{"Diagnostics", strconv.Itoa(len(s.Diagnostics))},
		},
	})
	md.PlainText("")

	if s.PostsSaved+s.PostsSkipped+s.PostsFailed > 0 {
		w.writePieChart(md, s)
	} else {
		md.Note("No new posts.")
		md.PlainText("")
	}
	if s.PostsFailed > 0 || s.Error != "" {
		md.Warningf("%d errors during the run. Failed posts are retried by the next run.", len(s.Errors))
		md.PlainText("")
	}

	w.writeIssues(md, "Errors", s.Errors)
	w.writeIssues(md, "Diagnostics", s.Diagnostics)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by ebcrawl*")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) statusText(s *model.Summary) string {
	switch s.Status() {
	case model.StatusFailed:
		return "❌ Failed - " + s.Error
	case model.StatusCancelled:
		return "⚠️ Cancelled"
	case model.StatusUpToDate:
		return "✅ Stopped at last stored post"
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Posts"),
		piechart.WithShowData(true),
	)
	if s.PostsSaved > 0 {
		chart.LabelAndIntValue("Saved", uint64(s.PostsSaved)) //nolint:gosec // counts are non-negative
	}
	if s.PostsSkipped > 0 {
		chart.LabelAndIntValue("Skipped", uint64(s.PostsSkipped)) //nolint:gosec
	}
	if s.PostsFailed > 0 {
		chart.LabelAndIntValue("Failed", uint64(s.PostsFailed)) //nolint:gosec
	}
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeIssues(md *markdown.Markdown, title string, issues []model.Issue) {
	if len(issues) == 0 {
		return
	}
	md.H2(title)
	md.PlainText("")

	rows := make([][]string, len(issues))
	for i, issue := range issues {
		rows[i] = []string{
			strconv.Itoa(issue.Page),
			code(truncateString(issue.URL, 80)),
			escapeCell(truncateString(issue.Message, 120)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Page", "URL", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteStatus outputs the store status.
func (w *MarkdownWriter) WriteStatus(s *Status) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("ebcrawl status")
	md.PlainText("")

	rows := [][]string{{"Database", code(s.DBPath)}}
	if s.Store != nil {
		rows = append(rows,
			[]string{"Posts", strconv.Itoa(s.Store.Posts)},
			[]string{"Comments", strconv.Itoa(s.Store.Comments)},
			[]string{"Tags", strconv.Itoa(s.Store.Tags)},
			[]string{"Assets", strconv.Itoa(s.Store.Assets)},
			[]string{"Last stored", code(s.Store.LastPostURL)},
			[]string{"Last published", formatTime(s.Store.LastPublished)},
		)
	}
	switch {
	case s.FeedError != "":
		rows = append(rows, []string{"Feed", "unavailable: " + escapeCell(s.FeedError)})
	case s.Feed != nil:
		newer := strconv.Itoa(s.Feed.Newer)
		if !s.Feed.CursorSeen {
			newer = "≥ " + newer
		}
		rows = append(rows, []string{"New posts in feed", newer})
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	return len(md.String()), md.Build()
}

func code(s string) string {
	if s == "" {
		return "-"
	}
	return "`" + s + "`"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
