// Package report renders crawl run summaries and store status.
//
// Writers:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: JSON for other tools
//   - MarkdownWriter: Markdown tables for sharing
//
// All of them implement Writer and can be combined with MultiWriter.
package report
