// Package model defines the domain types shared by the crawler packages.
//
// The main types are:
//   - Post, Tag: article data keyed by URL and tag name
//   - FlatComment: a comment as parsed from markup, with its site id and parent id
//   - CommentRecord: a comment in depth-first order, linked by slice index
//   - Asset: a downloaded image keyed by its source URL
//   - Event, RunStats, Summary: progress and outcome of a crawl run
//
// Keeping these in one package lets extraction, storage and reporting share
// them without import cycles.
package model
