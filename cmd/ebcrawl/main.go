// Package main provides the entry point for the ebcrawl CLI.
//
// ebcrawl incrementally mirrors the ebanoe.it blog into a local SQLite
// database: posts, tags, threaded comments and, optionally, images.
// Each run walks the listing pages newest first and stops at the last
// post stored by the previous run.
//
// Usage:
//
//	ebcrawl crawl
//	ebcrawl crawl --save-files --start-page 40
//	ebcrawl watch --schedule "@every 6h"
//	ebcrawl status --feed
//
// See --help for all available options.
package main

func main() {
	Execute()
}
