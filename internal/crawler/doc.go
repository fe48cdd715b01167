// Package crawler drives an incremental crawl of the blog.
//
// # Run
//
// A Crawler reads the listing at page 0 to learn how many pages exist,
// then walks the pages in ascending order. Page 1 is never fetched: the
// site serves the same posts there as on page 0. Every post link on a
// page is handed to the post pipeline in document order.
//
// # Resume
//
// Before the first page the Crawler asks the repository for the URL of the
// newest stored post. The site lists posts newest first, so meeting that
// URL again means everything after it is already stored and the run stops.
// With an explicit start page the Crawler also skips any post the
// repository already has, which finishes a page an earlier run left half
// done.
//
// # Errors
//
// Only failing to discover the page count, or to read the resume cursor,
// ends a run with an error. A page or post that fails is reported as an
// event and the run moves on.
//
// # Usage
//
//	c := crawler.New(fetcher, store, pipeline.DefaultPipeline(cfg))
//	stats, err := c.Run(ctx, events)
package crawler
