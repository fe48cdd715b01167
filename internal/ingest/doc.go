// Package ingest downloads the images referenced by a post.
//
// An Ingester keeps a run-wide record of the URLs it has handled, so an
// image shared by several posts is fetched and stored once. Downloads of
// one post run concurrently under a fixed limit and are joined before
// Ingest returns. Every stored file gets a generated name, a SHA3-256
// checksum and, for JPEG and TIFF images, a short EXIF summary.
//
// Only assets on the crawled site are downloaded. Anything else is
// reported back to the caller and skipped.
package ingest
