package ingest

import "errors"

var (
	// ErrForeignAsset is returned for a URL outside the crawled site.
	ErrForeignAsset = errors.New("asset is not hosted on the crawled site")

	// ErrNoFileName is returned for a URL whose path has no last segment.
	ErrNoFileName = errors.New("asset URL has no file name")
)
