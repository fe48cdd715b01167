package crawler

import "errors"

var (
	// ErrPageCountDiscovery is returned by Run when the number of listing
	// pages cannot be determined.
	ErrPageCountDiscovery = errors.New("failed to discover page count")

	// ErrCursor is returned by Run when the resume cursor cannot be read.
	ErrCursor = errors.New("failed to read resume cursor")
)
