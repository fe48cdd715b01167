package model

import "time"

// Asset is a downloaded binary resource referenced by a post.
// The source URL is the asset's identity: one URL maps to at most one file.
type Asset struct {
	ID int64 `json:"id,omitempty"`

	// URL is the absolute source URL.
	URL string `json:"url"`

	// FileName is the generated local file name (unique token plus the
	// original extension), relative to the files directory.
	FileName string `json:"file_name"`

	// Path is the full local path. It is not persisted.
	Path string `json:"-"`

	Size int64 `json:"size"`

	// Checksum is the hex encoded SHA3-256 digest of the file.
	Checksum string `json:"checksum"`

	// Exif holds a short summary of selected EXIF tags, if any were found.
	Exif map[string]string `json:"exif,omitempty"`

	Fetched time.Time `json:"fetched"`
}
