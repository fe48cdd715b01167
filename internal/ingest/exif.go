package ingest

import (
	"path/filepath"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// exifTags are the tags kept in an asset's EXIF summary.
var exifTags = map[string]struct{}{
	"Make":             {},
	"Model":            {},
	"DateTimeOriginal": {},
	"Software":         {},
}

// hasExifContainer reports whether files with this name can carry EXIF data.
func hasExifContainer(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".tif", ".tiff":
		return true
	default:
		return false
	}
}

// exifSummary returns the selected tags found in data, or nil when the
// image has no readable EXIF block.
func exifSummary(data []byte) map[string]string {
	raw, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return nil
	}
	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return nil
	}

	summary := make(map[string]string)
	for _, entry := range entries {
		if _, ok := exifTags[entry.TagName]; !ok {
			continue
		}
		value := strings.TrimSpace(strings.Trim(entry.Formatted, "\x00"))
		if value == "" {
			continue
		}
		if _, seen := summary[entry.TagName]; !seen {
			summary[entry.TagName] = value
		}
	}
	if len(summary) == 0 {
		return nil
	}
	return summary
}
