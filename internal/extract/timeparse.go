package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// commentTimeConnector is the word between date and time in comment metadata
// ("12.03.2019 в 14:25").
const commentTimeConnector = "в"

var commentTimeLayouts = []string{
	"02.01.2006 15:04",
	"02.01.2006 15:04:05",
	"2.1.2006 15:04",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

var postTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseCommentTime parses the text of a comment's metadata block in loc.
// Whitespace is collapsed and the standalone connector word is dropped.
func ParseCommentTime(s string, loc *time.Location) (time.Time, error) {
	fields := strings.Fields(s)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == commentTimeConnector {
			continue
		}
		kept = append(kept, f)
	}
	cleaned := strings.Join(kept, " ")

	for _, layout := range commentTimeLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized comment time %q", s)
}

// ParsePostTime parses a datetime attribute. Values without an offset are read in loc.
func ParsePostTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty datetime")
	}
	for _, layout := range postTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}
