// internal/types/links.go
package types

import (
	"regexp"
	"strings"
)

var sourceLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)drive\.google\.com.*\.csv`),
	regexp.MustCompile(`(?i)\.csv$`),
	regexp.MustCompile(`(?i)drive\.google\.com/file/d/`),
}

// IsSourceLink reports whether s looks like a link to a CSV source: a
// .csv path or a Google Drive file link.
func IsSourceLink(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, re := range sourceLinkPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// DriveFileID extracts the file id from Google Drive links of the form
// .../file/d/<id>/... or ...?id=<id>.
func DriveFileID(link string) (string, bool) {
	if !strings.Contains(link, "drive.google.com") && !strings.Contains(link, "docs.google.com") {
		return "", false
	}
	if _, rest, ok := strings.Cut(link, "/file/d/"); ok {
		id, _, _ := strings.Cut(rest, "/")
		id, _, _ = strings.Cut(id, "?")
		return id, id != ""
	}
	if _, rest, ok := strings.Cut(link, "id="); ok {
		id, _, _ := strings.Cut(rest, "&")
		return id, id != ""
	}
	return "", false
}
