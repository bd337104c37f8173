// internal/google/links.go
package google

import (
	"fmt"
	"regexp"
)

var (
	spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
	bareIDPattern        = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// SpreadsheetID extracts the spreadsheet id from a Google Sheets URL. A bare
// id is returned as is.
func SpreadsheetID(url string) (string, error) {
	if m := spreadsheetIDPattern.FindStringSubmatch(url); m != nil {
		return m[1], nil
	}
	if bareIDPattern.MatchString(url) {
		return url, nil
	}
	return "", fmt.Errorf("invalid Google Sheets URL: %s", url)
}

// ShareLink is the browser link for a Drive file.
func ShareLink(fileID string) string {
	return "https://drive.google.com/file/d/" + fileID + "/view"
}
