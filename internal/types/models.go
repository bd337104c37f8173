// internal/types/models.go
package types

import (
	"errors"
	"time"
)

// ErrNotFound is returned by collaborators when a named object does not exist.
var ErrNotFound = errors.New("not found")

// WorkItem is one pending conversion sourced from the worklist. Row is
// 1-indexed and counts the header row.
type WorkItem struct {
	Row               int    `json:"row"`
	Locator           string `json:"locator"`
	SourceLocator     string `json:"source_locator"`
	DestinationColumn string `json:"destination_column"`
}

// ItemResult is the outcome of processing one WorkItem.
type ItemResult struct {
	ID         ItemID        `json:"id"`
	Item       WorkItem      `json:"item"`
	Documents  []string      `json:"documents,omitempty"`
	References []string      `json:"references,omitempty"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Succeeded reports whether the item was converted, persisted and written back.
func (r *ItemResult) Succeeded() bool {
	return r.Err == nil
}

// Fail records err on the result.
func (r *ItemResult) Fail(err error) {
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}

// BatchSummary reports the outcome of one batch run.
type BatchSummary struct {
	ID         BatchID       `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Total      int           `json:"total"`
	Processed  int           `json:"processed"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Halted     bool          `json:"halted"`
	Results    []*ItemResult `json:"results"`
}

// Failures returns the failed item results in processing order.
func (s *BatchSummary) Failures() []*ItemResult {
	var out []*ItemResult
	for _, r := range s.Results {
		if !r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}

// Blob describes one persisted output document.
type Blob struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Reference string    `json:"reference"`
}

// WorklistInfo describes the worklist for status reports.
type WorklistInfo struct {
	Title   string   `json:"title"`
	Rows    int      `json:"rows"`
	Headers []string `json:"headers"`
}

// StoreInfo describes the blob container for status reports.
type StoreInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Reference string `json:"reference"`
}
