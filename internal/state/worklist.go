// internal/state/worklist.go
package state

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/user/logscribe/internal/types"
)

// CSVWorklist is a worklist kept in a local CSV file. Row 1 is the header;
// data rows are numbered from 2 the way a spreadsheet numbers them.
type CSVWorklist struct {
	path      string
	sourceCol string
	destCol   string
	mu        sync.Mutex
}

// NewCSVWorklist creates a worklist over the CSV file at path. sourceCol and
// destCol are header names.
func NewCSVWorklist(path, sourceCol, destCol string) *CSVWorklist {
	return &CSVWorklist{path: path, sourceCol: sourceCol, destCol: destCol}
}

// Path returns the file path used by this worklist.
func (w *CSVWorklist) Path() string {
	return w.path
}

func (w *CSVWorklist) sheetName() string {
	base := filepath.Base(w.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Pending returns the rows whose source cell holds a CSV link and whose
// destination cell is empty.
func (w *CSVWorklist) Pending(_ context.Context) ([]types.WorkItem, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	records, err := w.load()
	if err != nil {
		return nil, err
	}
	return PendingItems(w.sheetName(), records, w.sourceCol, w.destCol)
}

// Complete writes reference into the destination cell of item's row.
func (w *CSVWorklist) Complete(_ context.Context, item types.WorkItem, reference string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	records, err := w.load()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("worklist %s is empty", w.path)
	}
	_, dst, err := Columns(records[0], w.sourceCol, w.destCol)
	if err != nil {
		return err
	}
	idx := item.Row - 1
	if item.Row < 2 || idx >= len(records) {
		return fmt.Errorf("row %d: %w", item.Row, types.ErrNotFound)
	}
	for len(records[idx]) <= dst {
		records[idx] = append(records[idx], "")
	}
	records[idx][dst] = reference
	return w.save(records)
}

// Describe reports the file name, row count and header.
func (w *CSVWorklist) Describe(_ context.Context) (*types.WorklistInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	records, err := w.load()
	if err != nil {
		return nil, err
	}
	info := &types.WorklistInfo{Title: w.sheetName(), Rows: len(records), Headers: []string{}}
	if len(records) > 0 {
		info.Headers = records[0]
	}
	return info, nil
}

// PendingItems scans worklist records (header first) for rows whose source
// cell holds a CSV link and whose destination cell is empty.
func PendingItems(sheet string, records [][]string, sourceCol, destCol string) ([]types.WorkItem, error) {
	items := []types.WorkItem{}
	if len(records) == 0 {
		return items, nil
	}
	src, dst, err := Columns(records[0], sourceCol, destCol)
	if err != nil {
		return nil, err
	}

	letter := types.ColumnLetter(dst)
	for i, rec := range records[1:] {
		source := cell(rec, src)
		if !types.IsSourceLink(source) || cell(rec, dst) != "" {
			continue
		}
		row := i + 2
		items = append(items, types.WorkItem{
			Row:               row,
			Locator:           types.NewLocator(sheet, letter, row),
			SourceLocator:     source,
			DestinationColumn: letter,
		})
	}
	return items, nil
}

// Columns returns the indexes of the source and destination columns in header.
func Columns(header []string, sourceCol, destCol string) (int, int, error) {
	src, dst := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case sourceCol:
			if src < 0 {
				src = i
			}
		case destCol:
			if dst < 0 {
				dst = i
			}
		}
	}
	if src < 0 {
		return 0, 0, fmt.Errorf("worklist column %q not found", sourceCol)
	}
	if dst < 0 {
		return 0, 0, fmt.Errorf("worklist column %q not found", destCol)
	}
	return src, dst, nil
}

func cell(rec []string, idx int) string {
	if idx < len(rec) {
		return strings.TrimSpace(rec[idx])
	}
	return ""
}

// load reads every record. Returns nil if the file doesn't exist.
func (w *CSVWorklist) load() ([][]string, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read worklist: %w", err)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse worklist: %w", err)
	}
	return records, nil
}

// save rewrites the file using atomic write (temp file + rename).
func (w *CSVWorklist) save(records [][]string) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("encode worklist: %w", err)
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write temp worklist: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp worklist: %w", err)
	}
	return nil
}
