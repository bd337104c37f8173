// internal/google/sheets.go
package google

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/sheets/v4"

	"github.com/user/logscribe/internal/state"
	"github.com/user/logscribe/internal/types"
)

// SheetsWorklist reads pending items from one worksheet of a Google
// spreadsheet and writes result references back into it.
type SheetsWorklist struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
	sourceCol     string
	destCol       string
	logger        *slog.Logger
}

// NewSheetsWorklist opens the worksheet named worksheet in the spreadsheet at
// spreadsheetURL. sourceCol and destCol are header names.
func NewSheetsWorklist(svc *sheets.Service, spreadsheetURL, worksheet, sourceCol, destCol string, logger *slog.Logger) (*SheetsWorklist, error) {
	id, err := SpreadsheetID(spreadsheetURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsWorklist{
		svc:           svc,
		spreadsheetID: id,
		worksheet:     worksheet,
		sourceCol:     sourceCol,
		destCol:       destCol,
		logger:        logger,
	}, nil
}

// sheetRange quotes the worksheet name for A1 notation.
func (w *SheetsWorklist) sheetRange(cell string) string {
	r := "'" + strings.ReplaceAll(w.worksheet, "'", "''") + "'"
	if cell != "" {
		r += "!" + cell
	}
	return r
}

func (w *SheetsWorklist) values(ctx context.Context) ([][]string, error) {
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, w.sheetRange("")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read worksheet %s: %w", w.worksheet, err)
	}
	records := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = fmt.Sprint(v)
		}
		records[i] = rec
	}
	return records, nil
}

// Pending returns the rows whose source cell holds a CSV link and whose
// destination cell is empty.
func (w *SheetsWorklist) Pending(ctx context.Context) ([]types.WorkItem, error) {
	records, err := w.values(ctx)
	if err != nil {
		return nil, err
	}
	items, err := state.PendingItems(w.worksheet, records, w.sourceCol, w.destCol)
	if err != nil {
		return nil, err
	}
	w.logger.Debug("read worksheet", "rows", len(records), "pending", len(items))
	return items, nil
}

// Complete writes reference into the item's destination cell.
func (w *SheetsWorklist) Complete(ctx context.Context, item types.WorkItem, reference string) error {
	cell := fmt.Sprintf("%s%d", item.DestinationColumn, item.Row)
	vr := &sheets.ValueRange{Values: [][]interface{}{{reference}}}
	_, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, w.sheetRange(cell), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update cell %s: %w", cell, err)
	}
	return nil
}

// Describe reports the spreadsheet title, the worksheet row count and header.
func (w *SheetsWorklist) Describe(ctx context.Context) (*types.WorklistInfo, error) {
	ss, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Fields("properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	records, err := w.values(ctx)
	if err != nil {
		return nil, err
	}
	info := &types.WorklistInfo{Title: w.worksheet, Rows: len(records), Headers: []string{}}
	if ss.Properties != nil && ss.Properties.Title != "" {
		info.Title = ss.Properties.Title + " / " + w.worksheet
	}
	if len(records) > 0 {
		info.Headers = records[0]
	}
	return info, nil
}
