// Package ledger records batch runs and item outcomes in SQLite.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/user/logscribe/internal/types"
)

// ErrAmbiguous is returned by Run when an id prefix matches several runs.
var ErrAmbiguous = errors.New("ambiguous run id")

// Run is one recorded batch.
type Run struct {
	ID         types.BatchID `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Total      int           `json:"total"`
	Processed  int           `json:"processed"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Halted     bool          `json:"halted"`
}

// Item is one recorded item outcome.
type Item struct {
	ID            types.ItemID  `json:"id"`
	RunID         types.BatchID `json:"run_id"`
	Row           int           `json:"row"`
	Locator       string        `json:"locator"`
	SourceLocator string        `json:"source_locator"`
	Documents     []string      `json:"documents"`
	References    []string      `json:"references"`
	Error         string        `json:"error,omitempty"`
	Duration      time.Duration `json:"duration"`
	RecordedAt    time.Time     `json:"recorded_at"`
}

// Ledger is the SQLite-backed run history.
type Ledger struct {
	db *sql.DB
}

const ledgerPragmas = "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	// Pragmas go in the DSN so every pooled connection gets them.
	conn, err := sql.Open("sqlite", path+ledgerPragmas)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &Ledger{db: conn}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// StartRun inserts a run row.
func (l *Ledger) StartRun(ctx context.Context, id types.BatchID, startedAt time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		string(id), startedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordItem inserts an item outcome under run id.
func (l *Ledger) RecordItem(ctx context.Context, id types.BatchID, result *types.ItemResult) error {
	docs, err := json.Marshal(nonNil(result.Documents))
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	refs, err := json.Marshal(nonNil(result.References))
	if err != nil {
		return fmt.Errorf("marshal references: %w", err)
	}
	var errText sql.NullString
	if result.Err != nil {
		errText = sql.NullString{String: result.Err.Error(), Valid: true}
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO run_items (id, run_id, worklist_row, locator, source_locator, documents, refs, error, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(result.ID), string(id), result.Item.Row, result.Item.Locator, result.Item.SourceLocator,
		string(docs), string(refs), errText, result.Duration.Milliseconds(), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert run item: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of summary.
func (l *Ledger) FinishRun(ctx context.Context, summary *types.BatchSummary) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, total = ?, processed = ?, succeeded = ?, failed = ?, halted = ?
		 WHERE id = ?`,
		summary.FinishedAt.UnixMilli(), summary.Total, summary.Processed, summary.Succeeded,
		summary.Failed, boolToInt(summary.Halted), string(summary.ID),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", summary.ID, types.ErrNotFound)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, total, processed, succeeded, failed, halted`

// RecentRuns returns up to limit runs, newest first.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Run returns the run whose id starts with prefix.
func (l *Ledger) Run(ctx context.Context, prefix string) (*Run, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("run id is required")
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id LIKE ? ESCAPE '\' ORDER BY started_at DESC LIMIT 2`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("run %s: %w", prefix, types.ErrNotFound)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
	}
}

// Items returns the item outcomes of run id in recording order.
func (l *Ledger) Items(ctx context.Context, id types.BatchID) ([]Item, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, run_id, worklist_row, locator, source_locator, documents, refs, error, duration_ms, recorded_at
		 FROM run_items WHERE run_id = ? ORDER BY recorded_at, rowid`, string(id))
	if err != nil {
		return nil, fmt.Errorf("query run items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var (
			it               Item
			itemID, runID    string
			docs, refs       string
			errText          sql.NullString
			durationMs, atMs int64
		)
		if err := rows.Scan(&itemID, &runID, &it.Row, &it.Locator, &it.SourceLocator,
			&docs, &refs, &errText, &durationMs, &atMs); err != nil {
			return nil, fmt.Errorf("scan run item: %w", err)
		}
		it.ID = types.ItemID(itemID)
		it.RunID = types.BatchID(runID)
		if err := json.Unmarshal([]byte(docs), &it.Documents); err != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}
		if err := json.Unmarshal([]byte(refs), &it.References); err != nil {
			return nil, fmt.Errorf("decode references: %w", err)
		}
		it.Error = errText.String
		it.Duration = time.Duration(durationMs) * time.Millisecond
		it.RecordedAt = time.UnixMilli(atMs)
		items = append(items, it)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run      Run
		id       string
		started  int64
		finished sql.NullInt64
		halted   int
	)
	if err := s.Scan(&id, &started, &finished, &run.Total, &run.Processed,
		&run.Succeeded, &run.Failed, &halted); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.ID = types.BatchID(id)
	run.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		t := time.UnixMilli(finished.Int64)
		run.FinishedAt = &t
	}
	run.Halted = halted != 0
	return run, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
