package ledger

const schemaSQL = `
-- One row per batch run
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,                 -- batch uuid
  started_at INTEGER NOT NULL,         -- unix millis
  finished_at INTEGER,                 -- null while running
  total INTEGER NOT NULL DEFAULT 0,
  processed INTEGER NOT NULL DEFAULT 0,
  succeeded INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  halted INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

-- One row per processed work item
CREATE TABLE IF NOT EXISTS run_items (
  id TEXT PRIMARY KEY,                 -- item uuid
  run_id TEXT NOT NULL,
  worklist_row INTEGER NOT NULL,       -- header is row 1
  locator TEXT NOT NULL,
  source_locator TEXT NOT NULL,
  documents TEXT NOT NULL DEFAULT '[]', -- JSON array of document names
  refs TEXT NOT NULL DEFAULT '[]',     -- JSON array of blob references
  error TEXT,                          -- null on success
  duration_ms INTEGER NOT NULL,
  recorded_at INTEGER NOT NULL,
  FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE INDEX IF NOT EXISTS idx_run_items_run ON run_items(run_id);
`
