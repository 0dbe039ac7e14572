// ABOUTME: SQLite database schema for evaluation history
// ABOUTME: One row per evaluation run plus one row per scored case
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Evaluation runs with their aggregate summary
CREATE TABLE IF NOT EXISTS evaluation_runs (
    id TEXT PRIMARY KEY,
    model TEXT,
    index_name TEXT,
    total_queries INTEGER NOT NULL,
    avg_rouge1 REAL,
    avg_rougeL REAL,
    avg_bleu REAL,
    avg_keyword_match REAL,
    avg_chunk_overlap REAL,
    fallback_usage_rate REAL,
    created_at DATETIME NOT NULL
);

-- Per-case scores
CREATE TABLE IF NOT EXISTS evaluation_rows (
    run_id TEXT NOT NULL REFERENCES evaluation_runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    query TEXT NOT NULL,
    reference TEXT,
    generated TEXT,
    rouge1 REAL,
    rougeL REAL,
    bleu REAL,
    keyword_match REAL,
    chunk_overlap_score REAL,
    chunk_overlap_label TEXT,
    fallback_used INTEGER NOT NULL DEFAULT 0,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON evaluation_runs(created_at);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 1
