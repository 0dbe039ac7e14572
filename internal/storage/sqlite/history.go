// ABOUTME: Evaluation history persistence for trend inspection across runs
// ABOUTME: Saves a report atomically and lists recent run summaries
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harper/forum-rag/internal/models"
)

// ErrRunNotFound is returned when a run id is unknown
var ErrRunNotFound = errors.New("evaluation run not found")

// HistoryStore records evaluation reports
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a new HistoryStore
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// SaveReport writes a run summary and all of its rows in one transaction
func (s *HistoryStore) SaveReport(ctx context.Context, report models.Report) error {
	sum := report.Summary
	if sum.RunID == "" {
		return errors.New("report has no run id")
	}

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO evaluation_runs (id, model, index_name, total_queries, avg_rouge1, avg_rougeL, avg_bleu,
			avg_keyword_match, avg_chunk_overlap, fallback_usage_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sum.RunID, sum.Model, sum.Index, sum.TotalQueries, sum.AvgRouge1, sum.AvgRougeL, sum.AvgBLEU,
		sum.AvgKeywordMatch, sum.AvgChunkOverlap, sum.FallbackUsageRate, sum.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO evaluation_rows (run_id, position, query, reference, generated, rouge1, rougeL, bleu,
			keyword_match, chunk_overlap_score, chunk_overlap_label, fallback_used, chunk_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range report.Rows {
		_, err := stmt.ExecContext(ctx, sum.RunID, i, row.Query, row.Reference, row.Generated,
			row.Scores.Rouge1, row.Scores.RougeL, row.Scores.BLEU, row.Scores.KeywordMatch,
			row.Scores.ChunkOverlapScore, string(row.Scores.ChunkOverlapLabel), row.FallbackUsed, row.ChunkCount)
		if err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent run summaries, newest first
func (s *HistoryStore) ListRuns(ctx context.Context, limit int) ([]models.Summary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, model, index_name, total_queries, avg_rouge1, avg_rougeL, avg_bleu,
			avg_keyword_match, avg_chunk_overlap, fallback_usage_rate, created_at
		FROM evaluation_runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetRun returns one run with its rows in their original order
func (s *HistoryStore) GetRun(ctx context.Context, runID string) (models.Report, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT id, model, index_name, total_queries, avg_rouge1, avg_rougeL, avg_bleu,
			avg_keyword_match, avg_chunk_overlap, fallback_usage_rate, created_at
		FROM evaluation_runs
		WHERE id = ?
	`, runID)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Report{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return models.Report{}, err
	}

	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT query, reference, generated, rouge1, rougeL, bleu, keyword_match,
			chunk_overlap_score, chunk_overlap_label, fallback_used, chunk_count
		FROM evaluation_rows
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return models.Report{}, err
	}
	defer func() { _ = rows.Close() }()

	report := models.Report{Summary: sum}
	for rows.Next() {
		var (
			r     models.CaseResult
			label string
		)
		if err := rows.Scan(&r.Query, &r.Reference, &r.Generated, &r.Scores.Rouge1, &r.Scores.RougeL,
			&r.Scores.BLEU, &r.Scores.KeywordMatch, &r.Scores.ChunkOverlapScore, &label,
			&r.FallbackUsed, &r.ChunkCount); err != nil {
			return models.Report{}, err
		}
		r.Scores.ChunkOverlapLabel = models.OverlapLabel(label)
		r.Model = sum.Model
		r.Index = sum.Index
		r.Timestamp = sum.Timestamp
		report.Rows = append(report.Rows, r)
	}
	return report, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(s scanner) (models.Summary, error) {
	var (
		sum     models.Summary
		model   sql.NullString
		index   sql.NullString
		created time.Time
	)
	err := s.Scan(&sum.RunID, &model, &index, &sum.TotalQueries, &sum.AvgRouge1, &sum.AvgRougeL,
		&sum.AvgBLEU, &sum.AvgKeywordMatch, &sum.AvgChunkOverlap, &sum.FallbackUsageRate, &created)
	if err != nil {
		return models.Summary{}, err
	}
	sum.Model = model.String
	sum.Index = index.String
	sum.Timestamp = created
	return sum, nil
}
