// ABOUTME: Evaluation report persistence - CSV rows, summary JSON and remote upload
// ABOUTME: Upload failures leave the report on local disk and never fail the run
package evaluation

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/harper/forum-rag/internal/core"
	"github.com/harper/forum-rag/internal/models"
)

// DefaultOutputPath is the local CSV written by the evaluate command
const DefaultOutputPath = "rag_evaluation_results.csv"

// CSVHeader lists the report columns in order
var CSVHeader = []string{
	"query", "reference", "generated",
	"rouge1", "rougeL", "bleu", "keyword_match",
	"chunk_overlap_score", "chunk_overlap_label",
	"fallback_used", "model", "index", "timestamp",
}

// FlattenText replaces line breaks with spaces and trims the result
func FlattenText(text string) string {
	return strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text))
}

// WriteCSV writes the header and one line per row
func WriteCSV(w io.Writer, rows []models.CaseResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(csvRecord(row)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRecord(row models.CaseResult) []string {
	return []string{
		FlattenText(row.Query),
		FlattenText(row.Reference),
		FlattenText(row.Generated),
		formatScore(row.Scores.Rouge1),
		formatScore(row.Scores.RougeL),
		formatScore(row.Scores.BLEU),
		formatScore(row.Scores.KeywordMatch),
		formatScore(row.Scores.ChunkOverlapScore),
		string(row.Scores.ChunkOverlapLabel),
		strconv.FormatBool(row.FallbackUsed),
		row.Model,
		row.Index,
		row.Timestamp.UTC().Format(time.RFC3339),
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SummaryPath returns the summary JSON path that sits beside a CSV report
func SummaryPath(csvPath string) string {
	return strings.TrimSuffix(csvPath, ".csv") + ".summary.json"
}

// ReportKey returns the date-partitioned object key for a run started at ts
func ReportKey(ts time.Time) string {
	ts = ts.UTC()
	return fmt.Sprintf("%s/rag_evaluation_results_%s.csv", ts.Format("2006/01/02"), ts.Format("20060102_150405"))
}

// WriteReport writes the CSV to csvPath and the summary JSON beside it
func WriteReport(report models.Report, csvPath string) (summaryPath string, err error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, report.Rows); err != nil {
		return "", err
	}
	if err := os.WriteFile(csvPath, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	summary, err := json.MarshalIndent(report.Summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}
	summaryPath = SummaryPath(csvPath)
	if err := os.WriteFile(summaryPath, summary, 0644); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return summaryPath, nil
}

// Publication records where a report ended up
type Publication struct {
	CSVPath     string
	SummaryPath string
	// Key is the uploaded CSV object key; empty when nothing was uploaded
	Key       string
	UploadErr error
}

// Uploaded reports whether both the CSV and its summary reached remote storage
func (p Publication) Uploaded() bool {
	return p.Key != "" && p.UploadErr == nil
}

// Publisher persists reports locally and optionally uploads them
type Publisher struct {
	store  core.ObjectStore
	logger *slog.Logger
}

// NewPublisher creates a Publisher. A nil store keeps reports local.
func NewPublisher(store core.ObjectStore, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, logger: logger}
}

// Publish writes the report to csvPath and uploads it under ReportKey. Only
// local write failures are returned; an upload failure is recorded in the
// Publication and logged.
func (p *Publisher) Publish(ctx context.Context, report models.Report, csvPath string) (Publication, error) {
	summaryPath, err := WriteReport(report, csvPath)
	if err != nil {
		return Publication{}, err
	}
	pub := Publication{CSVPath: csvPath, SummaryPath: summaryPath}
	if p.store == nil {
		return pub, nil
	}

	key := ReportKey(report.Summary.Timestamp)
	if err := p.upload(ctx, csvPath, key, "text/csv"); err != nil {
		pub.UploadErr = err
		p.logger.Warn("report upload failed, kept local", "path", csvPath, "error", err)
		return pub, nil
	}
	pub.Key = key

	summaryKey := SummaryPath(key)
	if err := p.upload(ctx, summaryPath, summaryKey, "application/json"); err != nil {
		pub.UploadErr = err
		p.logger.Warn("summary upload failed, kept local", "path", summaryPath, "error", err)
		return pub, nil
	}
	p.logger.Info("report uploaded", "key", key)
	return pub, nil
}

func (p *Publisher) upload(ctx context.Context, path, key, contentType string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return p.store.Put(ctx, key, body, contentType)
}
