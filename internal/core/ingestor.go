// ABOUTME: Ingestor turns scraped post files into upserted embedding vectors
// ABOUTME: Selects source files, normalizes and embeds each body and comment, then upserts per file
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harper/forum-rag/internal/models"
)

// IngestOptions selects which source files to ingest
type IngestOptions struct {
	Prefix string
	// All ingests every .json file; otherwise only the most recently modified one
	All bool
}

// IngestStats counts the outcome of an ingestion run
type IngestStats struct {
	Files          int `json:"files"`
	FilesSkipped   int `json:"files_skipped"`
	Records        int `json:"records"`
	RecordsSkipped int `json:"records_skipped"`
	Units          int `json:"units"`
	UnitsSkipped   int `json:"units_skipped"`
	VectorsWritten int `json:"vectors_written"`
	BatchesFailed  int `json:"batches_failed"`
}

func (s *IngestStats) add(o IngestStats) {
	s.Files += o.Files
	s.FilesSkipped += o.FilesSkipped
	s.Records += o.Records
	s.RecordsSkipped += o.RecordsSkipped
	s.Units += o.Units
	s.UnitsSkipped += o.UnitsSkipped
	s.VectorsWritten += o.VectorsWritten
	s.BatchesFailed += o.BatchesFailed
}

// Ingestor embeds source records and writes them to the vector index
type Ingestor struct {
	objects   ObjectStore
	embedder  Embedder
	index     VectorIndex
	indexName string
	logger    *slog.Logger
}

// NewIngestor creates a new Ingestor writing into the named index
func NewIngestor(objects ObjectStore, embedder Embedder, index VectorIndex, indexName string, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		objects:   objects,
		embedder:  embedder,
		index:     index,
		indexName: indexName,
		logger:    logger,
	}
}

// SelectFiles lists .json objects under prefix. Unless all is set only the
// most recently modified file is returned.
func (i *Ingestor) SelectFiles(ctx context.Context, prefix string, all bool) ([]models.ObjectInfo, error) {
	objects, err := i.objects.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list source files under %q: %w", prefix, err)
	}

	var files []models.ObjectInfo
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, ".json") {
			files = append(files, obj)
		}
	}
	if all || len(files) == 0 {
		return files, nil
	}

	latest := files[0]
	for _, f := range files[1:] {
		if f.LastModified.After(latest.LastModified) {
			latest = f
		}
	}
	return []models.ObjectInfo{latest}, nil
}

// Run ensures the index exists, then ingests the selected files one at a time.
// Only fatal failures (index creation, model load, cancellation) are returned;
// everything else is logged, counted and skipped.
func (i *Ingestor) Run(ctx context.Context, opts IngestOptions) (IngestStats, error) {
	var stats IngestStats

	if err := i.index.EnsureIndex(ctx, i.indexName, i.embedder.Dimension()); err != nil {
		return stats, fmt.Errorf("failed to ensure index %s: %w", i.indexName, err)
	}

	files, err := i.SelectFiles(ctx, opts.Prefix, opts.All)
	if err != nil {
		return stats, err
	}
	if len(files) == 0 {
		i.logger.Warn("no source files found", "prefix", opts.Prefix)
		return stats, nil
	}

	for _, f := range files {
		fileStats, err := i.IngestFile(ctx, f.Key)
		stats.add(fileStats)
		if err != nil {
			if isFatal(ctx, err) {
				return stats, err
			}
			stats.FilesSkipped++
			i.logger.Error("skipping source file", "key", f.Key, "error", err)
		}
	}

	i.logger.Info("ingestion complete",
		"files", stats.Files,
		"records", stats.Records,
		"vectors_written", stats.VectorsWritten,
		"units_skipped", stats.UnitsSkipped,
		"batches_failed", stats.BatchesFailed)
	return stats, nil
}

// IngestFile reads one JSON array of source records and upserts its vectors
// in a single UpsertBatch call.
func (i *Ingestor) IngestFile(ctx context.Context, key string) (IngestStats, error) {
	stats := IngestStats{Files: 1}

	data, err := i.objects.Get(ctx, key)
	if err != nil {
		return stats, fmt.Errorf("failed to read %s: %w", key, err)
	}

	records, skipped, err := i.decodeRecords(key, data)
	if err != nil {
		return stats, err
	}
	stats.RecordsSkipped += skipped

	vectors, recordStats, err := i.BuildVectors(ctx, records)
	stats.add(recordStats)
	if err != nil {
		return stats, err
	}
	if len(vectors) == 0 {
		i.logger.Warn("no vectors produced", "key", key)
		return stats, nil
	}

	report := i.index.UpsertBatch(ctx, vectors)
	stats.VectorsWritten = report.VectorsWritten
	stats.BatchesFailed = len(report.BatchesFailed)
	i.logger.Info("upserted source file",
		"key", key,
		"vectors", report.Vectors,
		"written", report.VectorsWritten,
		"failed_batches", report.BatchesFailed)
	return stats, nil
}

// decodeRecords splits a source file into records. Only a file whose top
// level is not a JSON array fails; a record that does not decode is logged,
// counted and dropped while its siblings are kept.
func (i *Ingestor) decodeRecords(key string, data []byte) ([]models.SourceRecord, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %w", models.ErrMalformedRecord, key, err)
	}

	records := make([]models.SourceRecord, 0, len(raw))
	skipped := 0
	for idx, msg := range raw {
		var rec models.SourceRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			skipped++
			i.logger.Warn("skipping undecodable record", "key", key, "index", idx, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// BuildVectors embeds the body and comments of each record. A unit that fails
// to embed is skipped; a model load failure aborts.
func (i *Ingestor) BuildVectors(ctx context.Context, records []models.SourceRecord) ([]models.IndexedVector, IngestStats, error) {
	var stats IngestStats
	var vectors []models.IndexedVector

	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			stats.RecordsSkipped++
			i.logger.Warn("skipping record", "error", err)
			continue
		}
		stats.Records++

		for _, unit := range Units(rec) {
			stats.Units++
			values, err := i.embedder.Embed(ctx, unit.Text)
			if err != nil {
				if isFatal(ctx, err) {
					return nil, stats, err
				}
				stats.UnitsSkipped++
				i.logger.Warn("skipping unit", "id", unit.ID, "error", err)
				continue
			}
			vectors = append(vectors, models.NewIndexedVector(unit, values, i.embedder.Model()))
		}
	}
	return vectors, stats, nil
}

// Units derives the embeddable spans of a record in order: the body (when it
// has text after cleaning) followed by each non-empty comment.
func Units(rec models.SourceRecord) []models.EmbeddingUnit {
	var units []models.EmbeddingUnit

	if body := Clean(rec.Body); body != "" {
		units = append(units, models.EmbeddingUnit{
			ID:       models.BodyUnitID(rec.ID),
			Type:     models.UnitTypeBody,
			PostID:   rec.ID,
			Index:    -1,
			Text:     body,
			Metadata: rec.Metadata,
			Title:    rec.Title,
		})
	}
	for idx, comment := range rec.Comments {
		text := Clean(comment)
		if text == "" {
			continue
		}
		units = append(units, models.EmbeddingUnit{
			ID:       models.CommentUnitID(rec.ID, idx),
			Type:     models.UnitTypeComment,
			PostID:   rec.ID,
			Index:    idx,
			Text:     text,
			Metadata: rec.Metadata,
			Title:    rec.Title,
		})
	}
	return units
}

func isFatal(ctx context.Context, err error) bool {
	return errors.Is(err, models.ErrModelLoad) || ctx.Err() != nil
}
