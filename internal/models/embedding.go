// ABOUTME: Vectors persisted in the vector index and their metadata schema
// ABOUTME: Defines IndexedVector plus the metadata keys the retriever reads back
package models

import (
	"errors"
	"fmt"
)

// Metadata keys written with every vector
const (
	MetaType           = "type"
	MetaSubreddit      = "subreddit"
	MetaURL            = "url"
	MetaAuthor         = "author"
	MetaTimestamp      = "timestamp"
	MetaTitle          = "title"
	MetaFullText       = "full_text"
	MetaEmbeddingModel = "embedding_model"
)

// TextMetadataKeys lists, in priority order, the metadata fields that may hold
// a vector's source text. Indexes written by older ingesters used "text" or
// "content" instead of "full_text".
var TextMetadataKeys = []string{MetaFullText, "text", "content"}

// IndexedVector is one record in the vector index
type IndexedVector struct {
	ID       string         `json:"id"`
	Values   []float64      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ValidateDimension checks that the vector has the expected length
func (v *IndexedVector) ValidateDimension(expected int) error {
	if len(v.Values) == 0 {
		return errors.New("vector cannot be empty")
	}
	if len(v.Values) != expected {
		return fmt.Errorf("vector %s dimension mismatch: expected %d, got %d", v.ID, expected, len(v.Values))
	}
	return nil
}

// NewIndexedVector builds the stored form of an embedded unit
func NewIndexedVector(unit EmbeddingUnit, values []float64, embeddingModel string) IndexedVector {
	meta := map[string]any{
		MetaType:           string(unit.Type),
		MetaSubreddit:      unit.Metadata.Subreddit,
		MetaURL:            unit.Metadata.URL,
		MetaAuthor:         unit.Metadata.Author,
		MetaTimestamp:      unit.Metadata.Timestamp,
		MetaFullText:       unit.Text,
		MetaEmbeddingModel: embeddingModel,
	}
	if unit.Title != "" {
		meta[MetaTitle] = unit.Title
	}
	return IndexedVector{ID: unit.ID, Values: values, Metadata: meta}
}

// IndexMatch is one raw hit returned by a similarity query
type IndexMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text resolves the match's source text using TextMetadataKeys
func (m IndexMatch) Text() string {
	for _, key := range TextMetadataKeys {
		if s, ok := m.Metadata[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// UpsertReport summarizes a batched upsert
type UpsertReport struct {
	Vectors        int   `json:"vectors"`
	VectorsWritten int   `json:"vectors_written"`
	BatchesWritten []int `json:"batches_written"` // 0-based batch numbers
	BatchesFailed  []int `json:"batches_failed"`
}
