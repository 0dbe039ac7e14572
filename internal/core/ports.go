// ABOUTME: Interfaces the pipeline depends on for embedding, vector storage, completion and object storage
// ABOUTME: Concrete adapters live in internal/llm and internal/storage; tests use internal/testutil fakes
package core

import (
	"context"

	"github.com/harper/forum-rag/internal/models"
)

// Embedder turns text into a fixed-dimension vector
type Embedder interface {
	// Embed fails with models.ErrModelLoad when the model cannot be initialized
	// and with models.ErrEncoding when a single input is rejected. Transient
	// endpoint failures return models.ErrEmbeddingUnavailable.
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
	Dimension() int
}

// VectorIndex is the managed vector store
type VectorIndex interface {
	// EnsureIndex creates the index if it does not exist yet
	EnsureIndex(ctx context.Context, name string, dimension int) error
	// UpsertBatch writes vectors in fixed-size batches. A failed batch is
	// logged and skipped; the report lists which batches were written.
	UpsertBatch(ctx context.Context, vectors []models.IndexedVector) models.UpsertReport
	// Query returns up to topK matches ordered by descending score
	Query(ctx context.Context, vector []float64, topK int, includeMetadata bool) ([]models.IndexMatch, error)
}

// Completer produces a single text completion
type Completer interface {
	Complete(ctx context.Context, req models.CompletionRequest) (string, error)
	Model() string
}

// ObjectStore lists, reads and writes objects by key
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]models.ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
}
