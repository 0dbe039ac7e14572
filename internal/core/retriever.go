// ABOUTME: Retriever embeds a query, fetches top-k matches and optionally reranks them
// ABOUTME: Matches without usable text are dropped before ranking
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/harper/forum-rag/internal/models"
)

// DefaultTopK is the number of matches requested when the caller passes 0
const DefaultTopK = 5

// Retriever performs top-k retrieval against the vector index
type Retriever struct {
	embedder Embedder
	index    VectorIndex
	reranker Reranker
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. A nil reranker defaults to embedding
// cosine reranking with the same embedder.
func NewRetriever(embedder Embedder, index VectorIndex, reranker Reranker, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if reranker == nil {
		reranker = NewEmbeddingReranker(embedder, logger)
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		reranker: reranker,
		logger:   logger,
	}
}

// Retrieve returns up to topK hits. Without rerank the store order is kept and
// each RerankedScore equals its OriginalScore; with rerank hits are re-sorted by
// RerankedScore descending. An empty result is valid.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, rerank bool) (models.Retrieval, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return models.Retrieval{}, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := r.index.Query(ctx, queryVec, topK, true)
	if err != nil {
		return models.Retrieval{}, fmt.Errorf("failed to query index: %w", err)
	}

	results := make([]models.QueryResult, 0, len(matches))
	for _, m := range matches {
		text := m.Text()
		if text == "" {
			r.logger.Debug("dropping match without text", "id", m.ID)
			continue
		}
		results = append(results, models.QueryResult{
			ID:            m.ID,
			Text:          text,
			OriginalScore: m.Score,
			RerankedScore: m.Score,
		})
	}

	if !rerank || len(results) == 0 {
		return models.Retrieval{Results: results}, nil
	}

	results = r.reranker.Rerank(ctx, query, queryVec, results)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RerankedScore > results[j].RerankedScore
	})
	return models.Retrieval{Results: results, Reranked: true}, nil
}
