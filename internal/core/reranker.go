// ABOUTME: Rerankers that refine the order of retrieved candidates
// ABOUTME: EmbeddingReranker uses cosine similarity, LLMReranker asks the completion service for a 0-10 score
package core

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/harper/forum-rag/internal/models"
	"github.com/harper/forum-rag/internal/util"
)

// Reranker assigns a RerankedScore to each candidate. Implementations must
// return one result per input and must not fail the whole call; a candidate
// that cannot be scored gets 0 and RerankFailed.
type Reranker interface {
	Rerank(ctx context.Context, query string, queryVec []float64, results []models.QueryResult) []models.QueryResult
}

// EmbeddingReranker scores candidates by cosine similarity between the query
// embedding and a fresh embedding of the candidate text
type EmbeddingReranker struct {
	embedder Embedder
	logger   *slog.Logger
}

// NewEmbeddingReranker creates a new EmbeddingReranker
func NewEmbeddingReranker(embedder Embedder, logger *slog.Logger) *EmbeddingReranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingReranker{embedder: embedder, logger: logger}
}

func (e *EmbeddingReranker) Rerank(ctx context.Context, query string, queryVec []float64, results []models.QueryResult) []models.QueryResult {
	if queryVec == nil {
		var err error
		if queryVec, err = e.embedder.Embed(ctx, query); err != nil {
			e.logger.Warn("rerank query embedding failed", "error", err)
		}
	}

	out := make([]models.QueryResult, len(results))
	for i, res := range results {
		out[i] = res
		docVec, err := e.embedder.Embed(ctx, res.Text)
		if err != nil || queryVec == nil {
			e.logger.Warn("rerank embedding failed", "id", res.ID, "error", err)
			out[i].RerankedScore = 0
			out[i].RerankFailed = true
			continue
		}
		out[i].RerankedScore = util.CosineSimilarity(queryVec, docVec)
	}
	return out
}

const (
	relevanceMinScore = 0.0
	relevanceMaxScore = 10.0
)

// RelevancePrompt builds the passage relevance question sent to the completion service
func RelevancePrompt(query, passage string) string {
	return fmt.Sprintf("Query: %s\n\nPassage: %s\n\nHow relevant is this passage to the query? "+
		"Respond with a score from 0 (not relevant) to 10 (highly relevant).", query, passage)
}

// LLMReranker asks the completion service to rate each candidate 0-10
type LLMReranker struct {
	completer   Completer
	temperature float64
	logger      *slog.Logger
}

// NewLLMReranker creates a new LLMReranker scoring at the given temperature
func NewLLMReranker(completer Completer, temperature float64, logger *slog.Logger) *LLMReranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMReranker{completer: completer, temperature: temperature, logger: logger}
}

func (l *LLMReranker) Rerank(ctx context.Context, query string, _ []float64, results []models.QueryResult) []models.QueryResult {
	out := make([]models.QueryResult, len(results))
	for i, res := range results {
		out[i] = res
		reply, err := l.completer.Complete(ctx, models.CompletionRequest{
			Prompt:      RelevancePrompt(query, res.Text),
			Temperature: l.temperature,
		})
		if err != nil {
			l.logger.Warn("relevance judgment failed", "id", res.ID, "error", err)
			out[i].RerankedScore = 0
			out[i].RerankFailed = true
			continue
		}

		score, ok := ParseRelevanceScore(reply)
		if !ok {
			l.logger.Warn("unparseable relevance judgment", "id", res.ID, "reply", reply)
			out[i].RerankFailed = true
		}
		out[i].RerankedScore = score
	}
	return out
}

// ParseRelevanceScore parses a bare numeric reply, clamped to [0, 10].
// Anything else yields (0, false).
func ParseRelevanceScore(reply string) (float64, bool) {
	s := strings.TrimSpace(reply)
	s = strings.TrimSuffix(s, ".")
	score, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(score) {
		return 0, false
	}
	return max(relevanceMinScore, min(relevanceMaxScore, score)), true
}
