// ABOUTME: MCP tool handler implementations for the forum RAG server
// ABOUTME: Every failure is returned as a tool error result, never as a protocol error
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/forum-rag/internal/core"
	"github.com/harper/forum-rag/internal/models"
)

const (
	defaultTopK     = core.DefaultTopK
	maxTopK         = 50
	defaultRunLimit = 10
)

// Asker answers a question end to end
type Asker interface {
	Ask(ctx context.Context, query string, topK int, rerank bool) (core.AskResult, error)
}

// Searcher retrieves passages without generating
type Searcher interface {
	Retrieve(ctx context.Context, query string, topK int, rerank bool) (models.Retrieval, error)
}

// RunLister lists recorded evaluation summaries
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]models.Summary, error)
}

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	asker    Asker
	searcher Searcher
	history  RunLister
	logger   *slog.Logger
}

// NewHandlers creates tool handlers
func NewHandlers(asker Asker, searcher Searcher, history RunLister, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{asker: asker, searcher: searcher, history: history, logger: logger}
}

type retrievalArgs struct {
	query  string
	topK   int
	rerank bool
}

func parseRetrievalArgs(request mcp.CallToolRequest) (retrievalArgs, *mcp.CallToolResult) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return retrievalArgs{}, mcp.NewToolResultError("query argument is required and must be a non-empty string")
	}
	topK := request.GetInt("top_k", defaultTopK)
	if topK <= 0 || topK > maxTopK {
		return retrievalArgs{}, mcp.NewToolResultError(fmt.Sprintf("top_k must be between 1 and %d, got %d", maxTopK, topK))
	}
	return retrievalArgs{query: query, topK: topK, rerank: request.GetBool("rerank", false)}, nil
}

// Ask handles the ask tool
func (h *Handlers) Ask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, errResult := parseRetrievalArgs(request)
	if errResult != nil {
		return errResult, nil
	}

	result, err := h.asker.Ask(ctx, args.query, args.topK, args.rerank)
	if err != nil {
		h.logger.Error("ask failed", "query", args.query, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %v", err)), nil
	}

	sources := make([]map[string]interface{}, 0, len(result.Retrieval.Results))
	for _, r := range result.Retrieval.Results {
		sources = append(sources, map[string]interface{}{
			"id":             r.ID,
			"original_score": r.OriginalScore,
			"reranked_score": r.RerankedScore,
		})
	}

	response := map[string]interface{}{
		"answer":        result.Answer.Text,
		"fallback_used": result.Answer.Fallback,
		"reranked":      result.Retrieval.Reranked,
		"sources":       sources,
	}
	if result.Answer.Failed {
		response["generation_failed"] = true
	}
	return jsonResult(response)
}

// SearchPosts handles the search_posts tool
func (h *Handlers) SearchPosts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, errResult := parseRetrievalArgs(request)
	if errResult != nil {
		return errResult, nil
	}

	retrieval, err := h.searcher.Retrieve(ctx, args.query, args.topK, args.rerank)
	if err != nil {
		h.logger.Error("search failed", "query", args.query, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	response := map[string]interface{}{
		"results":  retrieval.Results,
		"reranked": retrieval.Reranked,
		"count":    len(retrieval.Results),
	}
	return jsonResult(response)
}

// ListEvaluationRuns handles the list_evaluation_runs tool
func (h *Handlers) ListEvaluationRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.history == nil {
		return mcp.NewToolResultError("evaluation history is not configured"), nil
	}
	limit := request.GetInt("limit", defaultRunLimit)
	if limit <= 0 {
		return mcp.NewToolResultError(fmt.Sprintf("limit must be positive, got %d", limit)), nil
	}

	runs, err := h.history.ListRuns(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}
	if runs == nil {
		runs = []models.Summary{}
	}
	return jsonResult(map[string]interface{}{"runs": runs})
}

func jsonResult(response map[string]interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
