// ABOUTME: MCP tool definitions and registration for the forum RAG server
// ABOUTME: Declares JSON schemas for ask, search_posts and list_evaluation_runs
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// RegisterTools registers the MCP tools with the server. The history tool is
// only registered when history is non-nil.
func RegisterTools(server *mcpserver.MCPServer, asker Asker, searcher Searcher, history RunLister, logger *slog.Logger) *Handlers {
	handlers := NewHandlers(asker, searcher, history, logger)

	retrievalProperties := func(queryDescription string) map[string]interface{} {
		return map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": queryDescription,
			},
			"top_k": map[string]interface{}{
				"type":        "number",
				"description": "Number of forum passages to retrieve (default: 5)",
				"default":     defaultTopK,
			},
			"rerank": map[string]interface{}{
				"type":        "boolean",
				"description": "Re-order retrieved passages by a refined relevance score",
				"default":     false,
			},
		}
	}

	// 1. ask - answer a question grounded in forum posts
	server.AddTool(mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using retrieved forum posts as context. Falls back to model knowledge when nothing relevant is indexed.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: retrievalProperties("Question to answer"),
			Required:   []string{"query"},
		},
	}, handlers.Ask)

	// 2. search_posts - retrieval only
	server.AddTool(mcp.Tool{
		Name:        "search_posts",
		Description: "Search indexed forum posts and comments by semantic similarity. Returns passages with original and reranked scores.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: retrievalProperties("Search query"),
			Required:   []string{"query"},
		},
	}, handlers.SearchPosts)

	// 3. list_evaluation_runs - recorded evaluation summaries
	if history != nil {
		server.AddTool(mcp.Tool{
			Name:        "list_evaluation_runs",
			Description: "List recent evaluation runs with their average scores and fallback usage rate, newest first.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"limit": map[string]interface{}{
						"type":        "number",
						"description": "Maximum number of runs to return (default: 10)",
						"default":     defaultRunLimit,
					},
				},
			},
		}, handlers.ListEvaluationRuns)
	}

	return handlers
}
