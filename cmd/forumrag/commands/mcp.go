// ABOUTME: MCP command starts the Model Context Protocol server
// ABOUTME: Lets LLM agents ask questions and search forum posts over stdio
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/forum-rag/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs forumrag as an MCP (Model Context Protocol) server so LLM agents
can answer questions from indexed forum posts via stdio. Exposes the
ask and search_posts tools, plus list_evaluation_runs when the
evaluation history database can be opened.

Logs go to stderr; stdout carries the protocol.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by an MCP client)
  forumrag mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "forumrag": {
  #       "command": "forumrag",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	pipeline, err := a.Pipeline(a.cfg.GenerationTemperature)
	if err != nil {
		return err
	}

	var history mcp.RunLister
	if store, err := a.History(); err != nil {
		a.logger.Warn("evaluation history unavailable, list_evaluation_runs disabled", "error", err)
	} else {
		history = store
	}

	server := mcpserver.NewMCPServer("forumrag", versionInfo.Version)
	mcp.RegisterTools(server, pipeline, pipeline.Retriever(), history, a.logger)

	a.logger.Info("MCP server starting on stdio", "index", a.cfg.IndexName)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-cmd.Context().Done():
		a.logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
