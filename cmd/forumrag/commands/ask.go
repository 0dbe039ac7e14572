// ABOUTME: CLI command to answer a question from indexed forum posts
// ABOUTME: Retrieves context, generates an answer and optionally shows the supporting chunks
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/forum-rag/internal/core"
)

var (
	askTopK       int
	askRerank     bool
	askShowChunks bool
)

// NewAskCmd creates the ask command
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer a question using indexed posts",
		Long: `Answer a question using indexed forum posts as context.

The closest passages are retrieved from the vector index and passed to the
chat model. When nothing is retrieved the model answers from its own
knowledge and the answer is marked as a fallback.

Examples:
  forumrag ask "What is a good strength build?"
  forumrag ask --top-k 8 --rerank --show-chunks "Best early talismans?"
  forumrag ask --format json "How do I beat Malenia?"`,
		Args: cobra.ExactArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().IntVar(&askTopK, "top-k", core.DefaultTopK, "Number of passages to retrieve")
	cmd.Flags().BoolVar(&askRerank, "rerank", false, "Re-order passages by refined relevance")
	cmd.Flags().BoolVar(&askShowChunks, "show-chunks", false, "Print the passages used as context")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := requireCount("top-k", askTopK); err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	pipeline, err := a.Pipeline(a.cfg.GenerationTemperature)
	if err != nil {
		return err
	}

	result, err := pipeline.Ask(cmd.Context(), args[0], askTopK, askRerank)
	if err != nil {
		return fmt.Errorf("retrieving context: %w", err)
	}

	return printAskResult(cmd, result, askShowChunks)
}

func printAskResult(cmd *cobra.Command, result core.AskResult, showChunks bool) error {
	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", data)
		return nil
	}

	fmt.Fprintln(out, result.Answer.Text)
	if result.Answer.Fallback && !quiet {
		fmt.Fprintln(out, "\n(no relevant posts found; answered from model knowledge)")
	}

	if showChunks && len(result.Retrieval.Results) > 0 {
		fmt.Fprintln(out, "\nContext:")
		for i, r := range result.Retrieval.Results {
			fmt.Fprintf(out, "[%d] %s (score %.3f, reranked %.3f)\n    %s\n",
				i+1, r.ID, r.OriginalScore, r.RerankedScore, clip(r.Text, 200))
		}
	}
	return nil
}
