// ABOUTME: CLI command to search indexed forum posts
// ABOUTME: Prints retrieved passages with original and reranked scores
package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/forum-rag/internal/core"
	"github.com/harper/forum-rag/internal/models"
)

var (
	searchTopK   int
	searchRerank bool
)

// NewSearchCmd creates the search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed posts",
		Long: `Search indexed forum posts and comments by semantic similarity.

Prints each passage with its vector-store score and, with --rerank, the
refined relevance score used to re-order the results.

Examples:
  forumrag search "colossal weapons"
  forumrag search --top-k 10 --rerank "bleed build"
  forumrag search --format json "faith spells"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchTopK, "top-k", core.DefaultTopK, "Number of passages to retrieve")
	cmd.Flags().BoolVar(&searchRerank, "rerank", false, "Re-order passages by refined relevance")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := requireCount("top-k", searchTopK); err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	retriever, err := a.Retriever()
	if err != nil {
		return err
	}

	query := args[0]
	retrieval, err := retriever.Retrieve(cmd.Context(), query, searchTopK, searchRerank)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	return printRetrieval(cmd, query, retrieval)
}

func printRetrieval(cmd *cobra.Command, query string, retrieval models.Retrieval) error {
	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		data, err := json.MarshalIndent(retrieval, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", data)
		return nil
	}

	if retrieval.Empty() {
		if !quiet {
			fmt.Fprintf(out, "No posts found for query: %s\n", query)
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\tRERANKED\tID\tPREVIEW\n")
	fmt.Fprintf(w, "-----\t--------\t--\t-------\n")
	for _, r := range retrieval.Results {
		reranked := fmt.Sprintf("%.3f", r.RerankedScore)
		if r.RerankFailed {
			reranked = "failed"
		}
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n",
			r.OriginalScore,
			reranked,
			clip(r.ID, 25),
			clip(r.Text, 60))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintf(out, "\nFound %d result(s)\n", len(retrieval.Results))
	}
	return nil
}
