// ABOUTME: CLI command to list recorded evaluation runs
// ABOUTME: Reads run summaries from the local sqlite history database
package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/forum-rag/internal/models"
)

var (
	historyLimit int
)

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded evaluation runs",
		Long: `List evaluation runs recorded with "evaluate --history", newest first.

The database lives at EVAL_HISTORY_DB (default under the XDG data directory).

Examples:
  forumrag history
  forumrag history --limit 30 --format json`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum runs to list")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := requireCount("limit", historyLimit); err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	history, err := a.History()
	if err != nil {
		return err
	}
	runs, err := history.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	return printRuns(cmd, runs)
}

func printRuns(cmd *cobra.Command, runs []models.Summary) error {
	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		if runs == nil {
			runs = []models.Summary{}
		}
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", data)
		return nil
	}

	if len(runs) == 0 {
		if !quiet {
			fmt.Fprintln(out, "No evaluation runs recorded")
		}
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "WHEN\tRUN\tMODEL\tQUERIES\tROUGE-1\tBLEU\tKEYWORD\tFALLBACK\n")
	fmt.Fprintf(w, "----\t---\t-----\t-------\t-------\t----\t-------\t--------\n")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3f\t%.3f\t%.3f\t%.0f%%\n",
			runAge(run.Timestamp, now),
			shortRunID(run.RunID),
			run.Model,
			run.TotalQueries,
			run.AvgRouge1,
			run.AvgBLEU,
			run.AvgKeywordMatch,
			run.FallbackUsageRate*100)
	}
	return w.Flush()
}
