// ABOUTME: CLI command to embed scraped forum posts into the vector index
// ABOUTME: Reads the newest source file by default, or every file with --all
package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/forum-rag/internal/core"
)

var (
	ingestAll    bool
	ingestPrefix string
	ingestDir    string
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed scraped posts into the vector index",
		Long: `Embed scraped forum posts into the vector index.

Lists JSON source files under the configured S3 prefix (or a local
directory with --dir), cleans each post body and comment, embeds them and
upserts one vector per unit. Only the most recently modified file is read
unless --all is given. Re-ingesting a file overwrites its vectors.

Examples:
  forumrag ingest
  forumrag ingest --all --prefix reddit_data/2025/
  forumrag ingest --dir ./scrapes --all`,
		Args: cobra.NoArgs,
		RunE: runIngest,
	}

	cmd.Flags().BoolVar(&ingestAll, "all", false, "Ingest every source file instead of the newest")
	cmd.Flags().StringVar(&ingestPrefix, "prefix", "", "Key prefix to list (default: S3_PREFIX)")
	cmd.Flags().StringVar(&ingestDir, "dir", "", "Read source files from a local directory instead of S3")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	objects, err := a.Objects(ctx, ingestDir)
	if err != nil {
		return err
	}
	embedder, err := a.Embedder()
	if err != nil {
		return err
	}
	index, err := a.Index()
	if err != nil {
		return err
	}

	prefix := ingestPrefix
	if prefix == "" && ingestDir == "" {
		prefix = a.cfg.S3Prefix
	}

	ingestor := core.NewIngestor(objects, embedder, index, a.cfg.IndexName, a.logger)
	stats, err := ingestor.Run(ctx, core.IngestOptions{Prefix: prefix, All: ingestAll})
	if err != nil {
		return fmt.Errorf("ingestion aborted: %w", err)
	}

	return printIngestStats(cmd, stats)
}

func printIngestStats(cmd *cobra.Command, stats core.IngestStats) error {
	if outputFormat == "json" {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}
	if quiet {
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Files\t%d (%d skipped)\n", stats.Files, stats.FilesSkipped)
	fmt.Fprintf(w, "Records\t%d (%d skipped)\n", stats.Records, stats.RecordsSkipped)
	fmt.Fprintf(w, "Units\t%d (%d skipped)\n", stats.Units, stats.UnitsSkipped)
	fmt.Fprintf(w, "Vectors written\t%d\n", stats.VectorsWritten)
	fmt.Fprintf(w, "Failed batches\t%d\n", stats.BatchesFailed)
	return w.Flush()
}
