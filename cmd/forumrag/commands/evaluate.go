// ABOUTME: CLI command to score the pipeline against reference answers
// ABOUTME: Writes a CSV report with a summary, uploads it and optionally records it in history
package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/forum-rag/internal/core"
	"github.com/harper/forum-rag/internal/evaluation"
	"github.com/harper/forum-rag/internal/models"
)

const defaultCasesPath = "test_queries.json"

var (
	evalCases      string
	evalOutput     string
	evalNoUpload   bool
	evalNoFallback bool
	evalRerank     bool
	evalTopK       int
	evalHistory    bool
)

// NewEvaluateCmd creates the evaluate command
func NewEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score answers against reference answers",
		Long: `Score generated answers against reference answers.

Each test case is answered at temperature 0. When every retrieved passage is
shorter than MIN_CONTEXT_CHARS the case is answered without context and
counted as a fallback. Answers are scored with ROUGE-1, ROUGE-L, BLEU,
keyword recall and context overlap.

The per-case CSV and a summary JSON are written locally, then uploaded to
S3_BUCKET_NAME under a YYYY/MM/DD/ key. An upload failure keeps the report
local and does not fail the run.

Examples:
  forumrag evaluate
  forumrag evaluate --cases queries.json --output results.csv --no-upload
  forumrag evaluate --rerank --history`,
		Args: cobra.NoArgs,
		RunE: runEvaluate,
	}

	cmd.Flags().StringVar(&evalCases, "cases", defaultCasesPath, "JSON file of {query, expected_answer} cases")
	cmd.Flags().StringVar(&evalOutput, "output", evaluation.DefaultOutputPath, "Local CSV report path")
	cmd.Flags().BoolVar(&evalNoUpload, "no-upload", false, "Keep the report local")
	cmd.Flags().BoolVar(&evalNoFallback, "no-fallback", false, "Always pass retrieved passages, even short ones")
	cmd.Flags().BoolVar(&evalRerank, "rerank", false, "Rerank retrieved passages before answering")
	cmd.Flags().IntVar(&evalTopK, "top-k", core.DefaultTopK, "Number of passages to retrieve per case")
	cmd.Flags().BoolVar(&evalHistory, "history", false, "Record the run in the evaluation history database")

	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if err := requireCount("top-k", evalTopK); err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	ctx := cmd.Context()

	cases, err := evaluation.LoadCases(evalCases)
	if err != nil {
		return err
	}

	retriever, err := a.Retriever()
	if err != nil {
		return err
	}
	completer, err := a.Completer()
	if err != nil {
		return err
	}
	generator := core.NewGenerator(completer, a.cfg.EvalTemperature, a.logger)

	opts := evaluation.DefaultOptions()
	opts.TopK = evalTopK
	opts.Rerank = evalRerank
	opts.UseFallback = !evalNoFallback
	opts.MinContextChars = a.cfg.MinContextChars
	opts.Model = completer.Model()
	opts.Index = a.cfg.IndexName

	report, err := evaluation.NewRunner(retriever, generator, opts, a.logger).Run(ctx, cases)
	if err != nil {
		return fmt.Errorf("evaluation aborted: %w", err)
	}

	var publisher *evaluation.Publisher
	if evalNoUpload || a.cfg.S3Bucket == "" {
		publisher = evaluation.NewPublisher(nil, a.logger)
	} else {
		objects, err := a.Objects(ctx, "")
		if err != nil {
			a.logger.Warn("object storage unavailable, keeping report local", "error", err)
			publisher = evaluation.NewPublisher(nil, a.logger)
		} else {
			publisher = evaluation.NewPublisher(objects, a.logger)
		}
	}

	pub, err := publisher.Publish(ctx, report, evalOutput)
	if err != nil {
		return err
	}

	if evalHistory {
		history, err := a.History()
		if err != nil {
			a.logger.Warn("evaluation history unavailable", "error", err)
		} else if err := history.SaveReport(ctx, report); err != nil {
			a.logger.Warn("failed to record evaluation run", "run_id", report.Summary.RunID, "error", err)
		}
	}

	return printEvaluation(cmd, report.Summary, pub)
}

func printEvaluation(cmd *cobra.Command, summary models.Summary, pub evaluation.Publication) error {
	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		payload := map[string]interface{}{
			"summary":      summary,
			"csv_path":     pub.CSVPath,
			"summary_path": pub.SummaryPath,
			"uploaded":     pub.Uploaded(),
		}
		if pub.Key != "" {
			payload["key"] = pub.Key
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", data)
		return nil
	}
	if quiet {
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Run\t%s\n", summary.RunID)
	fmt.Fprintf(w, "Queries\t%d\n", summary.TotalQueries)
	fmt.Fprintf(w, "ROUGE-1\t%.4f\n", summary.AvgRouge1)
	fmt.Fprintf(w, "ROUGE-L\t%.4f\n", summary.AvgRougeL)
	fmt.Fprintf(w, "BLEU\t%.4f\n", summary.AvgBLEU)
	fmt.Fprintf(w, "Keyword match\t%.4f\n", summary.AvgKeywordMatch)
	fmt.Fprintf(w, "Chunk overlap\t%.4f\n", summary.AvgChunkOverlap)
	fmt.Fprintf(w, "Fallback rate\t%.4f\n", summary.FallbackUsageRate)
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nReport written to %s\n", pub.CSVPath)
	switch {
	case pub.Uploaded():
		fmt.Fprintf(out, "Uploaded to %s\n", pub.Key)
	case pub.UploadErr != nil:
		fmt.Fprintf(out, "Upload failed, kept local: %v\n", pub.UploadErr)
	}
	return nil
}
