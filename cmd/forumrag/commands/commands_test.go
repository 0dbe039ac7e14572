// ABOUTME: Tests for the ingest, ask, search, evaluate, history and mcp commands
// ABOUTME: Verifies flags, output rendering and fail-fast configuration errors

package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/forum-rag/internal/core"
	"github.com/harper/forum-rag/internal/evaluation"
	"github.com/harper/forum-rag/internal/models"
)

// isolateEnv clears every setting the CLI reads so tests never reach real services
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PINECONE_API_KEY", "INDEX_NAME", "PINECONE_INDEX_HOST", "OPENAI_API_KEY",
		"EMBEDDING_API_KEY", "EMBEDDING_CACHE_URL", "S3_BUCKET_NAME", "LOG_LEVEL",
		"RERANK_STRATEGY", "EVAL_HISTORY_DB",
	} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func withFormat(t *testing.T, format string, q bool) *cobra.Command {
	t.Helper()
	oldFormat, oldQuiet := outputFormat, quiet
	outputFormat, quiet = format, q
	t.Cleanup(func() { outputFormat, quiet = oldFormat, oldQuiet })
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	return cmd
}

func output(cmd *cobra.Command) string {
	return cmd.OutOrStdout().(*bytes.Buffer).String()
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd      *cobra.Command
		use      string
		flag     string
		defValue string
	}{
		{NewIngestCmd(), "ingest", "all", "false"},
		{NewIngestCmd(), "ingest", "prefix", ""},
		{NewIngestCmd(), "ingest", "dir", ""},
		{NewAskCmd(), "ask <query>", "top-k", "5"},
		{NewAskCmd(), "ask <query>", "rerank", "false"},
		{NewAskCmd(), "ask <query>", "show-chunks", "false"},
		{NewSearchCmd(), "search <query>", "top-k", "5"},
		{NewSearchCmd(), "search <query>", "rerank", "false"},
		{NewEvaluateCmd(), "evaluate", "cases", "test_queries.json"},
		{NewEvaluateCmd(), "evaluate", "output", "rag_evaluation_results.csv"},
		{NewEvaluateCmd(), "evaluate", "no-upload", "false"},
		{NewEvaluateCmd(), "evaluate", "no-fallback", "false"},
		{NewEvaluateCmd(), "evaluate", "history", "false"},
		{NewHistoryCmd(), "history", "limit", "10"},
	}

	for _, tt := range tests {
		t.Run(tt.use+"/"+tt.flag, func(t *testing.T) {
			if tt.cmd.Use != tt.use {
				t.Errorf("Use = %q, want %q", tt.cmd.Use, tt.use)
			}
			if tt.cmd.Short == "" || tt.cmd.Long == "" {
				t.Error("Short and Long descriptions should not be empty")
			}
			flag := tt.cmd.Flags().Lookup(tt.flag)
			if flag == nil {
				t.Fatalf("--%s flag not found", tt.flag)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("--%s default = %q, want %q", tt.flag, flag.DefValue, tt.defValue)
			}
		})
	}
}

func TestMCPCmd_Description(t *testing.T) {
	cmd := NewMCPCmd()

	if cmd.Use != "mcp" {
		t.Errorf("Use = %q, want %q", cmd.Use, "mcp")
	}
	for _, want := range []string{"MCP", "stdio", "ask", "search_posts"} {
		if !strings.Contains(cmd.Long, want) {
			t.Errorf("Long description should mention %q", want)
		}
	}
	if !strings.Contains(cmd.Example, "forumrag mcp") {
		t.Error("Example should show how to run the command")
	}
}

func TestCommands_ArgValidation(t *testing.T) {
	isolateEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"ask without query", []string{"ask"}},
		{"search with two queries", []string{"search", "a", "b"}},
		{"ingest with positional arg", []string{"ingest", "extra"}},
		{"ask with zero top-k", []string{"ask", "--top-k", "0", "q"}},
		{"history with negative limit", []string{"history", "--limit", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runRoot(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestCommands_MissingConfigFailsFast(t *testing.T) {
	isolateEnv(t)

	tests := []struct {
		name    string
		args    []string
		missing string
	}{
		{"ask", []string{"ask", "q"}, "PINECONE_API_KEY"},
		{"search", []string{"search", "q"}, "INDEX_NAME"},
		{"ingest from s3", []string{"ingest"}, "S3_BUCKET_NAME"},
		{"ingest from dir", []string{"ingest", "--dir", "."}, "PINECONE_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runRoot(t, tt.args...)
			if !errors.Is(err, models.ErrConfig) {
				t.Fatalf("error = %v, want ErrConfig", err)
			}
			if !strings.Contains(err.Error(), tt.missing) {
				t.Errorf("error %q should name %s", err, tt.missing)
			}
		})
	}
}

func TestCommands_InvalidLogLevel(t *testing.T) {
	isolateEnv(t)
	t.Setenv("LOG_LEVEL", "chatty")

	_, err := runRoot(t, "history")
	if !errors.Is(err, models.ErrConfig) {
		t.Errorf("error = %v, want ErrConfig", err)
	}
}

func TestHistoryCmd_EmptyDatabase(t *testing.T) {
	isolateEnv(t)
	t.Setenv("EVAL_HISTORY_DB", filepath.Join(t.TempDir(), "history.db"))

	out, err := runRoot(t, "--format", "json", "history")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("output = %q, want []", out)
	}

	out, err = runRoot(t, "history")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, "No evaluation runs recorded") {
		t.Errorf("output = %q, want empty notice", out)
	}
}

func TestEvaluateCmd_MissingCases(t *testing.T) {
	isolateEnv(t)

	_, err := runRoot(t, "evaluate", "--cases", "nope.json", "--no-upload")
	if err == nil || !strings.Contains(err.Error(), "test cases") {
		t.Errorf("error = %v, want test case read failure", err)
	}
}

func TestNewLogger(t *testing.T) {
	oldVerbose, oldQuiet := verbose, quiet
	defer func() { verbose, quiet = oldVerbose, oldQuiet }()

	var buf bytes.Buffer

	verbose, quiet = false, false
	logger, err := newLogger(&buf, "warn")
	if err != nil {
		t.Fatalf("newLogger error = %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn level output = %q", buf.String())
	}

	buf.Reset()
	verbose = true
	logger, _ = newLogger(&buf, "error")
	logger.Debug("debug line")
	if !strings.Contains(buf.String(), "debug line") {
		t.Error("--verbose should enable debug logging")
	}

	if _, err := newLogger(&buf, "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func sampleRetrieval() models.Retrieval {
	return models.Retrieval{
		Reranked: true,
		Results: []models.QueryResult{
			{ID: "p1-body", Text: "Strength builds\nwant colossal weapons.", OriginalScore: 0.81, RerankedScore: 0.93},
			{ID: "p2-comment-3", Text: "Level vigor first.", OriginalScore: 0.9, RerankedScore: 0, RerankFailed: true},
		},
	}
}

func TestPrintRetrieval_Table(t *testing.T) {
	cmd := withFormat(t, "auto", false)
	if err := printRetrieval(cmd, "q", sampleRetrieval()); err != nil {
		t.Fatalf("printRetrieval error = %v", err)
	}

	out := output(cmd)
	for _, want := range []string{"SCORE", "RERANKED", "p1-body", "0.930", "failed", "Strength builds want colossal weapons.", "Found 2 result(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q:\n%s", want, out)
		}
	}
}

func TestPrintRetrieval_Empty(t *testing.T) {
	cmd := withFormat(t, "table", false)
	if err := printRetrieval(cmd, "malenia", models.Retrieval{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(output(cmd), "No posts found for query: malenia") {
		t.Errorf("output = %q", output(cmd))
	}

	quietCmd := withFormat(t, "table", true)
	_ = printRetrieval(quietCmd, "malenia", models.Retrieval{})
	if output(quietCmd) != "" {
		t.Errorf("quiet output = %q, want empty", output(quietCmd))
	}
}

func TestPrintRetrieval_JSON(t *testing.T) {
	cmd := withFormat(t, "json", false)
	if err := printRetrieval(cmd, "q", sampleRetrieval()); err != nil {
		t.Fatal(err)
	}

	var decoded models.Retrieval
	if err := json.Unmarshal([]byte(output(cmd)), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(decoded.Results) != 2 || !decoded.Results[1].RerankFailed {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestPrintAskResult(t *testing.T) {
	result := core.AskResult{
		Query:     "good strength build?",
		Answer:    core.Answer{Text: "Use a colossal weapon."},
		Retrieval: sampleRetrieval(),
	}

	cmd := withFormat(t, "auto", false)
	if err := printAskResult(cmd, result, true); err != nil {
		t.Fatal(err)
	}
	out := output(cmd)
	if !strings.HasPrefix(out, "Use a colossal weapon.\n") {
		t.Errorf("answer should come first: %q", out)
	}
	if !strings.Contains(out, "[1] p1-body") || !strings.Contains(out, "[2] p2-comment-3") {
		t.Errorf("chunks missing: %q", out)
	}

	fallback := core.AskResult{Answer: core.Answer{Text: "From memory.", Fallback: true}}
	cmd = withFormat(t, "auto", false)
	_ = printAskResult(cmd, fallback, false)
	if !strings.Contains(output(cmd), "answered from model knowledge") {
		t.Errorf("fallback notice missing: %q", output(cmd))
	}
}

func TestPrintEvaluation(t *testing.T) {
	summary := models.Summary{
		RunID: "run-1", TotalQueries: 4, AvgRouge1: 0.41234, AvgBLEU: 0.05,
		FallbackUsageRate: 0.25, Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	t.Run("uploaded", func(t *testing.T) {
		cmd := withFormat(t, "auto", false)
		pub := evaluation.Publication{CSVPath: "out.csv", SummaryPath: "out.summary.json", Key: "2025/01/02/x.csv"}
		if err := printEvaluation(cmd, summary, pub); err != nil {
			t.Fatal(err)
		}
		out := output(cmd)
		for _, want := range []string{"run-1", "0.4123", "Fallback rate", "0.2500", "Report written to out.csv", "Uploaded to 2025/01/02/x.csv"} {
			if !strings.Contains(out, want) {
				t.Errorf("output should contain %q:\n%s", want, out)
			}
		}
	})

	t.Run("kept local", func(t *testing.T) {
		cmd := withFormat(t, "auto", false)
		pub := evaluation.Publication{CSVPath: "out.csv", UploadErr: errors.New("access denied")}
		_ = printEvaluation(cmd, summary, pub)
		if !strings.Contains(output(cmd), "Upload failed, kept local: access denied") {
			t.Errorf("output = %q", output(cmd))
		}
	})

	t.Run("json", func(t *testing.T) {
		cmd := withFormat(t, "json", false)
		_ = printEvaluation(cmd, summary, evaluation.Publication{CSVPath: "out.csv"})
		var decoded map[string]any
		if err := json.Unmarshal([]byte(output(cmd)), &decoded); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if decoded["uploaded"] != false {
			t.Errorf("uploaded = %v, want false", decoded["uploaded"])
		}
		if _, ok := decoded["key"]; ok {
			t.Error("key should be omitted when nothing was uploaded")
		}
	})
}

func TestPrintRuns(t *testing.T) {
	runs := []models.Summary{{
		RunID: "0f8fad5b-d9cb-469f-a165-70867728950e", Model: "gpt-4", TotalQueries: 12,
		AvgRouge1: 0.5, AvgBLEU: 0.1, AvgKeywordMatch: 0.75, FallbackUsageRate: 0.5,
		Timestamp: time.Now().Add(-2 * time.Hour),
	}}

	cmd := withFormat(t, "table", false)
	if err := printRuns(cmd, runs); err != nil {
		t.Fatal(err)
	}
	out := output(cmd)
	for _, want := range []string{"WHEN", "2h ago", "gpt-4", "12", "0.750", "50%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q:\n%s", want, out)
		}
	}
}

func TestPrintIngestStats(t *testing.T) {
	stats := core.IngestStats{Files: 2, FilesSkipped: 1, Records: 10, Units: 40, UnitsSkipped: 2, VectorsWritten: 38}

	cmd := withFormat(t, "auto", false)
	if err := printIngestStats(cmd, stats); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(output(cmd), "Vectors written  38") {
		t.Errorf("output = %q", output(cmd))
	}

	cmd = withFormat(t, "json", false)
	_ = printIngestStats(cmd, stats)
	var decoded core.IngestStats
	if err := json.Unmarshal([]byte(output(cmd)), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded != stats {
		t.Errorf("decoded = %+v, want %+v", decoded, stats)
	}
}
