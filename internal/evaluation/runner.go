// ABOUTME: Evaluation runner - retrieves, generates and scores every test case
// ABOUTME: Applies the weak-context fallback policy and aggregates a run summary
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harper/forum-rag/internal/core"
	"github.com/harper/forum-rag/internal/models"
)

// DefaultMinContextChars is the trimmed length a chunk needs to count as usable context
const DefaultMinContextChars = 30

// chunk preview length for debug logs
const previewChars = 150

// Retriever fetches context for a query
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, rerank bool) (models.Retrieval, error)
}

// Generator answers a query from context chunks
type Generator interface {
	Generate(ctx context.Context, query string, chunks []string) core.Answer
}

// Options control one evaluation run
type Options struct {
	TopK            int
	Rerank          bool
	UseFallback     bool
	MinContextChars int
	Model           string
	Index           string
}

// DefaultOptions returns the options the evaluate command starts from
func DefaultOptions() Options {
	return Options{
		TopK:            core.DefaultTopK,
		UseFallback:     true,
		MinContextChars: DefaultMinContextChars,
	}
}

// Runner executes evaluation cases against the pipeline
type Runner struct {
	retriever Retriever
	generator Generator
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

// NewRunner creates a Runner
func NewRunner(retriever Retriever, generator Generator, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MinContextChars < 0 {
		opts.MinContextChars = 0
	}
	if opts.TopK <= 0 {
		opts.TopK = core.DefaultTopK
	}
	return &Runner{
		retriever: retriever,
		generator: generator,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// LoadCases reads a JSON array of {query, expected_answer} objects
func LoadCases(path string) ([]models.EvaluationCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test cases: %w", err)
	}
	var cases []models.EvaluationCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("%w: test cases %s: %v", models.ErrMalformedRecord, path, err)
	}
	return cases, nil
}

// SelectContext applies the weak-context policy. With useFallback set, an
// empty set or one where every chunk is shorter than minChars after trimming
// yields no context. A minChars of 0 accepts any chunk that is not blank.
func SelectContext(docs []string, useFallback bool, minChars int) []string {
	if !useFallback {
		return docs
	}
	for _, d := range docs {
		n := len(strings.TrimSpace(d))
		if n > 0 && n >= minChars {
			return docs
		}
	}
	return nil
}

// Run evaluates every case and returns the rows with their summary. Only
// cancellation and model-load failures abort the run; any other retrieval
// failure is scored as an empty retrieval.
func (r *Runner) Run(ctx context.Context, cases []models.EvaluationCase) (models.Report, error) {
	runID := uuid.New().String()
	timestamp := r.now().UTC().Truncate(time.Second)
	logger := r.logger.With("run_id", runID)

	rows := make([]models.CaseResult, 0, len(cases))
	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			return models.Report{}, err
		}
		row, err := r.evaluateCase(ctx, logger, c, timestamp)
		if err != nil {
			return models.Report{}, fmt.Errorf("case %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}

	summary := Aggregate(rows)
	summary.RunID = runID
	summary.Model = r.opts.Model
	summary.Index = r.opts.Index
	summary.Timestamp = timestamp

	logger.Info("evaluation complete",
		"queries", summary.TotalQueries,
		"avg_rouge1", summary.AvgRouge1,
		"fallback_rate", summary.FallbackUsageRate)
	return models.Report{Rows: rows, Summary: summary}, nil
}

func (r *Runner) evaluateCase(ctx context.Context, logger *slog.Logger, c models.EvaluationCase, ts time.Time) (models.CaseResult, error) {
	retrieval, err := r.retriever.Retrieve(ctx, c.Query, r.opts.TopK, r.opts.Rerank)
	if err != nil {
		if errors.Is(err, models.ErrModelLoad) || ctx.Err() != nil {
			return models.CaseResult{}, err
		}
		logger.Warn("retrieval failed, scoring without context", "query", c.Query, "error", err)
		retrieval = models.Retrieval{}
	}

	docs := retrieval.Documents()
	chunks := SelectContext(docs, r.opts.UseFallback, r.opts.MinContextChars)
	if len(chunks) == 0 && len(docs) > 0 {
		logger.Warn("context too weak, answering without it", "query", c.Query, "chunks", len(docs))
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		for i, d := range docs {
			logger.Debug("retrieved chunk", "query", c.Query, "rank", i+1, "preview", preview(d))
		}
	}

	answer := r.generator.Generate(ctx, c.Query, chunks)
	if answer.Failed {
		logger.Warn("generation failed", "query", c.Query, "answer", answer.Text)
	}

	scores := roundScores(Score(answer.Text, c.ExpectedAnswer, chunks))
	return models.CaseResult{
		Query:        c.Query,
		Reference:    c.ExpectedAnswer,
		Generated:    answer.Text,
		Scores:       scores,
		FallbackUsed: len(chunks) == 0,
		ChunkCount:   len(chunks),
		Model:        r.opts.Model,
		Index:        r.opts.Index,
		Timestamp:    ts,
	}, nil
}

// Aggregate computes metric means and the fallback usage rate. An empty row
// set yields a zero summary.
func Aggregate(rows []models.CaseResult) models.Summary {
	s := models.Summary{TotalQueries: len(rows)}
	if len(rows) == 0 {
		return s
	}

	fallbacks := 0
	for _, row := range rows {
		s.AvgRouge1 += row.Scores.Rouge1
		s.AvgRougeL += row.Scores.RougeL
		s.AvgBLEU += row.Scores.BLEU
		s.AvgKeywordMatch += row.Scores.KeywordMatch
		s.AvgChunkOverlap += row.Scores.ChunkOverlapScore
		if row.FallbackUsed {
			fallbacks++
		}
	}

	n := float64(len(rows))
	s.AvgRouge1 /= n
	s.AvgRougeL /= n
	s.AvgBLEU /= n
	s.AvgKeywordMatch /= n
	s.AvgChunkOverlap /= n
	s.FallbackUsageRate = float64(fallbacks) / n
	return s
}

func roundScores(s models.Scores) models.Scores {
	s.Rouge1 = round4(s.Rouge1)
	s.RougeL = round4(s.RougeL)
	s.BLEU = round4(s.BLEU)
	s.KeywordMatch = round4(s.KeywordMatch)
	s.ChunkOverlapScore = round4(s.ChunkOverlapScore)
	return s
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewChars {
		return text
	}
	return string(runes[:previewChars]) + "..."
}
