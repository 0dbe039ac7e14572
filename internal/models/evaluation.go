// ABOUTME: Evaluation inputs, per-case results and run summaries
// ABOUTME: Defines EvaluationCase, CaseResult, Summary and chunk-overlap labels
package models

import "time"

// EvaluationCase is one query with its reference answer
type EvaluationCase struct {
	Query          string `json:"query"`
	ExpectedAnswer string `json:"expected_answer"`
}

// OverlapLabel classifies how much of an answer is traceable to the context
type OverlapLabel string

const (
	UsedContextStrongly  OverlapLabel = "used_context_strongly"
	UsedContextPartially OverlapLabel = "used_context_partially"
	UsedContextWeakly    OverlapLabel = "used_context_weakly"
	IgnoredContextLikely OverlapLabel = "ignored_context_likely"
	NoMeaningfulTokens   OverlapLabel = "no_meaningful_tokens"
)

// Scores holds the four answer-quality metrics for one case
type Scores struct {
	Rouge1            float64      `json:"rouge1"`
	RougeL            float64      `json:"rougeL"`
	BLEU              float64      `json:"bleu"`
	KeywordMatch      float64      `json:"keyword_match"`
	ChunkOverlapScore float64      `json:"chunk_overlap_score"`
	ChunkOverlapLabel OverlapLabel `json:"chunk_overlap_label"`
}

// CaseResult is one row of an evaluation report
type CaseResult struct {
	Query        string    `json:"query"`
	Reference    string    `json:"reference"`
	Generated    string    `json:"generated"`
	Scores       Scores    `json:"scores"`
	FallbackUsed bool      `json:"fallback_used"`
	ChunkCount   int       `json:"chunk_count"`
	Model        string    `json:"model"`
	Index        string    `json:"index"`
	Timestamp    time.Time `json:"timestamp"`
}

// Summary aggregates a run's case results
type Summary struct {
	RunID             string    `json:"run_id"`
	TotalQueries      int       `json:"total_queries"`
	AvgRouge1         float64   `json:"avg_rouge1"`
	AvgRougeL         float64   `json:"avg_rougeL"`
	AvgBLEU           float64   `json:"avg_bleu"`
	AvgKeywordMatch   float64   `json:"avg_keyword_match"`
	AvgChunkOverlap   float64   `json:"avg_chunk_overlap"`
	FallbackUsageRate float64   `json:"fallback_usage_rate"`
	Model             string    `json:"model"`
	Index             string    `json:"index"`
	Timestamp         time.Time `json:"timestamp"`
}

// Report is the terminal output of an evaluation run
type Report struct {
	Rows    []CaseResult `json:"rows"`
	Summary Summary      `json:"summary"`
}
