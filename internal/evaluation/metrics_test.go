// ABOUTME: Tests for answer-quality metrics
// ABOUTME: Checks known values, bounds, degenerate inputs and overlap label boundaries
package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harper/forum-rag/internal/models"
)

func TestWordTokens(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"Hello, World!", []string{"hello", "world"}},
		{"Don't use it's", []string{"do", "n't", "use", "it", "'s"}},
		{"  (parenthetical)  text.", []string{"parenthetical", "text"}},
		{"STR-build 60", []string{"str-build", "60"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, WordTokens(tt.in))
		})
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords("The best build is a Strength build with the Greatsword, isn't it?")
	assert.Equal(t, []string{"best", "build", "strength", "build", "greatsword"}, got)
	assert.Empty(t, Keywords("it is what it is"))
}

func TestRougeTokens(t *testing.T) {
	assert.Equal(t, []string{"run", "build", "str", "60"}, RougeTokens("Running builds: STR 60!"))
}

func TestRouge1(t *testing.T) {
	tests := []struct {
		name      string
		ref, cand string
		want      float64
	}{
		{"identical", "level strength first", "level strength first", 1},
		{"disjoint", "alpha beta", "gamma delta", 0},
		{"empty candidate", "alpha", "", 0},
		{"empty reference", "", "alpha", 0},
		{"partial", "the cat sat", "the cat", 0.8},
		{"stemmed", "running builds", "run build", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Rouge1(tt.ref, tt.cand), 1e-9)
		})
	}
}

func TestRougeL(t *testing.T) {
	assert.InDelta(t, 1.0, RougeL("a b c d", "a b c d"), 1e-9)
	// LCS "a c d": precision 1, recall 0.75
	assert.InDelta(t, 2*0.75/1.75, RougeL("a b c d", "a c d"), 1e-9)
	// order matters for LCS but not for ROUGE-1
	assert.InDelta(t, 1.0, Rouge1("a b c", "c b a"), 1e-9)
	assert.Less(t, RougeL("a b c", "c b a"), 1.0)
	assert.Equal(t, 0.0, RougeL("", ""))
}

func TestBLEU(t *testing.T) {
	tests := []struct {
		name      string
		ref, cand string
		want      float64
	}{
		{"identical", "the quick brown fox jumps", "the quick brown fox jumps", 1},
		{"no overlap", "alpha beta gamma", "delta epsilon", 0},
		{"empty candidate", "alpha", "", 0},
		{"smoothed higher orders", "a b c d", "a b x y", 0.16821895003341453},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, BLEU(tt.ref, tt.cand), 1e-6)
		})
	}
}

func TestBLEU_BrevityPenalty(t *testing.T) {
	long := BLEU("a b c d e f g h", "a b c d e f g h")
	short := BLEU("a b c d e f g h", "a b c d")
	assert.InDelta(t, 1.0, long, 1e-9)
	assert.InDelta(t, math.Exp(1-8.0/4.0), short, 1e-9)
}

func TestBLEU_CaseSensitive(t *testing.T) {
	assert.Equal(t, 0.0, BLEU("Strength", "strength"))
}

func TestKeywordMatch(t *testing.T) {
	tests := []struct {
		name           string
		ref, generated string
		want           float64
	}{
		{"all matched", "Strength and vigor", "Level vigor then strength", 1},
		{"half matched", "strength vigor", "more strength", 0.5},
		{"none matched", "strength vigor", "dexterity", 0},
		{"stopword-only reference", "it is what it is", "anything", 0},
		{"empty reference", "", "anything", 0},
		{"empty generated", "strength", "", 0},
		{"duplicates count once", "build build build strength", "build", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeywordMatch(tt.ref, tt.generated)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestChunkOverlap(t *testing.T) {
	chunks := []string{"Greatswords scale with STRENGTH.", "Vigor keeps you alive"}

	score, label := ChunkOverlap("Greatsword strength vigor", chunks)
	assert.InDelta(t, 1.0, score, 1e-9)
	assert.Equal(t, models.UsedContextStrongly, label)

	score, label = ChunkOverlap("strength magic faith incantations", chunks)
	assert.InDelta(t, 0.25, score, 1e-9)
	assert.Equal(t, models.UsedContextWeakly, label)

	score, label = ChunkOverlap("it is what it is", chunks)
	assert.Equal(t, 0.0, score)
	assert.Equal(t, models.NoMeaningfulTokens, label)

	score, label = ChunkOverlap("strength build", nil)
	assert.Equal(t, 0.0, score)
	assert.Equal(t, models.IgnoredContextLikely, label)
}

func TestOverlapLabelFor(t *testing.T) {
	tests := []struct {
		score float64
		want  models.OverlapLabel
	}{
		{0.75, models.UsedContextStrongly},
		{0.71, models.UsedContextStrongly},
		{0.7, models.UsedContextPartially},
		{0.41, models.UsedContextPartially},
		{0.4, models.UsedContextWeakly},
		{0.15, models.UsedContextWeakly},
		{0.1, models.IgnoredContextLikely},
		{0.05, models.IgnoredContextLikely},
		{0, models.IgnoredContextLikely},
	}
	for _, tt := range tests {
		if got := OverlapLabelFor(tt.score); got != tt.want {
			t.Errorf("OverlapLabelFor(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestScore_Bounds(t *testing.T) {
	s := Score("Level strength and use a colossal sword.", "Use a colossal weapon and level strength.",
		[]string{"Colossal weapons need strength."})
	for name, v := range map[string]float64{
		"rouge1": s.Rouge1, "rougeL": s.RougeL, "bleu": s.BLEU, "keyword": s.KeywordMatch, "overlap": s.ChunkOverlapScore,
	} {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}
	assert.Greater(t, s.Rouge1, 0.0)
}
