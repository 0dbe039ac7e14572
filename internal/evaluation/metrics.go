// ABOUTME: Answer-quality metrics: ROUGE-1, ROUGE-L, smoothed BLEU, keyword recall and chunk overlap
// ABOUTME: Every metric is total: degenerate inputs produce 0 or a sentinel label, never an error
package evaluation

import (
	"math"
	"strings"

	"github.com/harper/forum-rag/internal/models"
)

// Overlap label thresholds; a score must exceed the threshold to earn the label
const (
	strongOverlapThreshold  = 0.7
	partialOverlapThreshold = 0.4
	weakOverlapThreshold    = 0.1
)

// Score computes all metrics for one generated answer
func Score(generated, reference string, chunks []string) models.Scores {
	overlap, label := ChunkOverlap(generated, chunks)
	return models.Scores{
		Rouge1:            Rouge1(reference, generated),
		RougeL:            RougeL(reference, generated),
		BLEU:              BLEU(reference, generated),
		KeywordMatch:      KeywordMatch(reference, generated),
		ChunkOverlapScore: overlap,
		ChunkOverlapLabel: label,
	}
}

// Rouge1 is the unigram F-measure between stemmed reference and candidate tokens
func Rouge1(reference, candidate string) float64 {
	ref, cand := RougeTokens(reference), RougeTokens(candidate)
	if len(ref) == 0 || len(cand) == 0 {
		return 0
	}

	refCounts := counts(ref)
	overlap := 0
	for tok, n := range counts(cand) {
		overlap += min(n, refCounts[tok])
	}
	return fMeasure(float64(overlap)/float64(len(cand)), float64(overlap)/float64(len(ref)))
}

// RougeL is the longest-common-subsequence F-measure between stemmed tokens
func RougeL(reference, candidate string) float64 {
	ref, cand := RougeTokens(reference), RougeTokens(candidate)
	if len(ref) == 0 || len(cand) == 0 {
		return 0
	}
	lcs := float64(lcsLength(ref, cand))
	return fMeasure(lcs/float64(len(cand)), lcs/float64(len(ref)))
}

func fMeasure(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

const (
	bleuMaxOrder = 4
	// smoothing constant for the geometric-sequence smoothing of zero counts
	bleuSmoothingK = 5.0
)

// BLEU is sentence-level BLEU-4 with uniform weights over whitespace tokens.
// Zero higher-order counts are smoothed with a geometric sequence scaled by
// the hypothesis length; no unigram overlap scores 0.
func BLEU(reference, candidate string) float64 {
	ref, hyp := BLEUTokens(reference), BLEUTokens(candidate)
	hypLen, refLen := len(hyp), len(ref)
	if hypLen == 0 {
		return 0
	}

	numerators := make([]float64, bleuMaxOrder)
	denominators := make([]float64, bleuMaxOrder)
	for n := 1; n <= bleuMaxOrder; n++ {
		hypGrams := ngramCounts(hyp, n)
		refGrams := ngramCounts(ref, n)
		total, clipped := 0, 0
		for gram, c := range hypGrams {
			total += c
			clipped += min(c, refGrams[gram])
		}
		numerators[n-1] = float64(clipped)
		denominators[n-1] = float64(max(1, total))
	}
	if numerators[0] == 0 {
		return 0
	}

	precisions := make([]float64, bleuMaxOrder)
	incvnt := 1.0
	for i := range precisions {
		if numerators[i] == 0 && hypLen > 1 {
			smoothed := 1 / (math.Pow(2, incvnt) * bleuSmoothingK / math.Log(float64(hypLen)))
			precisions[i] = smoothed / denominators[i]
			incvnt++
			continue
		}
		precisions[i] = numerators[i] / denominators[i]
	}

	logSum := 0.0
	for _, p := range precisions {
		if p <= 0 {
			p = math.SmallestNonzeroFloat64
		}
		logSum += math.Log(p) / bleuMaxOrder
	}
	return brevityPenalty(refLen, hypLen) * math.Exp(logSum)
}

func brevityPenalty(refLen, hypLen int) float64 {
	switch {
	case hypLen > refLen:
		return 1
	case hypLen == 0:
		return 0
	default:
		return math.Exp(1 - float64(refLen)/float64(hypLen))
	}
}

func ngramCounts(tokens []string, n int) map[string]int {
	out := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		out[strings.Join(tokens[i:i+n], "\x00")]++
	}
	return out
}

func counts(tokens []string) map[string]int {
	out := make(map[string]int, len(tokens))
	for _, t := range tokens {
		out[t]++
	}
	return out
}

// KeywordMatch is the fraction of the reference's keywords that appear among
// the generated answer's alphanumeric tokens. A reference with no keywords
// scores 0.
func KeywordMatch(reference, generated string) float64 {
	refKeywords := make(map[string]struct{})
	for _, tok := range Keywords(reference) {
		refKeywords[tok] = struct{}{}
	}
	if len(refKeywords) == 0 {
		return 0
	}

	genTokens := make(map[string]struct{})
	for _, tok := range WordTokens(generated) {
		if isAlnum(tok) {
			genTokens[tok] = struct{}{}
		}
	}

	matched := 0
	for tok := range refKeywords {
		if _, ok := genTokens[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(refKeywords))
}

// ChunkOverlap is the fraction of the answer's keywords found as substrings of
// the lowercased, space-joined context, with its grounding label
func ChunkOverlap(generated string, chunks []string) (float64, models.OverlapLabel) {
	tokens := Keywords(generated)
	if len(tokens) == 0 {
		return 0, models.NoMeaningfulTokens
	}

	context := strings.ToLower(strings.Join(chunks, " "))
	matched := 0
	for _, tok := range tokens {
		if strings.Contains(context, tok) {
			matched++
		}
	}
	score := float64(matched) / float64(len(tokens))
	return score, OverlapLabelFor(score)
}

// OverlapLabelFor maps a chunk overlap score to its label
func OverlapLabelFor(score float64) models.OverlapLabel {
	switch {
	case score > strongOverlapThreshold:
		return models.UsedContextStrongly
	case score > partialOverlapThreshold:
		return models.UsedContextPartially
	case score > weakOverlapThreshold:
		return models.UsedContextWeakly
	default:
		return models.IgnoredContextLikely
	}
}
