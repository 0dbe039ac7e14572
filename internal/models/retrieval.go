// ABOUTME: Retrieval results returned to generation and evaluation
// ABOUTME: Keeps documents and both score lists co-indexed by construction
package models

// QueryResult is one retrieval hit
type QueryResult struct {
	ID            string  `json:"id"`
	Text          string  `json:"text"`
	OriginalScore float64 `json:"original_score"`
	RerankedScore float64 `json:"reranked_score"`
	// RerankFailed marks a hit whose relevance judgment could not be obtained
	// or parsed; its RerankedScore is 0.
	RerankFailed bool `json:"rerank_failed,omitempty"`
}

// Retrieval is the ordered result of a retrieve call
type Retrieval struct {
	Results  []QueryResult `json:"results"`
	Reranked bool          `json:"reranked"`
}

// Documents returns the hit texts in rank order
func (r Retrieval) Documents() []string {
	out := make([]string, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Text
	}
	return out
}

// OriginalScores returns the store similarity scores in rank order
func (r Retrieval) OriginalScores() []float64 {
	out := make([]float64, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.OriginalScore
	}
	return out
}

// RerankedScores returns the refined scores in rank order
func (r Retrieval) RerankedScores() []float64 {
	out := make([]float64, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.RerankedScore
	}
	return out
}

// Empty reports whether nothing usable was retrieved
func (r Retrieval) Empty() bool {
	return len(r.Results) == 0
}
