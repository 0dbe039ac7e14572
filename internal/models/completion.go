// ABOUTME: Request shape shared by every completion call site
// ABOUTME: Answer generation and rerank scoring differ only in prompt and temperature
package models

// CompletionRequest is one chat completion: an optional system instruction,
// a single user prompt and the sampling temperature for this call site.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
}
