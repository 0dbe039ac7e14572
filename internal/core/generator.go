// ABOUTME: AnswerGenerator builds grounded or knowledge-only prompts and calls the completion service
// ABOUTME: The answer text is always populated, falling back to a visible error message
package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harper/forum-rag/internal/models"
)

// SystemPrompt instructs the model to prefer supplied context
const SystemPrompt = "You are a helpful assistant. Use the provided context when available to answer questions accurately."

// Answer is the outcome of one generation call
type Answer struct {
	Text string `json:"text"`
	// Fallback is set when no context was supplied
	Fallback bool `json:"fallback"`
	// Failed is set when Text carries a completion error instead of an answer
	Failed bool `json:"failed,omitempty"`
}

// Generator produces answers at a fixed temperature
type Generator struct {
	completer   Completer
	temperature float64
	logger      *slog.Logger
}

// NewGenerator creates a Generator. User-facing callers use a moderate
// temperature; evaluation uses 0.
func NewGenerator(completer Completer, temperature float64, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{completer: completer, temperature: temperature, logger: logger}
}

// GroundedPrompt embeds the context chunks, separated by blank lines
func GroundedPrompt(query string, chunks []string) string {
	return fmt.Sprintf("Question: %s\n\nContext:\n%s\n\nAnswer:", query, strings.Join(chunks, "\n\n"))
}

// FallbackPrompt asks for an answer from the model's own knowledge
func FallbackPrompt(query string) string {
	return fmt.Sprintf("Question: %s\n\nPlease provide a helpful answer based on your knowledge.", query)
}

// Generate answers query using chunks as context, or without context when
// chunks is empty. It never returns an empty answer slot.
func (g *Generator) Generate(ctx context.Context, query string, chunks []string) Answer {
	answer := Answer{Fallback: len(chunks) == 0}

	prompt := FallbackPrompt(query)
	if !answer.Fallback {
		prompt = GroundedPrompt(query, chunks)
	}

	text, err := g.completer.Complete(ctx, models.CompletionRequest{
		System:      SystemPrompt,
		Prompt:      prompt,
		Temperature: g.temperature,
	})
	if err != nil {
		g.logger.Error("answer generation failed", "error", err)
		answer.Text = fmt.Sprintf("Error generating answer: %v", err)
		answer.Failed = true
		return answer
	}

	answer.Text = strings.TrimSpace(text)
	return answer
}
