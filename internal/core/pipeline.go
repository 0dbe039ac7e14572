// ABOUTME: Pipeline answers a user query end to end: retrieve, then generate
// ABOUTME: Shared by the ask command and the MCP ask tool
package core

import (
	"context"

	"github.com/harper/forum-rag/internal/models"
)

// AskResult carries the generated answer with the retrieval that grounded it
type AskResult struct {
	Query     string           `json:"query"`
	Answer    Answer           `json:"answer"`
	Retrieval models.Retrieval `json:"retrieval"`
}

// Pipeline wires a Retriever to a Generator
type Pipeline struct {
	retriever *Retriever
	generator *Generator
}

// NewPipeline creates a new Pipeline
func NewPipeline(retriever *Retriever, generator *Generator) *Pipeline {
	return &Pipeline{retriever: retriever, generator: generator}
}

// Ask retrieves context and generates an answer. Retrieval failures are
// returned to the caller; generation failures surface in the answer text.
func (p *Pipeline) Ask(ctx context.Context, query string, topK int, rerank bool) (AskResult, error) {
	retrieval, err := p.retriever.Retrieve(ctx, query, topK, rerank)
	if err != nil {
		return AskResult{Query: query}, err
	}
	return AskResult{
		Query:     query,
		Answer:    p.generator.Generate(ctx, query, retrieval.Documents()),
		Retrieval: retrieval,
	}, nil
}

// Retriever returns the underlying retriever
func (p *Pipeline) Retriever() *Retriever {
	return p.retriever
}
