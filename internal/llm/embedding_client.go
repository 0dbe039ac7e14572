// ABOUTME: Embedding client for an OpenAI-compatible sentence-embedding endpoint
// ABOUTME: Initializes lazily once, checks the output dimension and optionally caches vectors
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/harper/forum-rag/internal/core"
	"github.com/harper/forum-rag/internal/models"
)

const dimensionCheckText = "dimension check"

// Verify interface compliance
var _ core.Embedder = (*EmbeddingClient)(nil)

// EmbeddingCache stores vectors by key
type EmbeddingCache interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) ([]float64, bool, error)
	Set(ctx context.Context, key string, vec []float64) error
}

// EmbeddingConfig holds configuration for the embedding client
type EmbeddingConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// EmbeddingClient embeds text with a fixed-dimension model
type EmbeddingClient struct {
	client    *openai.Client
	model     string
	dimension int
	timeout   time.Duration
	cache     EmbeddingCache
	logger    *slog.Logger

	initOnce sync.Once
	initErr  error
}

// NewEmbeddingClient creates an embedding client. No request is made until
// the first Embed call. cache may be nil.
func NewEmbeddingClient(config EmbeddingConfig, cache EmbeddingCache, logger *slog.Logger) (*EmbeddingClient, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("%w: embedding model is required", models.ErrConfig)
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive", models.ErrConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &EmbeddingClient{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     config.Model,
		dimension: config.Dimension,
		timeout:   timeout,
		cache:     cache,
		logger:    logger,
	}, nil
}

// Model returns the embedding model name
func (e *EmbeddingClient) Model() string {
	return e.model
}

// Dimension returns the configured output dimension
func (e *EmbeddingClient) Dimension() int {
	return e.dimension
}

// Embed returns the vector for text. The first call verifies the model is
// reachable and produces vectors of the configured dimension; if that fails
// every call returns models.ErrModelLoad.
func (e *EmbeddingClient) Embed(ctx context.Context, text string) ([]float64, error) {
	e.initOnce.Do(func() { e.initErr = e.load(ctx) })
	if e.initErr != nil {
		return nil, e.initErr
	}

	key := e.cacheKey(text)
	if e.cache != nil {
		vec, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.Warn("embedding cache read failed", "error", err)
		} else if ok && len(vec) == e.dimension {
			return vec, nil
		}
	}

	vec, err := e.encode(ctx, text)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, vec); err != nil {
			e.logger.Warn("embedding cache write failed", "error", err)
		}
	}
	return vec, nil
}

func (e *EmbeddingClient) load(ctx context.Context) error {
	if e.cache != nil {
		if err := e.cache.Ping(ctx); err != nil {
			return fmt.Errorf("%w: embedding cache unreachable: %w", models.ErrModelLoad, err)
		}
	}
	if _, err := e.encode(ctx, dimensionCheckText); err != nil {
		return fmt.Errorf("%w: %s: %w", models.ErrModelLoad, e.model, err)
	}
	e.logger.Debug("embedding model ready", "model", e.model, "dimension", e.dimension)
	return nil
}

func (e *EmbeddingClient) encode(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, classifyEmbedError(err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", models.ErrEncoding)
	}

	// Convert []float32 to []float64
	embedding32 := resp.Data[0].Embedding
	if len(embedding32) != e.dimension {
		return nil, fmt.Errorf("%w: dimension mismatch: expected %d, got %d", models.ErrEncoding, e.dimension, len(embedding32))
	}
	embedding64 := make([]float64, len(embedding32))
	for i, v := range embedding32 {
		embedding64[i] = float64(v)
	}
	return embedding64, nil
}

func (e *EmbeddingClient) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return e.model + ":" + hex.EncodeToString(sum[:])
}

// classifyEmbedError tags a client error with ErrEncoding when the endpoint
// rejected the input (4xx other than 408 and 429) and with
// ErrEmbeddingUnavailable for rate limits, server errors and transport failures
func classifyEmbedError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", models.ErrEncoding, err)
	}
	return fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
}
