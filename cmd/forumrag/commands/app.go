// ABOUTME: Builds the pipeline components commands share from configuration
// ABOUTME: Each component is constructed on first use and closed with the app
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harper/forum-rag/internal/config"
	"github.com/harper/forum-rag/internal/core"
	"github.com/harper/forum-rag/internal/llm"
	"github.com/harper/forum-rag/internal/storage"
	"github.com/harper/forum-rag/internal/storage/sqlite"
)

// lifetime of cached embeddings in Redis
const embeddingCacheTTL = 7 * 24 * time.Hour

// app holds the configuration and lazily built clients for one command run
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	embedder  *llm.EmbeddingClient
	index     *storage.PineconeIndex
	completer *llm.OpenAIClient
	closers   []func() error
}

// newApp loads .env and configuration and sets up logging
func newApp(cmd *cobra.Command) (*app, error) {
	// .env is optional; the process environment is used as is without one
	_ = godotenv.Load()

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return &app{cfg: cfg, logger: logger}, nil
}

// newLogger builds a text logger; the verbosity flags override the level
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	switch {
	case verbose:
		lvl = slog.LevelDebug
	case quiet:
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// Close releases every opened resource
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Embedder returns the embedding client, backed by Redis when configured
func (a *app) Embedder() (*llm.EmbeddingClient, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}

	var cache llm.EmbeddingCache
	if a.cfg.EmbeddingCache != "" {
		redisCache, err := storage.NewRedisEmbeddingCache(a.cfg.EmbeddingCache, embeddingCacheTTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, redisCache.Close)
		cache = redisCache
	}

	embedder, err := llm.NewEmbeddingClient(llm.EmbeddingConfig{
		APIKey:    a.cfg.EmbeddingAPIKey,
		BaseURL:   a.cfg.EmbeddingBaseURL,
		Model:     a.cfg.EmbeddingModel,
		Dimension: a.cfg.EmbeddingDim,
		Timeout:   a.cfg.RequestTimeout,
	}, cache, a.logger)
	if err != nil {
		return nil, err
	}
	a.embedder = embedder
	return embedder, nil
}

// Index returns the Pinecone client for the configured index
func (a *app) Index() (*storage.PineconeIndex, error) {
	if a.index != nil {
		return a.index, nil
	}
	if err := a.cfg.RequireStore(); err != nil {
		return nil, err
	}
	index, err := storage.NewPineconeIndex(storage.PineconeConfig{
		APIKey:        a.cfg.PineconeAPIKey,
		IndexName:     a.cfg.IndexName,
		ControllerURL: a.cfg.PineconeControllerURL,
		Host:          a.cfg.PineconeIndexHost,
		Cloud:         a.cfg.PineconeCloud,
		Region:        a.cfg.Region,
		BatchSize:     a.cfg.UpsertBatchSize,
		Timeout:       a.cfg.RequestTimeout,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.index = index
	a.closers = append(a.closers, index.Close)
	return index, nil
}

// Completer returns the chat completion client
func (a *app) Completer() (*llm.OpenAIClient, error) {
	if a.completer != nil {
		return a.completer, nil
	}
	if err := a.cfg.RequireCompletion(); err != nil {
		return nil, err
	}
	completer, err := llm.NewOpenAIClientWithConfig(&llm.ClientConfig{
		APIKey:            a.cfg.OpenAIKey,
		ChatModel:         a.cfg.CompletionModel,
		BaseURL:           a.cfg.CompletionBaseURL,
		Timeout:           a.cfg.RequestTimeout,
		RequestsPerSecond: a.cfg.CompletionRPS,
	})
	if err != nil {
		return nil, err
	}
	a.completer = completer
	return completer, nil
}

// Retriever builds a retriever using the configured rerank strategy
func (a *app) Retriever() (*core.Retriever, error) {
	embedder, err := a.Embedder()
	if err != nil {
		return nil, err
	}
	index, err := a.Index()
	if err != nil {
		return nil, err
	}

	var reranker core.Reranker
	if a.cfg.RerankStrategy == config.RerankStrategyLLM {
		completer, err := a.Completer()
		if err != nil {
			return nil, err
		}
		reranker = core.NewLLMReranker(completer, a.cfg.EvalTemperature, a.logger)
	}
	return core.NewRetriever(embedder, index, reranker, a.logger), nil
}

// Pipeline builds the retrieve-then-generate pipeline at the given temperature
func (a *app) Pipeline(temperature float64) (*core.Pipeline, error) {
	retriever, err := a.Retriever()
	if err != nil {
		return nil, err
	}
	completer, err := a.Completer()
	if err != nil {
		return nil, err
	}
	return core.NewPipeline(retriever, core.NewGenerator(completer, temperature, a.logger)), nil
}

// Objects returns a local directory store when dir is set, otherwise S3
func (a *app) Objects(ctx context.Context, dir string) (core.ObjectStore, error) {
	if dir != "" {
		return storage.NewDirObjectStore(dir), nil
	}
	if err := a.cfg.RequireBucket(); err != nil {
		return nil, err
	}
	store, err := storage.NewS3ObjectStore(ctx, a.cfg.S3Bucket, a.cfg.Region)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// History opens the evaluation history database
func (a *app) History() (*sqlite.HistoryStore, error) {
	db, err := sqlite.Open(a.cfg.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("opening evaluation history: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	return sqlite.NewHistoryStore(db), nil
}
