// ABOUTME: Centralized configuration for the forum RAG pipeline
// ABOUTME: Loads from an optional YAML file and environment variables with validation and defaults
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/harper/forum-rag/internal/models"
)

// Defaults for optional settings
const (
	DefaultControllerURL     = "https://api.pinecone.io"
	DefaultCloud             = "aws"
	DefaultRegion            = "us-east-1"
	DefaultEmbeddingModel    = "all-mpnet-base-v2"
	DefaultEmbeddingDim      = 768
	DefaultEmbeddingBaseURL  = "http://localhost:8080/v1"
	DefaultS3Prefix          = "reddit_data/"
	DefaultCompletionModel   = "gpt-4"
	DefaultGenerationTemp    = 0.7
	DefaultEvalTemp          = 0.0
	DefaultRequestTimeout    = 30 * time.Second
	DefaultUpsertBatchSize   = 100
	DefaultMinContextChars   = 30
	DefaultRerankStrategy    = "embedding"
	RerankStrategyEmbedding  = "embedding"
	RerankStrategyLLM        = "llm"
	defaultHistoryDBRelPath  = "forumrag/history.db"
	maxUpsertBatchSize       = 1000
	maxCompletionTemperature = 2.0
	defaultLogLevel          = "info"
)

// Config holds all configuration for the pipeline
type Config struct {
	// Vector store
	PineconeAPIKey        string `yaml:"pinecone_api_key"`
	IndexName             string `yaml:"index_name"`
	PineconeControllerURL string `yaml:"pinecone_controller_url"`
	PineconeIndexHost     string `yaml:"pinecone_index_host"`
	PineconeCloud         string `yaml:"pinecone_cloud"`
	Region                string `yaml:"region"`
	UpsertBatchSize       int    `yaml:"upsert_batch_size"`

	// Embedding model
	EmbeddingModel   string `yaml:"embedding_model"`
	EmbeddingDim     int    `yaml:"embedding_dim"`
	EmbeddingBaseURL string `yaml:"embedding_base_url"`
	EmbeddingAPIKey  string `yaml:"embedding_api_key"`
	EmbeddingCache   string `yaml:"embedding_cache_url"`

	// Object storage
	S3Bucket string `yaml:"s3_bucket_name"`
	S3Prefix string `yaml:"s3_prefix"`

	// Completion service
	OpenAIKey             string  `yaml:"openai_api_key"`
	CompletionModel       string  `yaml:"completion_model"`
	CompletionBaseURL     string  `yaml:"completion_base_url"`
	GenerationTemperature float64 `yaml:"generation_temperature"`
	EvalTemperature       float64 `yaml:"eval_temperature"`
	CompletionRPS         float64 `yaml:"completion_rps"`

	// Pipeline behavior
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MinContextChars int           `yaml:"min_context_chars"`
	RerankStrategy  string        `yaml:"rerank_strategy"`
	HistoryDB       string        `yaml:"eval_history_db"`
	LogLevel        string        `yaml:"log_level"`
}

// Load reads configuration from environment variables only
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads the YAML file at path (if non-empty), then applies environment
// variables on top. Environment values win over file values.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func defaults() *Config {
	return &Config{
		PineconeControllerURL: DefaultControllerURL,
		PineconeCloud:         DefaultCloud,
		Region:                DefaultRegion,
		UpsertBatchSize:       DefaultUpsertBatchSize,
		EmbeddingModel:        DefaultEmbeddingModel,
		EmbeddingDim:          DefaultEmbeddingDim,
		EmbeddingBaseURL:      DefaultEmbeddingBaseURL,
		S3Prefix:              DefaultS3Prefix,
		CompletionModel:       DefaultCompletionModel,
		GenerationTemperature: DefaultGenerationTemp,
		EvalTemperature:       DefaultEvalTemp,
		RequestTimeout:        DefaultRequestTimeout,
		MinContextChars:       DefaultMinContextChars,
		RerankStrategy:        DefaultRerankStrategy,
		HistoryDB:             filepath.Join(xdg.DataHome, defaultHistoryDBRelPath),
		LogLevel:              defaultLogLevel,
	}
}

func (c *Config) applyEnv() {
	c.PineconeAPIKey = getEnv("PINECONE_API_KEY", c.PineconeAPIKey)
	c.IndexName = getEnv("INDEX_NAME", c.IndexName)
	c.PineconeControllerURL = getEnv("PINECONE_CONTROLLER_URL", c.PineconeControllerURL)
	c.PineconeIndexHost = getEnv("PINECONE_INDEX_HOST", c.PineconeIndexHost)
	c.PineconeCloud = getEnv("PINECONE_CLOUD", c.PineconeCloud)
	c.Region = getEnv("AWS_REGION", c.Region)
	c.UpsertBatchSize = getEnvInt("UPSERT_BATCH_SIZE", c.UpsertBatchSize)

	c.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.EmbeddingModel)
	c.EmbeddingDim = getEnvInt("EMBEDDING_DIM", c.EmbeddingDim)
	c.EmbeddingBaseURL = getEnv("EMBEDDING_BASE_URL", c.EmbeddingBaseURL)
	c.EmbeddingCache = getEnv("EMBEDDING_CACHE_URL", c.EmbeddingCache)

	c.S3Bucket = getEnv("S3_BUCKET_NAME", c.S3Bucket)
	c.S3Prefix = getEnv("S3_PREFIX", c.S3Prefix)

	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.EmbeddingAPIKey = getEnv("EMBEDDING_API_KEY", c.EmbeddingAPIKey)
	if c.EmbeddingAPIKey == "" {
		c.EmbeddingAPIKey = c.OpenAIKey
	}
	c.CompletionModel = getEnv("COMPLETION_MODEL", c.CompletionModel)
	c.CompletionBaseURL = getEnv("COMPLETION_BASE_URL", c.CompletionBaseURL)
	c.GenerationTemperature = getEnvFloat("GENERATION_TEMPERATURE", c.GenerationTemperature)
	c.EvalTemperature = getEnvFloat("EVAL_TEMPERATURE", c.EvalTemperature)
	c.CompletionRPS = getEnvFloat("COMPLETION_RPS", c.CompletionRPS)

	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)
	c.MinContextChars = getEnvInt("MIN_CONTEXT_CHARS", c.MinContextChars)
	c.RerankStrategy = strings.ToLower(getEnv("RERANK_STRATEGY", c.RerankStrategy))
	c.HistoryDB = getEnv("EVAL_HISTORY_DB", c.HistoryDB)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
}

// Validate checks ranges and enums of optional settings
func (c *Config) Validate() error {
	var errs []error
	if c.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim))
	}
	if c.UpsertBatchSize < 1 || c.UpsertBatchSize > maxUpsertBatchSize {
		errs = append(errs, fmt.Errorf("UPSERT_BATCH_SIZE must be 1-%d, got %d", maxUpsertBatchSize, c.UpsertBatchSize))
	}
	if c.GenerationTemperature < 0 || c.GenerationTemperature > maxCompletionTemperature {
		errs = append(errs, fmt.Errorf("GENERATION_TEMPERATURE must be 0-2, got %f", c.GenerationTemperature))
	}
	if c.EvalTemperature < 0 || c.EvalTemperature > maxCompletionTemperature {
		errs = append(errs, fmt.Errorf("EVAL_TEMPERATURE must be 0-2, got %f", c.EvalTemperature))
	}
	if c.CompletionRPS < 0 {
		errs = append(errs, fmt.Errorf("COMPLETION_RPS must not be negative, got %f", c.CompletionRPS))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %v", c.RequestTimeout))
	}
	if c.MinContextChars < 0 {
		errs = append(errs, fmt.Errorf("MIN_CONTEXT_CHARS must not be negative, got %d", c.MinContextChars))
	}
	if c.RerankStrategy != RerankStrategyEmbedding && c.RerankStrategy != RerankStrategyLLM {
		errs = append(errs, fmt.Errorf("RERANK_STRATEGY must be %q or %q, got %q",
			RerankStrategyEmbedding, RerankStrategyLLM, c.RerankStrategy))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", models.ErrConfig, errors.Join(errs...))
	}
	return nil
}

// RequireStore fails fast when vector store settings are missing
func (c *Config) RequireStore() error {
	return require(map[string]string{
		"PINECONE_API_KEY": c.PineconeAPIKey,
		"INDEX_NAME":       c.IndexName,
	})
}

// RequireCompletion fails fast when the completion service is not configured
func (c *Config) RequireCompletion() error {
	return require(map[string]string{"OPENAI_API_KEY": c.OpenAIKey})
}

// RequireBucket fails fast when object storage is not configured
func (c *Config) RequireBucket() error {
	return require(map[string]string{"S3_BUCKET_NAME": c.S3Bucket})
}

func require(values map[string]string) error {
	var missing []string
	for name, v := range values {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%w: missing required setting(s): %s", models.ErrConfig, strings.Join(missing, ", "))
}

// ParseLevel maps a LOG_LEVEL value to a slog level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", s)
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
