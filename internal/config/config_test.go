// ABOUTME: Tests for centralized configuration system
// ABOUTME: Verifies environment parsing, YAML overlay, validation and required settings
package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harper/forum-rag/internal/models"
)

var allKeys = []string{
	"PINECONE_API_KEY", "INDEX_NAME", "PINECONE_CONTROLLER_URL", "PINECONE_INDEX_HOST",
	"PINECONE_CLOUD", "AWS_REGION", "UPSERT_BATCH_SIZE", "EMBEDDING_MODEL", "EMBEDDING_DIM",
	"EMBEDDING_BASE_URL", "EMBEDDING_API_KEY", "EMBEDDING_CACHE_URL", "S3_BUCKET_NAME", "S3_PREFIX",
	"OPENAI_API_KEY", "COMPLETION_MODEL", "COMPLETION_BASE_URL", "GENERATION_TEMPERATURE",
	"EVAL_TEMPERATURE", "COMPLETION_RPS", "REQUEST_TIMEOUT", "MIN_CONTEXT_CHARS",
	"RERANK_STRATEGY", "EVAL_HISTORY_DB", "LOG_LEVEL",
}

// clearEnv blanks every recognized variable; getEnv treats "" as unset
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.EmbeddingModel != "all-mpnet-base-v2" {
		t.Errorf("EmbeddingModel = %s, want all-mpnet-base-v2", cfg.EmbeddingModel)
	}
	if cfg.EmbeddingDim != 768 {
		t.Errorf("EmbeddingDim = %d, want 768", cfg.EmbeddingDim)
	}
	if cfg.UpsertBatchSize != 100 {
		t.Errorf("UpsertBatchSize = %d, want 100", cfg.UpsertBatchSize)
	}
	if cfg.CompletionModel != "gpt-4" {
		t.Errorf("CompletionModel = %s, want gpt-4", cfg.CompletionModel)
	}
	if cfg.GenerationTemperature != 0.7 {
		t.Errorf("GenerationTemperature = %f, want 0.7", cfg.GenerationTemperature)
	}
	if cfg.EvalTemperature != 0 {
		t.Errorf("EvalTemperature = %f, want 0", cfg.EvalTemperature)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
	if cfg.MinContextChars != 30 {
		t.Errorf("MinContextChars = %d, want 30", cfg.MinContextChars)
	}
	if cfg.RerankStrategy != "embedding" {
		t.Errorf("RerankStrategy = %s, want embedding", cfg.RerankStrategy)
	}
	if cfg.Region != "us-east-1" {
		t.Errorf("Region = %s, want us-east-1", cfg.Region)
	}
	if cfg.S3Prefix != "reddit_data/" {
		t.Errorf("S3Prefix = %s, want reddit_data/", cfg.S3Prefix)
	}
	if !strings.HasSuffix(cfg.HistoryDB, filepath.Join("forumrag", "history.db")) {
		t.Errorf("HistoryDB = %s, want under forumrag/", cfg.HistoryDB)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PINECONE_API_KEY", "pc-key")
	t.Setenv("INDEX_NAME", "lands-between")
	t.Setenv("EMBEDDING_MODEL", "bge-base-en")
	t.Setenv("EMBEDDING_DIM", "1024")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("COMPLETION_MODEL", "gpt-4o-mini")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("UPSERT_BATCH_SIZE", "50")
	t.Setenv("RERANK_STRATEGY", "LLM")
	t.Setenv("COMPLETION_RPS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.PineconeAPIKey != "pc-key" || cfg.IndexName != "lands-between" {
		t.Errorf("store settings = %s/%s", cfg.PineconeAPIKey, cfg.IndexName)
	}
	if cfg.EmbeddingModel != "bge-base-en" || cfg.EmbeddingDim != 1024 {
		t.Errorf("embedding settings = %s/%d", cfg.EmbeddingModel, cfg.EmbeddingDim)
	}
	if cfg.EmbeddingAPIKey != "sk-test" {
		t.Errorf("EmbeddingAPIKey = %s, want fallback to OPENAI_API_KEY", cfg.EmbeddingAPIKey)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if cfg.UpsertBatchSize != 50 {
		t.Errorf("UpsertBatchSize = %d, want 50", cfg.UpsertBatchSize)
	}
	if cfg.RerankStrategy != "llm" {
		t.Errorf("RerankStrategy = %s, want llm", cfg.RerankStrategy)
	}
	if cfg.CompletionRPS != 2.5 {
		t.Errorf("CompletionRPS = %f, want 2.5", cfg.CompletionRPS)
	}
}

func TestLoadFile_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "forumrag.yaml")
	yamlData := `index_name: from-file
embedding_dim: 384
request_timeout: 10s
completion_model: file-model
`
	if err := os.WriteFile(path, []byte(yamlData), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("COMPLETION_MODEL", "env-model")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.IndexName != "from-file" {
		t.Errorf("IndexName = %s, want from-file", cfg.IndexName)
	}
	if cfg.EmbeddingDim != 384 {
		t.Errorf("EmbeddingDim = %d, want 384", cfg.EmbeddingDim)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want 10s", cfg.RequestTimeout)
	}
	if cfg.CompletionModel != "env-model" {
		t.Errorf("CompletionModel = %s, want env-model", cfg.CompletionModel)
	}
	if cfg.UpsertBatchSize != 100 {
		t.Errorf("UpsertBatchSize = %d, want default 100", cfg.UpsertBatchSize)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	clearEnv(t)
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFile() should fail for a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dimension", func(c *Config) { c.EmbeddingDim = 0 }},
		{"batch too large", func(c *Config) { c.UpsertBatchSize = 5000 }},
		{"batch zero", func(c *Config) { c.UpsertBatchSize = 0 }},
		{"temperature too high", func(c *Config) { c.GenerationTemperature = 2.5 }},
		{"negative eval temperature", func(c *Config) { c.EvalTemperature = -0.1 }},
		{"negative rps", func(c *Config) { c.CompletionRPS = -1 }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"unknown strategy", func(c *Config) { c.RerankStrategy = "bm25" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"negative min context", func(c *Config) { c.MinContextChars = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !errors.Is(err, models.ErrConfig) {
				t.Errorf("Validate() error = %v, want ErrConfig", err)
			}
		})
	}

	if err := defaults().Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestValidate_ZeroMinContextAllowed(t *testing.T) {
	cfg := defaults()
	cfg.MinContextChars = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with MinContextChars=0 error = %v", err)
	}
}

func TestRequireStore(t *testing.T) {
	cfg := defaults()
	err := cfg.RequireStore()
	if err == nil {
		t.Fatal("RequireStore() should fail with no key or index")
	}
	if !strings.Contains(err.Error(), "INDEX_NAME") || !strings.Contains(err.Error(), "PINECONE_API_KEY") {
		t.Errorf("error should name both missing settings: %v", err)
	}

	cfg.PineconeAPIKey = "k"
	cfg.IndexName = "i"
	if err := cfg.RequireStore(); err != nil {
		t.Errorf("RequireStore() unexpected error: %v", err)
	}
}

func TestRequireCompletionAndBucket(t *testing.T) {
	cfg := defaults()
	if err := cfg.RequireCompletion(); !errors.Is(err, models.ErrConfig) {
		t.Errorf("RequireCompletion() error = %v, want ErrConfig", err)
	}
	if err := cfg.RequireBucket(); !errors.Is(err, models.ErrConfig) {
		t.Errorf("RequireBucket() error = %v, want ErrConfig", err)
	}
	cfg.OpenAIKey = "sk"
	cfg.S3Bucket = "bucket"
	if err := cfg.RequireCompletion(); err != nil {
		t.Errorf("RequireCompletion() unexpected error: %v", err)
	}
	if err := cfg.RequireBucket(); err != nil {
		t.Errorf("RequireBucket() unexpected error: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if err != nil {
				t.Fatalf("ParseLevel(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
