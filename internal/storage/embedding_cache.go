// ABOUTME: Redis-backed embedding cache so repeated texts skip the embedding endpoint
// ABOUTME: Vectors are stored as JSON under a prefixed key with an optional TTL
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harper/forum-rag/internal/llm"
)

const embeddingKeyPrefix = "forumrag:embedding:"

// Verify interface compliance
var _ llm.EmbeddingCache = (*RedisEmbeddingCache)(nil)

// RedisEmbeddingCache stores embedding vectors in Redis
type RedisEmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEmbeddingCache creates a cache from a redis:// URL
func NewRedisEmbeddingCache(url string, ttl time.Duration) (*RedisEmbeddingCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid embedding cache URL: %w", err)
	}
	return NewRedisEmbeddingCacheWithClient(redis.NewClient(opts), ttl), nil
}

// NewRedisEmbeddingCacheWithClient wraps an existing client
func NewRedisEmbeddingCacheWithClient(client *redis.Client, ttl time.Duration) *RedisEmbeddingCache {
	return &RedisEmbeddingCache{client: client, ttl: ttl}
}

// Ping checks the server is reachable
func (c *RedisEmbeddingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the cached vector for key, if present
func (c *RedisEmbeddingCache) Get(ctx context.Context, key string) ([]float64, bool, error) {
	data, err := c.client.Get(ctx, embeddingKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding: %w", err)
	}

	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false, fmt.Errorf("failed to decode embedding: %w", err)
	}
	return vec, true, nil
}

// Set stores vec under key
func (c *RedisEmbeddingCache) Set(ctx context.Context, key string, vec []float64) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	if err := c.client.Set(ctx, embeddingKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set embedding: %w", err)
	}
	return nil
}

// Close releases the client
func (c *RedisEmbeddingCache) Close() error {
	return c.client.Close()
}
