package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.QueryCache = (*QueryCache)(nil)

const cachePrefix = "ragcore:query:"

// QueryCache implements driven.QueryCache using Redis with per-key TTL.
// It is strictly best-effort: every Redis failure is logged and swallowed,
// because a search that skips the cache is correct, just slower.
type QueryCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewQueryCache creates a new Redis-backed QueryCache
func NewQueryCache(client *redis.Client, logger *slog.Logger) *QueryCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryCache{client: client, logger: logger}
}

// Get returns the cached result for the key, or (nil, false) on a miss.
func (c *QueryCache) Get(ctx context.Context, key string) (*domain.QueryResult, bool) {
	data, err := c.client.Get(ctx, cachePrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("query cache get failed", "error", err)
		return nil, false
	}

	var result domain.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("query cache entry corrupt, dropping", "key", key, "error", err)
		c.client.Del(ctx, cachePrefix+key)
		return nil, false
	}
	return &result, true
}

// Set stores a result under the key for the given TTL.
func (c *QueryCache) Set(ctx context.Context, key string, result *domain.QueryResult, ttl time.Duration) {
	if result == nil || ttl <= 0 {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("query cache marshal failed", "error", err)
		return
	}

	if err := c.client.Set(ctx, cachePrefix+key, data, ttl).Err(); err != nil {
		c.logger.Warn("query cache set failed", "error", err)
	}
}

// Ping checks if the Redis backend is healthy.
func (c *QueryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
