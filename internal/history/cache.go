package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// CacheTTL is how long a cached LLM response stays valid.
	CacheTTL = 24 * time.Hour

	// cacheVersion namespaces keys so a format change invalidates old entries.
	cacheVersion = "v1"
)

// ResponseCache stores full LLM responses keyed by (query, system prompt).
// Only first-turn queries are cached — once a session has history the same
// words can mean something different.
type ResponseCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResponseCache creates a cache on an existing Redis client.
func NewResponseCache(rdb *redis.Client) *ResponseCache {
	return &ResponseCache{rdb: rdb, ttl: CacheTTL}
}

// key derives the namespaced cache key from query and system prompt.
func (c *ResponseCache) key(query, systemPrompt string) string {
	sum := sha256.Sum256([]byte(query + ":" + systemPrompt))
	return fmt.Sprintf("cache:%s:%s", cacheVersion, hex.EncodeToString(sum[:]))
}

// Get returns the cached response for (query, systemPrompt) and whether it
// was found. Backend errors are reported as a miss with the error attached;
// callers treat the cache as best-effort.
func (c *ResponseCache) Get(ctx context.Context, query, systemPrompt string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, c.key(query, systemPrompt)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("history: cache get: %w", err)
	}
	return val, true, nil
}

// Set stores a response under (query, systemPrompt) with the cache TTL.
func (c *ResponseCache) Set(ctx context.Context, query, systemPrompt, response string) error {
	if err := c.rdb.Set(ctx, c.key(query, systemPrompt), response, c.ttl).Err(); err != nil {
		return fmt.Errorf("history: cache set: %w", err)
	}
	return nil
}
