package intent

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/parlabank/backend/internal/models"
)

// CachedResolver is a read-through Redis cache in front of another resolver.
// Cache failures are logged and the inner resolver is consulted anyway, so a
// flaky Redis only costs latency.
type CachedResolver struct {
	inner Resolver
	rdb   *redis.Client
	ttl   time.Duration
}

func NewCachedResolver(inner Resolver, rdb *redis.Client, ttl time.Duration) *CachedResolver {
	return &CachedResolver{inner: inner, rdb: rdb, ttl: ttl}
}

func cacheKey(text string) string {
	return "intent:" + strings.ToLower(strings.TrimSpace(text))
}

func (c *CachedResolver) Resolve(ctx context.Context, text string) (models.Intent, error) {
	key := cacheKey(text)

	if raw, err := c.rdb.Get(ctx, key).Result(); err == nil {
		var cached models.Intent
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
		log.Printf("[INTENT] dropping undecodable cache entry for %q", key)
	} else if err != redis.Nil {
		log.Printf("[INTENT] cache read failed: %v", err)
	}

	resolved, err := c.inner.Resolve(ctx, text)
	if err != nil {
		return resolved, err
	}

	if raw, err := json.Marshal(resolved); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			log.Printf("[INTENT] cache write failed: %v", err)
		}
	}
	return resolved, nil
}
