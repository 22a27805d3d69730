package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ContextCache provides Redis-based caching for market context
type ContextCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewContextCache creates a Redis-backed context cache.
// If client is nil, returns nil (Redis support is optional).
func NewContextCache(client *redis.Client, ttl time.Duration) *ContextCache {
	if client == nil {
		return nil
	}

	if ttl == 0 {
		ttl = 60 * time.Second
	}

	return &ContextCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a cached market context.
// Returns nil and false on miss or on any cache error.
func (c *ContextCache) Get(ctx context.Context, symbol, timeframe string) (*Context, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	key := c.buildKey(symbol, timeframe)

	// Short timeout so a slow cache never blocks a cycle
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	cached, err := c.client.Get(cacheCtx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Debug().
				Err(err).
				Str("key", key).
				Msg("Redis get error - treating as cache miss")
		}
		return nil, false
	}

	var mc Context
	if err := json.Unmarshal([]byte(cached), &mc); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to unmarshal cached market context")
		return nil, false
	}

	log.Debug().
		Str("symbol", symbol).
		Str("timeframe", timeframe).
		Msg("Cache hit for market context")

	return &mc, true
}

// Set stores a market context asynchronously. Cache failures are logged
// and never surface to the caller.
func (c *ContextCache) Set(ctx context.Context, mc *Context) {
	if c == nil || c.client == nil || mc == nil {
		return
	}

	data, err := json.Marshal(mc)
	if err != nil {
		log.Warn().
			Err(err).
			Str("symbol", mc.Symbol).
			Msg("Failed to marshal market context for cache")
		return
	}

	key := c.buildKey(mc.Symbol, mc.Timeframe)

	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := c.client.Set(cacheCtx, key, data, c.ttl).Err(); err != nil {
			log.Warn().
				Err(err).
				Str("key", key).
				Msg("Failed to cache market context")
		}
	}()
}

// Delete removes a cached context
func (c *ContextCache) Delete(ctx context.Context, symbol, timeframe string) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := c.client.Del(cacheCtx, c.buildKey(symbol, timeframe)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key: %w", err)
	}

	return nil
}

// Health checks if the Redis connection is healthy
func (c *ContextCache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(cacheCtx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	return nil
}

func (c *ContextCache) buildKey(symbol, timeframe string) string {
	return fmt.Sprintf("tradepilot:market:ctx:%s:%s", symbol, timeframe)
}
