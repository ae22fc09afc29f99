package cache

import (
	"context"
	"errors"
	"time"

	"crates/logger"

	"github.com/go-redis/redis/v8"
)

// ResponseCache stores raw upstream response bodies under a key prefix.
// A nil *ResponseCache is valid and never hits.
type ResponseCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewResponseCache returns nil when client is nil or ttl is not positive.
func NewResponseCache(client *redis.Client, prefix string, ttl time.Duration) *ResponseCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &ResponseCache{client: client, prefix: prefix, ttl: ttl}
}

// Get returns the cached body and whether it was found. Redis failures are
// logged and reported as a miss.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("[ResponseCache] get failed", logger.String("key", key), logger.ErrorField(err))
		}
		return nil, false
	}
	return data, true
}

// Set stores body for the configured TTL.
func (c *ResponseCache) Set(ctx context.Context, key string, body []byte) {
	if c == nil {
		return
	}

	if err := c.client.Set(ctx, c.prefix+key, body, c.ttl).Err(); err != nil {
		logger.Warn("[ResponseCache] set failed",
			logger.String("key", key),
			logger.Int("size", len(body)),
			logger.ErrorField(err))
	}
}
