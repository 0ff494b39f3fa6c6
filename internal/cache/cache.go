// Package cache provides a Redis-backed response cache for proxied dataset
// reads, so repeated dashboard loads don't hammer the backend.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nadmax/profiledash/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "profiledash:response:"

// Cache stores serialized response bodies under request-shaped keys.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(redisAddr string, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &Cache{client: client, ttl: ttl}, nil
}

// Get returns the cached body for key, or ok=false on a miss. Lookup errors
// are reported as misses; the proxy can always fall through to the backend.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache lookup failed for %s: %v", key, err)
		}
		metrics.RecordCacheLookup(false)
		return nil, false
	}

	metrics.RecordCacheLookup(true)
	return data, true
}

// Set stores a response body under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, body []byte) error {
	return c.client.Set(ctx, keyPrefix+key, body, c.ttl).Err()
}

// Invalidate drops every cached response. Called after a mutation that
// changes dataset contents.
func (c *Cache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
