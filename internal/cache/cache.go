// Package cache stores extraction results in Redis, keyed by document digest
// and extraction settings.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alparslanahmed/vergilevhasi-ocr"
)

const keyPrefix = "vergilevhasi:result"

// Cache wraps a Redis client. A nil Cache, or one without a client, caches
// nothing.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a cache storing entries for ttl. A zero ttl keeps them
// until evicted.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Enabled reports whether results are stored.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Key composes the cache key of a document digest and the settings that
// change the result (engine, strategy, layout, sentinel).
func Key(digest string, settings ...string) string {
	parts := append([]string{keyPrefix, digest}, settings...)
	return strings.Join(parts, ":")
}

// Get loads a cached result. It reports false on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*vergilevhasi.VergiLevhasi, bool, error) {
	if !c.Enabled() {
		return nil, false, nil
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var vl vergilevhasi.VergiLevhasi
	if err := json.Unmarshal(payload, &vl); err != nil {
		return nil, false, err
	}
	return &vl, true, nil
}

// Set stores a result.
func (c *Cache) Set(ctx context.Context, key string, vl *vergilevhasi.VergiLevhasi) error {
	if !c.Enabled() || vl == nil {
		return nil
	}
	raw, err := json.Marshal(vl)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Fetch returns the cached result for key or runs loader and stores what it
// returns. hit reports whether the result came from the cache. Cache errors
// fall through to loader; loader errors are returned and nothing is stored.
func (c *Cache) Fetch(ctx context.Context, key string, loader func(context.Context) (*vergilevhasi.VergiLevhasi, error)) (vl *vergilevhasi.VergiLevhasi, hit bool, err error) {
	if loader == nil {
		return nil, false, errors.New("cache: loader required")
	}
	if cached, ok, err := c.Get(ctx, key); err == nil && ok {
		return cached, true, nil
	}
	vl, err = loader(ctx)
	if err != nil {
		return nil, false, err
	}
	// a failed write only costs the next request a recognition
	_ = c.Set(ctx, key, vl)
	return vl, false, nil
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
