// Package cache holds hot-path lookups for the commission pipeline. Values
// live in redis when it is configured and in process memory otherwise.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// New returns a redis-backed cache when client is non-nil and an in-memory
// TTL cache otherwise.
func New[V any](client *redis.Client, prefix string) Cache[V] {
	if client == nil {
		return NewTTLCache[V]()
	}
	return &redisCache[V]{client: client, prefix: prefix}
}

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

type ttlCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]ttlEntry[V]
	now     func() time.Time
}

func NewTTLCache[V any]() Cache[V] {
	return &ttlCache[V]{entries: make(map[string]ttlEntry[V]), now: time.Now}
}

func (c *ttlCache[V]) Get(_ context.Context, key string) (V, bool) {
	var zero V
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return zero, false
	}
	return entry.value, true
}

func (c *ttlCache[V]) Set(_ context.Context, key string, value V, ttl time.Duration) {
	entry := ttlEntry[V]{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

func (c *ttlCache[V]) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// redisCache stores JSON documents. Redis errors degrade to a miss.
type redisCache[V any] struct {
	client *redis.Client
	prefix string
}

func (c *redisCache[V]) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

func (c *redisCache[V]) Get(ctx context.Context, key string) (V, bool) {
	var value V
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return value, false
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false
	}
	return value, true
}

func (c *redisCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(key), raw, ttl).Err()
}

func (c *redisCache[V]) Delete(ctx context.Context, key string) {
	_ = c.client.Del(ctx, c.key(key)).Err()
}
