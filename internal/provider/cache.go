package provider

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache stores raw market-data responses for their TTL. Implementations
// must be safe for concurrent use. A cache failure is a miss, never an
// error surfaced to the scan.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type memoryCacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache with a background janitor.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache starts a cache whose janitor sweeps expired entries every
// sweep interval. Close releases the janitor.
func NewMemoryCache(sweep time.Duration) *MemoryCache {
	if sweep <= 0 {
		sweep = time.Minute
	}
	c := &MemoryCache{
		entries: make(map[string]memoryCacheEntry),
		stop:    make(chan struct{}),
	}
	go c.janitor(sweep)
	return c
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = memoryCacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Len returns the live entry count, expired entries excluded.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := time.Now()
	n := 0
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// Close stops the janitor.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) janitor(sweep time.Duration) {
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for k, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// RedisCache shares responses across processes. Keys are namespaced so the
// scanner coexists with other users of the instance.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// DefaultCachePrefix namespaces market-data cache keys.
const DefaultCachePrefix = "signalrun:md:"

// NewRedisCache wraps an existing v9 client.
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = DefaultCachePrefix
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

// Get implements Cache. Errors count as misses and are logged at debug
// because a cold read is the normal fallback path.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("redis cache read failed")
		return nil, false
	}
	return val, true
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("redis cache write failed")
	}
}

// Ping verifies connectivity for startup checks and /health.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
