package cooldown

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultKeyPrefix namespaces cooldown keys in a shared Redis.
const DefaultKeyPrefix = "signalrun:cooldown:"

// RedisStore persists cooldown windows in Redis so a restarted scanner does
// not re-fire inside an unexpired window. Values are expiry timestamps in
// unix milliseconds; the entry TTL matches the window so Redis cleans up
// after itself.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore wraps an existing client. An empty prefix falls back to
// DefaultKeyPrefix.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key string) (time.Time, error) {
	val, err := r.client.Get(ctx, r.keyPrefix+key).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("cooldown get %s: %w", key, err)
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("cooldown entry %s is corrupt: %w", key, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, key string, until time.Time, ttl time.Duration) error {
	val := strconv.FormatInt(until.UnixMilli(), 10)
	if err := r.client.Set(ctx, r.keyPrefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("cooldown set %s: %w", key, err)
	}
	return nil
}

// Ping verifies connectivity, used by startup checks and /health.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
