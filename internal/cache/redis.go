package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/focus-companion/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces cache keys in a shared Redis database.
const DefaultRedisPrefix = "focus:ai_cache:"

// RedisBackend stores entries as JSON strings. Redis expires keys at the
// entry's TTL; the logical expiry check in ResponseCache still applies.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBackend creates a Redis backend. An empty prefix uses DefaultRedisPrefix.
func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) redisKey(key string) string {
	return b.prefix + key
}

// Get loads the entry stored under key.
func (b *RedisBackend) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	data, err := b.client.Get(ctx, b.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var e models.CacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &e, nil
}

// Set writes entry with a Redis expiry matching its TTL. An entry that can never
// be live is not written and any previous value is removed.
func (b *RedisBackend) Set(ctx context.Context, entry *models.CacheEntry) error {
	if entry.TTL <= 0 {
		if err := b.client.Del(ctx, b.redisKey(entry.Key)).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := b.client.Set(ctx, b.redisKey(entry.Key), data, entry.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key.
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	n, err := b.client.Del(ctx, b.redisKey(key)).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteIfExpired removes key inside a WATCH transaction. If the key is
// rewritten between the read and the delete, the transaction aborts and the
// new entry stays.
func (b *RedisBackend) DeleteIfExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	rk := b.redisKey(key)
	deleted := false
	err := b.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, rk).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var e models.CacheEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("decode cache entry: %w", err)
		}
		if !e.Expired(now) {
			return nil
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, rk)
			return nil
		}); err != nil {
			return err
		}
		deleted = true
		return nil
	}, rk)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis conditional delete: %w", err)
	}
	return deleted, nil
}

// List scans the prefix and returns every decodable entry.
func (b *RedisBackend) List(ctx context.Context) ([]*models.CacheEntry, error) {
	keys, err := b.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	out := make([]*models.CacheEntry, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		var e models.CacheEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		out = append(out, &e)
	}
	return out, nil
}

func (b *RedisBackend) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, b.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

// DeleteExpired removes entries whose logical TTL has passed at now.
func (b *RedisBackend) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return b.deleteWhere(ctx, func(e *models.CacheEntry) bool { return e.Expired(now) })
}

// DeleteByUser removes every entry owned by userID.
func (b *RedisBackend) DeleteByUser(ctx context.Context, userID string) (int, error) {
	return b.deleteWhere(ctx, func(e *models.CacheEntry) bool { return e.UserID == userID })
}

// DeleteAll removes every key under the prefix.
func (b *RedisBackend) DeleteAll(ctx context.Context) (int, error) {
	keys, err := b.scanKeys(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := b.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return int(n), nil
}

func (b *RedisBackend) deleteWhere(ctx context.Context, match func(*models.CacheEntry) bool) (int, error) {
	entries, err := b.List(ctx)
	if err != nil {
		return 0, err
	}
	var keys []string
	for _, e := range entries {
		if match(e) {
			keys = append(keys, b.redisKey(e.Key))
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := b.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return int(n), nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisBackend) Close() error {
	return nil
}
