package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/focus-companion/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultRedisKey holds the usage document.
	DefaultRedisKey = "focus:usage_state"
	// maxTxRetries bounds optimistic retries when another writer wins the race.
	maxTxRetries = 10
)

// RedisStore keeps the usage record as one JSON value and updates it with
// WATCH/MULTI so concurrent writers from several processes do not lose counts.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	now    func() time.Time
	logger *zap.Logger
}

// NewRedisStore creates a Redis-backed store. An empty key uses DefaultRedisKey.
func NewRedisStore(client redis.UniversalClient, key string, logger *zap.Logger) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, key: key, now: time.Now, logger: logger}
}

// SetLocation stamps the reset keys of fresh records in loc.
func (s *RedisStore) SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	base := s.now
	s.now = func() time.Time { return base().In(loc) }
}

// Load reads the current record.
func (s *RedisStore) Load(ctx context.Context) (*models.UsageRecord, error) {
	return s.read(ctx, s.client)
}

func (s *RedisStore) read(ctx context.Context, getter redis.Cmdable) (*models.UsageRecord, error) {
	data, err := getter.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NewUsageRecord(s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get usage: %w", err)
	}
	var rec models.UsageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("usage_state_corrupt_starting_fresh",
			zap.String("key", s.key),
			zap.Error(err),
		)
		return models.NewUsageRecord(s.now()), nil
	}
	rec.Normalize()
	return &rec, nil
}

// Update applies fn inside an optimistic transaction, retrying on conflict.
func (s *RedisStore) Update(ctx context.Context, fn func(*models.UsageRecord) error) error {
	txf := func(tx *redis.Tx) error {
		rec, err := s.read(ctx, tx)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode usage record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, s.key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("usage_state_tx_conflict_retrying",
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		return fmt.Errorf("redis update usage: %w", err)
	}
	return fmt.Errorf("redis update usage: gave up after %d conflicting attempts", maxTxRetries)
}

// Close is a no-op; the Redis client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
