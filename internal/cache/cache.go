package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benvon/focus-companion/internal/metrics"
	"github.com/benvon/focus-companion/internal/models"
	"go.uber.org/zap"
)

// DefaultTTL is how long a response stays servable unless the caller says otherwise.
const DefaultTTL = 24 * time.Hour

// ResponseCache serves previously generated AI responses keyed by MakeKey.
type ResponseCache struct {
	backend    Backend
	defaultTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a ResponseCache.
type Option func(*ResponseCache)

// WithDefaultTTL sets the TTL applied by PutEntry when the entry carries none.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *ResponseCache) {
		c.defaultTTL = ttl
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *ResponseCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a response cache over backend.
func New(backend Backend, opts ...Option) *ResponseCache {
	c := &ResponseCache{
		backend:    backend,
		defaultTTL: DefaultTTL,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultTTL returns the configured default TTL.
func (c *ResponseCache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Get returns the cached response for key if a live entry exists.
// Expired entries found on the way are removed.
func (c *ResponseCache) Get(ctx context.Context, key string) (string, bool) {
	entry, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("ai_cache_read_failed",
				zap.String("key", key),
				zap.Error(err),
			)
		}
		c.recordMiss()
		return "", false
	}

	if now := c.now(); entry.Expired(now) {
		evicted, err := c.backend.DeleteIfExpired(ctx, key, now)
		switch {
		case err != nil:
			c.logger.Warn("ai_cache_evict_failed",
				zap.String("key", key),
				zap.Error(err),
			)
		case evicted:
			metrics.CacheEvictions.WithLabelValues("expired").Inc()
		}
		c.recordMiss()
		return "", false
	}

	c.hits.Add(1)
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return entry.Response, true
}

func (c *ResponseCache) recordMiss() {
	c.misses.Add(1)
	metrics.CacheLookups.WithLabelValues("miss").Inc()
}

// Put stores response under key for ttl, replacing any existing entry.
func (c *ResponseCache) Put(ctx context.Context, key, response string, ttl time.Duration) error {
	return c.store(ctx, &models.CacheEntry{
		Key:      key,
		Response: response,
		TTL:      ttl,
	})
}

// PutEntry stores entry stamped with the current time. A zero TTL on entry is
// replaced with the cache's default TTL.
func (c *ResponseCache) PutEntry(ctx context.Context, entry *models.CacheEntry) error {
	e := *entry
	if e.TTL == 0 {
		e.TTL = c.defaultTTL
	}
	return c.store(ctx, &e)
}

func (c *ResponseCache) store(ctx context.Context, entry *models.CacheEntry) error {
	if entry.Key == "" {
		return fmt.Errorf("cache key is required")
	}
	entry.CreatedAt = c.now()
	if err := c.backend.Set(ctx, entry); err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

// Cleanup removes every expired entry and returns how many were removed.
// Live entries are never touched.
func (c *ResponseCache) Cleanup(ctx context.Context) (int, error) {
	now := c.now()

	if exp, ok := c.backend.(Expirer); ok {
		n, err := exp.DeleteExpired(ctx, now)
		if err != nil {
			return 0, fmt.Errorf("delete expired entries: %w", err)
		}
		metrics.CacheEvictions.WithLabelValues("expired").Add(float64(n))
		return n, nil
	}

	entries, err := c.backend.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cache entries: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if !e.Expired(now) {
			continue
		}
		evicted, err := c.backend.DeleteIfExpired(ctx, e.Key, now)
		if err != nil {
			return removed, fmt.Errorf("delete cache entry: %w", err)
		}
		if evicted {
			removed++
		}
	}
	metrics.CacheEvictions.WithLabelValues("expired").Add(float64(removed))
	return removed, nil
}

// Clear removes every entry belonging to userID, or every entry when userID is empty.
func (c *ResponseCache) Clear(ctx context.Context, userID string) (int, error) {
	var (
		n   int
		err error
	)
	switch {
	case userID == "":
		n, err = c.clearAll(ctx)
	default:
		n, err = c.clearUser(ctx, userID)
	}
	if err != nil {
		return n, err
	}
	metrics.CacheEvictions.WithLabelValues("cleared").Add(float64(n))
	c.logger.Info("ai_cache_cleared",
		zap.String("user_id", userID),
		zap.Int("removed", n),
	)
	return n, nil
}

func (c *ResponseCache) clearAll(ctx context.Context) (int, error) {
	if cl, ok := c.backend.(Clearer); ok {
		return cl.DeleteAll(ctx)
	}
	return c.deleteMatching(ctx, func(*models.CacheEntry) bool { return true })
}

func (c *ResponseCache) clearUser(ctx context.Context, userID string) (int, error) {
	if uc, ok := c.backend.(UserClearer); ok {
		return uc.DeleteByUser(ctx, userID)
	}
	return c.deleteMatching(ctx, func(e *models.CacheEntry) bool { return e.UserID == userID })
}

func (c *ResponseCache) deleteMatching(ctx context.Context, match func(*models.CacheEntry) bool) (int, error) {
	entries, err := c.backend.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cache entries: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if !match(e) {
			continue
		}
		if err := c.backend.Delete(ctx, e.Key); err != nil && !errors.Is(err, ErrNotFound) {
			return removed, fmt.Errorf("delete cache entry: %w", err)
		}
		removed++
	}
	return removed, nil
}

// Stats reports hit/miss counters since process start plus the live entry count.
func (c *ResponseCache) Stats(ctx context.Context) models.CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	stats := models.CacheStats{
		Hits:      hits,
		Misses:    misses,
		ByFeature: make(map[string]int),
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}

	entries, err := c.backend.List(ctx)
	if err != nil {
		c.logger.Warn("ai_cache_list_failed", zap.Error(err))
		return stats
	}
	now := c.now()
	for _, e := range entries {
		if e.Expired(now) {
			continue
		}
		stats.Entries++
		if e.Feature != "" {
			stats.ByFeature[e.Feature]++
		}
	}
	return stats
}

// Close releases the backend.
func (c *ResponseCache) Close() error {
	return c.backend.Close()
}
