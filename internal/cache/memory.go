package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/benvon/focus-companion/internal/fsutil"
	"github.com/benvon/focus-companion/internal/metrics"
	"github.com/benvon/focus-companion/internal/models"
	"go.uber.org/zap"
)

// MemoryBackend keeps entries in a map, optionally mirrored to a JSON file so
// the cache survives restarts. When maxEntries is positive, inserting a new key
// into a full cache evicts the oldest entry by CreatedAt.
type MemoryBackend struct {
	mu         sync.RWMutex
	entries    map[string]*models.CacheEntry
	maxEntries int
	path       string
	logger     *zap.Logger
}

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithMaxEntries caps the number of stored entries. Zero means unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(b *MemoryBackend) {
		b.maxEntries = n
	}
}

// WithPersistence mirrors the cache to path.
func WithPersistence(path string) MemoryOption {
	return func(b *MemoryBackend) {
		b.path = path
	}
}

// WithMemoryLogger sets the logger used for persistence problems.
func WithMemoryLogger(logger *zap.Logger) MemoryOption {
	return func(b *MemoryBackend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewMemoryBackend creates a memory backend. With persistence enabled the file
// is loaded if present; an unreadable or corrupt file is logged and ignored.
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	b := &MemoryBackend{
		entries: make(map[string]*models.CacheEntry),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.path != "" {
		if err := b.load(); err != nil {
			b.logger.Warn("ai_cache_file_unreadable_starting_empty",
				zap.String("path", b.path),
				zap.Error(err),
			)
			b.entries = make(map[string]*models.CacheEntry)
		}
	}
	return b
}

func (b *MemoryBackend) load() error {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var stored map[string]*models.CacheEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("decode cache file: %w", err)
	}
	for k, e := range stored {
		if e == nil {
			continue
		}
		e.Key = k
		b.entries[k] = e
	}
	return nil
}

// persist writes the map to disk. Callers hold b.mu.
func (b *MemoryBackend) persist() error {
	if b.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(b.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache file: %w", err)
	}
	return fsutil.WriteFileAtomic(b.path, data)
}

// Get returns a copy of the entry stored under key.
func (b *MemoryBackend) Get(_ context.Context, key string) (*models.CacheEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// Set stores a copy of entry, evicting the oldest entry if the cache is full.
func (b *MemoryBackend) Set(_ context.Context, entry *models.CacheEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.entries[entry.Key]; !exists && b.maxEntries > 0 {
		for len(b.entries) >= b.maxEntries {
			b.evictOldest()
		}
	}
	cp := *entry
	b.entries[entry.Key] = &cp
	return b.persist()
}

func (b *MemoryBackend) evictOldest() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range b.entries {
		if !found || e.CreatedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.CreatedAt, true
		}
	}
	if found {
		delete(b.entries, oldestKey)
		metrics.CacheEvictions.WithLabelValues("capacity").Inc()
	}
}

// Delete removes key.
func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[key]; !ok {
		return ErrNotFound
	}
	delete(b.entries, key)
	return b.persist()
}

// DeleteIfExpired re-checks expiry under the write lock before removing key.
func (b *MemoryBackend) DeleteIfExpired(_ context.Context, key string, now time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok || !e.Expired(now) {
		return false, nil
	}
	delete(b.entries, key)
	return true, b.persist()
}

// List returns copies of all entries.
func (b *MemoryBackend) List(_ context.Context) ([]*models.CacheEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*models.CacheEntry, 0, len(b.entries))
	for _, e := range b.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// DeleteExpired removes entries expired at now in a single critical section.
func (b *MemoryBackend) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	return b.deleteWhere(func(e *models.CacheEntry) bool { return e.Expired(now) })
}

// DeleteByUser removes every entry owned by userID.
func (b *MemoryBackend) DeleteByUser(_ context.Context, userID string) (int, error) {
	return b.deleteWhere(func(e *models.CacheEntry) bool { return e.UserID == userID })
}

// DeleteAll empties the cache.
func (b *MemoryBackend) DeleteAll(_ context.Context) (int, error) {
	return b.deleteWhere(func(*models.CacheEntry) bool { return true })
}

func (b *MemoryBackend) deleteWhere(match func(*models.CacheEntry) bool) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for k, e := range b.entries {
		if match(e) {
			delete(b.entries, k)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, b.persist()
}

// Len returns the number of stored entries, live or not.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Close flushes the file mirror.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.persist()
}
