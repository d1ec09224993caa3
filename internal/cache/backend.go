package cache

import (
	"context"
	"errors"
	"time"

	"github.com/benvon/focus-companion/internal/models"
)

// ErrNotFound is returned by a Backend when no entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// Backend stores cache entries. Implementations must make each call atomic
// with respect to concurrent calls on the same backend.
type Backend interface {
	Get(ctx context.Context, key string) (*models.CacheEntry, error)
	Set(ctx context.Context, entry *models.CacheEntry) error
	Delete(ctx context.Context, key string) error
	// DeleteIfExpired removes key only if the entry stored right now is
	// expired at now, so a concurrent refresh is never dropped.
	DeleteIfExpired(ctx context.Context, key string, now time.Time) (bool, error)
	List(ctx context.Context) ([]*models.CacheEntry, error)
	Close() error
}

// Expirer is implemented by backends that can drop expired entries natively.
type Expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// UserClearer is implemented by backends that can drop one user's entries natively.
type UserClearer interface {
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

// Clearer is implemented by backends that can drop every entry at once.
type Clearer interface {
	DeleteAll(ctx context.Context) (int, error)
}
