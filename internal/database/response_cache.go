package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/focus-companion/internal/cache"
	"github.com/benvon/focus-companion/internal/models"
)

// ResponseCacheRepository is a cache.Backend over the ai_response_cache table.
type ResponseCacheRepository struct {
	db *DB
}

// NewResponseCacheRepository creates a new response cache repository.
func NewResponseCacheRepository(db *DB) *ResponseCacheRepository {
	return &ResponseCacheRepository{db: db}
}

const cacheColumns = `cache_key, feature, user_id, response, created_at, ttl_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCacheEntry(row rowScanner) (*models.CacheEntry, error) {
	e := &models.CacheEntry{}
	var ttlMS int64
	if err := row.Scan(&e.Key, &e.Feature, &e.UserID, &e.Response, &e.CreatedAt, &ttlMS); err != nil {
		return nil, err
	}
	e.TTL = time.Duration(ttlMS) * time.Millisecond
	return e, nil
}

// Get retrieves the entry stored under key.
func (r *ResponseCacheRepository) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+cacheColumns+`
		FROM ai_response_cache WHERE cache_key = $1
	`, key)
	e, err := scanCacheEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	return e, nil
}

// Set upserts entry. An entry that can never be live removes any previous row.
func (r *ResponseCacheRepository) Set(ctx context.Context, entry *models.CacheEntry) error {
	if entry.TTL <= 0 {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM ai_response_cache WHERE cache_key = $1`, entry.Key); err != nil {
			return fmt.Errorf("delete cache entry: %w", err)
		}
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ai_response_cache (cache_key, feature, user_id, response, created_at, ttl_ms, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cache_key) DO UPDATE SET
			feature = EXCLUDED.feature,
			user_id = EXCLUDED.user_id,
			response = EXCLUDED.response,
			created_at = EXCLUDED.created_at,
			ttl_ms = EXCLUDED.ttl_ms,
			expires_at = EXCLUDED.expires_at
	`, entry.Key, entry.Feature, entry.UserID, entry.Response, entry.CreatedAt, entry.TTL.Milliseconds(), entry.ExpiresAt())
	if err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

// Delete removes key.
func (r *ResponseCacheRepository) Delete(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ai_response_cache WHERE cache_key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	if n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// List returns every stored entry, live or not.
func (r *ResponseCacheRepository) List(ctx context.Context) ([]*models.CacheEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+cacheColumns+`
		FROM ai_response_cache ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.CacheEntry
	for rows.Next() {
		e, err := scanCacheEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	return out, nil
}

func (r *ResponseCacheRepository) execCount(ctx context.Context, op, query string, args ...any) (int, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

// DeleteIfExpired removes key only while its stored row is expired at now.
func (r *ResponseCacheRepository) DeleteIfExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	n, err := r.execCount(ctx, "delete expired cache entry",
		`DELETE FROM ai_response_cache WHERE cache_key = $1 AND expires_at <= $2`, key, now)
	return n > 0, err
}

// DeleteExpired removes rows whose expiry is at or before now.
func (r *ResponseCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return r.execCount(ctx, "delete expired cache entries",
		`DELETE FROM ai_response_cache WHERE expires_at <= $1`, now)
}

// DeleteByUser removes every row owned by userID.
func (r *ResponseCacheRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	return r.execCount(ctx, "delete user cache entries",
		`DELETE FROM ai_response_cache WHERE user_id = $1`, userID)
}

// DeleteAll empties the table.
func (r *ResponseCacheRepository) DeleteAll(ctx context.Context) (int, error) {
	return r.execCount(ctx, "delete all cache entries", `DELETE FROM ai_response_cache`)
}

// Close is a no-op; the pool is owned by the caller.
func (r *ResponseCacheRepository) Close() error {
	return nil
}
