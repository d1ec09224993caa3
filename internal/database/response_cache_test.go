package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/benvon/focus-companion/internal/cache"
	"github.com/benvon/focus-companion/internal/models"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

var cacheRowColumns = []string{"cache_key", "feature", "user_id", "response", "created_at", "ttl_ms"}

func TestResponseCacheRepository_Get(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		err     error
		want    *models.CacheEntry
		wantErr error
	}{
		{
			name: "found",
			rows: sqlmock.NewRows(cacheRowColumns).AddRow("greeting:abc", "greeting", "alice", "Hello", fixedNow, int64(3600000)),
			want: &models.CacheEntry{Key: "greeting:abc", Feature: "greeting", UserID: "alice", Response: "Hello", CreatedAt: fixedNow, TTL: time.Hour},
		},
		{
			name:    "missing",
			rows:    sqlmock.NewRows(cacheRowColumns),
			wantErr: cache.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db, mock := newMockDB(t)
			repo := NewResponseCacheRepository(db)

			mock.ExpectQuery(`SELECT cache_key, feature, user_id, response, created_at, ttl_ms\s+FROM ai_response_cache WHERE cache_key = \$1`).
				WithArgs("greeting:abc").
				WillReturnRows(tt.rows)

			got, err := repo.Get(context.Background(), "greeting:abc")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if *got != *tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestResponseCacheRepository_Set(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	repo := NewResponseCacheRepository(db)

	entry := &models.CacheEntry{Key: "k", Feature: "greeting", UserID: "alice", Response: "R", CreatedAt: fixedNow, TTL: time.Hour}
	mock.ExpectExec(`INSERT INTO ai_response_cache .* ON CONFLICT \(cache_key\) DO UPDATE`).
		WithArgs("k", "greeting", "alice", "R", fixedNow, int64(3600000), fixedNow.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Set(context.Background(), entry); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestResponseCacheRepository_SetZeroTTLDeletes(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	repo := NewResponseCacheRepository(db)

	mock.ExpectExec(`DELETE FROM ai_response_cache WHERE cache_key = \$1`).
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Set(context.Background(), &models.CacheEntry{Key: "k", Response: "R"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestResponseCacheRepository_DeleteMissing(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	repo := NewResponseCacheRepository(db)

	mock.ExpectExec(`DELETE FROM ai_response_cache WHERE cache_key`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "nope"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestResponseCacheRepository_List(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	repo := NewResponseCacheRepository(db)

	mock.ExpectQuery(`FROM ai_response_cache ORDER BY created_at`).
		WillReturnRows(sqlmock.NewRows(cacheRowColumns).
			AddRow("a", "greeting", "alice", "R1", fixedNow, int64(60000)).
			AddRow("b", "encouragement", "bob", "R2", fixedNow, int64(120000)))

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[1].TTL != 2*time.Minute || got[1].UserID != "bob" {
		t.Errorf("Unexpected entries: %+v", got)
	}
}

func TestResponseCacheRepository_Deletes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		call  func(*ResponseCacheRepository) (int, error)
		want  int
	}{
		{
			name:  "expired",
			query: `DELETE FROM ai_response_cache WHERE expires_at <= \$1`,
			call: func(r *ResponseCacheRepository) (int, error) {
				return r.DeleteExpired(context.Background(), fixedNow)
			},
			want: 3,
		},
		{
			name:  "by user",
			query: `DELETE FROM ai_response_cache WHERE user_id = \$1`,
			call: func(r *ResponseCacheRepository) (int, error) {
				return r.DeleteByUser(context.Background(), "alice")
			},
			want: 2,
		},
		{
			name:  "all",
			query: `DELETE FROM ai_response_cache$`,
			call: func(r *ResponseCacheRepository) (int, error) {
				return r.DeleteAll(context.Background())
			},
			want: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db, mock := newMockDB(t)
			repo := NewResponseCacheRepository(db)
			mock.ExpectExec(tt.query).WillReturnResult(sqlmock.NewResult(0, int64(tt.want)))

			got, err := tt.call(repo)
			if err != nil {
				t.Fatalf("delete: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %d removed, got %d", tt.want, got)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestResponseCacheRepository_ThroughResponseCache(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	c := cache.New(NewResponseCacheRepository(db), cache.WithClock(func() time.Time { return fixedNow }))

	mock.ExpectExec(`DELETE FROM ai_response_cache WHERE expires_at <= \$1`).
		WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := c.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 4 {
		t.Errorf("Expected native expiry delete to report 4, got %d", n)
	}
}

func TestResponseCacheRepository_DeleteIfExpired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "stale row removed", affected: 1, want: true},
		{name: "refreshed row kept", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db, mock := newMockDB(t)
			repo := NewResponseCacheRepository(db)
			mock.ExpectExec(`DELETE FROM ai_response_cache WHERE cache_key = \$1 AND expires_at <= \$2`).
				WithArgs("k", fixedNow).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.DeleteIfExpired(context.Background(), "k", fixedNow)
			if err != nil {
				t.Fatalf("DeleteIfExpired: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}
