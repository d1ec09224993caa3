package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/benvon/focus-companion/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return Wrap(sqlDB), mock
}

func TestUsageStateRepository_LoadMissingRow(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	repo := NewUsageStateRepository(db, nil)

	mock.ExpectQuery(`SELECT state FROM ai_usage_state WHERE state_key = \$1`).
		WithArgs("default").
		WillReturnRows(sqlmock.NewRows([]string{"state"}))

	rec, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec == nil || len(rec.DailyUsage) != 0 {
		t.Errorf("Expected fresh record, got %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUsageStateRepository_FreshRecordUsesLocation(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	repo := NewUsageStateRepository(db, nil)
	repo.now = func() time.Time { return time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC) }
	repo.SetLocation(time.FixedZone("UTC+14", 14*60*60))

	mock.ExpectQuery(`SELECT state FROM ai_usage_state WHERE state_key = \$1`).
		WithArgs("default").
		WillReturnRows(sqlmock.NewRows([]string{"state"}))

	rec, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.LastReset[models.ResetDaily] != "2024-04-01" || rec.LastReset[models.ResetMonthly] != "2024-04" {
		t.Errorf("Expected reset keys in the configured zone, got %v", rec.LastReset)
	}
}

func TestUsageStateRepository_LoadCorruptRow(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	repo := NewUsageStateRepository(db, nil)

	mock.ExpectQuery(`SELECT state FROM ai_usage_state`).
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow([]byte(`{"daily_usage": 7}`)))

	rec, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Expected corrupt row to load as fresh record, got %v", err)
	}
	if rec.DailyCount("2024-03-15") != 0 {
		t.Errorf("Expected empty record, got %+v", rec)
	}
}

func TestUsageStateRepository_LoadError(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	repo := NewUsageStateRepository(db, nil)

	mock.ExpectQuery(`SELECT state FROM ai_usage_state`).WillReturnError(errors.New("connection refused"))

	if _, err := repo.Load(context.Background()); err == nil {
		t.Error("Expected error from failed query")
	}
}

func TestUsageStateRepository_Update(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	repo := NewUsageStateRepository(db, nil)

	existing := models.NewUsageRecord(fixedNow)
	existing.Increment("alice", "2024-03-15", "2024-03")
	raw, _ := json.Marshal(existing)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO ai_usage_state .* ON CONFLICT \(state_key\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT state FROM ai_usage_state WHERE state_key = \$1 FOR UPDATE`).
		WithArgs("default").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(raw))
	mock.ExpectExec(`UPDATE ai_usage_state SET state = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen int
	err := repo.Update(context.Background(), func(r *models.UsageRecord) error {
		seen = r.UserCount("alice", "2024-03-15")
		r.Increment("alice", "2024-03-15", "2024-03")
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if seen != 1 {
		t.Errorf("Expected fn to see the stored count 1, got %d", seen)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUsageStateRepository_UpdateRollsBackOnError(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	repo := NewUsageStateRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO ai_usage_state`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow([]byte(`{}`)))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := repo.Update(context.Background(), func(*models.UsageRecord) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("Expected fn error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
