package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/focus-companion/internal/models"
	"go.uber.org/zap"
)

const defaultUsageStateKey = "default"

// UsageStateRepository stores the usage record as a single JSONB row and
// serialises updates with SELECT ... FOR UPDATE.
type UsageStateRepository struct {
	db     *DB
	now    func() time.Time
	logger *zap.Logger
}

// NewUsageStateRepository creates a new usage state repository.
func NewUsageStateRepository(db *DB, logger *zap.Logger) *UsageStateRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsageStateRepository{db: db, now: time.Now, logger: logger}
}

// SetLocation stamps the reset keys of fresh records in loc.
func (r *UsageStateRepository) SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	base := r.now
	r.now = func() time.Time { return base().In(loc) }
}

// Load reads the current usage record.
func (r *UsageStateRepository) Load(ctx context.Context) (*models.UsageRecord, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT state FROM ai_usage_state WHERE state_key = $1
	`, defaultUsageStateKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewUsageRecord(r.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get usage state: %w", err)
	}
	return r.decode(raw), nil
}

func (r *UsageStateRepository) decode(raw []byte) *models.UsageRecord {
	var rec models.UsageRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		r.logger.Warn("usage_state_corrupt_starting_fresh",
			zap.String("state_key", defaultUsageStateKey),
			zap.Error(err),
		)
		return models.NewUsageRecord(r.now())
	}
	rec.Normalize()
	return &rec
}

// Update applies fn to the locked row and writes it back in one transaction.
func (r *UsageStateRepository) Update(ctx context.Context, fn func(*models.UsageRecord) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin usage state tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	initial, err := json.Marshal(models.NewUsageRecord(r.now()))
	if err != nil {
		return fmt.Errorf("encode usage record: %w", err)
	}
	// make sure there is a row to lock
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO ai_usage_state (state_key, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (state_key) DO NOTHING
	`, defaultUsageStateKey, initial, r.now()); err != nil {
		return fmt.Errorf("ensure usage state: %w", err)
	}

	var raw []byte
	if err = tx.QueryRowContext(ctx, `
		SELECT state FROM ai_usage_state WHERE state_key = $1 FOR UPDATE
	`, defaultUsageStateKey).Scan(&raw); err != nil {
		return fmt.Errorf("lock usage state: %w", err)
	}

	rec := r.decode(raw)
	if err = fn(rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode usage record: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE ai_usage_state SET state = $2, updated_at = $3 WHERE state_key = $1
	`, defaultUsageStateKey, data, r.now()); err != nil {
		return fmt.Errorf("update usage state: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit usage state: %w", err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (r *UsageStateRepository) Close() error {
	return nil
}
