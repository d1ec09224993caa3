package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/focus-companion/internal/models"
)

const defaultQuotaConfigKey = "default"

// QuotaConfigRepository handles the usage cap override in the database.
type QuotaConfigRepository struct {
	db *DB
}

// NewQuotaConfigRepository creates a new quota config repository.
func NewQuotaConfigRepository(db *DB) *QuotaConfigRepository {
	return &QuotaConfigRepository{db: db}
}

// Get retrieves the default quota config. It returns nil, nil when none is stored.
func (r *QuotaConfigRepository) Get(ctx context.Context) (*models.QuotaConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT config_key, user_daily, user_monthly, global_daily, global_monthly, created_at, updated_at
		FROM quota_config WHERE config_key = $1
	`, defaultQuotaConfigKey)
	c := &models.QuotaConfig{}
	err := row.Scan(&c.ConfigKey,
		&c.Limits.UserDaily, &c.Limits.UserMonthly,
		&c.Limits.GlobalDaily, &c.Limits.GlobalMonthly,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quota config: %w", err)
	}
	return c, nil
}

// Set upserts the default quota config.
func (r *QuotaConfigRepository) Set(ctx context.Context, limits models.UsageLimits) error {
	if limits.UserDaily < 0 || limits.UserMonthly < 0 || limits.GlobalDaily < 0 || limits.GlobalMonthly < 0 {
		return fmt.Errorf("quota limits cannot be negative")
	}
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO quota_config (config_key, user_daily, user_monthly, global_daily, global_monthly, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (config_key) DO UPDATE SET
			user_daily = EXCLUDED.user_daily,
			user_monthly = EXCLUDED.user_monthly,
			global_daily = EXCLUDED.global_daily,
			global_monthly = EXCLUDED.global_monthly,
			updated_at = EXCLUDED.updated_at
	`, defaultQuotaConfigKey, limits.UserDaily, limits.UserMonthly, limits.GlobalDaily, limits.GlobalMonthly, now, now)
	if err != nil {
		return fmt.Errorf("set quota config: %w", err)
	}
	return nil
}
