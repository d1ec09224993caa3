package database

import (
	"context"
	"fmt"
)

// schema is applied idempotently on startup and by `focusctl migrate`.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS ai_usage_state (
		state_key TEXT PRIMARY KEY,
		state JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS ai_response_cache (
		cache_key TEXT PRIMARY KEY,
		feature TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		response TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		ttl_ms BIGINT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_response_cache_expires_at ON ai_response_cache(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_response_cache_user_id ON ai_response_cache(user_id)`,
	`CREATE TABLE IF NOT EXISTS api_usage (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		feature TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		tokens_used INTEGER NOT NULL DEFAULT 0,
		cost_usd NUMERIC(12, 6) NOT NULL DEFAULT 0,
		success BOOLEAN NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_api_usage_user_created ON api_usage(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS quota_config (
		config_key TEXT PRIMARY KEY,
		user_daily INTEGER NOT NULL,
		user_monthly INTEGER NOT NULL,
		global_daily INTEGER NOT NULL,
		global_monthly INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates any missing tables and indexes.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
