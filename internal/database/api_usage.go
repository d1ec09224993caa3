package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/focus-companion/internal/models"
)

// APIUsageRepository writes and aggregates the api_usage ledger.
type APIUsageRepository struct {
	db *DB
}

// NewAPIUsageRepository creates a new api usage repository.
func NewAPIUsageRepository(db *DB) *APIUsageRepository {
	return &APIUsageRepository{db: db}
}

// Insert records ev. Redelivered events with an existing id are ignored.
func (r *APIUsageRepository) Insert(ctx context.Context, ev *models.UsageEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_usage (id, user_id, feature, model, tokens_used, cost_usd, success, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, ev.ID, ev.UserID, string(ev.Feature), ev.Model, ev.TokensUsed, ev.CostUSD, ev.Success, ev.ErrorMessage, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api usage: %w", err)
	}
	return nil
}

// Summary aggregates ledger rows since the given instant, one row per user,
// most expensive first.
func (r *APIUsageRepository) Summary(ctx context.Context, since time.Time) ([]*models.UsageSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id,
			COUNT(*),
			COUNT(*) FILTER (WHERE NOT success),
			COALESCE(SUM(tokens_used), 0),
			COALESCE(SUM(cost_usd), 0)
		FROM api_usage
		WHERE created_at >= $1
		GROUP BY user_id
		ORDER BY 5 DESC, user_id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("summarize api usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.UsageSummary
	for rows.Next() {
		s := &models.UsageSummary{}
		if err := rows.Scan(&s.UserID, &s.Calls, &s.Failures, &s.TokensUsed, &s.CostUSD); err != nil {
			return nil, fmt.Errorf("scan api usage summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summarize api usage: %w", err)
	}
	return out, nil
}

// DeleteBefore removes ledger rows older than cutoff.
func (r *APIUsageRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_usage WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete api usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete api usage: %w", err)
	}
	return n, nil
}
