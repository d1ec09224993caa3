// Package usage enforces per-user and global call caps on the AI provider.
package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/focus-companion/internal/logger"
	"github.com/benvon/focus-companion/internal/metrics"
	"github.com/benvon/focus-companion/internal/models"
	"go.uber.org/zap"
)

// ErrStorageUnavailable wraps failures to persist the usage record.
var ErrStorageUnavailable = errors.New("usage storage unavailable")

// ReasonMissingUser is returned when a check is made without a user id.
const ReasonMissingUser = "Missing user id"

// Limiter decides whether a user may make another AI call.
type Limiter struct {
	store   Store
	adminID string
	now     func() time.Time
	loc     *time.Location
	logger  *zap.Logger

	mu       sync.RWMutex
	limits   models.UsageLimits
	features map[models.Feature]bool
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLimits sets the four caps.
func WithLimits(limits models.UsageLimits) Option {
	return func(l *Limiter) { l.limits = limits }
}

// WithAdmin sets the user id that bypasses every cap.
func WithAdmin(userID string) Option {
	return func(l *Limiter) { l.adminID = userID }
}

// WithFeatureToggles replaces the default feature toggles.
func WithFeatureToggles(toggles map[models.Feature]bool) Option {
	return func(l *Limiter) {
		l.features = make(map[models.Feature]bool, len(toggles))
		for f, on := range toggles {
			l.features[f] = on
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLocation sets the zone that date and month keys are computed in.
func WithLocation(loc *time.Location) Option {
	return func(l *Limiter) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLimiter creates a limiter over store with the default caps and toggles.
func NewLimiter(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:    store,
		now:      time.Now,
		loc:      time.UTC,
		logger:   zap.NewNop(),
		limits:   models.DefaultUsageLimits(),
		features: models.DefaultFeatureToggles(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// periods returns today's date key and this month's key.
func (l *Limiter) periods() (string, string) {
	now := l.now().In(l.loc)
	return now.Format(models.DateLayout), now.Format(models.MonthLayout)
}

// Limits returns the caps currently enforced.
func (l *Limiter) Limits() models.UsageLimits {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limits
}

// SetLimits replaces the caps. Safe to call while checks are running.
func (l *Limiter) SetLimits(limits models.UsageLimits) {
	l.mu.Lock()
	old := l.limits
	l.limits = limits
	l.mu.Unlock()

	if old != limits {
		l.logger.Info("usage_limits_updated",
			zap.Int("user_daily", limits.UserDaily),
			zap.Int("user_monthly", limits.UserMonthly),
			zap.Int("global_daily", limits.GlobalDaily),
			zap.Int("global_monthly", limits.GlobalMonthly),
		)
	}
}

// IsExempt reports whether userID is the administrator.
func (l *Limiter) IsExempt(userID string) bool {
	return l.adminID != "" && userID == l.adminID
}

// load reads the record, degrading to an empty one when storage is unreadable.
func (l *Limiter) load(ctx context.Context) *models.UsageRecord {
	rec, err := l.store.Load(ctx)
	if err != nil {
		l.logger.Warn("usage_state_unavailable_assuming_empty", zap.Error(err))
		return models.NewUsageRecord(l.now().In(l.loc))
	}
	return rec
}

// CheckAllowed reports whether userID may make another call. When the call is
// not allowed the reason names the cap that was hit. It never writes.
func (l *Limiter) CheckAllowed(ctx context.Context, userID string) (bool, string) {
	if userID == "" {
		metrics.QuotaDecisions.WithLabelValues("missing_user").Inc()
		return false, ReasonMissingUser
	}
	if l.IsExempt(userID) {
		metrics.QuotaDecisions.WithLabelValues("exempt").Inc()
		return true, ""
	}

	limits := l.Limits()
	date, month := l.periods()
	rec := l.load(ctx)

	checks := []struct {
		outcome string
		count   int
		limit   int
		reason  string
	}{
		{"user_daily", rec.UserCount(userID, date), limits.UserDaily, "Your daily limit reached (%d calls)"},
		{"user_monthly", rec.UserCount(userID, month), limits.UserMonthly, "Your monthly limit reached (%d calls)"},
		{"global_daily", rec.DailyCount(date), limits.GlobalDaily, "Daily API limit reached (%d calls)"},
		{"global_monthly", rec.MonthlyCount(month), limits.GlobalMonthly, "Monthly API limit reached (%d calls)"},
	}
	for _, c := range checks {
		if c.limit > 0 && c.count >= c.limit {
			metrics.QuotaDecisions.WithLabelValues(c.outcome).Inc()
			l.logger.Info("usage_limit_reached",
				zap.String("user_id", logger.SanitizeUserID(userID)),
				zap.String("limit", c.outcome),
				zap.Int("count", c.count),
				zap.Int("cap", c.limit),
			)
			return false, fmt.Sprintf(c.reason, c.limit)
		}
	}

	metrics.QuotaDecisions.WithLabelValues("allowed").Inc()
	return true, ""
}

// RecordUsage counts one call by userID against all four counters.
// Every invocation counts; callers must record each real call exactly once.
func (l *Limiter) RecordUsage(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("record usage: user id is required")
	}
	date, month := l.periods()
	err := l.store.Update(ctx, func(rec *models.UsageRecord) error {
		rec.Increment(userID, date, month)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record usage: %w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// GetUsageStats reports userID's counts and the global counts for the
// current day and month.
func (l *Limiter) GetUsageStats(ctx context.Context, userID string) *models.UsageStats {
	limits := l.Limits()
	date, month := l.periods()
	rec := l.load(ctx)

	return &models.UsageStats{
		UserID:           userID,
		Date:             date,
		Month:            month,
		TodayCount:       rec.UserCount(userID, date),
		MonthCount:       rec.UserCount(userID, month),
		TodayLimit:       limits.UserDaily,
		MonthLimit:       limits.UserMonthly,
		GlobalTodayCount: rec.DailyCount(date),
		GlobalMonthCount: rec.MonthlyCount(month),
		GlobalTodayLimit: limits.GlobalDaily,
		GlobalMonthLimit: limits.GlobalMonthly,
		Exempt:           l.IsExempt(userID),
	}
}

// Prune removes counters older than keepDays days. Month counters are kept
// back to the month containing the cutoff date, so the current month always
// survives. It returns the number of counters removed.
func (l *Limiter) Prune(ctx context.Context, keepDays int) (int, error) {
	if keepDays < 1 {
		return 0, fmt.Errorf("prune usage: keep days must be at least 1, got %d", keepDays)
	}
	cutoff := l.now().In(l.loc).AddDate(0, 0, -(keepDays - 1))
	cutoffDate := cutoff.Format(models.DateLayout)
	cutoffMonth := cutoff.Format(models.MonthLayout)

	removed := 0
	err := l.store.Update(ctx, func(rec *models.UsageRecord) error {
		removed = rec.Prune(cutoffDate, cutoffMonth)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune usage: %w: %w", ErrStorageUnavailable, err)
	}
	if removed > 0 {
		l.logger.Info("usage_counters_pruned",
			zap.Int("removed", removed),
			zap.String("cutoff_date", cutoffDate),
		)
	}
	return removed, nil
}

// IsFeatureEnabled reports whether feature may use the AI provider.
// Unknown features are disabled.
func (l *Limiter) IsFeatureEnabled(feature models.Feature) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.features[feature]
}

// Features returns a copy of the feature toggles.
func (l *Limiter) Features() map[models.Feature]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[models.Feature]bool, len(l.features))
	for f, on := range l.features {
		out[f] = on
	}
	return out
}

// Close releases the store.
func (l *Limiter) Close() error {
	return l.store.Close()
}
