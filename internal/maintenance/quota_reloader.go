package maintenance

import (
	"context"
	"time"

	"github.com/benvon/focus-companion/internal/models"
	"go.uber.org/zap"
)

// QuotaSource stores the operator-set caps
type QuotaSource interface {
	Get(ctx context.Context) (*models.QuotaConfig, error)
	Set(ctx context.Context, limits models.UsageLimits) error
}

// LimitSetter applies caps to the running limiter
type LimitSetter interface {
	SetLimits(limits models.UsageLimits)
}

// QuotaReloader periodically loads usage caps from the database so they can
// be changed without a restart. When no row exists the defaults are saved.
type QuotaReloader struct {
	source   QuotaSource
	target   LimitSetter
	defaults models.UsageLimits
	interval time.Duration
	logger   *zap.Logger
}

// NewQuotaReloader creates a reloader applying caps from source to target
func NewQuotaReloader(source QuotaSource, target LimitSetter, defaults models.UsageLimits, interval time.Duration, logger *zap.Logger) *QuotaReloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaReloader{
		source:   source,
		target:   target,
		defaults: defaults,
		interval: interval,
		logger:   logger,
	}
}

// Load applies the stored caps once
func (r *QuotaReloader) Load(ctx context.Context) {
	cfg, err := r.source.Get(ctx)
	if err != nil {
		r.logger.Warn("failed_to_load_quota_config_keeping_current", zap.Error(err))
		return
	}
	if cfg == nil {
		if err := r.source.Set(ctx, r.defaults); err != nil {
			r.logger.Error("failed_to_save_default_quota_config", zap.Error(err))
		}
		r.target.SetLimits(r.defaults)
		return
	}
	r.target.SetLimits(cfg.Limits)
}

// Start loads immediately and then on every interval until ctx is cancelled
func (r *QuotaReloader) Start(ctx context.Context) {
	r.Load(ctx)
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Load(ctx)
		}
	}
}
