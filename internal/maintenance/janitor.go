// Package maintenance runs the periodic housekeeping jobs: expired cache
// entries, old usage counters and old ledger rows.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule runs the janitor hourly
const DefaultSchedule = "@every 1h"

// CacheCleaner removes expired cache entries
type CacheCleaner interface {
	Cleanup(ctx context.Context) (int, error)
}

// UsagePruner drops usage counters older than keepDays
type UsagePruner interface {
	Prune(ctx context.Context, keepDays int) (int, error)
}

// LedgerPruner deletes ledger rows created before cutoff
type LedgerPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config selects which jobs run. Nil collaborators are skipped.
type Config struct {
	Schedule        string
	Cache           CacheCleaner
	Usage           UsagePruner
	UsageKeepDays   int
	Ledger          LedgerPruner
	LedgerRetention time.Duration
	JobTimeout      time.Duration
}

// Report is the outcome of one janitor pass
type Report struct {
	CacheEntriesRemoved int
	CountersPruned      int
	LedgerRowsDeleted   int64
	Errors              []error
}

// Janitor schedules housekeeping with cron
type Janitor struct {
	cfg    Config
	cron   *cron.Cron
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
}

// New creates a janitor. Call Start to begin the schedule.
func New(cfg Config, logger *zap.Logger) (*Janitor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	j := &Janitor{
		cfg:    cfg,
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{logger}))),
		logger: logger,
		now:    time.Now,
	}
	if _, err := j.cron.AddFunc(cfg.Schedule, j.runScheduled); err != nil {
		return nil, fmt.Errorf("invalid maintenance schedule %q: %w", cfg.Schedule, err)
	}
	return j, nil
}

// Start begins running jobs in the background
func (j *Janitor) Start() {
	j.logger.Info("maintenance_started", zap.String("schedule", j.cfg.Schedule))
	j.cron.Start()
}

// Stop halts the schedule and waits for a running pass to finish or ctx to expire
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (j *Janitor) runScheduled() {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		j.logger.Warn("maintenance_skipped_previous_run_active")
		return
	}
	j.running = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.JobTimeout)
	defer cancel()
	j.RunOnce(ctx)
}

// RunOnce performs every configured job once. Failures in one job do not stop the others.
func (j *Janitor) RunOnce(ctx context.Context) Report {
	var report Report

	if j.cfg.Cache != nil {
		n, err := j.cfg.Cache.Cleanup(ctx)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("cache cleanup: %w", err))
		}
		report.CacheEntriesRemoved = n
	}

	if j.cfg.Usage != nil && j.cfg.UsageKeepDays > 0 {
		n, err := j.cfg.Usage.Prune(ctx, j.cfg.UsageKeepDays)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("usage prune: %w", err))
		}
		report.CountersPruned = n
	}

	if j.cfg.Ledger != nil && j.cfg.LedgerRetention > 0 {
		n, err := j.cfg.Ledger.DeleteBefore(ctx, j.now().Add(-j.cfg.LedgerRetention))
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("ledger prune: %w", err))
		}
		report.LedgerRowsDeleted = n
	}

	for _, err := range report.Errors {
		j.logger.Error("maintenance_job_failed", zap.Error(err))
	}
	j.logger.Info("maintenance_completed",
		zap.Int("cache_entries_removed", report.CacheEntriesRemoved),
		zap.Int("counters_pruned", report.CountersPruned),
		zap.Int64("ledger_rows_deleted", report.LedgerRowsDeleted),
		zap.Int("errors", len(report.Errors)),
	)
	return report
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
