package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/focus-companion/internal/models"
	"go.uber.org/zap"
)

// DirectPublisher writes events straight to the ledger when no broker is configured
type DirectPublisher struct {
	writer LedgerWriter
}

// NewDirectPublisher creates a publisher that writes synchronously through writer
func NewDirectPublisher(writer LedgerWriter) *DirectPublisher {
	return &DirectPublisher{writer: writer}
}

// Publish inserts ev into the ledger
func (p *DirectPublisher) Publish(ctx context.Context, ev *models.UsageEvent) error {
	if ev == nil {
		return errors.New("usage event is required")
	}
	if err := p.writer.Insert(ctx, ev); err != nil {
		return fmt.Errorf("write usage event: %w", err)
	}
	return nil
}

// LogPublisher only logs events. It is used when there is neither a broker nor a database.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a log-only publisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs ev at debug level
func (p *LogPublisher) Publish(_ context.Context, ev *models.UsageEvent) error {
	if ev == nil {
		return errors.New("usage event is required")
	}
	p.logger.Debug("usage_event",
		zap.String("event_id", ev.ID.String()),
		zap.String("feature", string(ev.Feature)),
		zap.Int("tokens_used", ev.TokensUsed),
		zap.String("cost_usd", ev.CostUSD.String()),
		zap.Bool("success", ev.Success),
	)
	return nil
}
