package workers

import (
	"context"
	"fmt"

	"github.com/benvon/focus-companion/internal/metrics"
	"github.com/benvon/focus-companion/internal/queue"
	"go.uber.org/zap"
)

// LedgerWorker drains usage events from the queue into the api_usage ledger
type LedgerWorker struct {
	writer      queue.LedgerWriter
	republisher queue.Republisher
	logger      *zap.Logger
}

// NewLedgerWorker creates a new ledger worker
func NewLedgerWorker(writer queue.LedgerWriter, republisher queue.Republisher, logger *zap.Logger) *LedgerWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerWorker{
		writer:      writer,
		republisher: republisher,
		logger:      logger,
	}
}

// ProcessMessage writes one event and settles the delivery.
// Failed writes are republished with an incremented retry count until
// MaxRetries is reached, after which the message is dead-lettered.
func (w *LedgerWorker) ProcessMessage(ctx context.Context, msg queue.MessageInterface) error {
	env := msg.GetEnvelope()
	if env == nil {
		metrics.UsageEventsProcessed.WithLabelValues("invalid").Inc()
		_ = msg.Nack(false)
		return fmt.Errorf("message has no envelope")
	}
	if err := env.Validate(); err != nil {
		metrics.UsageEventsProcessed.WithLabelValues("invalid").Inc()
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Warn("failed_to_nack_invalid_event", zap.Error(nackErr))
		}
		return fmt.Errorf("invalid usage event %s: %w", env.ID, err)
	}

	writeErr := w.writer.Insert(ctx, env.Event)
	if writeErr == nil {
		metrics.UsageEventsProcessed.WithLabelValues("written").Inc()
		if err := msg.Ack(); err != nil {
			return fmt.Errorf("failed to ack usage event %s: %w", env.ID, err)
		}
		w.logger.Debug("usage_event_written",
			zap.String("envelope_id", env.ID.String()),
			zap.String("feature", string(env.Event.Feature)),
			zap.Int("tokens_used", env.Event.TokensUsed),
		)
		return nil
	}

	if !env.CanRetry() || w.republisher == nil {
		metrics.UsageEventsProcessed.WithLabelValues("dead_lettered").Inc()
		if err := msg.Nack(false); err != nil {
			w.logger.Warn("failed_to_nack_usage_event", zap.Error(err))
		}
		return fmt.Errorf("usage event %s dead-lettered after %d retries: %w", env.ID, env.RetryCount, writeErr)
	}

	env.IncrementRetry()
	if err := w.republisher.Republish(ctx, env); err != nil {
		// Leave it on the queue rather than lose it
		metrics.UsageEventsProcessed.WithLabelValues("requeued").Inc()
		if nackErr := msg.Nack(true); nackErr != nil {
			w.logger.Warn("failed_to_requeue_usage_event", zap.Error(nackErr))
		}
		return fmt.Errorf("failed to republish usage event %s: %w", env.ID, err)
	}
	metrics.UsageEventsProcessed.WithLabelValues("retried").Inc()
	if err := msg.Ack(); err != nil {
		w.logger.Warn("failed_to_ack_retried_usage_event", zap.Error(err))
	}
	w.logger.Warn("usage_event_write_retrying",
		zap.String("envelope_id", env.ID.String()),
		zap.Int("retry_count", env.RetryCount),
		zap.Error(writeErr),
	)
	return nil
}

// Run processes messages until ctx is cancelled or the message channel closes.
func (w *LedgerWorker) Run(ctx context.Context, msgs <-chan *queue.Message, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgs:
			if !ok {
				w.logger.Info("message_channel_closed")
				return
			}
			if err := w.ProcessMessage(ctx, msg); err != nil {
				w.logger.Error("failed_to_process_usage_event", zap.Error(err))
			}
		}
	}
}
