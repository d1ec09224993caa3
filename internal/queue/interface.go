package queue

import (
	"context"

	"github.com/benvon/focus-companion/internal/models"
)

// MessageInterface is what the ledger worker needs from a delivery.
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetEnvelope() *Envelope
}

// Publisher accepts usage events for the ledger
type Publisher interface {
	Publish(ctx context.Context, ev *models.UsageEvent) error
}

// Republisher puts an envelope back on the queue after a failed attempt
type Republisher interface {
	Republish(ctx context.Context, env *Envelope) error
}

// LedgerWriter persists usage events
type LedgerWriter interface {
	Insert(ctx context.Context, ev *models.UsageEvent) error
}

// UsageQueue carries usage events from the API to the ledger worker.
type UsageQueue interface {
	Publisher
	Republisher
	DLQPurger

	// Consume streams deliveries until ctx ends or the broker closes the
	// channel. Each message must be settled by the caller; at most
	// prefetchCount are outstanding at once.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)
	HealthCheck(ctx context.Context) error
	Close() error
}
