package queue

import (
	"errors"
	"time"

	"github.com/benvon/focus-companion/internal/models"
	"github.com/google/uuid"
)

// DefaultMaxRetries is how often a ledger write is retried before the event is dead-lettered
const DefaultMaxRetries = 3

// Envelope wraps a usage event with its delivery bookkeeping
type Envelope struct {
	ID         uuid.UUID          `json:"id"`
	Event      *models.UsageEvent `json:"event"`
	CreatedAt  time.Time          `json:"created_at"`
	RetryCount int                `json:"retry_count"`
	MaxRetries int                `json:"max_retries"`
}

// NewEnvelope wraps ev for publishing
func NewEnvelope(ev *models.UsageEvent) *Envelope {
	return &Envelope{
		ID:         uuid.New(),
		Event:      ev,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: DefaultMaxRetries,
	}
}

// Validate checks that the envelope carries a usable event
func (e *Envelope) Validate() error {
	if e.Event == nil {
		return errors.New("envelope has no event")
	}
	if e.Event.UserID == "" {
		return errors.New("usage event has no user id")
	}
	if !e.Event.Feature.IsValid() {
		return errors.New("usage event has an unknown feature")
	}
	return nil
}

// CanRetry checks if the envelope can be retried
func (e *Envelope) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// IncrementRetry increments the retry count
func (e *Envelope) IncrementRetry() {
	e.RetryCount++
}
