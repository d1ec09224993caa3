package queue

import (
	"errors"

	"github.com/benvon/focus-companion/internal/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrNoChannel is returned when a delivery has lost the channel it arrived on.
	ErrNoChannel = errors.New("queue: delivery has no channel")
	// ErrSettled is returned when a delivery is acked or nacked twice.
	ErrSettled = errors.New("queue: delivery already settled")
)

// Message is one consumed usage event plus what is needed to settle it.
// A Message is settled at most once.
type Message struct {
	Envelope    *Envelope
	DeliveryTag uint64
	Channel     *amqp.Channel

	settled bool
}

// Ack marks the event as written to the ledger.
func (m *Message) Ack() error {
	return m.settle("ack", func(ch *amqp.Channel) error {
		return ch.Ack(m.DeliveryTag, false)
	})
}

// Nack hands the event back to the broker. Without requeue it goes to the DLQ.
func (m *Message) Nack(requeue bool) error {
	outcome := "drop"
	if requeue {
		outcome = "requeue"
	}
	return m.settle(outcome, func(ch *amqp.Channel) error {
		return ch.Nack(m.DeliveryTag, false, requeue)
	})
}

func (m *Message) settle(outcome string, fn func(*amqp.Channel) error) error {
	if m.settled {
		return ErrSettled
	}
	if m.Channel == nil {
		return ErrNoChannel
	}
	if err := fn(m.Channel); err != nil {
		return err
	}
	m.settled = true
	metrics.QueueSettlements.WithLabelValues(outcome).Inc()
	return nil
}

func (m *Message) GetEnvelope() *Envelope {
	return m.Envelope
}
