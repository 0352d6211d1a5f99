package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ClientInterface is the queue surface the rest of the panel depends
// on, so alert publishing can be mocked in tests.
type ClientInterface interface {
	// Push publishes data and waits for the broker's confirmation,
	// retrying with backoff while the client reconnects.
	Push(ctx context.Context, data []byte) error

	// UnsafePush publishes without waiting for a confirmation.
	UnsafePush(ctx context.Context, data []byte) error

	// Consume returns a delivery channel. Every delivery must be
	// Acked or Nacked by the caller.
	Consume() (<-chan amqp.Delivery, error)

	// Close shuts down the channel and connection.
	Close() error
}

var _ ClientInterface = (*Client)(nil)
