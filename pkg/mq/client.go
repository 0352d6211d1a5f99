// Package mq provides a RabbitMQ client with automatic reconnection,
// used by the panel to publish irrigation alerts.
package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"agrovista.dev/panel/pkg/metrics"
)

const (
	// Delay between reconnection attempts after a connection failure.
	reconnectDelay = 5 * time.Second

	// Delay before re-initializing the channel after a channel exception.
	reInitDelay = 2 * time.Second

	// Initial interval for the Push retry backoff.
	pushInitialInterval = 100 * time.Millisecond

	// Ceiling for the Push retry backoff.
	pushMaxInterval = 10 * time.Second

	// Push attempts before giving up.
	pushMaxRetries = 5
)

var (
	errNotConnected  = errors.New("not connected to a server")
	errAlreadyClosed = errors.New("already closed: not connected to the server")
	errShutdown      = errors.New("client is shutting down")
	errNotAcked      = errors.New("publish was not acknowledged")
)

// Client publishes to and consumes from a single queue. It connects in
// the background and transparently re-establishes the connection and
// channel after failures; Push retries with exponential backoff while a
// reconnect is in flight.
type Client struct {
	mu              sync.Mutex
	logger          *slog.Logger
	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan struct{}
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	queueName       string
	ready           bool
	metrics         *metrics.MQMetrics
}

// New creates a client for the given queue and starts connecting to
// addr in the background.
func New(queueName, addr string, logger *slog.Logger) *Client {
	client := &Client{
		logger:    logger.With(slog.String("queue", queueName)),
		queueName: queueName,
		done:      make(chan struct{}),
	}
	go client.handleReconnect(addr)
	return client
}

// SetMetrics sets the metrics collector. Call before the first publish.
func (client *Client) SetMetrics(m *metrics.MQMetrics) {
	client.metrics = m
}

// handleReconnect loops forever establishing connections, backing off
// between failed attempts, until Close is called.
func (client *Client) handleReconnect(addr string) {
	for {
		client.setReady(false)
		client.logger.Info("attempting to connect")

		if client.metrics != nil {
			client.metrics.ReconnectAttempts.Inc()
		}

		conn, err := client.connect(addr)
		if err != nil {
			client.logger.Error("failed to connect, retrying", "error", err)

			select {
			case <-client.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		if done := client.handleReInit(conn); done {
			return
		}
	}
}

func (client *Client) connect(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		if client.metrics != nil {
			client.metrics.ConnectionStatus.Set(0)
		}
		return nil, err
	}

	client.changeConnection(conn)
	client.logger.Info("connected")

	if client.metrics != nil {
		client.metrics.ConnectionStatus.Set(1)
	}
	return conn, nil
}

// handleReInit re-creates the channel whenever it closes, until the
// connection itself closes (reconnect) or the client shuts down.
func (client *Client) handleReInit(conn *amqp.Connection) bool {
	for {
		client.setReady(false)

		if err := client.init(conn); err != nil {
			client.logger.Error("failed to initialize channel, retrying", "error", err)

			select {
			case <-client.done:
				return true
			case <-client.notifyConnClose:
				client.logger.Info("connection closed, reconnecting")
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		select {
		case <-client.done:
			return true
		case <-client.notifyConnClose:
			client.logger.Info("connection closed, reconnecting")
			return false
		case <-client.notifyChanClose:
			client.logger.Info("channel closed, re-running init")
		}
	}
}

// init opens a confirm-mode channel and declares the queue.
func (client *Client) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.Confirm(false); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(
		client.queueName,
		false, // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	); err != nil {
		return err
	}

	client.changeChannel(ch)
	client.setReady(true)
	client.logger.Info("client init done")
	return nil
}

func (client *Client) changeConnection(connection *amqp.Connection) {
	client.connection = connection
	client.notifyConnClose = make(chan *amqp.Error, 1)
	client.connection.NotifyClose(client.notifyConnClose)
}

func (client *Client) changeChannel(channel *amqp.Channel) {
	client.channel = channel
	client.notifyChanClose = make(chan *amqp.Error, 1)
	client.notifyConfirm = make(chan amqp.Confirmation, 1)
	client.channel.NotifyClose(client.notifyChanClose)
	client.channel.NotifyPublish(client.notifyConfirm)
}

func (client *Client) setReady(ready bool) {
	client.mu.Lock()
	client.ready = ready
	client.mu.Unlock()
}

func (client *Client) isReady() bool {
	client.mu.Lock()
	defer client.mu.Unlock()
	return client.ready
}

// Push publishes data to the queue and waits for the broker's
// confirmation. Attempts that fail because the client is disconnected
// or the broker nacked are retried with exponential backoff, leaving
// time for the reconnect loop to recover; after pushMaxRetries failed
// attempts the last error is returned.
func (client *Client) Push(ctx context.Context, data []byte) error {
	var timer *prometheus.Timer
	if client.metrics != nil {
		timer = prometheus.NewTimer(client.metrics.PushDuration.WithLabelValues(client.queueName))
		defer timer.ObserveDuration()
	}

	attempt := func() error {
		select {
		case <-client.done:
			return backoff.Permanent(errShutdown)
		default:
		}

		if !client.isReady() {
			client.logger.Info("not connected, waiting for reconnection")
			return errNotConnected
		}

		if err := client.UnsafePush(ctx, data); err != nil {
			client.logger.Error("push failed, retrying", "error", err)
			return err
		}

		select {
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		case confirm := <-client.notifyConfirm:
			if !confirm.Ack {
				client.logger.Warn("push not acknowledged, retrying",
					"delivery_tag", confirm.DeliveryTag)
				return errNotAcked
			}
			client.logger.Info("push confirmed", "delivery_tag", confirm.DeliveryTag)
			return nil
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = pushInitialInterval
	policy.MaxInterval = pushMaxInterval
	policy.MaxElapsedTime = 0

	err := backoff.Retry(attempt, backoff.WithContext(
		backoff.WithMaxRetries(policy, pushMaxRetries), ctx))
	if err != nil {
		if client.metrics != nil {
			client.metrics.PushFailures.WithLabelValues(client.queueName, failureCause(err)).Inc()
		}
		return err
	}

	if client.metrics != nil {
		client.metrics.MessagesPushed.WithLabelValues(client.queueName).Inc()
	}
	return nil
}

func failureCause(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context_canceled"
	case errors.Is(err, errShutdown):
		return "shutdown"
	case errors.Is(err, errNotAcked):
		return "nacked"
	case errors.Is(err, errNotConnected):
		return "not_connected"
	default:
		return "publish_error"
	}
}

// UnsafePush publishes without waiting for a confirmation. No delivery
// guarantee is provided.
func (client *Client) UnsafePush(ctx context.Context, data []byte) error {
	if !client.isReady() {
		return errNotConnected
	}

	return client.channel.PublishWithContext(
		ctx,
		"",               // Exchange
		client.queueName, // Routing key
		false,            // Mandatory
		false,            // Immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        data,
		},
	)
}

// Consume returns a delivery channel for the queue. Callers must Ack or
// Nack every delivery, otherwise messages pile up on the broker.
func (client *Client) Consume() (<-chan amqp.Delivery, error) {
	if !client.isReady() {
		return nil, errNotConnected
	}

	if err := client.channel.Qos(
		1,     // prefetchCount
		0,     // prefetchSize
		false, // global
	); err != nil {
		return nil, err
	}

	return client.channel.Consume(
		client.queueName,
		"",    // Consumer
		false, // Auto-Ack
		false, // Exclusive
		false, // No-local
		false, // No-Wait
		nil,   // Args
	)
}

// Close shuts down the channel and connection and stops the reconnect
// loop.
func (client *Client) Close() error {
	client.mu.Lock()
	defer client.mu.Unlock()

	if !client.ready {
		return errAlreadyClosed
	}
	close(client.done)

	if err := client.channel.Close(); err != nil {
		return err
	}
	if err := client.connection.Close(); err != nil {
		return err
	}
	client.ready = false

	if client.metrics != nil {
		client.metrics.ConnectionStatus.Set(0)
	}
	return nil
}
