// Package rabbitmq adapts the internal RabbitMQ layer to the messaging
// transport interfaces. One Transport wraps the shared connection manager;
// every sender and subscription it opens gets its own session, and all
// sessions must be released before the driver closes the connection.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tandser/introq/internal/rabbitmq"
	"github.com/tandser/introq/messaging"
)

// Transport opens senders and subscriptions on the shared connection
type Transport struct {
	manager *rabbitmq.ConnectionManager
	logger  *slog.Logger
}

// TransportOption configures the transport
type TransportOption func(*Transport)

// WithTransportLogger sets the logger
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport creates a transport over the given connection manager
func NewTransport(manager *rabbitmq.ConnectionManager, options ...TransportOption) *Transport {
	t := &Transport{
		manager: manager,
		logger:  slog.Default(),
	}

	for _, opt := range options {
		opt(t)
	}

	return t
}

var (
	_ messaging.SenderFactory = (*Transport)(nil)
	_ messaging.Subscriber    = (*Transport)(nil)
)

// Connect dials the shared connection if it does not exist yet
func (t *Transport) Connect(ctx context.Context) error {
	_, err := t.manager.GetOrCreate(ctx)
	return err
}

// IsConnected reports whether the shared connection is live
func (t *Transport) IsConnected() bool {
	return t.manager.IsConnected()
}

// Close closes the shared connection. Idempotent.
func (t *Transport) Close() error {
	return t.manager.Close()
}

// DeclareQueue declares the destination queue so the demo can run against a
// bare broker. It uses a short-lived session of its own.
func (t *Transport) DeclareQueue(ctx context.Context, queue string, durable bool) error {
	conn, err := t.manager.GetOrCreate(ctx)
	if err != nil {
		return err
	}

	session, err := rabbitmq.OpenSession(conn, rabbitmq.WithSessionLogger(t.logger))
	if err != nil {
		return err
	}
	defer session.Close()

	topology := rabbitmq.NewTopologyManager(session)
	_, err = topology.DeclareQueue(ctx, rabbitmq.QueueDeclaration{
		Name:    queue,
		Durable: durable,
	})
	return err
}

// NewSender opens a session and binds a sender to the destination queue
func (t *Transport) NewSender(ctx context.Context, queue string, ackMode messaging.AckMode, deliveryMode messaging.DeliveryMode) (messaging.Sender, error) {
	conn, err := t.manager.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	session, err := rabbitmq.OpenSession(conn,
		rabbitmq.WithTransacted(ackMode == messaging.AckTransacted),
		rabbitmq.WithSessionLogger(t.logger),
	)
	if err != nil {
		return nil, err
	}

	return &sender{
		session:      session,
		queue:        queue,
		deliveryMode: amqpDeliveryMode(deliveryMode),
	}, nil
}

// Subscribe opens a session and starts a delivery stream for the queue.
// Broker deliveries are forwarded onto a Go channel drained by the consumer's
// worker goroutine.
func (t *Transport) Subscribe(ctx context.Context, queue string, ackMode messaging.AckMode) (messaging.Subscription, error) {
	conn, err := t.manager.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	session, err := rabbitmq.OpenSession(conn,
		rabbitmq.WithTransacted(ackMode == messaging.AckTransacted),
		rabbitmq.WithSessionLogger(t.logger),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := session.Consume(queue, ackMode.AutoAck())
	if err != nil {
		session.Close()
		return nil, err
	}

	sub := &subscription{
		session: session,
		out:     make(chan messaging.Delivery),
		done:    make(chan struct{}),
	}
	go sub.forward(deliveries)

	return sub, nil
}

func amqpDeliveryMode(mode messaging.DeliveryMode) uint8 {
	if mode == messaging.Persistent {
		return amqp.Persistent
	}
	return amqp.Transient
}

// sender publishes text messages on its own session
type sender struct {
	session      *rabbitmq.Session
	queue        string
	deliveryMode uint8
}

func (s *sender) Send(ctx context.Context, text string) error {
	msg := amqp.Publishing{
		ContentType:  "text/plain",
		Body:         []byte(text),
		DeliveryMode: s.deliveryMode,
		MessageId:    uuid.New().String(),
		Timestamp:    time.Now(),
	}
	if err := s.session.Publish(ctx, s.queue, msg); err != nil {
		return fmt.Errorf("publish to %q: %w", s.queue, err)
	}
	return nil
}

func (s *sender) Commit() error {
	if !s.session.Transacted() {
		return nil
	}
	return s.session.Commit()
}

func (s *sender) Close() error {
	return s.session.Close()
}

// subscription forwards broker deliveries onto a plain Go channel
type subscription struct {
	session   *rabbitmq.Session
	out       chan messaging.Delivery
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscription) forward(deliveries <-chan amqp.Delivery) {
	defer close(s.out)
	for d := range deliveries {
		select {
		case s.out <- delivery{d}:
		case <-s.done:
			return
		}
	}
}

func (s *subscription) Deliveries() <-chan messaging.Delivery {
	return s.out
}

func (s *subscription) Commit() error {
	if !s.session.Transacted() {
		return nil
	}
	return s.session.Commit()
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.session.Close()
}

// delivery wraps one AMQP delivery
type delivery struct {
	d amqp.Delivery
}

func (d delivery) Body() []byte {
	return d.d.Body
}

func (d delivery) Acknowledge() error {
	return d.d.Ack(false)
}
