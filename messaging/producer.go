package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tandser/introq/directory"
)

// Producer sends a bounded sequence of numbered text messages to a named
// destination. Each Run opens one session on the shared connection and
// releases it on every exit path. Send failures are fatal: nothing here
// retries.
type Producer struct {
	senders      SenderFactory
	resolver     Resolver
	records      *RecordLog
	logger       *slog.Logger
	identity     string
	destination  string
	ackMode      AckMode
	deliveryMode DeliveryMode
	count        int
}

// ProducerOption configures the producer
type ProducerOption func(*Producer)

// WithProducerLogger sets the diagnostic logger
func WithProducerLogger(logger *slog.Logger) ProducerOption {
	return func(p *Producer) {
		p.logger = logger
	}
}

// WithProducerIdentity sets the identity embedded in payloads and records
func WithProducerIdentity(identity string) ProducerOption {
	return func(p *Producer) {
		p.identity = identity
	}
}

// WithProducerDestination sets the symbolic destination name
func WithProducerDestination(name string) ProducerOption {
	return func(p *Producer) {
		p.destination = name
	}
}

// WithProducerRecords sets the record log
func WithProducerRecords(records *RecordLog) ProducerOption {
	return func(p *Producer) {
		p.records = records
	}
}

// WithAckMode sets the session acknowledgment mode
func WithAckMode(mode AckMode) ProducerOption {
	return func(p *Producer) {
		p.ackMode = mode
	}
}

// WithDeliveryMode sets the message durability mode
func WithDeliveryMode(mode DeliveryMode) ProducerOption {
	return func(p *Producer) {
		p.deliveryMode = mode
	}
}

// NewProducer creates a producer that will send count messages. The count
// must be positive.
func NewProducer(senders SenderFactory, resolver Resolver, count int, options ...ProducerOption) (*Producer, error) {
	if count <= 0 {
		return nil, fmt.Errorf("messaging: message count must be positive, got %d", count)
	}

	p := &Producer{
		senders:      senders,
		resolver:     resolver,
		records:      NewRecordLog(nil),
		logger:       slog.Default(),
		identity:     "Producer-main",
		destination:  directory.QueueName,
		ackMode:      AckAuto,
		deliveryMode: NonPersistent,
		count:        count,
	}

	for _, opt := range options {
		opt(p)
	}

	return p, nil
}

// Run resolves the destination, opens a session, and sends the configured
// number of messages. The session is released even when a send fails
// mid-loop. Message order as seen by a consumer is only as strong as the
// single-session send order.
func (p *Producer) Run(ctx context.Context) (err error) {
	queue, err := p.resolver.Lookup(p.destination)
	if err != nil {
		return fmt.Errorf("resolve destination %q: %w", p.destination, err)
	}

	sender, err := p.senders.NewSender(ctx, queue, p.ackMode, p.deliveryMode)
	if err != nil {
		return fmt.Errorf("open sender for %q: %w", queue, err)
	}
	defer func() {
		if cerr := sender.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close sender: %w", cerr))
		}
	}()

	for i := 0; i < p.count; i++ {
		text := fmt.Sprintf("Message %d from %s", i, p.identity)
		if err := sender.Send(ctx, text); err != nil {
			return fmt.Errorf("send message %d: %w", i, err)
		}
		p.records.Sent(Fingerprint(text), p.identity)
	}

	if p.ackMode == AckTransacted {
		if err := sender.Commit(); err != nil {
			return fmt.Errorf("commit session: %w", err)
		}
	}

	p.logger.Info("producer finished",
		"destination", queue,
		"count", p.count,
		"deliveryMode", p.deliveryMode.String())

	return nil
}
