package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tandser/introq/directory"
)

// Consumer receives messages from a named destination. Run opens a session
// on the shared connection and starts one worker goroutine that drains the
// delivery channel, so per-message handling is single-threaded. The consumer
// has no terminal state of its own: it keeps listening until Close or until
// the shared connection goes away.
//
// The delivery counter survives across Run calls on the same instance. The
// stopwatch starts at construction and stops exactly once, when the counter
// reaches the expected count; at that point Done is closed as the explicit
// completion signal.
type Consumer struct {
	subscriber  Subscriber
	resolver    Resolver
	records     *RecordLog
	logger      *slog.Logger
	identity    string
	destination string
	ackMode     AckMode
	expected    int64

	watch    *Stopwatch
	received atomic.Int64
	done     chan struct{}
	doneOnce sync.Once

	mu  sync.Mutex
	sub Subscription
	err error
}

// ConsumerOption configures the consumer
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the diagnostic logger
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithConsumerIdentity sets the identity emitted in receive records
func WithConsumerIdentity(identity string) ConsumerOption {
	return func(c *Consumer) {
		c.identity = identity
	}
}

// WithConsumerDestination sets the symbolic destination name
func WithConsumerDestination(name string) ConsumerOption {
	return func(c *Consumer) {
		c.destination = name
	}
}

// WithConsumerRecords sets the record log
func WithConsumerRecords(records *RecordLog) ConsumerOption {
	return func(c *Consumer) {
		c.records = records
	}
}

// WithConsumerAckMode sets the session acknowledgment mode
func WithConsumerAckMode(mode AckMode) ConsumerOption {
	return func(c *Consumer) {
		c.ackMode = mode
	}
}

// NewConsumer creates a consumer expecting the given number of deliveries.
// The expected count must be positive. The stopwatch starts here.
func NewConsumer(subscriber Subscriber, resolver Resolver, expected int, options ...ConsumerOption) (*Consumer, error) {
	if expected <= 0 {
		return nil, fmt.Errorf("messaging: expected count must be positive, got %d", expected)
	}

	c := &Consumer{
		subscriber:  subscriber,
		resolver:    resolver,
		records:     NewRecordLog(nil),
		logger:      slog.Default(),
		identity:    "Consumer-main",
		destination: directory.QueueName,
		ackMode:     AckAuto,
		expected:    int64(expected),
		watch:       NewStopwatch(),
		done:        make(chan struct{}),
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// Run resolves the destination, opens a subscription, and starts the
// dispatch worker. It returns once the subscription is installed.
func (c *Consumer) Run(ctx context.Context) error {
	queue, err := c.resolver.Lookup(c.destination)
	if err != nil {
		return fmt.Errorf("resolve destination %q: %w", c.destination, err)
	}

	sub, err := c.subscriber.Subscribe(ctx, queue, c.ackMode)
	if err != nil {
		return fmt.Errorf("subscribe to %q: %w", queue, err)
	}

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	go c.dispatch(sub)

	c.logger.Info("consumer listening",
		"destination", queue,
		"ackMode", c.ackMode.String(),
		"expected", c.expected)

	return nil
}

// dispatch drains the delivery channel on a single worker goroutine. A
// handling error is fatal: it is recorded, the loop stops, and no nack is
// sent, matching the reference behavior of redelivery-by-broker.
func (c *Consumer) dispatch(sub Subscription) {
	for delivery := range sub.Deliveries() {
		if err := c.onMessage(sub, delivery); err != nil {
			c.logger.Error("failed to process delivery", "error", err)
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}
	}
}

// onMessage handles one delivery: record, acknowledge per mode, count.
// Acknowledgment happens before the message is counted.
func (c *Consumer) onMessage(sub Subscription, delivery Delivery) error {
	text := string(delivery.Body())
	c.records.Received(Fingerprint(text), c.identity)

	if c.ackMode == AckClient {
		if err := delivery.Acknowledge(); err != nil {
			return fmt.Errorf("acknowledge message: %w", err)
		}
	}
	if c.ackMode == AckTransacted {
		if err := sub.Commit(); err != nil {
			return fmt.Errorf("commit session: %w", err)
		}
	}

	if c.received.Add(1) == c.expected {
		if elapsed, stopped := c.watch.Stop(); stopped {
			c.records.Stopwatch(elapsed)
		}
		c.doneOnce.Do(func() { close(c.done) })
	}

	return nil
}

// Done is closed once the expected number of deliveries has been counted
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

// Received returns the number of deliveries counted so far
func (c *Consumer) Received() int64 {
	return c.received.Load()
}

// Err returns the error that stopped the dispatch worker, if any
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close releases the subscription and its session. Closing twice, or before
// Run, is a no-op.
func (c *Consumer) Close() error {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Close()
}
