package messaging

import "context"

// Resolver looks up broker resources by symbolic name
type Resolver interface {
	Lookup(name string) (string, error)
}

// Sender publishes text payloads to one destination over one session
type Sender interface {
	// Send publishes one text payload
	Send(ctx context.Context, text string) error

	// Commit commits the session transaction; no-op unless transacted
	Commit() error

	// Close releases the session
	Close() error
}

// SenderFactory opens a sender bound to a destination with the given
// acknowledgment and delivery modes
type SenderFactory interface {
	NewSender(ctx context.Context, queue string, ackMode AckMode, deliveryMode DeliveryMode) (Sender, error)
}

// Delivery is one message handed to the consumer
type Delivery interface {
	// Body returns the message payload
	Body() []byte

	// Acknowledge marks the message as consumed. Mandatory under client
	// acknowledgment mode; omitting it causes broker redelivery.
	Acknowledge() error
}

// Subscription is an active delivery stream for one destination
type Subscription interface {
	// Deliveries returns the stream of incoming messages. The channel is
	// closed when the subscription or the underlying connection closes.
	Deliveries() <-chan Delivery

	// Commit commits the session transaction; no-op unless transacted
	Commit() error

	// Close releases the subscription and its session
	Close() error
}

// Subscriber opens delivery streams on the shared connection
type Subscriber interface {
	Subscribe(ctx context.Context, queue string, ackMode AckMode) (Subscription, error)
}
