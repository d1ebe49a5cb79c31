package rabbitmq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueDeclaration defines a queue to be declared
type QueueDeclaration struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	Arguments  amqp.Table
}

// TopologyManager declares broker topology on a session
type TopologyManager struct {
	session *Session
}

// NewTopologyManager creates a new topology manager
func NewTopologyManager(session *Session) *TopologyManager {
	return &TopologyManager{
		session: session,
	}
}

// DeclareQueue declares a single queue
func (tm *TopologyManager) DeclareQueue(ctx context.Context, queue QueueDeclaration) (amqp.Queue, error) {
	if queue.Name == "" {
		return amqp.Queue{}, &TopologyError{
			Component: "queue",
			Name:      queue.Name,
			Op:        "declare",
			Err:       ErrInvalidTopology,
			Timestamp: time.Now(),
		}
	}

	tm.session.mu.Lock()
	defer tm.session.mu.Unlock()

	if tm.session.closed {
		return amqp.Queue{}, ErrSessionClosed
	}

	q, err := tm.session.ch.QueueDeclare(
		queue.Name,
		queue.Durable,
		queue.AutoDelete,
		queue.Exclusive,
		false,
		queue.Arguments,
	)
	if err != nil {
		return amqp.Queue{}, &TopologyError{
			Component: "queue",
			Name:      queue.Name,
			Op:        "declare",
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	return q, nil
}

// PurgeQueue drops all ready messages from a queue
func (tm *TopologyManager) PurgeQueue(ctx context.Context, name string) (int, error) {
	tm.session.mu.Lock()
	defer tm.session.mu.Unlock()

	if tm.session.closed {
		return 0, ErrSessionClosed
	}

	n, err := tm.session.ch.QueuePurge(name, false)
	if err != nil {
		return 0, &TopologyError{
			Component: "queue",
			Name:      name,
			Op:        "purge",
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	return n, nil
}
