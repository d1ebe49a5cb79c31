package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Session wraps an AMQP channel opened on the shared connection. A session
// must be closed before the connection that owns it.
type Session struct {
	ch         *amqp.Channel
	id         string
	transacted bool
	logger     *slog.Logger
	mu         sync.Mutex
	closed     bool
}

// SessionOption configures the session
type SessionOption func(*Session)

// WithTransacted puts the underlying channel in transactional mode
func WithTransacted(transacted bool) SessionOption {
	return func(s *Session) {
		s.transacted = transacted
	}
}

// WithSessionLogger sets the logger
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// OpenSession opens a channel on conn and applies the session options
func OpenSession(conn *amqp.Connection, options ...SessionOption) (*Session, error) {
	s := &Session{
		id:     uuid.New().String(),
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(s)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, &SessionError{
			Op:        "open",
			SessionID: s.id,
			Err:       err,
			Timestamp: time.Now(),
		}
	}
	s.ch = ch

	if s.transacted {
		if err := ch.Tx(); err != nil {
			ch.Close()
			return nil, &SessionError{
				Op:        "tx select",
				SessionID: s.id,
				Err:       err,
				Timestamp: time.Now(),
			}
		}
	}

	return s, nil
}

// ID returns the session identity
func (s *Session) ID() string {
	return s.id
}

// Transacted reports whether the session is transactional
func (s *Session) Transacted() bool {
	return s.transacted
}

// Publish sends one message to the named queue through the default exchange
func (s *Session) Publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	if err := s.ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return &SessionError{
			Op:        "publish",
			SessionID: s.id,
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	return nil
}

// Consume starts delivering messages from the named queue. The returned
// channel is closed when the session or connection closes.
func (s *Session) Consume(queue string, autoAck bool) (<-chan amqp.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	deliveries, err := s.ch.Consume(queue, s.id, autoAck, false, false, false, nil)
	if err != nil {
		return nil, &SessionError{
			Op:        "consume",
			SessionID: s.id,
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	return deliveries, nil
}

// Commit commits the open transaction. Only valid on transacted sessions.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if !s.transacted {
		return &SessionError{
			Op:        "commit",
			SessionID: s.id,
			Err:       ErrNotTransacted,
			Timestamp: time.Now(),
		}
	}

	if err := s.ch.TxCommit(); err != nil {
		return &SessionError{
			Op:        "commit",
			SessionID: s.id,
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	return nil
}

// Close closes the underlying channel. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.ch.Close(); err != nil {
		s.logger.Error("failed to close session", "sessionId", s.id, "error", err)
		return &SessionError{
			Op:        "close",
			SessionID: s.id,
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	return nil
}
