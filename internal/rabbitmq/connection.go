package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Resolver looks up broker resources by symbolic name.
type Resolver interface {
	Lookup(name string) (string, error)
}

// ConnectionManager lazily creates and caches the single shared RabbitMQ
// connection used by every role in the process. The connection is dialed on
// first use and lives until Close. There is no automatic reconnection: a
// failed lookup or dial is fatal to the caller.
type ConnectionManager struct {
	resolver    Resolver
	factoryName string
	dialTimeout time.Duration
	logger      *slog.Logger
	mu          sync.Mutex
	conn        *amqp.Connection
}

// ConnectionOption configures the ConnectionManager
type ConnectionOption func(*ConnectionManager)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.logger = logger
	}
}

// WithFactoryName sets the symbolic name resolved to the broker URL
func WithFactoryName(name string) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.factoryName = name
	}
}

// WithDialTimeout sets the dial timeout
func WithDialTimeout(timeout time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.dialTimeout = timeout
	}
}

// NewConnectionManager creates a new connection manager. The connection is
// not dialed until the first GetOrCreate call.
func NewConnectionManager(resolver Resolver, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		resolver:    resolver,
		factoryName: "ConnectionFactory",
		dialTimeout: 30 * time.Second,
		logger:      slog.Default(),
	}

	for _, opt := range options {
		opt(cm)
	}

	return cm
}

// GetOrCreate returns the shared connection, dialing it on first use. All
// callers of the same manager share one physical connection.
func (cm *ConnectionManager) GetOrCreate(ctx context.Context) (*amqp.Connection, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.conn != nil {
		if cm.conn.IsClosed() {
			return nil, ErrConnectionClosed
		}
		return cm.conn, nil
	}

	url, err := cm.resolver.Lookup(cm.factoryName)
	if err != nil {
		return nil, &ConnectionError{
			Op:        "lookup",
			URL:       cm.factoryName,
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	connCtx, cancel := context.WithTimeout(ctx, cm.dialTimeout)
	defer cancel()

	connChan := make(chan *amqp.Connection, 1)
	errChan := make(chan error, 1)

	go func() {
		conn, err := amqp.Dial(url)
		if err != nil {
			errChan <- err
			return
		}
		connChan <- conn
	}()

	select {
	case conn := <-connChan:
		cm.conn = conn
		cm.logger.Info("connected to RabbitMQ",
			"url", SanitizeURL(url),
			"factory", cm.factoryName)
		return conn, nil

	case err := <-errChan:
		return nil, &ConnectionError{
			Op:        "connect",
			URL:       SanitizeURL(url),
			Err:       err,
			Timestamp: time.Now(),
		}

	case <-connCtx.Done():
		return nil, &ConnectionError{
			Op:        "connect",
			URL:       SanitizeURL(url),
			Err:       connCtx.Err(),
			Timestamp: time.Now(),
		}
	}
}

// IsConnected reports whether a live connection is cached
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.conn != nil && !cm.conn.IsClosed()
}

// Close closes the shared connection. Closing twice, or closing a manager
// that never dialed, is a no-op.
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.conn == nil {
		return nil
	}

	conn := cm.conn
	cm.conn = nil

	if conn.IsClosed() {
		return nil
	}

	if err := conn.Close(); err != nil {
		cm.logger.Error("failed to close connection", "error", err)
		return &ConnectionError{
			Op:        "close",
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	cm.logger.Info("connection closed")
	return nil
}
