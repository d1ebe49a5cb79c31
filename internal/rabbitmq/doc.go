// Package rabbitmq provides the RabbitMQ adapter layer for introq.
//
// This package includes:
//   - ConnectionManager: lazily dials and caches the single shared connection
//   - Session: a channel wrapper with optional transactional mode
//   - TopologyManager: declares the queues the demo runs against
//
// The connection is shared by every producer and consumer in the process and
// is closed exactly once by the driver. There is no reconnection or retry
// machinery: initialization failures are fatal to the role that hit them.
package rabbitmq
