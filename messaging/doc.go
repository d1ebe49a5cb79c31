// Package messaging implements the producer/consumer choreography for introq.
//
// This package includes:
//   - Producer: sends a bounded sequence of numbered text messages
//   - Consumer: drains deliveries on a dedicated worker and acknowledges them
//     according to the configured acknowledgment mode
//   - AckMode and DeliveryMode: the session and durability policies
//   - RecordLog: the stable Sent/Received/Stopwatch log line contract
//
// The broker is reached through the small transport interfaces in
// transport.go; the RabbitMQ implementation lives in transports/rabbitmq.
// Deliveries arrive over a Go channel consumed by a single worker goroutine,
// which keeps per-message handling single-threaded and testable.
package messaging
