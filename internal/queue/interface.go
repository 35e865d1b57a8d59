package queue

import (
	"context"
)

// Delivery is one consumed event plus its acknowledgement handle.
type Delivery interface {
	Ack() error
	Nack(requeue bool) error
	Event() *Event
}

// EventStream is the interface for the mutation-event transport.
type EventStream interface {
	// Publish sends an event to the stream.
	Publish(ctx context.Context, event *Event) error

	// Consume returns a channel of deliveries. The caller must acknowledge
	// each delivery. Prefetch controls how many unacknowledged deliveries a
	// consumer may hold. The channel closes when ctx is cancelled or the
	// connection drops.
	Consume(ctx context.Context, prefetchCount int) (<-chan Delivery, <-chan error, error)

	// Close closes the stream connection.
	Close() error

	// HealthCheck verifies the connection is healthy.
	HealthCheck(ctx context.Context) error
}
