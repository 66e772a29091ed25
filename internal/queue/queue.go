// Package queue defines the interfaces for the message broker carrying
// asynchronous ingest work. The abstraction keeps the application
// independent of a specific broker implementation (GCP Pub/Sub,
// RabbitMQ, Kafka).
package queue

import (
	"context"
)

// Publisher sends messages to the ingest work topic.
type Publisher interface {
	// Publish enqueues one message and blocks until the broker
	// acknowledges the enqueue. It returns the broker-assigned message
	// id. Delivery to consumers is at-least-once.
	Publish(ctx context.Context, payload []byte) (string, error)

	// Close cleans up any client connections and resources.
	Close() error
}

// Subscriber consumes messages from the ingest work subscription.
type Subscriber interface {
	// Receive blocks, invoking handler for each delivered message until
	// ctx is canceled. A nil handler result acks the message; an error
	// nacks it for redelivery.
	Receive(ctx context.Context, handler func(ctx context.Context, payload []byte) error) error

	// Close cleans up any client connections and resources.
	Close() error
}

// NoOpPublisher is a publisher that performs no operations. It is useful
// for running the service without a real broker.
type NoOpPublisher struct{}

// Publish for NoOpPublisher does nothing and returns a placeholder id.
func (NoOpPublisher) Publish(_ context.Context, _ []byte) (string, error) {
	return "noop-message-id", nil
}

// Close for NoOpPublisher does nothing and returns nil.
func (NoOpPublisher) Close() error { return nil }
