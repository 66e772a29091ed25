package queue

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// PubSubPublisher implements Publisher on Google Cloud Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSubPublisher creates a Pub/Sub client and verifies the topic
// exists. It authenticates using Application Default Credentials.
func NewPubSubPublisher(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub, err := NewPubSubPublisherWithClient(ctx, client, topicID, logger)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil && logger != nil {
			logger.Warn("close pubsub client after setup failure", zap.Error(closeErr))
		}
		return nil, err
	}
	return pub, nil
}

// NewPubSubPublisherWithClient wraps an existing client; the caller is
// still responsible for creating the topic. Primarily for testing
// against the pstest fake server.
func NewPubSubPublisherWithClient(ctx context.Context, client *pubsub.Client, topicID string, logger *zap.Logger) (*PubSubPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %q does not exist", topicID)
	}
	return &PubSubPublisher{client: client, topic: topic, logger: logger}, nil
}

// Publish sends one message and waits for the server acknowledgment, so
// a nil return means the broker has durably accepted the message. It
// does not wait for any consumer to process it.
func (p *PubSubPublisher) Publish(ctx context.Context, payload []byte) (string, error) {
	result := p.topic.Publish(ctx, &pubsub.Message{Data: payload})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish to %q: %w", p.topic.ID(), err)
	}
	p.logger.Debug("message published",
		zap.String("topic", p.topic.ID()),
		zap.String("message_id", id),
	)
	return id, nil
}

// Close stops the topic's publish goroutines and closes the client.
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

// PubSubSubscriber implements Subscriber on Google Cloud Pub/Sub.
type PubSubSubscriber struct {
	client *pubsub.Client
	sub    *pubsub.Subscription
}

// NewPubSubSubscriber creates a Pub/Sub client and verifies the
// subscription exists.
func NewPubSubSubscriber(ctx context.Context, projectID, subscriptionID string) (*PubSubSubscriber, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	sub, err := verifySubscription(ctx, client, subscriptionID)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &PubSubSubscriber{client: client, sub: sub}, nil
}

// NewPubSubSubscriberWithClient wraps an existing client. Primarily for
// testing against the pstest fake server.
func NewPubSubSubscriberWithClient(ctx context.Context, client *pubsub.Client, subscriptionID string) (*PubSubSubscriber, error) {
	sub, err := verifySubscription(ctx, client, subscriptionID)
	if err != nil {
		return nil, err
	}
	return &PubSubSubscriber{client: client, sub: sub}, nil
}

func verifySubscription(ctx context.Context, client *pubsub.Client, subscriptionID string) (*pubsub.Subscription, error) {
	sub := client.Subscription(subscriptionID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check pubsub subscription %q: %w", subscriptionID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub subscription %q does not exist", subscriptionID)
	}
	return sub, nil
}

// Receive delivers messages to handler until ctx is canceled. Handler
// errors nack the message so the broker redelivers it later.
func (s *PubSubSubscriber) Receive(ctx context.Context, handler func(ctx context.Context, payload []byte) error) error {
	err := s.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := handler(ctx, msg.Data); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("receive from %q: %w", s.sub.ID(), err)
	}
	return nil
}

// Close closes the underlying client connection.
func (s *PubSubSubscriber) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
