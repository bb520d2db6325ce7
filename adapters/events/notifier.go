package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// WatermillNotifier implements the Notifier interface on a watermill publisher/subscriber pair
type WatermillNotifier struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
}

// NewWatermillNotifier creates a notifier over an existing publisher and subscriber
func NewWatermillNotifier(publisher message.Publisher, subscriber message.Subscriber, logger watermill.LoggerAdapter) *WatermillNotifier {
	return &WatermillNotifier{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     logger,
	}
}

// NewInProcessNotifier creates a notifier that only reaches subscribers in this process
func NewInProcessNotifier(logger watermill.LoggerAdapter) *WatermillNotifier {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
	return NewWatermillNotifier(pubSub, pubSub, logger)
}

// NewRedisNotifier creates a cross-process notifier backed by Redis streams.
// Every subscriber receives every notification (no consumer group).
// The publisher and subscriber each take ownership of their client; Close closes both,
// so the two clients must be distinct and not used elsewhere.
func NewRedisNotifier(publisherClient, subscriberClient redis.UniversalClient, logger watermill.LoggerAdapter) (*WatermillNotifier, error) {
	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client:     publisherClient,
		Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}

	subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:       subscriberClient,
		Unmarshaller: redisstream.DefaultMarshallerUnmarshaller{},
	}, logger)
	if err != nil {
		_ = publisher.Close()
		return nil, fmt.Errorf("failed to create redis subscriber: %w", err)
	}

	return NewWatermillNotifier(publisher, subscriber, logger), nil
}

// Publisher exposes the underlying publisher so other adapters can share it
func (n *WatermillNotifier) Publisher() message.Publisher {
	return n.publisher
}

// Notify publishes payload on topic
func (n *WatermillNotifier) Notify(ctx context.Context, topic string, payload string) error {
	msg := message.NewMessage(watermill.NewUUID(), []byte(payload))
	msg.SetContext(ctx)

	if err := n.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}

// Subscribe returns notifications on topic until ctx is done
func (n *WatermillNotifier) Subscribe(ctx context.Context, topic string) (<-chan ports.Notification, error) {
	messages, err := n.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	out := make(chan ports.Notification)
	go func() {
		defer close(out)
		for msg := range messages {
			notification := ports.Notification{Topic: topic, Payload: string(msg.Payload)}
			msg.Ack()

			select {
			case out <- notification:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close closes the publisher and the subscriber, together with the clients they own
func (n *WatermillNotifier) Close() error {
	pubErr := n.publisher.Close()
	if interface{}(n.subscriber) == interface{}(n.publisher) {
		return pubErr
	}
	return errors.Join(pubErr, n.subscriber.Close())
}
