package ports

import "context"

// Notification is a message received from an invalidation channel
type Notification struct {
	Topic   string
	Payload string
}

// Notifier is the external invalidation channel: same-process and cross-process
// signals such as credential invalidation or storage changes.
type Notifier interface {
	Notify(ctx context.Context, topic string, payload string) error
	Subscribe(ctx context.Context, topic string) (<-chan Notification, error)
}

// EventPublisher publishes session events to other instances
type EventPublisher interface {
	PublishLogout(ctx context.Context, address string, reason string) error
}

// Navigator performs the hard navigation back to the entry surface
type Navigator interface {
	Navigate(ctx context.Context, path string) error
}
