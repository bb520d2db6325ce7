package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// LogoutEvent represents a logout event
type LogoutEvent struct {
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

// NavigationEvent asks the client surface to hard-navigate to Path
type NavigationEvent struct {
	Path string `json:"path"`
}

// WatermillPublisher implements the EventPublisher and Navigator interfaces using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

var (
	_ ports.EventPublisher = (*WatermillPublisher)(nil)
	_ ports.Navigator      = (*WatermillPublisher)(nil)
)

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string, reason string) error {
	return p.publish(ctx, core.TopicLogout, LogoutEvent{
		Address: address,
		Reason:  reason,
	})
}

// Navigate publishes a navigation event
func (p *WatermillPublisher) Navigate(ctx context.Context, path string) error {
	return p.publish(ctx, core.TopicNavigate, NavigationEvent{Path: path})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
