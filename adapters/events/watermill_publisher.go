package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/carboncopyrefi/frf-front/core"
	"github.com/carboncopyrefi/frf-front/ports"
)

const (
	// TopicAuthChanged carries every Auth Store transition
	TopicAuthChanged = "frf.auth.changed"
	// TopicSignOut carries sign-outs
	TopicSignOut = "frf.auth.signout"
)

// AuthChangedEvent represents an authentication state change
type AuthChangedEvent struct {
	Authenticated bool   `json:"authenticated"`
	Role          string `json:"role,omitempty"`
}

// SignOutEvent represents a sign-out
type SignOutEvent struct {
	Address string `json:"address"`
	TokenID string `json:"token_id,omitempty"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishAuthChanged publishes an auth state change event
func (p *WatermillPublisher) PublishAuthChanged(ctx context.Context, state core.AuthState) error {
	return p.publish(ctx, TopicAuthChanged, AuthChangedEvent{
		Authenticated: state.Authenticated,
		Role:          string(state.Role),
	})
}

// PublishSignOut publishes a sign-out event
func (p *WatermillPublisher) PublishSignOut(ctx context.Context, address string, tokenID string) error {
	return p.publish(ctx, TopicSignOut, SignOutEvent{
		Address: address,
		TokenID: tokenID,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
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

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishAuthChanged(context.Context, core.AuthState) error { return nil }
func (NopPublisher) PublishSignOut(context.Context, string, string) error     { return nil }
