package ports

import (
	"context"

	"github.com/carboncopyrefi/frf-front/core"
)

// EventPublisher publishes events to notify other processes
type EventPublisher interface {
	PublishAuthChanged(ctx context.Context, state core.AuthState) error
	PublishSignOut(ctx context.Context, address string, tokenID string) error
}
