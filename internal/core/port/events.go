package port

import (
	"context"

	"github.com/Ajirohack/API/internal/core/domain"
)

// EventPublisher publishes gateway lifecycle events to the message bus.
type EventPublisher interface {
	PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error
	PublishConnectionOpened(ctx context.Context, event domain.ConnectionOpenedEvent) error
	PublishConnectionClosed(ctx context.Context, event domain.ConnectionClosedEvent) error
}
