package event

import (
	"context"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/core/port"
)

// Topics carried on the in-process bus for gateway lifecycle events.
const (
	TopicTokenRevoked     = "token.revoked"
	TopicConnectionOpened = "connection.opened"
	TopicConnectionClosed = "connection.closed"
)

// BusPublisher mirrors lifecycle events onto the in-process bus, so local
// subscribers and late-joining pollers see the same stream that leaves the
// process through the message broker.
type BusPublisher struct {
	bus *Bus
}

// NewBusPublisher wires a bus into the port.EventPublisher shape.
func NewBusPublisher(bus *Bus) *BusPublisher {
	return &BusPublisher{bus: bus}
}

func (p *BusPublisher) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	p.bus.Publish(TopicTokenRevoked, map[string]any{
		"jti":        event.JTI,
		"user_id":    event.Subject,
		"revoked_at": event.RevokedAt,
		"expires_at": event.ExpiresAt,
		"reason":     event.Reason,
	})
	return nil
}

func (p *BusPublisher) PublishConnectionOpened(_ context.Context, event domain.ConnectionOpenedEvent) error {
	p.bus.Publish(TopicConnectionOpened, map[string]any{
		"connection_id": event.ConnectionID,
		"user_id":       event.Subject,
		"roles":         event.Roles,
		"opened_at":     event.OpenedAt,
	})
	return nil
}

func (p *BusPublisher) PublishConnectionClosed(_ context.Context, event domain.ConnectionClosedEvent) error {
	p.bus.Publish(TopicConnectionClosed, map[string]any{
		"connection_id": event.ConnectionID,
		"user_id":       event.Subject,
		"closed_at":     event.ClosedAt,
		"reason":        event.Reason,
	})
	return nil
}

var _ port.EventPublisher = (*BusPublisher)(nil)

// CombinePublishers fans every lifecycle event out to all the supplied
// publishers. The first error wins but every publisher still runs.
func CombinePublishers(publishers ...port.EventPublisher) port.EventPublisher {
	return multiPublisher(publishers)
}

type multiPublisher []port.EventPublisher

func (m multiPublisher) PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error {
	var first error
	for _, p := range m {
		if err := p.PublishTokenRevoked(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m multiPublisher) PublishConnectionOpened(ctx context.Context, event domain.ConnectionOpenedEvent) error {
	var first error
	for _, p := range m {
		if err := p.PublishConnectionOpened(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m multiPublisher) PublishConnectionClosed(ctx context.Context, event domain.ConnectionClosedEvent) error {
	var first error
	for _, p := range m {
		if err := p.PublishConnectionClosed(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ port.EventPublisher = (multiPublisher)(nil)
