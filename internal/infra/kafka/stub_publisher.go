package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishTokenRevoked logs gateway.token.revoked events.
func (p *StubPublisher) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	payload := map[string]any{
		"jti":        event.JTI,
		"user_id":    event.Subject,
		"revoked_at": event.RevokedAt,
		"expires_at": event.ExpiresAt,
		"reason":     event.Reason,
	}
	p.logEvent("token.revoked", event.Subject, event.RevokedAt, payload)
	return nil
}

// PublishConnectionOpened logs gateway.connection.opened events.
func (p *StubPublisher) PublishConnectionOpened(_ context.Context, event domain.ConnectionOpenedEvent) error {
	payload := map[string]any{
		"connection_id": event.ConnectionID,
		"user_id":       event.Subject,
		"roles":         event.Roles,
		"opened_at":     event.OpenedAt,
	}
	p.logEvent("connection.opened", event.Subject, event.OpenedAt, payload)
	return nil
}

// PublishConnectionClosed logs gateway.connection.closed events.
func (p *StubPublisher) PublishConnectionClosed(_ context.Context, event domain.ConnectionClosedEvent) error {
	payload := map[string]any{
		"connection_id": event.ConnectionID,
		"user_id":       event.Subject,
		"closed_at":     event.ClosedAt,
		"reason":        event.Reason,
	}
	p.logEvent("connection.closed", event.Subject, event.ClosedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
