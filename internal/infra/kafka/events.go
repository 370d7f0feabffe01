package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/core/port"
	"github.com/Ajirohack/API/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishTokenRevoked publishes gateway.token.revoked events.
func (p *EventPublisher) PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error {
	payload := struct {
		JTI       string    `json:"jti"`
		UserID    string    `json:"user_id"`
		RevokedAt time.Time `json:"revoked_at"`
		ExpiresAt time.Time `json:"expires_at"`
		Reason    string    `json:"reason,omitempty"`
	}{
		JTI:       event.JTI,
		UserID:    event.Subject,
		RevokedAt: event.RevokedAt.UTC(),
		ExpiresAt: event.ExpiresAt.UTC(),
		Reason:    event.Reason,
	}

	return p.publish(ctx, event.EventID, "token.revoked", event.Subject, event.RevokedAt, payload)
}

// PublishConnectionOpened publishes gateway.connection.opened events.
func (p *EventPublisher) PublishConnectionOpened(ctx context.Context, event domain.ConnectionOpenedEvent) error {
	payload := struct {
		ConnectionID string    `json:"connection_id"`
		UserID       string    `json:"user_id"`
		Roles        []string  `json:"roles"`
		OpenedAt     time.Time `json:"opened_at"`
	}{
		ConnectionID: event.ConnectionID,
		UserID:       event.Subject,
		Roles:        event.Roles,
		OpenedAt:     event.OpenedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "connection.opened", event.Subject, event.OpenedAt, payload)
}

// PublishConnectionClosed publishes gateway.connection.closed events.
func (p *EventPublisher) PublishConnectionClosed(ctx context.Context, event domain.ConnectionClosedEvent) error {
	payload := struct {
		ConnectionID string    `json:"connection_id"`
		UserID       string    `json:"user_id"`
		ClosedAt     time.Time `json:"closed_at"`
		Reason       string    `json:"reason,omitempty"`
	}{
		ConnectionID: event.ConnectionID,
		UserID:       event.Subject,
		ClosedAt:     event.ClosedAt.UTC(),
		Reason:       event.Reason,
	}

	return p.publish(ctx, event.EventID, "connection.closed", event.Subject, event.ClosedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
