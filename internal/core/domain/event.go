package domain

import "time"

// EventMessage is a single immutable message on the in-process event bus.
type EventMessage struct {
	ID        string         `json:"id"`
	Topic     string         `json:"topic"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// ConnectionOpenedEvent is published when a real-time client completes the handshake.
type ConnectionOpenedEvent struct {
	EventID      string
	ConnectionID string
	Subject      string
	Roles        []string
	OpenedAt     time.Time
}

// ConnectionClosedEvent is published when a real-time client disconnects.
type ConnectionClosedEvent struct {
	EventID      string
	ConnectionID string
	Subject      string
	ClosedAt     time.Time
	Reason       string
}

// TokenRevokedEvent is published when a bearer token is revoked.
type TokenRevokedEvent struct {
	EventID   string
	JTI       string
	Subject   string
	RevokedAt time.Time
	ExpiresAt time.Time
	Reason    string
}
