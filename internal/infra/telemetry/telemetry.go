package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Ajirohack/API/internal/infra/config"
)

// Provider represents a telemetry provider handle.
type Provider struct {
	activeConnections prometheus.Gauge
	messagesDelivered *prometheus.CounterVec
	tokensRevoked     prometheus.Counter
}

// Attach configures telemetry exporters and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &Provider{
		activeConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "websocket_connections_active",
			Help:      "Number of currently open WebSocket connections",
		}),
		messagesDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "websocket_messages_delivered_total",
			Help:      "Messages delivered to WebSocket clients by direction",
		}, []string{"direction"}),
		tokensRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "tokens_revoked_total",
			Help:      "Total number of revoked bearer tokens",
		}),
	}, nil
}

// ActiveConnections exposes the open WebSocket connection gauge.
func (p *Provider) ActiveConnections() prometheus.Gauge {
	if p == nil {
		return prometheus.NewGauge(prometheus.GaugeOpts{})
	}
	return p.activeConnections
}

// MessagesDelivered exposes the per-direction WebSocket message counter.
func (p *Provider) MessagesDelivered(direction string) prometheus.Counter {
	if p == nil {
		return prometheus.NewCounter(prometheus.CounterOpts{})
	}
	return p.messagesDelivered.WithLabelValues(direction)
}

// TokensRevoked exposes the revoked-token counter.
func (p *Provider) TokensRevoked() prometheus.Counter {
	if p == nil {
		return prometheus.NewCounter(prometheus.CounterOpts{})
	}
	return p.tokensRevoked
}
