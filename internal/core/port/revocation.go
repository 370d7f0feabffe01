package port

import (
	"context"
	"time"

	"github.com/Ajirohack/API/internal/core/domain"
)

// RevocationCache is the fast tier consulted on every token decode.
// Entries self-expire with the token they shadow.
type RevocationCache interface {
	MarkRevoked(ctx context.Context, jti string, reason string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, string, error)
}

// RevocationLog is the durable tier that survives cache eviction and restarts.
type RevocationLog interface {
	Append(ctx context.Context, record domain.RevokedTokenRecord) error
}
