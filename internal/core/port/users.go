package port

import (
	"context"

	"github.com/Ajirohack/API/internal/core/domain"
)

// UserDirectory looks up platform accounts. Account CRUD lives in an
// external service; the gateway only needs existence and role data.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}
