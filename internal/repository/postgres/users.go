package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/core/port"
	"github.com/Ajirohack/API/internal/repository"
)

// UserDirectoryRepository adapts the platform's user table to the gateway's
// read-only directory port. Account CRUD belongs to the account service.
type UserDirectoryRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

// NewUserDirectoryRepository constructs a new user directory repository.
func NewUserDirectoryRepository(pool *pgxpool.Pool) *UserDirectoryRepository {
	return &UserDirectoryRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetUser fetches the account projection for the supplied id.
func (r *UserDirectoryRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, repository.ErrNotFound
	}

	sql, args, err := r.builder.Select("id", "username", "roles", "active", "created_at").
		From("gateway.users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user select: %w", err)
	}

	var user domain.User
	row := r.pool.QueryRow(ctx, sql, args...)
	if err := row.Scan(&user.ID, &user.Username, &user.Roles, &user.Active, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &user, nil
}

var _ port.UserDirectory = (*UserDirectoryRepository)(nil)
