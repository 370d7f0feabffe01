package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/core/port"
)

// RevocationLogRepository is the durable revocation tier. It outlives cache
// restarts; a retention job prunes rows past their expiry out of band.
type RevocationLogRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

// NewRevocationLogRepository constructs a new revocation log repository.
func NewRevocationLogRepository(pool *pgxpool.Pool) *RevocationLogRepository {
	return &RevocationLogRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts a revoked token record. Re-appending the same JTI is a
// no-op, which keeps token revocation idempotent end to end.
func (r *RevocationLogRepository) Append(ctx context.Context, record domain.RevokedTokenRecord) error {
	if record.JTI == "" {
		return errors.New("jti must not be empty")
	}

	sql, args, err := r.builder.Insert("gateway.revoked_tokens").
		Columns("jti", "subject", "revoked_at", "expires_at", "reason").
		Values(record.JTI, record.Subject, record.RevokedAt, record.ExpiresAt, record.Reason).
		Suffix("ON CONFLICT (jti) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoked token insert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert revoked token: %w", err)
	}

	return nil
}

var _ port.RevocationLog = (*RevocationLogRepository)(nil)
