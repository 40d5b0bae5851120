// Package users is the account lookup the rest of the orchestrator
// resolves a user's tier, timezone and delivery email against:
// platform sync cadence (pkg/platformsync), deliverable email fallback
// (pkg/deliverable), and the scheduler's per-user work enumeration all
// key off a user ID alone and need this to resolve the rest.
package users

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	internalerrors "github.com/kvkthecreator/yarnnn/internal/errors"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
	sharederrors "github.com/kvkthecreator/yarnnn/pkg/shared/errors"
)

// Store is the persistence port for user accounts.
type Store interface {
	// Get returns the full account for userID.
	Get(ctx context.Context, userID uuid.UUID) (*domain.User, error)

	// Email resolves userID's registered email. Satisfies
	// pkg/deliverable.UserEmailLookup.
	Email(ctx context.Context, userID uuid.UUID) (string, error)
}

// PostgresStore is the production Store backed by pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPostgresStore wraps a connection pool.
func NewPostgresStore(pool *pgxpool.Pool, log *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, log: log}
}

func (s *PostgresStore) Get(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	const stmt = `SELECT id, email, tier, timezone FROM users WHERE id = $1`
	var u domain.User
	err := s.pool.QueryRow(ctx, stmt, userID).Scan(&u.ID, &u.Email, &u.Tier, &u.Timezone)
	if err == pgx.ErrNoRows {
		return nil, internalerrors.NotFound("get user "+userID.String(), err)
	}
	if err != nil {
		return nil, sharederrors.FailedToOn("query user", "user", userID.String(), err)
	}
	return &u, nil
}

func (s *PostgresStore) Email(ctx context.Context, userID uuid.UUID) (string, error) {
	const stmt = `SELECT email FROM users WHERE id = $1`
	var email string
	err := s.pool.QueryRow(ctx, stmt, userID).Scan(&email)
	if err == pgx.ErrNoRows {
		return "", internalerrors.NotFound("get user email "+userID.String(), err)
	}
	if err != nil {
		return "", sharederrors.FailedToOn("query user email", "user", userID.String(), err)
	}
	return email, nil
}
