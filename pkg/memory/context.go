// Package memory implements the (user_id, key) UserContext store and
// the working-memory assembly that injects it, along with deliverable,
// platform, and activity-system state, into the orchestrator and
// deliverable agent prompts (spec §3, §4.5).
package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
	sharederrors "github.com/kvkthecreator/yarnnn/pkg/shared/errors"
)

// Store is the persistence port for UserContext entries.
type Store interface {
	Upsert(ctx context.Context, uc domain.UserContext) error
	Get(ctx context.Context, userID uuid.UUID, key string) (*domain.UserContext, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.UserContext, error)
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

// Upsert writes uc, but only if its source dominates (domain.Dominates)
// whatever source last wrote this (user_id, key) — a weaker source
// (e.g. an inferred pattern) must never clobber a stronger one (e.g.
// something the user stated directly). The priority ranking is
// expressed as a SQL CASE so the check and the write are one atomic
// statement rather than a separate read-then-write race.
func (s *PostgresStore) Upsert(ctx context.Context, uc domain.UserContext) error {
	const stmt = `
INSERT INTO user_context (user_id, key, value, source, confidence, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, key) DO UPDATE
SET value = EXCLUDED.value, source = EXCLUDED.source, confidence = EXCLUDED.confidence, updated_at = EXCLUDED.updated_at
WHERE ` + sourceRank("EXCLUDED.source") + ` <= ` + sourceRank("user_context.source")

	if _, err := s.pool.Exec(ctx, stmt, uc.UserID, uc.Key, uc.Value, uc.Source, uc.Confidence, uc.UpdatedAt); err != nil {
		return sharederrors.FailedToOn("upsert user context", "memory", uc.Key, err)
	}
	return nil
}

// sourceRank renders a SQL CASE expression mirroring domain.Priority's
// ranking, lowest-wins, for use in a WHERE clause comparison.
func sourceRank(column string) string {
	return `(CASE ` + column +
		` WHEN '` + string(domain.SourceUserStated) + `' THEN 0` +
		` WHEN '` + string(domain.SourceConversation) + `' THEN 1` +
		` WHEN '` + string(domain.SourceFeedback) + `' THEN 2` +
		` WHEN '` + string(domain.SourcePattern) + `' THEN 3` +
		` ELSE 4 END)`
}

func (s *PostgresStore) Get(ctx context.Context, userID uuid.UUID, key string) (*domain.UserContext, error) {
	const stmt = `SELECT user_id, key, value, source, confidence, updated_at FROM user_context WHERE user_id = $1 AND key = $2`
	var uc domain.UserContext
	err := s.pool.QueryRow(ctx, stmt, userID, key).Scan(&uc.UserID, &uc.Key, &uc.Value, &uc.Source, &uc.Confidence, &uc.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, sharederrors.FailedToOn("get user context", "memory", key, err)
	}
	return &uc, nil
}

func (s *PostgresStore) List(ctx context.Context, userID uuid.UUID) ([]domain.UserContext, error) {
	const stmt = `SELECT user_id, key, value, source, confidence, updated_at FROM user_context WHERE user_id = $1 LIMIT $2`
	rows, err := s.pool.Query(ctx, stmt, userID, maxContextEntries)
	if err != nil {
		return nil, sharederrors.FailedToOn("list user context", "memory", userID.String(), err)
	}
	defer rows.Close()

	var out []domain.UserContext
	for rows.Next() {
		var uc domain.UserContext
		if err := rows.Scan(&uc.UserID, &uc.Key, &uc.Value, &uc.Source, &uc.Confidence, &uc.UpdatedAt); err != nil {
			return nil, sharederrors.FailedToOn("scan user context", "memory", userID.String(), err)
		}
		out = append(out, uc)
	}
	return out, rows.Err()
}

// Remember builds and upserts a UserContext entry with the current
// timestamp, the common call shape for memory-writing callers
// (conversation turns, feedback capture, pattern detection).
func Remember(ctx context.Context, store Store, userID uuid.UUID, key, value string, source domain.ContextSource, confidence float64) error {
	return store.Upsert(ctx, domain.UserContext{
		UserID:     userID,
		Key:        key,
		Value:      value,
		Source:     source,
		Confidence: confidence,
		UpdatedAt:  time.Now(),
	})
}
