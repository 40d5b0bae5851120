// Package activity is the append-only event log the signal
// orchestrator and scheduler write to (spec §6), and the source the
// working-memory assembler reads the system-status summary from.
package activity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
	sharederrors "github.com/kvkthecreator/yarnnn/pkg/shared/errors"
)

// Store is the persistence port for the activity log. PostgresStore is
// the production implementation; package tests use an in-memory fake.
type Store interface {
	// Record appends an event. Satisfies pkg/signal.ActivityLogger.
	Record(ctx context.Context, event domain.ActivityEvent) error

	// LastEvent returns the most recent event of eventType for userID,
	// or nil if none exists.
	LastEvent(ctx context.Context, userID uuid.UUID, eventType domain.ActivityEventType) (*domain.ActivityEvent, error)

	// CountSince counts events of eventType for userID at or after since.
	CountSince(ctx context.Context, userID uuid.UUID, eventType domain.ActivityEventType, since time.Time) (int, error)

	// Recent returns userID's most recent events across all types, newest
	// first, capped at limit — the signal orchestrator's recentActivity
	// input (spec §4.3 Step 2).
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]domain.ActivityEvent, error)
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

func (s *PostgresStore) Record(ctx context.Context, event domain.ActivityEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return sharederrors.FailedToOn("marshal activity metadata", "activity", string(event.EventType), err)
	}
	const stmt = `
INSERT INTO activity_events (id, user_id, event_type, summary, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.pool.Exec(ctx, stmt, event.ID, event.UserID, event.EventType, event.Summary, metadata, event.CreatedAt); err != nil {
		return sharederrors.FailedToOn("record activity event", "activity", string(event.EventType), err)
	}
	return nil
}

func (s *PostgresStore) LastEvent(ctx context.Context, userID uuid.UUID, eventType domain.ActivityEventType) (*domain.ActivityEvent, error) {
	const stmt = `
SELECT id, user_id, event_type, summary, metadata, created_at
FROM activity_events
WHERE user_id = $1 AND event_type = $2
ORDER BY created_at DESC
LIMIT 1`
	row := s.pool.QueryRow(ctx, stmt, userID, eventType)
	event, err := scanActivityEvent(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, sharederrors.FailedToOn("query last activity event", "activity", string(eventType), err)
	}
	return event, nil
}

func (s *PostgresStore) CountSince(ctx context.Context, userID uuid.UUID, eventType domain.ActivityEventType, since time.Time) (int, error) {
	const stmt = `
SELECT COUNT(*)
FROM activity_events
WHERE user_id = $1 AND event_type = $2 AND created_at >= $3`
	var count int
	if err := s.pool.QueryRow(ctx, stmt, userID, eventType, since).Scan(&count); err != nil {
		return 0, sharederrors.FailedToOn("count activity events since", "activity", string(eventType), err)
	}
	return count, nil
}

func (s *PostgresStore) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]domain.ActivityEvent, error) {
	const stmt = `
SELECT id, user_id, event_type, summary, metadata, created_at
FROM activity_events
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`
	rows, err := s.pool.Query(ctx, stmt, userID, limit)
	if err != nil {
		return nil, sharederrors.FailedToOn("list recent activity", "activity", userID.String(), err)
	}
	defer rows.Close()

	var out []domain.ActivityEvent
	for rows.Next() {
		e, err := scanActivityEvent(rows)
		if err != nil {
			return nil, sharederrors.FailedToOn("scan recent activity", "activity", userID.String(), err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivityEvent(row rowScanner) (*domain.ActivityEvent, error) {
	var e domain.ActivityEvent
	var metadata []byte
	if err := row.Scan(&e.ID, &e.UserID, &e.EventType, &e.Summary, &metadata, &e.CreatedAt); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, err
		}
	}
	return &e, nil
}
