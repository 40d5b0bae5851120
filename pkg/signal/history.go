package signal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
	sharederrors "github.com/kvkthecreator/yarnnn/pkg/shared/errors"
)

// DedupWindow is how long a (user, deliverable_type, signal_ref) combo
// stays ineligible for re-triggering after being recorded.
const DedupWindow = 24 * time.Hour

// HistoryStore is the persistence port for signal dedup records.
type HistoryStore interface {
	Eligible(ctx context.Context, userID uuid.UUID, deliverableType, signalRef string, window time.Duration) (bool, error)
	Record(ctx context.Context, entry domain.SignalHistory) error
}

// PostgresHistoryStore is the production HistoryStore.
type PostgresHistoryStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPostgresHistoryStore wraps a connection pool.
func NewPostgresHistoryStore(pool *pgxpool.Pool, log *zap.Logger) *PostgresHistoryStore {
	return &PostgresHistoryStore{pool: pool, log: log}
}

// Eligible reports whether (userID, deliverableType, signalRef) has
// NOT been recorded within window. An empty signalRef is always
// eligible — not every action carries one (spec §4.3 Step 3).
func (s *PostgresHistoryStore) Eligible(ctx context.Context, userID uuid.UUID, deliverableType, signalRef string, window time.Duration) (bool, error) {
	if signalRef == "" {
		return true, nil
	}
	const stmt = `
SELECT NOT EXISTS (
	SELECT 1 FROM signal_history
	WHERE user_id = $1 AND deliverable_type = $2 AND signal_ref = $3 AND created_at > $4
)`
	var eligible bool
	if err := s.pool.QueryRow(ctx, stmt, userID, deliverableType, signalRef, time.Now().Add(-window)).Scan(&eligible); err != nil {
		return false, sharederrors.FailedToOn("check signal eligibility", "signal", signalRef, err)
	}
	return eligible, nil
}

// Record inserts a dedup row for entry.
func (s *PostgresHistoryStore) Record(ctx context.Context, entry domain.SignalHistory) error {
	const stmt = `
INSERT INTO signal_history (user_id, deliverable_type, signal_ref, created_at)
VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(ctx, stmt, entry.UserID, entry.DeliverableType, entry.SignalRef, entry.CreatedAt); err != nil {
		return sharederrors.FailedToOn("record signal history", "signal", entry.SignalRef, err)
	}
	return nil
}

// MemoryHistoryStore is an in-memory HistoryStore for tests and
// single-process deployments.
type MemoryHistoryStore struct {
	entries []domain.SignalHistory
}

// NewMemoryHistoryStore constructs an empty MemoryHistoryStore.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{}
}

func (m *MemoryHistoryStore) Eligible(_ context.Context, userID uuid.UUID, deliverableType, signalRef string, window time.Duration) (bool, error) {
	if signalRef == "" {
		return true, nil
	}
	cutoff := time.Now().Add(-window)
	for _, e := range m.entries {
		if e.UserID == userID && e.DeliverableType == deliverableType && e.SignalRef == signalRef && e.CreatedAt.After(cutoff) {
			return false, nil
		}
	}
	return true, nil
}

func (m *MemoryHistoryStore) Record(_ context.Context, entry domain.SignalHistory) error {
	m.entries = append(m.entries, entry)
	return nil
}
