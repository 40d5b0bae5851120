package platformsync

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

// PostgresConnectionStore is the production ConnectionStore. Rows are
// created and credentials are set by the out-of-scope external API
// collaborator (OAuth callback handling); this module only reads
// connections and updates their sync state.
type PostgresConnectionStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPostgresConnectionStore wraps a connection pool.
func NewPostgresConnectionStore(pool *pgxpool.Pool, log *zap.Logger) *PostgresConnectionStore {
	return &PostgresConnectionStore{pool: pool, log: log}
}

func (s *PostgresConnectionStore) GetConnection(ctx context.Context, userID uuid.UUID, platform domain.Platform) (*domain.PlatformConnection, error) {
	const stmt = `
SELECT id, user_id, platform, encrypted_access_token, encrypted_refresh_token, team_id, authed_user_id,
       landing_targets, status, last_synced_at, landscape, landscape_discovered_at
FROM platform_connections
WHERE user_id = $1 AND platform = $2`
	row := s.pool.QueryRow(ctx, stmt, userID, platform)
	conn, err := scanConnection(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, sharederrors.FailedToOn("get platform connection", "platformsync", string(platform), err)
	}
	return conn, nil
}

// ListForUser returns every connection for userID, ordered by
// platform — the source for working-memory's connected-platforms
// summary (spec §4.5).
func (s *PostgresConnectionStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.PlatformConnection, error) {
	const stmt = `
SELECT id, user_id, platform, encrypted_access_token, encrypted_refresh_token, team_id, authed_user_id,
       landing_targets, status, last_synced_at, landscape, landscape_discovered_at
FROM platform_connections
WHERE user_id = $1
ORDER BY platform`
	rows, err := s.pool.Query(ctx, stmt, userID)
	if err != nil {
		return nil, sharederrors.FailedToOn("list platform connections", "platformsync", userID.String(), err)
	}
	defer rows.Close()

	var out []domain.PlatformConnection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, sharederrors.FailedToOn("scan platform connection", "platformsync", userID.String(), err)
		}
		out = append(out, *conn)
	}
	return out, rows.Err()
}

// ConnectionCadence is enough about a connection and its owning user
// to decide whether the connection is due for a sync this tick
// (spec §4.2's tier→cadence table).
type ConnectionCadence struct {
	UserID       uuid.UUID
	Platform     domain.Platform
	Tier         domain.Tier
	Timezone     string
	LastSyncedAt time.Time
}

// ActiveConnectionsForCadence returns every connected platform
// connection joined with its owning user's tier and timezone — the
// candidate set the scheduler's sync phase evaluates with
// ShouldSyncNow, and (deduplicated by user) the candidate set for the
// signal phase ("users with connected platforms").
func (s *PostgresConnectionStore) ActiveConnectionsForCadence(ctx context.Context) ([]ConnectionCadence, error) {
	const stmt = `
SELECT c.user_id, c.platform, u.tier, u.timezone, c.last_synced_at
FROM platform_connections c
JOIN users u ON u.id = c.user_id
WHERE c.status = $1`
	rows, err := s.pool.Query(ctx, stmt, domain.ConnectionConnected)
	if err != nil {
		return nil, sharederrors.FailedTo("list active connections for cadence", err)
	}
	defer rows.Close()

	var out []ConnectionCadence
	for rows.Next() {
		var c ConnectionCadence
		var lastSynced *time.Time
		if err := rows.Scan(&c.UserID, &c.Platform, &c.Tier, &c.Timezone, &lastSynced); err != nil {
			return nil, sharederrors.FailedTo("scan active connection for cadence", err)
		}
		if lastSynced != nil {
			c.LastSyncedAt = *lastSynced
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresConnectionStore) MarkError(ctx context.Context, connectionID uuid.UUID) error {
	const stmt = `UPDATE platform_connections SET status = $2 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, stmt, connectionID, domain.ConnectionError); err != nil {
		return sharederrors.FailedToOn("mark platform connection error", "platformsync", connectionID.String(), err)
	}
	return nil
}

func (s *PostgresConnectionStore) MarkSynced(ctx context.Context, connectionID uuid.UUID, at time.Time) error {
	const stmt = `UPDATE platform_connections SET status = $2, last_synced_at = $3 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, stmt, connectionID, domain.ConnectionConnected, at); err != nil {
		return sharederrors.FailedToOn("mark platform connection synced", "platformsync", connectionID.String(), err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*domain.PlatformConnection, error) {
	var c domain.PlatformConnection
	var landingTargets, landscape []byte
	if err := row.Scan(&c.ID, &c.UserID, &c.Platform, &c.EncryptedAccessToken, &c.EncryptedRefreshToken, &c.TeamID, &c.AuthedUserID,
		&landingTargets, &c.Status, &c.LastSyncedAt, &landscape, &c.LandscapeDiscoveredAt); err != nil {
		return nil, err
	}
	if len(landingTargets) > 0 {
		if err := json.Unmarshal(landingTargets, &c.LandingTargets); err != nil {
			return nil, err
		}
	}
	if len(landscape) > 0 {
		if err := json.Unmarshal(landscape, &c.Landscape); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
