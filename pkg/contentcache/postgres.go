package contentcache

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
	sharederrors "github.com/kvkthecreator/yarnnn/pkg/shared/errors"
)

// PostgresStore is the production Store backed by Postgres via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPostgresStore wraps a connection pool.
func NewPostgresStore(pool *pgxpool.Pool, log *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, log: log}
}

func (s *PostgresStore) UpsertItems(ctx context.Context, userID uuid.UUID, platform domain.Platform, resourceID string, items []domain.PlatformContent) error {
	const stmt = `
INSERT INTO platform_content
	(id, user_id, platform, resource_id, external_id, content, content_type, metadata, source_time, fetched_at, retained, expires_at)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (user_id, platform, resource_id, external_id) DO UPDATE SET
	content = EXCLUDED.content,
	content_type = EXCLUDED.content_type,
	metadata = EXCLUDED.metadata,
	source_time = EXCLUDED.source_time,
	fetched_at = EXCLUDED.fetched_at,
	expires_at = EXCLUDED.expires_at
`

	batch := &pgx.Batch{}
	for _, item := range items {
		metadata, err := json.Marshal(item.Metadata)
		if err != nil {
			return sharederrors.FailedToOn("marshal content metadata", "contentcache", item.ExternalID, err)
		}
		id := item.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(stmt, id, userID, platform, resourceID, item.ExternalID, item.Content, item.ContentType, metadata, item.SourceTime, item.FetchedAt, item.Retained, item.ExpiresAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	// Per spec §4.1's failure semantics: writes are per-row, so a single
	// row error is logged and the batch continues rather than aborting.
	for range items {
		if _, err := br.Exec(); err != nil {
			s.log.Warn("upsert_items row failed", zap.String("user_id", userID.String()), zap.String("resource_id", resourceID), zap.Error(err))
		}
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, userID uuid.UUID, filter QueryFilter, limit int) ([]domain.PlatformContent, error) {
	clauses := []string{"user_id = $1", "(retained OR expires_at > now())"}
	args := []any{userID}

	if filter.Platform != nil {
		args = append(args, *filter.Platform)
		clauses = append(clauses, "platform = $"+strconv.Itoa(len(args)))
	}
	if len(filter.ResourceIDs) > 0 {
		args = append(args, filter.ResourceIDs)
		clauses = append(clauses, "resource_id = ANY($"+strconv.Itoa(len(args))+")")
	}
	if len(filter.ContentTypes) > 0 {
		args = append(args, filter.ContentTypes)
		clauses = append(clauses, "content_type = ANY($"+strconv.Itoa(len(args))+")")
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		clauses = append(clauses, "source_time >= $"+strconv.Itoa(len(args)))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		clauses = append(clauses, "source_time <= $"+strconv.Itoa(len(args)))
	}

	query := "SELECT id, user_id, platform, resource_id, external_id, content, content_type, metadata, source_time, fetched_at, retained, expires_at FROM platform_content WHERE " + joinAnd(clauses) + " ORDER BY fetched_at DESC, source_time DESC"
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, sharederrors.FailedToOn("query platform content", "contentcache", userID.String(), err)
	}
	defer rows.Close()

	var out []domain.PlatformContent
	for rows.Next() {
		var row domain.PlatformContent
		var metadata []byte
		if err := rows.Scan(&row.ID, &row.UserID, &row.Platform, &row.ResourceID, &row.ExternalID, &row.Content, &row.ContentType, &metadata, &row.SourceTime, &row.FetchedAt, &row.Retained, &row.ExpiresAt); err != nil {
			return nil, sharederrors.FailedToOn("scan platform content row", "contentcache", userID.String(), err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &row.Metadata); err != nil {
				return nil, sharederrors.FailedToOn("unmarshal content metadata", "contentcache", row.ExternalID, err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Retain(ctx context.Context, ids []uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE platform_content SET retained = true WHERE id = ANY($1)`, ids)
	if err != nil {
		return sharederrors.FailedTo("retain platform content rows", err)
	}
	return nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := time.Now().Add(-grace)
	tag, err := s.pool.Exec(ctx, `DELETE FROM platform_content WHERE retained = false AND expires_at < $1`, cutoff)
	if err != nil {
		return 0, sharederrors.FailedTo("purge expired platform content", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) UpsertSyncRegistry(ctx context.Context, entry domain.SyncRegistryEntry) error {
	const stmt = `
INSERT INTO sync_registry (user_id, platform, resource_id, last_synced_at, item_count, source_latest_at, cursor)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, platform, resource_id) DO UPDATE SET
	last_synced_at = EXCLUDED.last_synced_at,
	item_count = EXCLUDED.item_count,
	source_latest_at = EXCLUDED.source_latest_at,
	cursor = EXCLUDED.cursor
`
	_, err := s.pool.Exec(ctx, stmt, entry.UserID, entry.Platform, entry.ResourceID, entry.LastSyncedAt, entry.ItemCount, entry.SourceLatestAt, entry.Cursor)
	if err != nil {
		return sharederrors.FailedToOn("upsert sync registry", "contentcache", entry.ResourceID, err)
	}
	return nil
}

func (s *PostgresStore) GetSyncRegistry(ctx context.Context, userID uuid.UUID, platform domain.Platform, resourceID string) (*domain.SyncRegistryEntry, error) {
	var entry domain.SyncRegistryEntry
	row := s.pool.QueryRow(ctx, `SELECT user_id, platform, resource_id, last_synced_at, item_count, source_latest_at, cursor FROM sync_registry WHERE user_id = $1 AND platform = $2 AND resource_id = $3`, userID, platform, resourceID)
	if err := row.Scan(&entry.UserID, &entry.Platform, &entry.ResourceID, &entry.LastSyncedAt, &entry.ItemCount, &entry.SourceLatestAt, &entry.Cursor); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, sharederrors.FailedToOn("get sync registry entry", "contentcache", resourceID, err)
	}
	return &entry, nil
}

func (s *PostgresStore) ListSyncRegistry(ctx context.Context, userID uuid.UUID) ([]domain.SyncRegistryEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, platform, resource_id, last_synced_at, item_count, source_latest_at, cursor FROM sync_registry WHERE user_id = $1`, userID)
	if err != nil {
		return nil, sharederrors.FailedToOn("list sync registry", "contentcache", userID.String(), err)
	}
	defer rows.Close()

	var out []domain.SyncRegistryEntry
	for rows.Next() {
		var entry domain.SyncRegistryEntry
		if err := rows.Scan(&entry.UserID, &entry.Platform, &entry.ResourceID, &entry.LastSyncedAt, &entry.ItemCount, &entry.SourceLatestAt, &entry.Cursor); err != nil {
			return nil, sharederrors.FailedToOn("scan sync registry row", "contentcache", userID.String(), err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetLandscape(ctx context.Context, connectionID uuid.UUID) (domain.Landscape, error) {
	var raw []byte
	row := s.pool.QueryRow(ctx, `SELECT landscape FROM platform_connections WHERE id = $1`, connectionID)
	if err := row.Scan(&raw); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Landscape{}, nil
		}
		return domain.Landscape{}, sharederrors.FailedToOn("get landscape", "contentcache", connectionID.String(), err)
	}
	if len(raw) == 0 {
		return domain.Landscape{}, nil
	}
	var landscape domain.Landscape
	if err := json.Unmarshal(raw, &landscape); err != nil {
		return domain.Landscape{}, sharederrors.FailedToOn("unmarshal landscape", "contentcache", connectionID.String(), err)
	}
	return landscape, nil
}

func (s *PostgresStore) PutLandscape(ctx context.Context, connectionID uuid.UUID, landscape domain.Landscape) error {
	raw, err := json.Marshal(landscape)
	if err != nil {
		return sharederrors.FailedToOn("marshal landscape", "contentcache", connectionID.String(), err)
	}
	_, err = s.pool.Exec(ctx, `UPDATE platform_connections SET landscape = $1, landscape_discovered_at = now() WHERE id = $2`, raw, connectionID)
	if err != nil {
		return sharederrors.FailedToOn("put landscape", "contentcache", connectionID.String(), err)
	}
	return nil
}

func joinAnd(clauses []string) string {
	return strings.Join(clauses, " AND ")
}
