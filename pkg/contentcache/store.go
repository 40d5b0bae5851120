// Package contentcache implements the per-user, per-platform unified
// content cache (spec §4.1): a two-lane store where rows are either
// ephemeral (visible until they expire) or retained (visible
// indefinitely once a deliverable version has consumed them), plus the
// sync registry and per-connection landscape catalog that sit
// alongside it.
package contentcache

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// QueryFilter narrows a Query call. Zero-value fields are unfiltered.
type QueryFilter struct {
	Platform     *domain.Platform
	ResourceIDs  []string
	ContentTypes []domain.ContentType
	Since        *time.Time
	Until        *time.Time
}

// Store is the persistence port for the content cache. Postgres is the
// production implementation; an in-memory implementation backs unit
// tests for every package that depends on the cache.
type Store interface {
	// UpsertItems writes items, keyed by (user_id, platform,
	// resource_id, external_id); on conflict it updates content,
	// metadata, source_time, fetched_at and expires_at in place.
	UpsertItems(ctx context.Context, userID uuid.UUID, platform domain.Platform, resourceID string, items []domain.PlatformContent) error

	// Query returns only live rows (Retained OR ExpiresAt after now),
	// ordered by FetchedAt desc then SourceTime desc, bounded by limit.
	Query(ctx context.Context, userID uuid.UUID, filter QueryFilter, limit int) ([]domain.PlatformContent, error)

	// Retain atomically marks ids as retained. Idempotent.
	Retain(ctx context.Context, ids []uuid.UUID) error

	// PurgeExpired physically deletes non-retained rows whose
	// ExpiresAt is older than now-grace, returning the count removed.
	PurgeExpired(ctx context.Context, grace time.Duration) (int, error)

	// UpsertSyncRegistry records a resource's latest sync outcome.
	UpsertSyncRegistry(ctx context.Context, entry domain.SyncRegistryEntry) error

	// GetSyncRegistry looks up one resource's freshness record. Returns
	// nil, nil if no entry exists yet.
	GetSyncRegistry(ctx context.Context, userID uuid.UUID, platform domain.Platform, resourceID string) (*domain.SyncRegistryEntry, error)

	// ListSyncRegistry returns all sync registry entries for a user,
	// used by working-memory assembly (spec §4.5).
	ListSyncRegistry(ctx context.Context, userID uuid.UUID) ([]domain.SyncRegistryEntry, error)

	// GetLandscape returns the current landscape for a connection.
	GetLandscape(ctx context.Context, connectionID uuid.UUID) (domain.Landscape, error)

	// PutLandscape overwrites the stored landscape for a connection.
	// Callers wanting the compare-then-swap semantics of spec §4.1's
	// "re-read before write" rule should go through Cache.UpsertLandscape
	// rather than calling this directly.
	PutLandscape(ctx context.Context, connectionID uuid.UUID, landscape domain.Landscape) error
}
