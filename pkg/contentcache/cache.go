package contentcache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
	"github.com/kvkthecreator/yarnnn/pkg/shared/logging"
)

// Cache is the content cache's business-logic layer: it owns TTL
// computation, the landscape compare-then-swap rule, and logging,
// leaving raw persistence to a Store implementation.
type Cache struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

// New constructs a Cache over store.
func New(store Store, log *zap.Logger) *Cache {
	return &Cache{store: store, log: log, now: time.Now}
}

// UpsertItems writes items with ExpiresAt = now + ttlHours, unless the
// caller has already marked a row Retained (retained rows are never
// purged regardless of TTL).
func (c *Cache) UpsertItems(ctx context.Context, userID uuid.UUID, platform domain.Platform, resourceID string, items []domain.PlatformContent, ttlHours float64) error {
	now := c.now()
	expiresAt := now.Add(time.Duration(ttlHours * float64(time.Hour)))

	for i := range items {
		if items[i].FetchedAt.IsZero() {
			items[i].FetchedAt = now
		}
		if !items[i].Retained {
			items[i].ExpiresAt = expiresAt
		}
	}

	if err := c.store.UpsertItems(ctx, userID, platform, resourceID, items); err != nil {
		return err
	}

	c.log.Debug("upsert_items", logging.NewFields().
		Component("contentcache").
		Operation("upsert_items").
		Resource(string(platform), resourceID).
		Count("item_count", len(items)).
		ZapFields()...)
	return nil
}

// Query returns live content rows matching filter.
func (c *Cache) Query(ctx context.Context, userID uuid.UUID, filter QueryFilter, limit int) ([]domain.PlatformContent, error) {
	return c.store.Query(ctx, userID, filter, limit)
}

// Retain marks ids retained. Called before a version referencing them
// transitions to delivered (spec §4.1 invariant).
func (c *Cache) Retain(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return c.store.Retain(ctx, ids)
}

// PurgeExpired deletes non-retained rows past their grace period.
func (c *Cache) PurgeExpired(ctx context.Context, grace time.Duration) (int, error) {
	removed, err := c.store.PurgeExpired(ctx, grace)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.log.Info("purge_expired", logging.NewFields().
			Component("contentcache").
			Operation("purge_expired").
			Count("removed", removed).
			ZapFields()...)
	}
	return removed, nil
}

// UpsertSyncRegistry records a resource's sync outcome.
func (c *Cache) UpsertSyncRegistry(ctx context.Context, entry domain.SyncRegistryEntry) error {
	return c.store.UpsertSyncRegistry(ctx, entry)
}

// SyncRegistryFor looks up one resource's freshness entry.
func (c *Cache) SyncRegistryFor(ctx context.Context, userID uuid.UUID, platform domain.Platform, resourceID string) (*domain.SyncRegistryEntry, error) {
	return c.store.GetSyncRegistry(ctx, userID, platform, resourceID)
}

// ListSyncRegistry returns every sync registry entry for a user.
func (c *Cache) ListSyncRegistry(ctx context.Context, userID uuid.UUID) ([]domain.SyncRegistryEntry, error) {
	return c.store.ListSyncRegistry(ctx, userID)
}
