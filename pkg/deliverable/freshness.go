package deliverable

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/contentcache"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// Syncer resyncs a single source targetedly when freshness.go finds it
// stale. Satisfied by pkg/platformsync.Engine, passed in as an
// interface to avoid pkg/deliverable importing pkg/platformsync.
type Syncer interface {
	SyncPlatform(ctx context.Context, userID uuid.UUID, platform domain.Platform) error
}

// FreshnessChecker implements spec §4.4 Step 1: for each source, look
// up its SyncRegistry entry and mark it stale against the
// deliverable's freshness requirement, attempting one targeted resync
// before giving up.
type FreshnessChecker struct {
	cache *contentcache.Cache
	sync  Syncer
	log   *zap.Logger
}

// NewFreshnessChecker wraps the content cache's sync registry lookups
// and an optional targeted resync hook.
func NewFreshnessChecker(cache *contentcache.Cache, sync Syncer, log *zap.Logger) *FreshnessChecker {
	return &FreshnessChecker{cache: cache, sync: sync, log: log}
}

// Check evaluates every source of d, attempting a targeted resync for
// stale ones, and returns one SourceSnapshot per source regardless of
// outcome — staleness never blocks generation (spec §4.4 Step 1).
func (f *FreshnessChecker) Check(ctx context.Context, d domain.Deliverable) []domain.SourceSnapshot {
	freshnessHrs := d.TypeClassification.FreshnessRequirementHrs
	if freshnessHrs <= 0 {
		freshnessHrs = 24
	}
	threshold := time.Now().Add(-time.Duration(freshnessHrs * float64(time.Hour)))

	snapshots := make([]domain.SourceSnapshot, 0, len(d.Sources))
	for _, src := range d.Sources {
		if src.Type != domain.SourceIntegrationImport {
			continue
		}
		entry, err := f.cache.SyncRegistryFor(ctx, d.UserID, src.Provider, src.ResourceID)
		if err != nil {
			f.log.Warn("freshness lookup failed", zap.String("deliverable_id", d.ID.String()),
				zap.String("resource_id", src.ResourceID), zap.Error(err))
			snapshots = append(snapshots, domain.SourceSnapshot{Platform: src.Provider, ResourceID: src.ResourceID, Stale: true})
			continue
		}

		stale := entry == nil || entry.LastSyncedAt.Before(threshold)
		if stale && f.sync != nil {
			if err := f.sync.SyncPlatform(ctx, d.UserID, src.Provider); err != nil {
				f.log.Warn("targeted resync failed", zap.String("deliverable_id", d.ID.String()),
					zap.String("platform", string(src.Provider)), zap.Error(err))
			} else if entry, err = f.cache.SyncRegistryFor(ctx, d.UserID, src.Provider, src.ResourceID); err == nil && entry != nil {
				stale = entry.LastSyncedAt.Before(threshold)
			}
		}

		syncedAt := time.Time{}
		if entry != nil {
			syncedAt = entry.LastSyncedAt
		}
		snapshots = append(snapshots, domain.SourceSnapshot{
			Platform:   src.Provider,
			ResourceID: src.ResourceID,
			SyncedAt:   syncedAt,
			Stale:      stale,
		})
	}
	return snapshots
}
