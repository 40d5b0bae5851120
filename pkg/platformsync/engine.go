package platformsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	internalerrors "github.com/kvkthecreator/yarnnn/internal/errors"
	"github.com/kvkthecreator/yarnnn/pkg/contentcache"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
	"github.com/kvkthecreator/yarnnn/pkg/metrics"
	"github.com/kvkthecreator/yarnnn/pkg/platformsync/clients"
	"github.com/kvkthecreator/yarnnn/pkg/shared/logging"
)

// ConnectionStore is the subset of connection persistence the engine
// needs: reading a connection's credentials/landscape and writing back
// sync state.
type ConnectionStore interface {
	GetConnection(ctx context.Context, userID uuid.UUID, platform domain.Platform) (*domain.PlatformConnection, error)
	MarkError(ctx context.Context, connectionID uuid.UUID) error
	MarkSynced(ctx context.Context, connectionID uuid.UUID, at time.Time) error
}

// SyncOutcome is sync_platform's return value, per spec §4.2.
type SyncOutcome struct {
	ItemsSynced        int
	PerResourceCounts  map[string]int
	Errors             []error
}

// Engine implements sync_platform: dispatch to the right provider,
// write results to the content cache, refresh the landscape.
type Engine struct {
	connections ConnectionStore
	cache       *contentcache.Cache
	tokens      *TokenManager
	locker      *Locker
	clients     map[domain.Platform]clients.PlatformClient
	log         *zap.Logger
	ttlHours    float64
}

// New builds an Engine wired to one PlatformClient per supported
// provider.
func New(connections ConnectionStore, cache *contentcache.Cache, tokens *TokenManager, locker *Locker, platformClients []clients.PlatformClient, ttlHours float64, log *zap.Logger) *Engine {
	registry := make(map[domain.Platform]clients.PlatformClient, len(platformClients))
	for _, c := range platformClients {
		registry[c.Platform()] = c
	}
	return &Engine{
		connections: connections,
		cache:       cache,
		tokens:      tokens,
		locker:      locker,
		clients:     registry,
		log:         log,
		ttlHours:    ttlHours,
	}
}

// SyncPlatform reads the connection, resolves its selected sources,
// dispatches to the provider client, and refreshes the landscape.
// Per spec §4.2's ordering guarantee, callers must hold the
// (user, platform) lock before calling this.
func (e *Engine) SyncPlatform(ctx context.Context, userID uuid.UUID, platform domain.Platform) (SyncOutcome, error) {
	timer := metrics.NewTimer()
	conn, err := e.connections.GetConnection(ctx, userID, platform)
	if err != nil {
		return SyncOutcome{}, fmt.Errorf("failed to load connection for %s/%s: %w", userID, platform, err)
	}
	if conn == nil {
		return SyncOutcome{}, fmt.Errorf("no connection for %s/%s", userID, platform)
	}

	client, ok := e.clients[platform]
	if !ok {
		return SyncOutcome{}, fmt.Errorf("no platform client registered for %s", platform)
	}

	accessToken, err := e.tokens.Decrypt(conn.EncryptedAccessToken)
	if err != nil {
		_ = e.connections.MarkError(ctx, conn.ID)
		return SyncOutcome{}, internalerrors.Permission("decrypt access token", err)
	}

	selected := conn.Landscape.SelectedSources
	cursors := e.cursorsFor(ctx, userID, platform, selected)

	outcome := SyncOutcome{PerResourceCounts: make(map[string]int)}
	for _, result := range client.Fetch(ctx, accessToken, selected, cursors) {
		if result.Err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Errorf("resource %s: %w", result.ResourceID, result.Err))
			if internalerrors.Is(result.Err, internalerrors.KindPermission) {
				_ = e.connections.MarkError(ctx, conn.ID)
			}
			continue
		}

		if err := e.cache.UpsertItems(ctx, userID, platform, result.ResourceID, result.Items, e.ttlHours); err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Errorf("resource %s: failed to write content: %w", result.ResourceID, err))
			continue
		}

		var sourceLatest *time.Time
		for i := range result.Items {
			if sourceLatest == nil || result.Items[i].SourceTime.After(*sourceLatest) {
				t := result.Items[i].SourceTime
				sourceLatest = &t
			}
		}
		if err := e.cache.UpsertSyncRegistry(ctx, domain.SyncRegistryEntry{
			UserID:         userID,
			Platform:       platform,
			ResourceID:     result.ResourceID,
			LastSyncedAt:   time.Now(),
			ItemCount:      len(result.Items),
			SourceLatestAt: sourceLatest,
			Cursor:         result.Cursor,
		}); err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Errorf("resource %s: failed to update sync registry: %w", result.ResourceID, err))
			continue
		}

		outcome.ItemsSynced += len(result.Items)
		outcome.PerResourceCounts[result.ResourceID] = len(result.Items)
	}

	if err := e.refreshLandscape(ctx, conn, client, accessToken); err != nil {
		e.log.Warn("landscape refresh failed", logging.NewFields().
			Component("platformsync").Operation("refresh_landscape").Err(err).ZapFields()...)
	}

	if err := e.connections.MarkSynced(ctx, conn.ID, time.Now()); err != nil {
		outcome.Errors = append(outcome.Errors, fmt.Errorf("failed to mark connection synced: %w", err))
	}

	status := "success"
	if len(outcome.Errors) > 0 {
		status = "partial"
	}
	timer.RecordPlatformSync(string(platform), status)
	e.log.Info("sync_platform", logging.NewFields().
		Component("platformsync").Operation("sync_platform").
		Resource(string(platform), userID.String()).
		Count("items_synced", outcome.ItemsSynced).
		Count("errors", len(outcome.Errors)).
		ZapFields()...)

	return outcome, nil
}

// refreshLandscape re-fetches the provider's resource catalog and
// upserts it through the content cache's compare-then-swap rule.
func (e *Engine) refreshLandscape(ctx context.Context, conn *domain.PlatformConnection, client clients.PlatformClient, accessToken string) error {
	resources, err := client.ListResources(ctx, accessToken)
	if err != nil {
		return fmt.Errorf("failed to list resources: %w", err)
	}
	return e.cache.UpsertLandscape(ctx, conn.ID, domain.Landscape{Resources: resources})
}

// cursorsFor resolves each resource's last-known cursor from the sync
// registry, used by providers with incremental fetch (Calendar).
func (e *Engine) cursorsFor(ctx context.Context, userID uuid.UUID, platform domain.Platform, resourceIDs []string) map[string]string {
	cursors := make(map[string]string, len(resourceIDs))
	for _, resourceID := range resourceIDs {
		entry, err := e.cache.SyncRegistryFor(ctx, userID, platform, resourceID)
		if err != nil || entry == nil {
			continue
		}
		cursors[resourceID] = entry.Cursor
	}
	return cursors
}

// SyncDueUsers fans out SyncPlatform over every user×platform pair
// whose cadence is due, bounded by a worker pool (spec §4.2's "across
// users, syncs run concurrently bounded by a worker pool").
func (e *Engine) SyncDueUsers(ctx context.Context, due []DueSync, concurrency int) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, d := range due {
		d := d
		g.Go(func() error {
			key := SyncLockKey(d.UserID, string(d.Platform))
			token, ok, err := e.locker.TryLock(ctx, key)
			if err != nil {
				e.log.Warn("lock acquisition failed", zap.String("key", key), zap.Error(err))
				return nil
			}
			if !ok {
				// A sync for this user×platform is already in flight.
				return nil
			}
			defer func() { _ = e.locker.Unlock(ctx, key, token) }()

			if _, err := e.SyncPlatform(ctx, d.UserID, d.Platform); err != nil {
				e.log.Warn("sync_platform failed", zap.String("key", key), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// DueSync is one user×platform pair that should be synced this tick.
type DueSync struct {
	UserID   uuid.UUID
	Platform domain.Platform
}

// TargetedSyncAdapter drops Engine's SyncOutcome so *Engine can stand
// in for pkg/deliverable's Syncer, which only cares whether the
// targeted resync it asked for succeeded.
type TargetedSyncAdapter struct {
	engine *Engine
}

// NewTargetedSyncAdapter wraps engine for use as a
// deliverable.FreshnessChecker's Syncer.
func NewTargetedSyncAdapter(engine *Engine) *TargetedSyncAdapter {
	return &TargetedSyncAdapter{engine: engine}
}

func (a *TargetedSyncAdapter) SyncPlatform(ctx context.Context, userID uuid.UUID, platform domain.Platform) error {
	_, err := a.engine.SyncPlatform(ctx, userID, platform)
	return err
}
