package contentcache

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

type contentKey struct {
	userID     uuid.UUID
	platform   domain.Platform
	resourceID string
	externalID string
}

type registryKey struct {
	userID     uuid.UUID
	platform   domain.Platform
	resourceID string
}

// MemoryStore is an in-memory Store used by tests and by any caller
// that doesn't need durability (e.g. local development).
type MemoryStore struct {
	mu         sync.Mutex
	content    map[contentKey]domain.PlatformContent
	registry   map[registryKey]domain.SyncRegistryEntry
	landscapes map[uuid.UUID]domain.Landscape
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		content:    make(map[contentKey]domain.PlatformContent),
		registry:   make(map[registryKey]domain.SyncRegistryEntry),
		landscapes: make(map[uuid.UUID]domain.Landscape),
	}
}

func (m *MemoryStore) UpsertItems(_ context.Context, userID uuid.UUID, platform domain.Platform, resourceID string, items []domain.PlatformContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range items {
		item.UserID = userID
		item.Platform = platform
		item.ResourceID = resourceID
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		key := contentKey{userID: userID, platform: platform, resourceID: resourceID, externalID: item.ExternalID}
		if existing, ok := m.content[key]; ok {
			item.ID = existing.ID
			item.Retained = existing.Retained || item.Retained
		}
		m.content[key] = item
	}
	return nil
}

func (m *MemoryStore) Query(_ context.Context, userID uuid.UUID, filter QueryFilter, limit int) ([]domain.PlatformContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var matches []domain.PlatformContent
	for _, row := range m.content {
		if row.UserID != userID {
			continue
		}
		if !row.Live(now) {
			continue
		}
		if filter.Platform != nil && row.Platform != *filter.Platform {
			continue
		}
		if len(filter.ResourceIDs) > 0 && !slices.Contains(filter.ResourceIDs, row.ResourceID) {
			continue
		}
		if len(filter.ContentTypes) > 0 && !slices.Contains(filter.ContentTypes, row.ContentType) {
			continue
		}
		if filter.Since != nil && row.SourceTime.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && row.SourceTime.After(*filter.Until) {
			continue
		}
		matches = append(matches, row)
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].FetchedAt.Equal(matches[j].FetchedAt) {
			return matches[i].FetchedAt.After(matches[j].FetchedAt)
		}
		return matches[i].SourceTime.After(matches[j].SourceTime)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *MemoryStore) Retain(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for key, row := range m.content {
		if _, ok := want[row.ID]; ok {
			row.Retained = true
			m.content[key] = row
		}
	}
	return nil
}

func (m *MemoryStore) PurgeExpired(_ context.Context, grace time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-grace)
	removed := 0
	for key, row := range m.content {
		if !row.Retained && row.ExpiresAt.Before(cutoff) {
			delete(m.content, key)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) UpsertSyncRegistry(_ context.Context, entry domain.SyncRegistryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := registryKey{userID: entry.UserID, platform: entry.Platform, resourceID: entry.ResourceID}
	m.registry[key] = entry
	return nil
}

func (m *MemoryStore) GetSyncRegistry(_ context.Context, userID uuid.UUID, platform domain.Platform, resourceID string) (*domain.SyncRegistryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := registryKey{userID: userID, platform: platform, resourceID: resourceID}
	entry, ok := m.registry[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *MemoryStore) ListSyncRegistry(_ context.Context, userID uuid.UUID) ([]domain.SyncRegistryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []domain.SyncRegistryEntry
	for _, entry := range m.registry {
		if entry.UserID == userID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (m *MemoryStore) GetLandscape(_ context.Context, connectionID uuid.UUID) (domain.Landscape, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.landscapes[connectionID], nil
}

func (m *MemoryStore) PutLandscape(_ context.Context, connectionID uuid.UUID, landscape domain.Landscape) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.landscapes[connectionID] = landscape
	return nil
}

