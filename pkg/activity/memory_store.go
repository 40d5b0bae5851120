package activity

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments, mirroring pkg/memory's MemoryStore pattern.
type MemoryStore struct {
	events []domain.ActivityEvent
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Record(_ context.Context, event domain.ActivityEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryStore) LastEvent(_ context.Context, userID uuid.UUID, eventType domain.ActivityEventType) (*domain.ActivityEvent, error) {
	var latest *domain.ActivityEvent
	for i := range m.events {
		e := m.events[i]
		if e.UserID != userID || e.EventType != eventType {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = &e
		}
	}
	return latest, nil
}

func (m *MemoryStore) CountSince(_ context.Context, userID uuid.UUID, eventType domain.ActivityEventType, since time.Time) (int, error) {
	count := 0
	for _, e := range m.events {
		if e.UserID == userID && e.EventType == eventType && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) Recent(_ context.Context, userID uuid.UUID, limit int) ([]domain.ActivityEvent, error) {
	var mine []domain.ActivityEvent
	for _, e := range m.events {
		if e.UserID == userID {
			mine = append(mine, e)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })
	if len(mine) > limit {
		mine = mine[:limit]
	}
	return mine, nil
}
