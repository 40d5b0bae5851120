package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments, mirroring pkg/contentcache's MemoryStore pattern.
type MemoryStore struct {
	rows map[uuid.UUID]map[string]domain.UserContext
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[uuid.UUID]map[string]domain.UserContext)}
}

func (m *MemoryStore) Upsert(_ context.Context, uc domain.UserContext) error {
	byKey, ok := m.rows[uc.UserID]
	if !ok {
		byKey = make(map[string]domain.UserContext)
		m.rows[uc.UserID] = byKey
	}
	if existing, ok := byKey[uc.Key]; ok && !domain.Dominates(uc.Source, existing.Source) {
		return nil
	}
	byKey[uc.Key] = uc
	return nil
}

func (m *MemoryStore) Get(_ context.Context, userID uuid.UUID, key string) (*domain.UserContext, error) {
	byKey, ok := m.rows[userID]
	if !ok {
		return nil, nil
	}
	uc, ok := byKey[key]
	if !ok {
		return nil, nil
	}
	return &uc, nil
}

func (m *MemoryStore) List(_ context.Context, userID uuid.UUID) ([]domain.UserContext, error) {
	byKey := m.rows[userID]
	out := make([]domain.UserContext, 0, len(byKey))
	for _, uc := range byKey {
		out = append(out, uc)
	}
	return out, nil
}
