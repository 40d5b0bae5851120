package users

import (
	"context"

	"github.com/google/uuid"

	internalerrors "github.com/kvkthecreator/yarnnn/internal/errors"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// MemoryStore is an in-memory Store for tests, mirroring
// pkg/activity's MemoryStore pattern.
type MemoryStore struct {
	users map[uuid.UUID]domain.User
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[uuid.UUID]domain.User)}
}

// Put seeds a user for tests.
func (m *MemoryStore) Put(u domain.User) {
	m.users[u.ID] = u
}

func (m *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*domain.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, internalerrors.NotFound("get user "+userID.String(), nil)
	}
	return &u, nil
}

func (m *MemoryStore) Email(_ context.Context, userID uuid.UUID) (string, error) {
	u, ok := m.users[userID]
	if !ok {
		return "", internalerrors.NotFound("get user email "+userID.String(), nil)
	}
	return u.Email, nil
}
