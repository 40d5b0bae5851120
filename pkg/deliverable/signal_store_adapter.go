package deliverable

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
	"github.com/kvkthecreator/yarnnn/pkg/signal"
)

// SignalStoreAdapter satisfies pkg/signal's DeliverableStore interface
// over this package's Store, so the signal orchestrator can list
// existing deliverables, create signal-emergent ones, and trigger
// immediate runs without importing pkg/deliverable's concrete types.
type SignalStoreAdapter struct {
	store Store
	now   func() time.Time
}

// NewSignalStoreAdapter wraps store for use as a
// signal.Orchestrator's DeliverableStore.
func NewSignalStoreAdapter(store Store) *SignalStoreAdapter {
	return &SignalStoreAdapter{store: store, now: time.Now}
}

func (a *SignalStoreAdapter) ListActive(ctx context.Context, userID uuid.UUID) ([]signal.ExistingDeliverable, error) {
	deliverables, err := a.store.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]signal.ExistingDeliverable, len(deliverables))
	for i, d := range deliverables {
		existing := signal.ExistingDeliverable{ID: d.ID, DeliverableType: d.DeliverableType, Title: d.Title}
		if versions, err := a.store.RecentVersions(ctx, d.ID, 1); err == nil && len(versions) > 0 {
			existing.LastVersionText = versions[0].FinalContent
			if versions[0].DeliveredAt != nil {
				existing.LastRunAt = versions[0].DeliveredAt
			}
		}
		out[i] = existing
	}
	return out, nil
}

func (a *SignalStoreAdapter) CreateSignalEmergent(ctx context.Context, userID uuid.UUID, deliverableType, title, description string, sources []domain.DeliverableSource) (uuid.UUID, error) {
	return a.store.CreateSignalEmergent(ctx, userID, deliverableType, title, description, sources)
}

func (a *SignalStoreAdapter) SetNextRunNow(ctx context.Context, deliverableID uuid.UUID) error {
	return a.store.SetNextRunAt(ctx, deliverableID, a.now())
}
