package deliverable

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments, mirroring pkg/contentcache's MemoryStore pattern.
type MemoryStore struct {
	deliverables map[uuid.UUID]domain.Deliverable
	versions     map[uuid.UUID][]domain.DeliverableVersion
	tickets      map[uuid.UUID]domain.WorkTicket
	deliveries   []domain.DestinationDeliveryLog
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deliverables: make(map[uuid.UUID]domain.Deliverable),
		versions:     make(map[uuid.UUID][]domain.DeliverableVersion),
		tickets:      make(map[uuid.UUID]domain.WorkTicket),
	}
}

// Seed inserts d directly, for test setup.
func (m *MemoryStore) Seed(d domain.Deliverable) {
	m.deliverables[d.ID] = d
}

func (m *MemoryStore) Due(_ context.Context, now time.Time) ([]domain.Deliverable, error) {
	var out []domain.Deliverable
	for _, d := range m.deliverables {
		if d.Status == domain.DeliverableActive && !d.NextRunAt.After(now) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(out[j].NextRunAt) })
	return out, nil
}

func (m *MemoryStore) ListActive(_ context.Context, userID uuid.UUID) ([]domain.Deliverable, error) {
	var out []domain.Deliverable
	for _, d := range m.deliverables {
		if d.UserID == userID && d.Status != domain.DeliverablePaused {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateSignalEmergent(_ context.Context, userID uuid.UUID, deliverableType, title, description string, sources []domain.DeliverableSource) (uuid.UUID, error) {
	id := uuid.New()
	m.deliverables[id] = domain.Deliverable{
		ID: id, UserID: userID, Title: title, Description: description, DeliverableType: deliverableType,
		Sources: sources, TriggerType: domain.TriggerSchedule, Origin: domain.OriginSignalEmergent,
		Status: domain.DeliverableActive, NextRunAt: time.Now(), CreatedAt: time.Now(),
		Schedule:           domain.Schedule{Frequency: domain.FrequencyDaily, Time: "09:00", Timezone: "UTC"},
		TypeClassification: domain.TypeClassification{Binding: domain.BindingCrossPlatform},
	}
	return id, nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*domain.Deliverable, error) {
	d, ok := m.deliverables[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *MemoryStore) SetNextRunAt(_ context.Context, id uuid.UUID, at time.Time) error {
	d, ok := m.deliverables[id]
	if !ok {
		return nil
	}
	d.NextRunAt = at
	m.deliverables[id] = d
	return nil
}

func (m *MemoryStore) NextVersionNumber(_ context.Context, deliverableID uuid.UUID) (int, error) {
	return len(m.versions[deliverableID]) + 1, nil
}

func (m *MemoryStore) CreateVersion(_ context.Context, v domain.DeliverableVersion) error {
	m.versions[v.DeliverableID] = append(m.versions[v.DeliverableID], v)
	return nil
}

func (m *MemoryStore) findVersion(versionID uuid.UUID) (uuid.UUID, int) {
	for deliverableID, versions := range m.versions {
		for i, v := range versions {
			if v.ID == versionID {
				return deliverableID, i
			}
		}
	}
	return uuid.Nil, -1
}

func (m *MemoryStore) UpdateVersionContent(_ context.Context, versionID uuid.UUID, draft, final string) error {
	deliverableID, i := m.findVersion(versionID)
	if i < 0 {
		return nil
	}
	m.versions[deliverableID][i].DraftContent = draft
	m.versions[deliverableID][i].FinalContent = final
	return nil
}

func (m *MemoryStore) FinalizeVersion(_ context.Context, versionID uuid.UUID, status domain.VersionStatus, delivery domain.DeliveryStatus, deliveredAt *time.Time) error {
	deliverableID, i := m.findVersion(versionID)
	if i < 0 {
		return nil
	}
	m.versions[deliverableID][i].Status = status
	m.versions[deliverableID][i].DeliveryStatus = delivery
	m.versions[deliverableID][i].DeliveredAt = deliveredAt
	return nil
}

func (m *MemoryStore) RecordSourceSnapshots(_ context.Context, versionID uuid.UUID, snapshots []domain.SourceSnapshot) error {
	deliverableID, i := m.findVersion(versionID)
	if i < 0 {
		return nil
	}
	m.versions[deliverableID][i].SourceSnapshots = snapshots
	return nil
}

func (m *MemoryStore) RecentVersions(_ context.Context, deliverableID uuid.UUID, limit int) ([]domain.DeliverableVersion, error) {
	versions := m.versions[deliverableID]
	sorted := make([]domain.DeliverableVersion, len(versions))
	copy(sorted, versions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].VersionNumber > sorted[j].VersionNumber })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (m *MemoryStore) CreateTicket(_ context.Context, ticket domain.WorkTicket) error {
	m.tickets[ticket.ID] = ticket
	return nil
}

func (m *MemoryStore) CompleteTicket(_ context.Context, ticketID uuid.UUID) error {
	t, ok := m.tickets[ticketID]
	if !ok {
		return nil
	}
	t.Status = domain.TicketCompleted
	now := time.Now()
	t.CompletedAt = &now
	m.tickets[ticketID] = t
	return nil
}

func (m *MemoryStore) FailTicket(_ context.Context, ticketID uuid.UUID, errMsg string) error {
	t, ok := m.tickets[ticketID]
	if !ok {
		return nil
	}
	t.Status = domain.TicketFailed
	t.ErrorMessage = errMsg
	now := time.Now()
	t.CompletedAt = &now
	m.tickets[ticketID] = t
	return nil
}

func (m *MemoryStore) RecordDelivery(_ context.Context, log domain.DestinationDeliveryLog) error {
	m.deliveries = append(m.deliveries, log)
	return nil
}

func (m *MemoryStore) PendingReviews(_ context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for deliverableID, versions := range m.versions {
		d, ok := m.deliverables[deliverableID]
		if !ok || d.UserID != userID {
			continue
		}
		for _, v := range versions {
			if v.Status == domain.VersionDraft || v.Status == domain.VersionSuggested {
				count++
			}
		}
	}
	return count, nil
}
