package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

type stubDeliverables struct {
	active  []domain.Deliverable
	pending int
	err     error
}

func (s *stubDeliverables) ListActive(ctx context.Context, userID uuid.UUID) ([]domain.Deliverable, error) {
	return s.active, s.err
}

func (s *stubDeliverables) PendingReviews(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.pending, nil
}

type stubConnections struct {
	conns []domain.PlatformConnection
	err   error
}

func (s *stubConnections) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.PlatformConnection, error) {
	return s.conns, s.err
}

type stubSyncRegistry struct {
	entries []domain.SyncRegistryEntry
}

func (s *stubSyncRegistry) ListSyncRegistry(ctx context.Context, userID uuid.UUID) ([]domain.SyncRegistryEntry, error) {
	return s.entries, nil
}

type stubActivity struct {
	last   *domain.ActivityEvent
	failed int
}

func (s *stubActivity) LastEvent(ctx context.Context, userID uuid.UUID, eventType domain.ActivityEventType) (*domain.ActivityEvent, error) {
	return s.last, nil
}

func (s *stubActivity) CountSince(ctx context.Context, userID uuid.UUID, eventType domain.ActivityEventType, since time.Time) (int, error) {
	return s.failed, nil
}

func newTestAssembler(ctxStore Store, deliverables *stubDeliverables, connections *stubConnections, registry *stubSyncRegistry, activity *stubActivity) *Assembler {
	a := NewAssembler(ctxStore, deliverables, connections, registry, activity, zap.NewNop())
	a.now = func() time.Time { return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestAssemble_IncludesProfileAndPreferences(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()
	Remember(ctx, store, userID, "name", "Ada Lovelace", domain.SourceUserStated, 1.0)
	Remember(ctx, store, userID, "timezone", "America/Los_Angeles", domain.SourceUserStated, 1.0)
	Remember(ctx, store, userID, "tone_slack", "casual", domain.SourceFeedback, 0.8)
	Remember(ctx, store, userID, "fact:role", "presenting to the board next month", domain.SourceConversation, 0.6)

	a := newTestAssembler(store, &stubDeliverables{}, &stubConnections{}, &stubSyncRegistry{}, &stubActivity{})

	text, err := a.Assemble(ctx, userID)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	for _, want := range []string{"Ada Lovelace", "America/Los_Angeles", "tone: casual", "presenting to the board"} {
		if !strings.Contains(text, want) {
			t.Errorf("Assemble() missing %q in:\n%s", want, text)
		}
	}
}

func TestAssemble_DeliverablesCappedAndOverflowNoted(t *testing.T) {
	userID := uuid.New()
	var active []domain.Deliverable
	for i := 0; i < 7; i++ {
		active = append(active, domain.Deliverable{
			Title:    "digest",
			Schedule: domain.Schedule{Frequency: domain.FrequencyDaily},
		})
	}
	a := newTestAssembler(NewMemoryStore(), &stubDeliverables{active: active}, &stubConnections{}, &stubSyncRegistry{}, &stubActivity{})

	text, err := a.Assemble(context.Background(), userID)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if !strings.Contains(text, "and 2 more active deliverables") {
		t.Errorf("Assemble() missing overflow note in:\n%s", text)
	}
}

func TestAssemble_PlatformFreshness(t *testing.T) {
	userID := uuid.New()
	fresh := time.Date(2026, 7, 30, 11, 50, 0, 0, time.UTC)
	conns := []domain.PlatformConnection{
		{Platform: domain.PlatformSlack, Status: domain.ConnectionConnected, LastSyncedAt: &fresh},
		{Platform: domain.PlatformNotion, Status: domain.ConnectionError},
	}
	a := newTestAssembler(NewMemoryStore(), &stubDeliverables{}, &stubConnections{conns: conns}, &stubSyncRegistry{}, &stubActivity{})

	text, err := a.Assemble(context.Background(), userID)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if !strings.Contains(text, "slack: fresh") {
		t.Errorf("Assemble() missing fresh slack status in:\n%s", text)
	}
	if !strings.Contains(text, "notion: error") {
		t.Errorf("Assemble() missing notion error status in:\n%s", text)
	}
}

func TestAssemble_SystemSummaryIncludesPendingReviewsAndFailedSyncs(t *testing.T) {
	userID := uuid.New()
	a := newTestAssembler(NewMemoryStore(), &stubDeliverables{pending: 3}, &stubConnections{}, &stubSyncRegistry{}, &stubActivity{failed: 2})

	text, err := a.Assemble(context.Background(), userID)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if !strings.Contains(text, "Pending reviews: 3 items") {
		t.Errorf("Assemble() missing pending reviews line in:\n%s", text)
	}
	if !strings.Contains(text, "Failed syncs (24h): 2") {
		t.Errorf("Assemble() missing failed syncs line in:\n%s", text)
	}
}

func TestAssemble_ToleratesCollaboratorFailures(t *testing.T) {
	userID := uuid.New()
	a := newTestAssembler(NewMemoryStore(), &stubDeliverables{err: errors.New("db down")}, &stubConnections{err: errors.New("db down")}, &stubSyncRegistry{}, &stubActivity{})

	text, err := a.Assemble(context.Background(), userID)
	if err != nil {
		t.Fatalf("Assemble() error = %v, want best-effort success despite collaborator failures", err)
	}
	if !strings.Contains(text, "## Working Memory") {
		t.Errorf("Assemble() = %q, want the header to still render", text)
	}
}
