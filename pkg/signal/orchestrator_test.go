package signal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/contentcache"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
	"github.com/kvkthecreator/yarnnn/pkg/signal/policy"
)

type fakeDeliverableStore struct {
	existing      []ExistingDeliverable
	created       []string
	triggeredIDs  []uuid.UUID
}

func (f *fakeDeliverableStore) ListActive(ctx context.Context, userID uuid.UUID) ([]ExistingDeliverable, error) {
	return f.existing, nil
}

func (f *fakeDeliverableStore) CreateSignalEmergent(ctx context.Context, userID uuid.UUID, deliverableType, title, description string, sources []domain.DeliverableSource) (uuid.UUID, error) {
	f.created = append(f.created, deliverableType)
	return uuid.New(), nil
}

func (f *fakeDeliverableStore) SetNextRunNow(ctx context.Context, deliverableID uuid.UUID) error {
	f.triggeredIDs = append(f.triggeredIDs, deliverableID)
	return nil
}

type fakeGenerator struct {
	calls []uuid.UUID
}

func (f *fakeGenerator) Generate(ctx context.Context, deliverableID uuid.UUID, trigger TriggerContext) error {
	f.calls = append(f.calls, deliverableID)
	return nil
}

type fakeActivityLogger struct {
	events []domain.ActivityEvent
}

func (f *fakeActivityLogger) Record(ctx context.Context, event domain.ActivityEvent) error {
	f.events = append(f.events, event)
	return nil
}

func newTestOrchestrator(t *testing.T, llmText string, existing []ExistingDeliverable) (*Orchestrator, *fakeDeliverableStore, *fakeGenerator, *fakeActivityLogger, *contentcache.Cache, HistoryStore) {
	t.Helper()
	cache := contentcache.New(contentcache.NewMemoryStore(), zap.NewNop())
	summarizer := NewSummarizer(cache)
	reasoner := NewReasoner(&fakeLLMClient{text: llmText}, "claude-haiku-test")
	checker, err := policy.NewChecker(context.Background())
	if err != nil {
		t.Fatalf("policy.NewChecker() error = %v", err)
	}
	history := NewMemoryHistoryStore()
	filter := NewFilter(checker, history)
	deliverables := &fakeDeliverableStore{existing: existing}
	generator := &fakeGenerator{}
	activity := &fakeActivityLogger{}

	return New(summarizer, reasoner, filter, history, deliverables, generator, activity, zap.NewNop()), deliverables, generator, activity, cache, history
}

func seedContent(t *testing.T, cache *contentcache.Cache, userID uuid.UUID, n int) {
	t.Helper()
	now := time.Now()
	items := make([]domain.PlatformContent, n)
	for i := range items {
		items[i] = domain.PlatformContent{ExternalID: uuid.NewString(), Content: "signal content", SourceTime: now, FetchedAt: now}
	}
	if err := cache.UpsertItems(context.Background(), userID, domain.PlatformGmail, "INBOX", items, 24); err != nil {
		t.Fatalf("seedContent: UpsertItems() error = %v", err)
	}
}

func TestProcessUser_InsufficientContentSkipsReasoning(t *testing.T) {
	orch, deliverables, generator, activity, _, _ := newTestOrchestrator(t, `{"actions": [], "reasoning": ""}`, nil)
	userID := uuid.New()

	outcome, err := orch.ProcessUser(context.Background(), userID, nil, nil)
	if err != nil {
		t.Fatalf("ProcessUser() error = %v", err)
	}
	if len(outcome.DeliverablesCreated) != 0 || len(deliverables.created) != 0 {
		t.Errorf("expected no deliverable creation for insufficient content")
	}
	if len(generator.calls) != 0 {
		t.Errorf("expected generator not called")
	}
	if len(activity.events) != 0 {
		t.Errorf("expected no activity event when the sufficiency gate short-circuits")
	}
}

func TestProcessUser_CreatesSignalEmergentAndInvokesGeneration(t *testing.T) {
	orch, deliverables, generator, activity, cache, _ := newTestOrchestrator(t,
		`{"actions": [{"action_type": "create_signal_emergent", "deliverable_type": "research_brief", "title": "t", "description": "d", "confidence": 0.9}], "reasoning": "pattern detected"}`,
		nil)
	userID := uuid.New()
	seedContent(t, cache, userID, 5)

	outcome, err := orch.ProcessUser(context.Background(), userID, nil, nil)
	if err != nil {
		t.Fatalf("ProcessUser() error = %v", err)
	}
	if len(outcome.DeliverablesCreated) != 1 {
		t.Fatalf("DeliverablesCreated = %+v, want 1", outcome.DeliverablesCreated)
	}
	if len(deliverables.created) != 1 || deliverables.created[0] != "research_brief" {
		t.Errorf("deliverables.created = %+v, want [research_brief]", deliverables.created)
	}
	if len(generator.calls) != 1 {
		t.Errorf("expected generation invoked exactly once, got %d", len(generator.calls))
	}
	if len(activity.events) != 1 || activity.events[0].EventType != domain.EventSignalProcessed {
		t.Fatalf("expected one signal_processed event, got %+v", activity.events)
	}
}

func TestProcessUser_RepeatedSignalWithinDedupWindowYieldsNoCreate(t *testing.T) {
	llmText := `{"actions": [{"action_type": "create_signal_emergent", "deliverable_type": "research_brief", "title": "t", "description": "d", "confidence": 0.9, "signal_context": {"event_id": "E123"}}], "reasoning": "pattern detected"}`
	orch, deliverables, generator, _, cache, history := newTestOrchestrator(t, llmText, nil)
	userID := uuid.New()
	seedContent(t, cache, userID, 5)

	if _, err := orch.ProcessUser(context.Background(), userID, nil, nil); err != nil {
		t.Fatalf("first ProcessUser() error = %v", err)
	}
	if len(deliverables.created) != 1 {
		t.Fatalf("deliverables.created after first pass = %+v, want 1", deliverables.created)
	}

	eligible, err := history.Eligible(context.Background(), userID, "research_brief", "E123", DedupWindow)
	if err != nil {
		t.Fatalf("Eligible() error = %v", err)
	}
	if eligible {
		t.Fatalf("expected E123 to be ineligible for re-trigger after the first pass recorded it")
	}

	outcome, err := orch.ProcessUser(context.Background(), userID, nil, nil)
	if err != nil {
		t.Fatalf("second ProcessUser() error = %v", err)
	}
	if len(outcome.DeliverablesCreated) != 0 {
		t.Fatalf("DeliverablesCreated on second pass = %+v, want none (still within dedup window)", outcome.DeliverablesCreated)
	}
	if len(deliverables.created) != 1 {
		t.Fatalf("deliverables.created after second pass = %+v, want still 1", deliverables.created)
	}
	if len(generator.calls) != 1 {
		t.Errorf("expected generation still invoked exactly once across both passes, got %d", len(generator.calls))
	}
}

func TestProcessUser_TriggerExistingSetsNextRunNow(t *testing.T) {
	existingID := uuid.New()
	orch, deliverables, generator, _, cache, _ := newTestOrchestrator(t,
		`{"actions": [{"action_type": "trigger_existing", "deliverable_type": "status_report", "trigger_deliverable_id": "`+existingID.String()+`", "confidence": 0.9}], "reasoning": "fresh movements"}`,
		[]ExistingDeliverable{{ID: existingID, DeliverableType: "status_report"}})
	userID := uuid.New()
	seedContent(t, cache, userID, 5)

	outcome, err := orch.ProcessUser(context.Background(), userID, nil, nil)
	if err != nil {
		t.Fatalf("ProcessUser() error = %v", err)
	}
	if len(outcome.DeliverablesTriggered) != 1 || outcome.DeliverablesTriggered[0] != existingID {
		t.Fatalf("DeliverablesTriggered = %+v, want [%s]", outcome.DeliverablesTriggered, existingID)
	}
	if len(deliverables.triggeredIDs) != 1 {
		t.Errorf("expected SetNextRunNow called once")
	}
	if len(generator.calls) != 0 {
		t.Errorf("trigger_existing must not invoke generation directly")
	}
}
