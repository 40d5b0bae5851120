package signal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
	"github.com/kvkthecreator/yarnnn/pkg/signal/policy"
)

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	checker, err := policy.NewChecker(context.Background())
	if err != nil {
		t.Fatalf("policy.NewChecker() error = %v", err)
	}
	return NewFilter(checker, NewMemoryHistoryStore())
}

func TestFilter_Apply_DropsLowConfidence(t *testing.T) {
	f := newTestFilter(t)
	actions := []Action{{Type: ActionCreateSignalEmergent, DeliverableType: "research_brief", Confidence: 0.4}}

	kept, err := f.Apply(context.Background(), uuid.New(), actions, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(kept) != 0 {
		t.Errorf("kept = %+v, want empty (confidence below threshold)", kept)
	}
}

func TestFilter_Apply_DropsCreateWhenTypeAlreadyExists(t *testing.T) {
	f := newTestFilter(t)
	actions := []Action{{Type: ActionCreateSignalEmergent, DeliverableType: "status_report", Confidence: 0.9}}

	kept, err := f.Apply(context.Background(), uuid.New(), actions, []string{"status_report"})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(kept) != 0 {
		t.Errorf("kept = %+v, want empty (deliverable type already configured)", kept)
	}
}

func TestFilter_Apply_KeepsOneActionPerTypePerPass(t *testing.T) {
	f := newTestFilter(t)
	actions := []Action{
		{Type: ActionCreateSignalEmergent, DeliverableType: "research_brief", Confidence: 0.9},
		{Type: ActionCreateSignalEmergent, DeliverableType: "research_brief", Confidence: 0.95},
	}

	kept, err := f.Apply(context.Background(), uuid.New(), actions, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("kept = %+v, want exactly 1", kept)
	}
}

func TestFilter_Apply_NoActionIsAlwaysDropped(t *testing.T) {
	f := newTestFilter(t)
	actions := []Action{{Type: ActionNoAction, Confidence: 1.0}}

	kept, err := f.Apply(context.Background(), uuid.New(), actions, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(kept) != 0 {
		t.Errorf("kept = %+v, want empty", kept)
	}
}

func TestFilter_Apply_DedupesBySignalRef(t *testing.T) {
	checker, err := policy.NewChecker(context.Background())
	if err != nil {
		t.Fatalf("policy.NewChecker() error = %v", err)
	}
	history := NewMemoryHistoryStore()
	f := NewFilter(checker, history)
	userID := uuid.New()

	action := Action{
		Type: ActionCreateSignalEmergent, DeliverableType: "research_brief", Confidence: 0.9,
		SignalContext: map[string]any{"thread_id": "t123"},
	}

	first, err := f.Apply(context.Background(), userID, []Action{action}, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first pass kept = %+v, want 1", first)
	}

	if err := history.Record(context.Background(), domain.SignalHistory{
		UserID: userID, DeliverableType: "research_brief", SignalRef: "t123", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	second, err := f.Apply(context.Background(), userID, []Action{action}, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second pass kept = %+v, want empty (already triggered within dedup window)", second)
	}
}
