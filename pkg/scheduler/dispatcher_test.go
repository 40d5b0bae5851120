package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/activity"
	"github.com/kvkthecreator/yarnnn/pkg/deliverable"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
	"github.com/kvkthecreator/yarnnn/pkg/platformsync"
	"github.com/kvkthecreator/yarnnn/pkg/signal"
)

type stubConnectionSource struct {
	conns []platformsync.ConnectionCadence
	err   error
}

func (s *stubConnectionSource) ActiveConnectionsForCadence(ctx context.Context) ([]platformsync.ConnectionCadence, error) {
	return s.conns, s.err
}

type stubSyncEngine struct {
	calledWith []platformsync.DueSync
}

func (s *stubSyncEngine) SyncDueUsers(ctx context.Context, due []platformsync.DueSync, concurrency int) {
	s.calledWith = due
}

type stubSignalProcessor struct {
	outcome signal.ProcessOutcome
	err     error
	calls   int
}

func (s *stubSignalProcessor) ProcessUser(ctx context.Context, userID uuid.UUID, userContext []domain.UserContext, recentActivity []domain.ActivityEvent) (signal.ProcessOutcome, error) {
	s.calls++
	return s.outcome, s.err
}

type stubContextLister struct{}

func (stubContextLister) List(ctx context.Context, userID uuid.UUID) ([]domain.UserContext, error) {
	return nil, nil
}

type stubDeliverableStore struct {
	due []domain.Deliverable
	err error
}

func (s *stubDeliverableStore) Due(ctx context.Context, now time.Time) ([]domain.Deliverable, error) {
	return s.due, s.err
}

type stubDeliverableGenerator struct {
	calls []uuid.UUID
	err   error
}

func (s *stubDeliverableGenerator) Generate(ctx context.Context, deliverableID uuid.UUID, trigger deliverable.TriggerContext) error {
	s.calls = append(s.calls, deliverableID)
	return s.err
}

func newTestLocker(t *testing.T) *platformsync.Locker {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return platformsync.NewLocker(client, time.Minute)
}

func TestDispatcher_Tick_SyncsDueConnectionsOnly(t *testing.T) {
	userID := uuid.New()
	recentSync := time.Now()
	conns := &stubConnectionSource{conns: []platformsync.ConnectionCadence{
		{UserID: userID, Platform: domain.PlatformSlack, Tier: domain.TierPro, Timezone: "UTC"},
		{UserID: uuid.New(), Platform: domain.PlatformGmail, Tier: domain.TierPro, Timezone: "UTC", LastSyncedAt: recentSync},
	}}
	sync := &stubSyncEngine{}
	activityStore := activity.NewMemoryStore()

	d := New(conns, sync, &stubSignalProcessor{}, stubContextLister{}, &stubDeliverableStore{}, &stubDeliverableGenerator{}, activityStore, newTestLocker(t), DefaultConfig(), zap.NewNop())

	d.Tick(context.Background(), recentSync)

	if len(sync.calledWith) != 1 {
		t.Fatalf("len(calledWith) = %d, want 1 (only the never-synced connection is due)", len(sync.calledWith))
	}
	if sync.calledWith[0].UserID != userID {
		t.Errorf("calledWith[0].UserID = %v, want %v", sync.calledWith[0].UserID, userID)
	}
}

func TestDispatcher_Tick_ProcessesEachDistinctUserOnceForSignal(t *testing.T) {
	userID := uuid.New()
	conns := &stubConnectionSource{conns: []platformsync.ConnectionCadence{
		{UserID: userID, Platform: domain.PlatformSlack, Tier: domain.TierPro, Timezone: "UTC"},
		{UserID: userID, Platform: domain.PlatformGmail, Tier: domain.TierPro, Timezone: "UTC"},
	}}
	signalProc := &stubSignalProcessor{}
	activityStore := activity.NewMemoryStore()

	d := New(conns, &stubSyncEngine{}, signalProc, stubContextLister{}, &stubDeliverableStore{}, &stubDeliverableGenerator{}, activityStore, newTestLocker(t), DefaultConfig(), zap.NewNop())

	d.Tick(context.Background(), time.Now())

	if signalProc.calls != 1 {
		t.Errorf("signalProc.calls = %d, want 1 despite two connections for the same user", signalProc.calls)
	}
}

func TestDispatcher_Tick_RunsGenerationForEachDueDeliverable(t *testing.T) {
	d1, d2 := uuid.New(), uuid.New()
	store := &stubDeliverableStore{due: []domain.Deliverable{{ID: d1}, {ID: d2}}}
	generator := &stubDeliverableGenerator{}
	activityStore := activity.NewMemoryStore()

	d := New(&stubConnectionSource{}, &stubSyncEngine{}, &stubSignalProcessor{}, stubContextLister{}, store, generator, activityStore, newTestLocker(t), DefaultConfig(), zap.NewNop())

	report := d.Tick(context.Background(), time.Now())

	if report.DeliverablesChecked != 2 {
		t.Errorf("DeliverablesChecked = %d, want 2", report.DeliverablesChecked)
	}
	if report.DeliverablesTriggered != 2 {
		t.Errorf("DeliverablesTriggered = %d, want 2", report.DeliverablesTriggered)
	}
	if len(generator.calls) != 2 {
		t.Fatalf("len(generator.calls) = %d, want 2", len(generator.calls))
	}
}

func TestDispatcher_Tick_BackpressureDropsOverflowAndRecordsActivity(t *testing.T) {
	var due []domain.Deliverable
	for i := 0; i < 5; i++ {
		due = append(due, domain.Deliverable{ID: uuid.New()})
	}
	store := &stubDeliverableStore{due: due}
	generator := &stubDeliverableGenerator{}
	activityStore := activity.NewMemoryStore()
	cfg := DefaultConfig()
	cfg.MaxQueueDepth = 2

	d := New(&stubConnectionSource{}, &stubSyncEngine{}, &stubSignalProcessor{}, stubContextLister{}, store, generator, activityStore, newTestLocker(t), cfg, zap.NewNop())

	d.Tick(context.Background(), time.Now())

	if len(generator.calls) != 2 {
		t.Fatalf("len(generator.calls) = %d, want 2 (ceiling applied)", len(generator.calls))
	}
	dropped, err := activityStore.CountSince(context.Background(), uuid.Nil, domain.EventSchedulerDropped, time.Time{})
	if err != nil {
		t.Fatalf("CountSince() error = %v", err)
	}
	if dropped != 1 {
		t.Errorf("scheduler_dropped events recorded = %d, want 1", dropped)
	}
}

func TestDispatcher_Tick_DeliverableGenerationFailureDoesNotAbortOthers(t *testing.T) {
	d1, d2 := uuid.New(), uuid.New()
	store := &stubDeliverableStore{due: []domain.Deliverable{{ID: d1}, {ID: d2}}}
	generator := &stubDeliverableGenerator{err: errors.New("llm timeout")}
	activityStore := activity.NewMemoryStore()

	d := New(&stubConnectionSource{}, &stubSyncEngine{}, &stubSignalProcessor{}, stubContextLister{}, store, generator, activityStore, newTestLocker(t), DefaultConfig(), zap.NewNop())

	report := d.Tick(context.Background(), time.Now())

	if len(generator.calls) != 2 {
		t.Fatalf("len(generator.calls) = %d, want both deliverables attempted despite failure", len(generator.calls))
	}
	if len(report.Errors) != 2 {
		t.Errorf("len(report.Errors) = %d, want 2", len(report.Errors))
	}
}

func TestDispatcher_Tick_EmitsSchedulerHeartbeat(t *testing.T) {
	activityStore := activity.NewMemoryStore()
	d := New(&stubConnectionSource{}, &stubSyncEngine{}, &stubSignalProcessor{}, stubContextLister{}, &stubDeliverableStore{}, &stubDeliverableGenerator{}, activityStore, newTestLocker(t), DefaultConfig(), zap.NewNop())

	d.Tick(context.Background(), time.Now())

	last, err := activityStore.LastEvent(context.Background(), uuid.Nil, domain.EventSchedulerHeartbeat)
	if err != nil {
		t.Fatalf("LastEvent() error = %v", err)
	}
	if last == nil {
		t.Fatal("expected a scheduler_heartbeat event to be recorded")
	}
}
