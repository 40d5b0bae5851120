// Package scheduler implements the dispatcher tick (spec §5): every
// five minutes it enumerates sync-due connections, signal-eligible
// users, and due deliverables, and fans each phase out to a bounded
// worker pool with per-key advisory locks and backpressure.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kvkthecreator/yarnnn/pkg/deliverable"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
	"github.com/kvkthecreator/yarnnn/pkg/metrics"
	"github.com/kvkthecreator/yarnnn/pkg/platformsync"
	"github.com/kvkthecreator/yarnnn/pkg/signal"
)

var tracer = otel.Tracer("yarnnn/scheduler")

const (
	phaseSync        = "sync"
	phaseSignal      = "signal"
	phaseDeliverable = "deliverable"
)

// ConnectionSource supplies the candidate set for the sync and signal
// phases. Declared locally; satisfied by
// pkg/platformsync.PostgresConnectionStore.
type ConnectionSource interface {
	ActiveConnectionsForCadence(ctx context.Context) ([]platformsync.ConnectionCadence, error)
}

// SyncEngine is the subset of pkg/platformsync.Engine the dispatcher
// drives.
type SyncEngine interface {
	SyncDueUsers(ctx context.Context, due []platformsync.DueSync, concurrency int)
}

// SignalProcessor is the subset of pkg/signal.Orchestrator the
// dispatcher drives.
type SignalProcessor interface {
	ProcessUser(ctx context.Context, userID uuid.UUID, userContext []domain.UserContext, recentActivity []domain.ActivityEvent) (signal.ProcessOutcome, error)
}

// ContextLister supplies a user's working-memory context entries for
// the signal phase's reasoning input.
type ContextLister interface {
	List(ctx context.Context, userID uuid.UUID) ([]domain.UserContext, error)
}

// DeliverableStore supplies due deliverables for the deliverable
// phase.
type DeliverableStore interface {
	Due(ctx context.Context, now time.Time) ([]domain.Deliverable, error)
}

// DeliverableGenerator is the subset of pkg/deliverable.Engine the
// dispatcher drives.
type DeliverableGenerator interface {
	Generate(ctx context.Context, deliverableID uuid.UUID, trigger deliverable.TriggerContext) error
}

// ActivityStore supplies recent activity for the signal phase and is
// where the dispatcher records its own heartbeat/drop events.
type ActivityStore interface {
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]domain.ActivityEvent, error)
	Record(ctx context.Context, event domain.ActivityEvent) error
}

// Config bounds each phase's worker pool and the per-phase backpressure
// ceiling (spec §5).
type Config struct {
	SyncConcurrency        int
	SignalConcurrency      int
	DeliverableConcurrency int
	MaxQueueDepth          int
}

// DefaultConfig matches the concurrency the corpus's worker-pool idiom
// typically runs at for a single-process deployment.
func DefaultConfig() Config {
	return Config{SyncConcurrency: 10, SignalConcurrency: 5, DeliverableConcurrency: 5, MaxQueueDepth: 500}
}

// Dispatcher is the single entry point (tick) consumed by an external
// cron, per spec §6.
type Dispatcher struct {
	connections  ConnectionSource
	sync         SyncEngine
	signalProc   SignalProcessor
	userContext  ContextLister
	deliverables DeliverableStore
	generator    DeliverableGenerator
	activity     ActivityStore
	locker       *platformsync.Locker
	cfg          Config
	log          *zap.Logger
	now          func() time.Time
}

// New wires a Dispatcher to its collaborators.
func New(connections ConnectionSource, sync SyncEngine, signalProc SignalProcessor, userContext ContextLister, deliverables DeliverableStore, generator DeliverableGenerator, activity ActivityStore, locker *platformsync.Locker, cfg Config, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		connections:  connections,
		sync:         sync,
		signalProc:   signalProc,
		userContext:  userContext,
		deliverables: deliverables,
		generator:    generator,
		activity:     activity,
		locker:       locker,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
}

// Report summarizes one tick, mirroring the scheduler_heartbeat
// activity event's required metadata (spec §6).
type Report struct {
	DeliverablesChecked   int
	DeliverablesTriggered int
	SignalsCreated        int
	Errors                []string
}

// Tick runs the three phases in order — sync, signal, deliverable —
// each phase observing activity events the prior phase wrote (spec
// §2). It never returns an error: per-phase and per-item failures are
// logged and folded into the returned Report instead, so one user's
// or one phase's failure never aborts the tick.
func (d *Dispatcher) Tick(ctx context.Context, now time.Time) Report {
	ctx, span := tracer.Start(ctx, "scheduler.tick")
	defer span.End()

	var report Report
	var mu sync.Mutex
	addError := func(err error) {
		mu.Lock()
		report.Errors = append(report.Errors, err.Error())
		mu.Unlock()
	}

	d.syncPhase(ctx, now, addError)
	d.signalPhase(ctx, now, &report, &mu, addError)
	d.deliverablePhase(ctx, now, &report, &mu, addError)

	metrics.TicksProcessedTotal.Inc()
	d.emitHeartbeat(ctx, report)
	return report
}

func (d *Dispatcher) syncPhase(ctx context.Context, now time.Time, addError func(error)) {
	ctx, span := tracer.Start(ctx, "scheduler.sync_phase")
	defer span.End()

	conns, err := d.connections.ActiveConnectionsForCadence(ctx)
	if err != nil {
		d.log.Warn("sync phase: failed to list active connections", zap.Error(err))
		addError(err)
		return
	}

	var due []platformsync.DueSync
	for _, c := range conns {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			loc = time.UTC
		}
		if platformsync.ShouldSyncNow(c.Tier, loc, c.LastSyncedAt, now) {
			due = append(due, platformsync.DueSync{UserID: c.UserID, Platform: c.Platform})
		}
	}

	due = applyBackpressure(d, ctx, phaseSync, due)
	d.sync.SyncDueUsers(ctx, due, d.cfg.SyncConcurrency)
}

func (d *Dispatcher) signalPhase(ctx context.Context, now time.Time, report *Report, mu *sync.Mutex, addError func(error)) {
	ctx, span := tracer.Start(ctx, "scheduler.signal_phase")
	defer span.End()

	conns, err := d.connections.ActiveConnectionsForCadence(ctx)
	if err != nil {
		d.log.Warn("signal phase: failed to list active connections", zap.Error(err))
		addError(err)
		return
	}
	users := dedupeUsers(conns)
	users = applyBackpressure(d, ctx, phaseSignal, users)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.SignalConcurrency)
	for _, userID := range users {
		userID := userID
		g.Go(func() error {
			// Per spec §5: never start a second signal pass for a user
			// while a prior one is in flight.
			key := platformsync.SignalLockKey(userID)
			token, ok, err := d.locker.TryLock(ctx, key)
			if err != nil {
				d.log.Warn("signal lock acquisition failed", zap.String("user_id", userID.String()), zap.Error(err))
				return nil
			}
			if !ok {
				return nil
			}
			defer func() { _ = d.locker.Unlock(ctx, key, token) }()

			userContext, err := d.userContext.List(ctx, userID)
			if err != nil {
				d.log.Warn("signal phase: failed to load user context", zap.String("user_id", userID.String()), zap.Error(err))
			}
			recentActivity, err := d.activity.Recent(ctx, userID, 8)
			if err != nil {
				d.log.Warn("signal phase: failed to load recent activity", zap.String("user_id", userID.String()), zap.Error(err))
			}

			outcome, err := d.signalProc.ProcessUser(ctx, userID, userContext, recentActivity)
			if err != nil {
				d.log.Warn("signal phase: process user failed", zap.String("user_id", userID.String()), zap.Error(err))
				addError(err)
				return nil
			}
			mu.Lock()
			report.SignalsCreated += len(outcome.DeliverablesCreated)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) deliverablePhase(ctx context.Context, now time.Time, report *Report, mu *sync.Mutex, addError func(error)) {
	ctx, span := tracer.Start(ctx, "scheduler.deliverable_phase")
	defer span.End()

	due, err := d.deliverables.Due(ctx, now)
	if err != nil {
		d.log.Warn("deliverable phase: failed to list due deliverables", zap.Error(err))
		addError(err)
		return
	}
	report.DeliverablesChecked = len(due)
	due = applyBackpressure(d, ctx, phaseDeliverable, due)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.DeliverableConcurrency)
	for _, dlv := range due {
		dlv := dlv
		g.Go(func() error {
			key := platformsync.DeliverableLockKey(dlv.ID)
			token, ok, err := d.locker.TryLock(ctx, key)
			if err != nil {
				d.log.Warn("deliverable lock acquisition failed", zap.String("deliverable_id", dlv.ID.String()), zap.Error(err))
				return nil
			}
			if !ok {
				return nil
			}
			defer func() { _ = d.locker.Unlock(ctx, key, token) }()

			if err := d.generator.Generate(ctx, dlv.ID, deliverable.TriggerContext{}); err != nil {
				d.log.Warn("deliverable generation failed", zap.String("deliverable_id", dlv.ID.String()), zap.Error(err))
				addError(err)
				return nil
			}
			mu.Lock()
			report.DeliverablesTriggered++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// applyBackpressure truncates items to the phase's queue-depth
// ceiling, recording a dropped-work metric and scheduler_dropped
// activity for the overflow (spec §5).
func applyBackpressure[T any](d *Dispatcher, ctx context.Context, phase string, items []T) []T {
	if d.cfg.MaxQueueDepth <= 0 || len(items) <= d.cfg.MaxQueueDepth {
		return items
	}
	dropped := len(items) - d.cfg.MaxQueueDepth
	d.log.Warn("queue depth exceeded, dropping overflow", zap.String("phase", phase), zap.Int("dropped", dropped))
	d.emitDropped(ctx, phase, dropped)
	return items[:d.cfg.MaxQueueDepth]
}

func dedupeUsers(conns []platformsync.ConnectionCadence) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(conns))
	var out []uuid.UUID
	for _, c := range conns {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		out = append(out, c.UserID)
	}
	return out
}

func (d *Dispatcher) emitHeartbeat(ctx context.Context, report Report) {
	event := domain.ActivityEvent{
		ID:        uuid.New(),
		EventType: domain.EventSchedulerHeartbeat,
		Summary:   fmt.Sprintf("tick: %d deliverables checked, %d triggered, %d signals created", report.DeliverablesChecked, report.DeliverablesTriggered, report.SignalsCreated),
		Metadata: map[string]any{
			"deliverables_checked":   report.DeliverablesChecked,
			"deliverables_triggered": report.DeliverablesTriggered,
			"signals_created":        report.SignalsCreated,
			"errors":                 report.Errors,
		},
		CreatedAt: d.now(),
	}
	if err := d.activity.Record(ctx, event); err != nil {
		d.log.Warn("failed to record scheduler_heartbeat activity", zap.Error(err))
	}
}

func (d *Dispatcher) emitDropped(ctx context.Context, phase string, dropped int) {
	metrics.RecordQueueDropped(phase)
	event := domain.ActivityEvent{
		ID:        uuid.New(),
		EventType: domain.EventSchedulerDropped,
		Summary:   fmt.Sprintf("%s phase: dropped %d items over the queue-depth ceiling", phase, dropped),
		Metadata:  map[string]any{"phase": phase, "dropped": dropped},
		CreatedAt: d.now(),
	}
	if err := d.activity.Record(ctx, event); err != nil {
		d.log.Warn("failed to record scheduler_dropped activity", zap.Error(err))
	}
}
