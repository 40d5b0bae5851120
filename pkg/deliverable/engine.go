package deliverable

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/contentcache"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
	"github.com/kvkthecreator/yarnnn/pkg/metrics"
	"github.com/kvkthecreator/yarnnn/pkg/shared/logging"
)

// TriggerContext carries why a run was started out of signal
// processing, so the generation prompt can explain itself (spec §4.4
// Step 4). The zero value means a plain scheduled run.
type TriggerContext struct {
	Reasoning     string
	SignalContext map[string]any
}

// Engine implements the seven-step deliverable execution pipeline
// (spec §4.4): freshness check, strategy-based gather, version+ticket,
// bounded headless generation, post-generation retention, delivery,
// finalize.
type Engine struct {
	store      Store
	cache      *contentcache.Cache
	freshness  *FreshnessChecker
	gatherer   *Gatherer
	agentModel string
	llmFactory func(userID uuid.UUID) *Agent
	memory     MemoryReader
	deliverer  *Deliverer
	log        *zap.Logger
	now        func() time.Time
}

// New wires an Engine. llmFactory builds a per-run Agent scoped to the
// acting user (its tool executor needs the user id to bound queries).
func New(store Store, cache *contentcache.Cache, freshness *FreshnessChecker, gatherer *Gatherer, llmFactory func(userID uuid.UUID) *Agent, memory MemoryReader, deliverer *Deliverer, log *zap.Logger) *Engine {
	return &Engine{
		store:      store,
		cache:      cache,
		freshness:  freshness,
		gatherer:   gatherer,
		llmFactory: llmFactory,
		memory:     memory,
		deliverer:  deliverer,
		log:        log,
		now:        time.Now,
	}
}

// Generate runs the full pipeline for one deliverable. It never
// returns an error for a run-level failure — spec §4.4 Step 7 requires
// next_run_at to always advance so the scheduler doesn't busy-retry;
// failures are recorded on the version/ticket instead. It does return
// an error for a setup failure severe enough that no version could be
// created at all (e.g. the deliverable vanished).
func (e *Engine) Generate(ctx context.Context, deliverableID uuid.UUID, trigger TriggerContext) error {
	timer := metrics.NewTimer()
	d, err := e.store.Get(ctx, deliverableID)
	if err != nil {
		return fmt.Errorf("load deliverable %s: %w", deliverableID, err)
	}
	if d == nil {
		return fmt.Errorf("deliverable %s not found", deliverableID)
	}

	versionNumber, err := e.store.NextVersionNumber(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("compute version number: %w", err)
	}
	version := domain.DeliverableVersion{
		ID: uuid.New(), DeliverableID: d.ID, VersionNumber: versionNumber,
		Status: domain.VersionGenerating, DeliveryStatus: domain.DeliveryPending, CreatedAt: e.now(),
	}
	if err := e.store.CreateVersion(ctx, version); err != nil {
		return fmt.Errorf("create version record: %w", err)
	}

	ticket := domain.WorkTicket{ID: uuid.New(), DeliverableID: d.ID, DeliverableVersionID: version.ID, Status: domain.TicketRunning, StartedAt: ptr(e.now())}
	if err := e.store.CreateTicket(ctx, ticket); err != nil {
		return fmt.Errorf("create work ticket: %w", err)
	}

	result := e.run(ctx, *d, version, trigger)
	e.finalize(ctx, *d, version, ticket, result)

	timer.RecordDeliverableGenerated(d.DeliverableType, string(result.finalDeliveryStatus))
	return nil
}

type runResult struct {
	draft               string
	finalDeliveryStatus domain.DeliveryStatus
	versionStatus       domain.VersionStatus
	deliveryLogs        []domain.DestinationDeliveryLog
	platformContentIDs  []uuid.UUID
	sourceSnapshots     []domain.SourceSnapshot
	failure             string
}

func (e *Engine) run(ctx context.Context, d domain.Deliverable, version domain.DeliverableVersion, trigger TriggerContext) runResult {
	// Step 1 — freshness.
	snapshots := e.freshness.Check(ctx, d)

	// Step 2 — gather.
	recentContext := ""
	if e.memory != nil {
		if text, err := e.memory.Assemble(ctx, d.UserID); err == nil {
			recentContext = text
		} else {
			e.log.Warn("working-memory assembly failed", zap.String("deliverable_id", d.ID.String()), zap.Error(err))
		}
	}
	pastVersions := e.pastVersionsContext(ctx, d.ID)
	researchDirective := ""
	if d.TypeClassification.Binding == domain.BindingResearch || d.TypeClassification.Binding == domain.BindingHybrid {
		researchDirective = fmt.Sprintf("Research developments relevant to %q and synthesize findings alongside any platform context.", d.Title)
	}

	gathered, err := e.gatherer.Gather(ctx, d, recentContext, pastVersions, researchDirective)
	if err != nil {
		return runResult{versionStatus: domain.VersionFailed, finalDeliveryStatus: domain.DeliveryFailed, sourceSnapshots: snapshots, failure: fmt.Sprintf("gather context: %v", err)}
	}

	// Step 4 — bounded headless generation.
	agent := e.llmFactory(d.UserID)
	draft, err := agent.Generate(ctx, GenerateInput{
		DeliverableType:   d.DeliverableType,
		ResearchDirective: researchDirective,
		SignalReasoning:   trigger.Reasoning,
		Brief:             d.Description,
		GatheredContext:   gathered.Content,
	})
	if err != nil {
		return runResult{versionStatus: domain.VersionFailed, finalDeliveryStatus: domain.DeliveryFailed, sourceSnapshots: snapshots, failure: fmt.Sprintf("generation: %v", err)}
	}

	// Step 5 — post-generation: retain consumed content, record snapshots.
	// Retention must succeed before a version can ever be marked
	// delivered (spec §3, §7): a version can't carry a
	// platform_content_ids row without retained=true.
	if err := e.cache.Retain(ctx, gathered.PlatformContentIDs); err != nil {
		return runResult{versionStatus: domain.VersionFailed, finalDeliveryStatus: domain.DeliveryFailed, sourceSnapshots: snapshots, failure: fmt.Sprintf("retain content: %v", err)}
	}

	// Step 6 — delivery.
	logs, status := e.deliverer.Deliver(ctx, d.UserID, d.Destination, draft)

	versionStatus := domain.VersionDelivered
	if status == domain.DeliveryFailed {
		versionStatus = domain.VersionFailed
	}

	return runResult{
		draft: draft, finalDeliveryStatus: status, versionStatus: versionStatus,
		deliveryLogs: logs, platformContentIDs: gathered.PlatformContentIDs, sourceSnapshots: snapshots,
	}
}

// finalize implements Step 7: persist the version's final content and
// status, complete or fail the ticket, record delivery attempts, and —
// unconditionally — recompute next_run_at so a failure never causes
// busy-retry of the same run.
func (e *Engine) finalize(ctx context.Context, d domain.Deliverable, version domain.DeliverableVersion, ticket domain.WorkTicket, result runResult) {
	if err := e.store.UpdateVersionContent(ctx, version.ID, result.draft, result.draft); err != nil {
		e.log.Warn("update version content failed", zap.String("version_id", version.ID.String()), zap.Error(err))
	}
	if err := e.store.RecordSourceSnapshots(ctx, version.ID, result.sourceSnapshots); err != nil {
		e.log.Warn("record source snapshots failed", zap.String("version_id", version.ID.String()), zap.Error(err))
	}

	var deliveredAt *time.Time
	if result.finalDeliveryStatus == domain.DeliveryDelivered || result.finalDeliveryStatus == domain.DeliveryPartial {
		deliveredAt = ptr(e.now())
	}
	if err := e.store.FinalizeVersion(ctx, version.ID, result.versionStatus, result.finalDeliveryStatus, deliveredAt); err != nil {
		e.log.Warn("finalize version failed", zap.String("version_id", version.ID.String()), zap.Error(err))
	}

	for _, l := range result.deliveryLogs {
		l.VersionID = version.ID
		if err := e.store.RecordDelivery(ctx, l); err != nil {
			e.log.Warn("record delivery log failed", zap.String("version_id", version.ID.String()), zap.Error(err))
		}
	}

	if result.versionStatus == domain.VersionFailed {
		if err := e.store.FailTicket(ctx, ticket.ID, result.failure); err != nil {
			e.log.Warn("fail work ticket failed", zap.String("ticket_id", ticket.ID.String()), zap.Error(err))
		}
	} else {
		if err := e.store.CompleteTicket(ctx, ticket.ID); err != nil {
			e.log.Warn("complete work ticket failed", zap.String("ticket_id", ticket.ID.String()), zap.Error(err))
		}
	}

	next, err := ComputeNextRunAt(d.Schedule, e.now())
	if err != nil {
		e.log.Error("compute next_run_at failed, deliverable will not reschedule", zap.String("deliverable_id", d.ID.String()), zap.Error(err))
	} else if err := e.store.SetNextRunAt(ctx, d.ID, next); err != nil {
		e.log.Warn("set next_run_at failed", zap.String("deliverable_id", d.ID.String()), zap.Error(err))
	}

	e.log.Info("deliverable_run", logging.NewFields().
		Component("deliverable").Operation("generate").
		Resource("deliverable", d.ID.String()).
		ZapFields()...)
}

func (e *Engine) pastVersionsContext(ctx context.Context, deliverableID uuid.UUID) string {
	versions, err := e.store.RecentVersions(ctx, deliverableID, 2)
	if err != nil || len(versions) == 0 {
		return ""
	}
	var b strings.Builder
	for _, v := range versions {
		if v.FinalContent == "" {
			continue
		}
		fmt.Fprintf(&b, "v%d:\n%s\n\n", v.VersionNumber, v.FinalContent)
	}
	return strings.TrimSpace(b.String())
}

func ptr[T any](v T) *T { return &v }
