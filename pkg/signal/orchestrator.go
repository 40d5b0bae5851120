package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// TriggerContext carries why generation was invoked out-of-band, so
// the deliverable agent can explain its output (spec §4.3 Step 4).
type TriggerContext struct {
	Reasoning     string
	SignalContext map[string]any
}

// DeliverableStore is the subset of deliverable persistence the
// orchestrator needs. It is satisfied by pkg/deliverable's store,
// passed in as an interface to avoid an import cycle (pkg/deliverable
// depends on signal-triggered generation, not the other way round).
type DeliverableStore interface {
	ListActive(ctx context.Context, userID uuid.UUID) ([]ExistingDeliverable, error)
	CreateSignalEmergent(ctx context.Context, userID uuid.UUID, deliverableType, title, description string, sources []domain.DeliverableSource) (uuid.UUID, error)
	SetNextRunNow(ctx context.Context, deliverableID uuid.UUID) error
}

// Generator invokes deliverable generation out of band, immediately
// after a signal-emergent deliverable is created.
type Generator interface {
	Generate(ctx context.Context, deliverableID uuid.UUID, trigger TriggerContext) error
}

// ActivityLogger records the signal_processed event.
type ActivityLogger interface {
	Record(ctx context.Context, event domain.ActivityEvent) error
}

// Orchestrator implements ProcessUser: the four-step signal pass for
// one user.
type Orchestrator struct {
	summarizer  *Summarizer
	reasoner    *Reasoner
	filter      *Filter
	history     HistoryStore
	deliverables DeliverableStore
	generator   Generator
	activity    ActivityLogger
	log         *zap.Logger
	now         func() time.Time
}

// New builds an Orchestrator wired to its collaborators.
func New(summarizer *Summarizer, reasoner *Reasoner, filter *Filter, history HistoryStore, deliverables DeliverableStore, generator Generator, activity ActivityLogger, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		summarizer:  summarizer,
		reasoner:    reasoner,
		filter:      filter,
		history:     history,
		deliverables: deliverables,
		generator:   generator,
		activity:    activity,
		log:         log,
		now:         time.Now,
	}
}

// ProcessUser runs the four-step signal pass for userID.
func (o *Orchestrator) ProcessUser(ctx context.Context, userID uuid.UUID, userContext []domain.UserContext, recentActivity []domain.ActivityEvent) (ProcessOutcome, error) {
	summary, err := o.summarizer.BuildSummary(ctx, userID)
	if err != nil {
		return ProcessOutcome{}, fmt.Errorf("build signal summary: %w", err)
	}

	// Sufficiency gate (spec §4.3 Step 1): cold-start / sparse-content
	// users exit here without spending an LLM call.
	if summary.TotalItems() < 3 {
		return ProcessOutcome{ReasoningSummary: "insufficient platform content for signal detection"}, nil
	}

	existing, err := o.deliverables.ListActive(ctx, userID)
	if err != nil {
		return ProcessOutcome{}, fmt.Errorf("list existing deliverables: %w", err)
	}
	existingTypes := make([]string, len(existing))
	for i, d := range existing {
		existingTypes[i] = d.DeliverableType
	}

	reasoning, err := o.reasoner.Reason(ctx, ReasoningInput{
		Summary:              summary,
		UserContext:          capUserContext(userContext),
		RecentActivity:       capActivity(recentActivity),
		ExistingDeliverables: capDeliverables(existing),
	})
	if err != nil {
		// LLM call itself failed (not a parse error): drop the pass,
		// no partial state (spec §4.3 failure semantics).
		o.log.Warn("signal reasoning pass failed", zap.String("user_id", userID.String()), zap.Error(err))
		return ProcessOutcome{}, nil
	}

	actions, err := o.filter.Apply(ctx, userID, reasoning.Actions, existingTypes)
	if err != nil {
		return ProcessOutcome{}, fmt.Errorf("filter signal actions: %w", err)
	}

	outcome := ProcessOutcome{
		SignalsEvaluated: len(reasoning.Actions),
		ReasoningSummary: reasoning.Reasoning,
	}
	for _, a := range actions {
		outcome.ActionsTaken = append(outcome.ActionsTaken, string(a.Type))
		switch a.Type {
		case ActionCreateSignalEmergent:
			o.executeCreate(ctx, userID, a, reasoning.Reasoning, &outcome)
		case ActionTriggerExisting:
			o.executeTrigger(ctx, a, &outcome)
		}
	}

	o.emitSignalProcessed(ctx, userID, outcome)
	return outcome, nil
}

func (o *Orchestrator) executeCreate(ctx context.Context, userID uuid.UUID, a Action, reasoning string, outcome *ProcessOutcome) {
	id, err := o.deliverables.CreateSignalEmergent(ctx, userID, a.DeliverableType, a.Title, a.Description, a.Sources)
	if err != nil {
		o.log.Warn("create signal-emergent deliverable failed", zap.String("user_id", userID.String()), zap.String("deliverable_type", a.DeliverableType), zap.Error(err))
		return
	}
	outcome.DeliverablesCreated = append(outcome.DeliverablesCreated, id)

	if signalRef := signalRefOf(a); signalRef != "" {
		if err := o.history.Record(ctx, domain.SignalHistory{
			UserID:          userID,
			DeliverableType: a.DeliverableType,
			SignalRef:       signalRef,
			CreatedAt:       o.now(),
		}); err != nil {
			o.log.Warn("record signal history failed", zap.String("deliverable_id", id.String()), zap.Error(err))
		}
	}

	if err := o.generator.Generate(ctx, id, TriggerContext{Reasoning: reasoning, SignalContext: a.SignalContext}); err != nil {
		o.log.Warn("signal-emergent generation failed", zap.String("deliverable_id", id.String()), zap.Error(err))
	}
}

func (o *Orchestrator) executeTrigger(ctx context.Context, a Action, outcome *ProcessOutcome) {
	id, err := uuid.Parse(a.TriggerDeliverableID)
	if err != nil {
		o.log.Warn("trigger_existing action dropped: invalid deliverable id", zap.String("raw", a.TriggerDeliverableID))
		return
	}
	if err := o.deliverables.SetNextRunNow(ctx, id); err != nil {
		o.log.Warn("trigger existing deliverable failed", zap.String("deliverable_id", id.String()), zap.Error(err))
		return
	}
	outcome.DeliverablesTriggered = append(outcome.DeliverablesTriggered, id)
}

func (o *Orchestrator) emitSignalProcessed(ctx context.Context, userID uuid.UUID, outcome ProcessOutcome) {
	event := domain.ActivityEvent{
		ID:        uuid.New(),
		UserID:    userID,
		EventType: domain.EventSignalProcessed,
		Summary:   fmt.Sprintf("signal processing: %d created, %d triggered", len(outcome.DeliverablesCreated), len(outcome.DeliverablesTriggered)),
		Metadata: map[string]any{
			"signals_evaluated":       outcome.SignalsEvaluated,
			"actions_taken":           outcome.ActionsTaken,
			"deliverables_triggered":  outcome.DeliverablesTriggered,
			"reasoning_summary":       outcome.ReasoningSummary,
		},
		CreatedAt: o.now(),
	}
	if err := o.activity.Record(ctx, event); err != nil {
		o.log.Warn("failed to record signal_processed activity", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func capUserContext(in []domain.UserContext) []domain.UserContext {
	const max = 15
	if len(in) > max {
		return in[:max]
	}
	return in
}

func capActivity(in []domain.ActivityEvent) []domain.ActivityEvent {
	const max = 8
	if len(in) > max {
		return in[:max]
	}
	return in
}

func capDeliverables(in []ExistingDeliverable) []ExistingDeliverable {
	const max = 10
	if len(in) > max {
		return in[:max]
	}
	return in
}
