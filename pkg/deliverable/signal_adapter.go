package deliverable

import (
	"context"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/signal"
)

// SignalGeneratorAdapter satisfies pkg/signal's Generator interface
// over an Engine, translating signal.TriggerContext into this
// package's own TriggerContext so neither package needs to import the
// other's concrete trigger type.
type SignalGeneratorAdapter struct {
	engine *Engine
}

// NewSignalGeneratorAdapter wraps engine for use as a
// signal.Orchestrator's Generator.
func NewSignalGeneratorAdapter(engine *Engine) *SignalGeneratorAdapter {
	return &SignalGeneratorAdapter{engine: engine}
}

func (a *SignalGeneratorAdapter) Generate(ctx context.Context, deliverableID uuid.UUID, trigger signal.TriggerContext) error {
	return a.engine.Generate(ctx, deliverableID, TriggerContext{
		Reasoning:     trigger.Reasoning,
		SignalContext: trigger.SignalContext,
	})
}
