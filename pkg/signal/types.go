// Package signal implements the signal orchestrator (spec §4.3): per
// user, it reads live platform content, runs one reasoning pass
// against a cheap LLM, filters/dedupes the result, and executes
// whatever actions survive — creating a signal-emergent deliverable or
// advancing an existing one's schedule.
package signal

import (
	"time"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// ActionType is the kind of action the reasoning pass may recommend.
type ActionType string

const (
	ActionCreateSignalEmergent ActionType = "create_signal_emergent"
	ActionTriggerExisting      ActionType = "trigger_existing"
	ActionNoAction             ActionType = "no_action"
)

// ConfidenceThreshold is the minimum confidence an action must carry to
// survive the filter step (spec §4.3 Step 3).
const ConfidenceThreshold = 0.60

// PlatformSummary is a bounded digest of one platform's live content,
// used as a sub-block of SignalSummary.
type PlatformSummary struct {
	ItemsCount int
	Window     string
	Digest     string
}

// SignalSummary is Step 1's output: a per-platform digest of live
// content, used as the reasoning pass's primary input.
type SignalSummary struct {
	Calendar *PlatformSummary
	Gmail    *PlatformSummary
	Slack    *PlatformSummary
	Notion   *PlatformSummary
}

// TotalItems sums item counts across every populated platform summary,
// used by the sufficiency gate.
func (s SignalSummary) TotalItems() int {
	total := 0
	for _, p := range []*PlatformSummary{s.Calendar, s.Gmail, s.Slack, s.Notion} {
		if p != nil {
			total += p.ItemsCount
		}
	}
	return total
}

// Action is one recommendation produced by the reasoning pass.
type Action struct {
	Type                  ActionType
	DeliverableType       string
	Title                 string
	Description           string
	Confidence            float64
	Sources               []domain.DeliverableSource
	TriggerDeliverableID  string
	SignalContext         map[string]any
}

// ReasoningResult is the reasoning pass's parsed output.
type ReasoningResult struct {
	Actions   []Action
	Reasoning string
}

// ExistingDeliverable is the slice of a user's deliverables the
// reasoning pass and filter need: enough to dedupe against and to let
// the model decide whether an existing one already covers new content.
type ExistingDeliverable struct {
	ID              uuid.UUID
	DeliverableType string
	Title           string
	LastVersionText string
	LastRunAt       *time.Time
}

// ProcessOutcome is ProcessUser's return value, used to build the
// signal_processed activity event.
type ProcessOutcome struct {
	SignalsEvaluated       int
	ActionsTaken           []string
	DeliverablesCreated    []uuid.UUID
	DeliverablesTriggered  []uuid.UUID
	ReasoningSummary       string
}
