package signal

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/signal/policy"
)

// Filter applies the per-action admission policy, then reduces the
// survivors to at most one action per (action_type, deliverable_type)
// pair and drops create_signal_emergent actions whose signal_ref was
// already triggered within the dedup window (spec §4.3 Step 3).
type Filter struct {
	checker *policy.Checker
	history HistoryStore
}

// NewFilter builds a Filter over checker and history.
func NewFilter(checker *policy.Checker, history HistoryStore) *Filter {
	return &Filter{checker: checker, history: history}
}

// Apply filters actions against existingTypes (deliverable types the
// user already has configured) for userID.
func (f *Filter) Apply(ctx context.Context, userID uuid.UUID, actions []Action, existingTypes []string) ([]Action, error) {
	seen := make(map[string]struct{}, len(actions))
	var kept []Action

	for _, a := range actions {
		if a.Type == ActionNoAction {
			continue
		}
		allowed, err := f.checker.Allow(ctx, policy.Input{
			ActionType:          string(a.Type),
			DeliverableType:     a.DeliverableType,
			Confidence:          a.Confidence,
			ConfidenceThreshold: ConfidenceThreshold,
			ExistingTypes:       existingTypes,
		})
		if err != nil {
			return nil, fmt.Errorf("evaluate action admission: %w", err)
		}
		if !allowed {
			continue
		}

		key := string(a.Type) + ":" + a.DeliverableType
		if _, dup := seen[key]; dup {
			continue
		}

		if a.Type == ActionCreateSignalEmergent {
			signalRef := signalRefOf(a)
			eligible, err := f.history.Eligible(ctx, userID, a.DeliverableType, signalRef, DedupWindow)
			if err != nil {
				return nil, fmt.Errorf("check signal history: %w", err)
			}
			if !eligible {
				continue
			}
		}

		seen[key] = struct{}{}
		kept = append(kept, a)
	}
	return kept, nil
}

// signalRefOf extracts the dedup key an action's signal_context
// carries, e.g. a calendar event_id or a gmail thread_id.
func signalRefOf(a Action) string {
	if v, ok := a.SignalContext["event_id"].(string); ok && v != "" {
		return v
	}
	if v, ok := a.SignalContext["thread_id"].(string); ok && v != "" {
		return v
	}
	return ""
}
