package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
	"github.com/kvkthecreator/yarnnn/pkg/llm"
)

const reasoningSystemPrompt = `You read live platform content (email, calendar, Slack, Notion) for one user and decide what warrants a deliverable.

Prefer trigger_existing when a deliverable of the same type already covers the content. Use create_signal_emergent only for genuinely novel, multi-point work. Use no_action when content is sparse or routine.

Respond with JSON only, no prose outside it:
{"actions": [{"action_type": "create_signal_emergent"|"trigger_existing"|"no_action", "deliverable_type": "...", "title": "...", "description": "...", "confidence": 0.0-1.0, "trigger_deliverable_id": "uuid or omit", "signal_context": {...}}], "reasoning": "..."}`

// ReasoningInput is the reasoning pass's bounded context, per spec
// §4.3 Step 2's caps (≤15 UserContext entries, ≤8 activity events,
// ≤10 deliverables).
type ReasoningInput struct {
	Summary             SignalSummary
	UserContext         []domain.UserContext
	RecentActivity      []domain.ActivityEvent
	ExistingDeliverables []ExistingDeliverable
}

// Reasoner runs the single LLM reasoning call and parses its response.
type Reasoner struct {
	client llm.Client
	model  string
}

// NewReasoner builds a Reasoner against client using model for every
// call (spec §8's LLM_REASONING_MODEL).
func NewReasoner(client llm.Client, model string) *Reasoner {
	return &Reasoner{client: client, model: model}
}

// Reason issues the reasoning pass and returns its parsed actions. A
// JSON parse failure drops the pass for this user (spec §4.3's
// failure semantics): it returns an empty result, not an error, so
// callers don't treat a malformed model response as a hard failure.
func (r *Reasoner) Reason(ctx context.Context, in ReasoningInput) (ReasoningResult, error) {
	prompt := buildReasoningPrompt(in)
	resp, err := r.client.Chat(ctx, llm.ChatRequest{
		Messages:  []llm.Message{{Role: llm.RoleUser, Text: prompt}},
		System:    reasoningSystemPrompt,
		Model:     r.model,
		MaxTokens: 1000,
	})
	if err != nil {
		return ReasoningResult{}, fmt.Errorf("reasoning pass: %w", err)
	}
	return parseReasoningResponse(resp.Text), nil
}

func buildReasoningPrompt(in ReasoningInput) string {
	var b strings.Builder
	b.WriteString("PLATFORM CONTENT:\n")
	writePlatformSummary(&b, "Calendar", in.Summary.Calendar)
	writePlatformSummary(&b, "Gmail", in.Summary.Gmail)
	writePlatformSummary(&b, "Slack", in.Summary.Slack)
	writePlatformSummary(&b, "Notion", in.Summary.Notion)

	b.WriteString("\nUSER CONTEXT:\n")
	for _, c := range in.UserContext {
		fmt.Fprintf(&b, "- %s: %s\n", c.Key, c.Value)
	}

	b.WriteString("\nRECENT ACTIVITY:\n")
	for _, a := range in.RecentActivity {
		fmt.Fprintf(&b, "- %s: %s\n", a.EventType, a.Summary)
	}

	b.WriteString("\nEXISTING DELIVERABLES:\n")
	for _, d := range in.ExistingDeliverables {
		fmt.Fprintf(&b, "- [%s] %s (%s): %s\n", d.ID, d.Title, d.DeliverableType, d.LastVersionText)
	}
	return b.String()
}

func writePlatformSummary(b *strings.Builder, label string, p *PlatformSummary) {
	if p == nil {
		fmt.Fprintf(b, "%s: no recent activity\n", label)
		return
	}
	fmt.Fprintf(b, "%s (%s, %d items):\n%s", label, p.Window, p.ItemsCount, p.Digest)
}

type reasoningResponse struct {
	Actions []struct {
		ActionType           string         `json:"action_type"`
		DeliverableType      string         `json:"deliverable_type"`
		Title                string         `json:"title"`
		Description          string         `json:"description"`
		Confidence           float64        `json:"confidence"`
		TriggerDeliverableID string         `json:"trigger_deliverable_id"`
		SignalContext        map[string]any `json:"signal_context"`
	} `json:"actions"`
	Reasoning string `json:"reasoning"`
}

// parseReasoningResponse parses the model's JSON reply, tolerating a
// surrounding markdown code fence. Any malformed action_type is
// dropped rather than failing the whole pass; an invalid
// trigger_deliverable_id (the model sometimes echoes a title instead
// of a UUID) is cleared rather than rejecting the action outright.
func parseReasoningResponse(raw string) ReasoningResult {
	text := stripCodeFence(raw)
	var parsed reasoningResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return ReasoningResult{}
	}

	result := ReasoningResult{Reasoning: parsed.Reasoning}
	for _, a := range parsed.Actions {
		actionType := ActionType(a.ActionType)
		switch actionType {
		case ActionCreateSignalEmergent, ActionTriggerExisting, ActionNoAction:
		default:
			continue
		}
		triggerID := a.TriggerDeliverableID
		if triggerID != "" {
			if _, err := uuid.Parse(triggerID); err != nil {
				triggerID = ""
			}
		}
		result.Actions = append(result.Actions, Action{
			Type:                 actionType,
			DeliverableType:      a.DeliverableType,
			Title:                a.Title,
			Description:          a.Description,
			Confidence:           a.Confidence,
			TriggerDeliverableID: triggerID,
			SignalContext:        a.SignalContext,
		})
	}
	return result
}

func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
