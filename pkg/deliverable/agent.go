package deliverable

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kvkthecreator/yarnnn/pkg/llm"
)

// MaxToolRounds bounds the headless generation loop (spec §4.4 Step 4,
// ADR-080 in the original).
const MaxToolRounds = 3

// ToolExecutor runs one mode-gated read-only tool call and returns its
// result as a string the model can read back. Implementations live
// outside this package (Search/List hit the content cache, WebSearch
// hits an external provider, GetSystemState reads working memory) so
// pkg/deliverable stays decoupled from those concerns.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, input map[string]any) (string, error)
}

// readOnlyTools is the fixed, mode-gated tool set available to headless
// generation: Read, Search, List, WebSearch, GetSystemState. No
// Write/Edit/Execute — the agent never mutates state directly.
func readOnlyTools() []llm.Tool {
	return []llm.Tool{
		{Name: "Read", Description: "Read a specific resource by id.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{"id": map[string]any{"type": "string"}}, "required": []string{"id"}}},
		{Name: "Search", Description: "Search cached platform content.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{"query": map[string]any{"type": "string"}}, "required": []string{"query"}}},
		{Name: "List", Description: "List resources of a given kind.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{"kind": map[string]any{"type": "string"}}, "required": []string{"kind"}}},
		{Name: "WebSearch", Description: "Search the web for research directives.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{"query": map[string]any{"type": "string"}}, "required": []string{"query"}}},
		{Name: "GetSystemState", Description: "Read the user's current working-memory snapshot.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}}},
	}
}

// Agent implements spec §4.4 Step 4: a bounded conversation with an LLM
// that may invoke read-only tools before producing the deliverable
// draft.
type Agent struct {
	client   llm.Client
	model    string
	executor ToolExecutor
}

// NewAgent wires an Agent to its LLM client, model, and tool executor.
func NewAgent(client llm.Client, model string, executor ToolExecutor) *Agent {
	return &Agent{client: client, model: model, executor: executor}
}

// GenerateInput carries everything the headless prompt needs.
type GenerateInput struct {
	DeliverableType   string
	SystemPreamble    string // format/tone rules, built by the caller
	ResearchDirective string
	SignalReasoning   string
	Brief             string
	GatheredContext   string
}

// Generate runs the bounded tool-use loop and returns the draft text.
// An empty draft after the loop exits is a hard failure (spec §4.4
// Step 4: "If the loop exits with empty text, the generation fails").
func (a *Agent) Generate(ctx context.Context, in GenerateInput) (string, error) {
	system := buildHeadlessSystemPrompt(in)
	messages := []llm.Message{{Role: llm.RoleUser, Text: buildHeadlessUserPrompt(in)}}
	tools := readOnlyTools()

	var draft string
	for round := 0; round <= MaxToolRounds; round++ {
		resp, err := a.client.Chat(ctx, llm.ChatRequest{
			Messages:  messages,
			System:    system,
			Tools:     tools,
			Model:     a.model,
			MaxTokens: 4000,
		})
		if err != nil {
			return "", fmt.Errorf("headless generation call failed: %w", err)
		}

		if resp.StopReason == "end_turn" || len(resp.ToolUses) == 0 {
			draft = strings.TrimSpace(resp.Text)
			break
		}
		if round >= MaxToolRounds {
			draft = strings.TrimSpace(resp.Text)
			break
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Text: resp.Text, ToolUses: resp.ToolUses})
		results := make([]llm.ToolResult, len(resp.ToolUses))
		for i, tu := range resp.ToolUses {
			out, err := a.executor.Execute(ctx, tu.Name, tu.Input)
			if err != nil {
				results[i] = llm.ToolResult{ToolUseID: tu.ID, Content: err.Error(), IsError: true}
				continue
			}
			results[i] = llm.ToolResult{ToolUseID: tu.ID, Content: out}
		}
		messages = append(messages, llm.Message{Role: llm.RoleUser, ToolResults: results})
	}

	if draft == "" {
		return "", fmt.Errorf("headless agent produced an empty draft")
	}
	return draft, nil
}

func buildHeadlessSystemPrompt(in GenerateInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are generating a %s deliverable.\n\n", in.DeliverableType)
	if in.SystemPreamble != "" {
		b.WriteString(in.SystemPreamble)
		b.WriteString("\n\n")
	}
	b.WriteString(`## Tool Usage (Headless Mode)
You have read-only investigation tools: Read, Search, List, WebSearch, GetSystemState.
Use them only if the gathered context below is clearly insufficient.
Prefer generating from the provided context — most deliverables have enough.
Maximum 3 tool rounds; after that, generate with whatever context you have.
Never use tools to stall.`)
	if in.SignalReasoning != "" {
		fmt.Fprintf(&b, "\n\n## Signal Context\nThis run was triggered by signal processing because:\n%s", in.SignalReasoning)
	}
	return b.String()
}

func buildHeadlessUserPrompt(in GenerateInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Brief: %s\n\n", in.Brief)
	if in.ResearchDirective != "" {
		fmt.Fprintf(&b, "## Research Directive\n%s\n\n", in.ResearchDirective)
	}
	b.WriteString("## Gathered Context\n")
	b.WriteString(in.GatheredContext)
	return b.String()
}

// marshalToolInput is a small helper for tool executors that want to
// re-decode Input into a typed struct.
func marshalToolInput(input map[string]any, dst any) error {
	raw, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
