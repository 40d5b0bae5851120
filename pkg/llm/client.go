// Package llm is the completions port used by the signal orchestrator
// and deliverable generation agent (see spec §6's LLM port contract).
// Callers depend only on Client; NewClient dispatches to a concrete
// provider by config.
package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Role identifies which side of the conversation a message belongs to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation. Assistant turns produced by
// a prior Chat call may carry ToolUses; callers thread tool results
// back as a user-role Message with ToolResults set.
type Message struct {
	Role        Role
	Text        string
	ToolUses    []ToolUse
	ToolResults []ToolResult
}

// Tool describes a function the model may call, encoded as JSON Schema
// per provider convention.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolUse is a model-issued call to one of the tools passed in a
// ChatRequest.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult threads a tool's output back to the model as the next
// user turn.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// ChatRequest is one completion request. System is a separate prompt
// block (not a Messages entry) per Anthropic/Bedrock convention.
type ChatRequest struct {
	Messages  []Message
	System    string
	Tools     []Tool
	Model     string
	MaxTokens int
}

// Usage reports token accounting for a single call, used for cost
// tracking and cache-hit observability.
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
}

// ChatResponse is chat's return value per spec §6: content blocks plus
// convenience accessors (Text, ToolUses) over the same data.
type ChatResponse struct {
	ContentBlocks []Message
	Text          string
	ToolUses      []ToolUse
	StopReason    string
	Usage         Usage
}

// Client is the completions port every provider adapter implements.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Config selects and tunes the active provider. Field names mirror
// internal/config.LLMConfig so NewClient can be constructed directly
// from the loaded configuration.
type Config struct {
	Provider        string
	ReasoningModel  string
	GenerationModel string
	ExtractionModel string
	APIKey          string
	AWSRegion       string
	LocalBaseURL    string
	MaxTokens       int
	Temperature     float32
}

// NewClient builds the Client for cfg.Provider. Supported providers are
// "anthropic", "bedrock" and "local"; any other value is an error.
func NewClient(cfg Config, log *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClient(cfg, log)
	case "bedrock":
		return NewBedrockClient(cfg, log)
	case "local":
		return NewLocalClient(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
