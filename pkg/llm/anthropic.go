package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/metrics"
	"github.com/kvkthecreator/yarnnn/pkg/retry"
)

// messagesClient is the subset of *sdk.MessageService the adapter
// depends on, so tests can substitute a fake.
type messagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicClient implements Client on top of the Claude Messages API.
type AnthropicClient struct {
	msg       messagesClient
	maxTokens int
	temp      float32
	log       *zap.Logger
}

// NewAnthropicClient builds a Client backed by the real Anthropic SDK,
// reading ANTHROPIC_API_KEY-style auth from cfg.APIKey.
func NewAnthropicClient(cfg Config, log *zap.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(cfg.APIKey))
	return newAnthropicClient(&ac.Messages, cfg, log), nil
}

func newAnthropicClient(msg messagesClient, cfg Config, log *zap.Logger) *AnthropicClient {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicClient{msg: msg, maxTokens: maxTokens, temp: cfg.Temperature, log: log}
}

// Chat translates req into a Messages.New call and maps the response's
// text/tool_use blocks and usage back into a ChatResponse.
func (c *AnthropicClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: messages are required")
	}
	if req.Model == "" {
		return nil, errors.New("anthropic: model is required")
	}
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	timer := metrics.NewTimer()
	var msg *sdk.Message
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		var callErr error
		msg, callErr = c.msg.New(ctx, *params)
		return classifyErr(callErr)
	})
	timer.RecordLLMCall("anthropic")
	if err != nil {
		metrics.RecordLLMError("anthropic", "call_failed")
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateAnthropicResponse(msg), nil
}

func (c *AnthropicClient) buildParams(req ChatRequest) (*sdk.MessageNewParams, error) {
	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		blocks := encodeAnthropicBlocks(m)
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, sdk.NewUserMessage(blocks...))
		case RoleAssistant:
			msgs = append(msgs, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("anthropic: unsupported role %q", m.Role)
		}
	}
	if len(msgs) == 0 {
		return nil, errors.New("anthropic: no encodable messages")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		Model:     sdk.Model(req.Model),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools := make([]sdk.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			schema := sdk.ToolInputSchemaParam{Properties: t.InputSchema}
			u := sdk.ToolUnionParamOfTool(schema, t.Name)
			if u.OfTool != nil {
				u.OfTool.Description = sdk.String(t.Description)
			}
			tools = append(tools, u)
		}
		params.Tools = tools
	}
	if c.temp > 0 {
		params.Temperature = sdk.Float(float64(c.temp))
	}
	return &params, nil
}

func encodeAnthropicBlocks(m Message) []sdk.ContentBlockParamUnion {
	var blocks []sdk.ContentBlockParamUnion
	if m.Text != "" {
		blocks = append(blocks, sdk.NewTextBlock(m.Text))
	}
	for _, tu := range m.ToolUses {
		blocks = append(blocks, sdk.NewToolUseBlock(tu.ID, tu.Input, tu.Name))
	}
	for _, tr := range m.ToolResults {
		blocks = append(blocks, sdk.NewToolResultBlock(tr.ToolUseID, tr.Content, tr.IsError))
	}
	return blocks
}

func translateAnthropicResponse(msg *sdk.Message) *ChatResponse {
	resp := &ChatResponse{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			resp.Text += block.Text
			resp.ContentBlocks = append(resp.ContentBlocks, Message{Role: RoleAssistant, Text: block.Text})
		case "tool_use":
			var input map[string]any
			_ = json.Unmarshal(block.Input, &input)
			tu := ToolUse{ID: block.ID, Name: block.Name, Input: input}
			resp.ToolUses = append(resp.ToolUses, tu)
			resp.ContentBlocks = append(resp.ContentBlocks, Message{Role: RoleAssistant, ToolUses: []ToolUse{tu}})
		}
	}
	u := msg.Usage
	resp.Usage = Usage{
		InputTokens:         int(u.InputTokens),
		OutputTokens:        int(u.OutputTokens),
		CacheReadTokens:     int(u.CacheReadInputTokens),
		CacheCreationTokens: int(u.CacheCreationInputTokens),
	}
	return resp
}
