package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/metrics"
)

// localModel is the subset of langchaingo's llms.Model the adapter
// depends on.
type localModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error)
}

// LocalClient implements Client against an OpenAI-compatible local
// inference server (e.g. a self-hosted small model), used for the
// cheap-model sufficiency checks LLM_EXTRACTION_MODEL routes to so
// the expensive reasoning/generation models aren't spent on them.
type LocalClient struct {
	model     localModel
	maxTokens int
	temp      float32
	log       *zap.Logger
}

// NewLocalClient builds a Client against cfg.LocalBaseURL using the
// OpenAI-compatible wire protocol langchaingo's openai package speaks.
func NewLocalClient(cfg Config, log *zap.Logger) (Client, error) {
	if cfg.LocalBaseURL == "" {
		return nil, errors.New("local: base url is required")
	}
	model, err := openai.New(
		openai.WithBaseURL(cfg.LocalBaseURL),
		openai.WithToken("unused"),
		openai.WithModel(cfg.ExtractionModel),
	)
	if err != nil {
		return nil, fmt.Errorf("local: build client: %w", err)
	}
	return newLocalClient(model, cfg, log), nil
}

func newLocalClient(model localModel, cfg Config, log *zap.Logger) *LocalClient {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &LocalClient{model: model, maxTokens: maxTokens, temp: cfg.Temperature, log: log}
}

// Chat translates req into a GenerateContent call. Tool use is not
// supported against the local provider; callers route tool-using
// passes (deliverable generation) to anthropic/bedrock instead.
func (c *LocalClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("local: messages are required")
	}
	if len(req.Tools) > 0 {
		return nil, errors.New("local: tool use is not supported by this provider")
	}

	content := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, m.Text))
		case RoleAssistant:
			content = append(content, llms.TextParts(llms.ChatMessageTypeAI, m.Text))
		default:
			return nil, fmt.Errorf("local: unsupported role %q", m.Role)
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	opts := []llms.CallOption{llms.WithMaxTokens(maxTokens)}
	if c.temp > 0 {
		opts = append(opts, llms.WithTemperature(float64(c.temp)))
	}

	timer := metrics.NewTimer()
	out, err := c.model.GenerateContent(ctx, content, opts...)
	timer.RecordLLMCall("local")
	if err != nil {
		metrics.RecordLLMError("local", "call_failed")
		return nil, fmt.Errorf("local generate content: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("local: empty response")
	}
	choice := out.Choices[0]
	return &ChatResponse{
		Text:          choice.Content,
		ContentBlocks: []Message{{Role: RoleAssistant, Text: choice.Content}},
		StopReason:    choice.StopReason,
		Usage: Usage{
			InputTokens:  generationInfoInt(choice.GenerationInfo, "PromptTokens"),
			OutputTokens: generationInfoInt(choice.GenerationInfo, "CompletionTokens"),
		},
	}, nil
}

// generationInfoInt reads an integer-valued key out of a
// langchaingo GenerationInfo map, which may decode numbers as either
// int or float64 depending on the underlying transport.
func generationInfoInt(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
