package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/metrics"
	"github.com/kvkthecreator/yarnnn/pkg/retry"
)

// bedrockRuntime is the subset of *bedrockruntime.Client the adapter
// depends on.
type bedrockRuntime interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient implements Client on top of the AWS Bedrock Converse
// API, used when the deployment routes completions through AWS rather
// than calling Anthropic directly.
type BedrockClient struct {
	runtime   bedrockRuntime
	maxTokens int
	temp      float32
	log       *zap.Logger
}

// NewBedrockClient builds a Client from the default AWS credential
// chain, scoped to cfg.AWSRegion.
func NewBedrockClient(cfg Config, log *zap.Logger) (Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	rt := bedrockruntime.NewFromConfig(awsCfg)
	return newBedrockClient(rt, cfg, log), nil
}

func newBedrockClient(rt bedrockRuntime, cfg Config, log *zap.Logger) *BedrockClient {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &BedrockClient{runtime: rt, maxTokens: maxTokens, temp: cfg.Temperature, log: log}
}

// Chat translates req into a Converse call and maps text/tool_use
// blocks plus usage back into a ChatResponse.
func (c *BedrockClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}
	if req.Model == "" {
		return nil, errors.New("bedrock: model is required")
	}
	input, err := c.buildInput(req)
	if err != nil {
		return nil, err
	}

	timer := metrics.NewTimer()
	var output *bedrockruntime.ConverseOutput
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		var callErr error
		output, callErr = c.runtime.Converse(ctx, input)
		return classifyErr(callErr)
	})
	timer.RecordLLMCall("bedrock")
	if err != nil {
		metrics.RecordLLMError("bedrock", "call_failed")
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}
	return translateBedrockResponse(output)
}

func (c *BedrockClient) buildInput(req ChatRequest) (*bedrockruntime.ConverseInput, error) {
	messages := make([]brtypes.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		blocks := encodeBedrockBlocks(m)
		if len(blocks) == 0 {
			continue
		}
		var role brtypes.ConversationRole
		switch m.Role {
		case RoleUser:
			role = brtypes.ConversationRoleUser
		case RoleAssistant:
			role = brtypes.ConversationRoleAssistant
		default:
			return nil, fmt.Errorf("bedrock: unsupported role %q", m.Role)
		}
		messages = append(messages, brtypes.Message{Role: role, Content: blocks})
	}
	if len(messages) == 0 {
		return nil, errors.New("bedrock: no encodable messages")
	}

	maxTokens := int32(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = int32(c.maxTokens)
	}
	input := &bedrockruntime.ConverseInput{
		ModelId:  &req.Model,
		Messages: messages,
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens: &maxTokens,
		},
	}
	if c.temp > 0 {
		temp := c.temp
		input.InferenceConfig.Temperature = &temp
	}
	if req.System != "" {
		input.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: req.System}}
	}
	if len(req.Tools) > 0 {
		specs := make([]brtypes.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			name, desc := t.Name, t.Description
			specs = append(specs, &brtypes.ToolMemberToolSpec{
				Value: brtypes.ToolSpecification{
					Name:        &name,
					Description: &desc,
					InputSchema: &brtypes.ToolInputSchemaMemberJson{
						Value: document.NewLazyDocument(t.InputSchema),
					},
				},
			})
		}
		input.ToolConfig = &brtypes.ToolConfiguration{Tools: specs}
	}
	return input, nil
}

func encodeBedrockBlocks(m Message) []brtypes.ContentBlock {
	var blocks []brtypes.ContentBlock
	if m.Text != "" {
		blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Text})
	}
	for _, tu := range m.ToolUses {
		name := tu.Name
		id := tu.ID
		blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
			ToolUseId: &id,
			Name:      &name,
			Input:     document.NewLazyDocument(tu.Input),
		}})
	}
	for _, tr := range m.ToolResults {
		id := tr.ToolUseID
		blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
			ToolUseId: &id,
			Content: []brtypes.ToolResultContentBlock{
				&brtypes.ToolResultContentBlockMemberText{Value: tr.Content},
			},
			Status: toolResultStatus(tr.IsError),
		}})
	}
	return blocks
}

func toolResultStatus(isError bool) brtypes.ToolResultStatus {
	if isError {
		return brtypes.ToolResultStatusError
	}
	return brtypes.ToolResultStatusSuccess
}

func translateBedrockResponse(output *bedrockruntime.ConverseOutput) (*ChatResponse, error) {
	if output == nil {
		return nil, errors.New("bedrock: response is nil")
	}
	resp := &ChatResponse{StopReason: string(output.StopReason)}
	msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if ok {
		for _, block := range msg.Value.Content {
			switch v := block.(type) {
			case *brtypes.ContentBlockMemberText:
				if v.Value == "" {
					continue
				}
				resp.Text += v.Value
				resp.ContentBlocks = append(resp.ContentBlocks, Message{Role: RoleAssistant, Text: v.Value})
			case *brtypes.ContentBlockMemberToolUse:
				tu := ToolUse{Input: decodeBedrockDocument(v.Value.Input)}
				if v.Value.Name != nil {
					tu.Name = *v.Value.Name
				}
				if v.Value.ToolUseId != nil {
					tu.ID = *v.Value.ToolUseId
				}
				resp.ToolUses = append(resp.ToolUses, tu)
				resp.ContentBlocks = append(resp.ContentBlocks, Message{Role: RoleAssistant, ToolUses: []ToolUse{tu}})
			}
		}
	}
	if u := output.Usage; u != nil {
		resp.Usage = Usage{
			InputTokens:     int(derefInt32(u.InputTokens)),
			OutputTokens:    int(derefInt32(u.OutputTokens)),
			CacheReadTokens: int(derefInt32(u.CacheReadInputTokens)),
		}
	}
	return resp, nil
}

func decodeBedrockDocument(doc document.Interface) map[string]any {
	if doc == nil {
		return nil
	}
	raw, err := doc.MarshalSmithyDocument()
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func derefInt32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}
