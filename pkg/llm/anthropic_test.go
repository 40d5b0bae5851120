package llm

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

type fakeMessagesClient struct {
	resp *sdk.Message
	err  error
	got  sdk.MessageNewParams
}

func (f *fakeMessagesClient) New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error) {
	f.got = body
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestAnthropicClient_Chat_TranslatesTextResponse(t *testing.T) {
	fake := &fakeMessagesClient{
		resp: &sdk.Message{
			Content: []sdk.ContentBlockUnion{
				{Type: "text", Text: "draft content"},
			},
			StopReason: "end_turn",
			Usage:      sdk.Usage{InputTokens: 100, OutputTokens: 20},
		},
	}
	client := newAnthropicClient(fake, Config{MaxTokens: 1024}, zap.NewNop())

	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Text: "summarize this"}},
		Model:    "claude-sonnet-test",
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Text != "draft content" {
		t.Errorf("Text = %q, want %q", resp.Text, "draft content")
	}
	if resp.Usage.InputTokens != 100 || resp.Usage.OutputTokens != 20 {
		t.Errorf("Usage = %+v, unexpected", resp.Usage)
	}
	if string(fake.got.Model) != "claude-sonnet-test" {
		t.Errorf("request model = %q, want claude-sonnet-test", fake.got.Model)
	}
}

func TestAnthropicClient_Chat_TranslatesToolUse(t *testing.T) {
	fake := &fakeMessagesClient{
		resp: &sdk.Message{
			Content: []sdk.ContentBlockUnion{
				{Type: "tool_use", ID: "tu_1", Name: "search_calendar", Input: []byte(`{"query":"1:1"}`)},
			},
			StopReason: "tool_use",
		},
	}
	client := newAnthropicClient(fake, Config{MaxTokens: 1024}, zap.NewNop())

	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Text: "find my next 1:1"}},
		Model:    "claude-sonnet-test",
		Tools:    []Tool{{Name: "search_calendar", Description: "search", InputSchema: map[string]any{}}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if len(resp.ToolUses) != 1 || resp.ToolUses[0].Name != "search_calendar" {
		t.Fatalf("ToolUses = %+v, unexpected", resp.ToolUses)
	}
}

func TestAnthropicClient_Chat_RequiresMessages(t *testing.T) {
	client := newAnthropicClient(&fakeMessagesClient{}, Config{}, zap.NewNop())
	_, err := client.Chat(context.Background(), ChatRequest{Model: "x"})
	if err == nil {
		t.Fatal("expected error for empty messages")
	}
}
