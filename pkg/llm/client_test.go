package llm

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewClient_UnsupportedProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "invalid"}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
	const want = "unsupported provider: invalid"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestNewClient_AnthropicRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{Provider: "anthropic"}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error when api key is missing")
	}
}

func TestNewClient_LocalRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{Provider: "local"}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error when base url is missing")
	}
}
