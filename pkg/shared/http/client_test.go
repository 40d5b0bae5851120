package http

import (
	"net/http"
	"testing"
)

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()

	if cfg.Timeout.Seconds() != 30 {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.DisableSSLVerification {
		t.Error("DisableSSLVerification should default to false")
	}
	if cfg.MaxIdleConns != 10 {
		t.Errorf("MaxIdleConns = %d, want 10", cfg.MaxIdleConns)
	}
}

func TestNewClient(t *testing.T) {
	cfg := DefaultClientConfig()
	client := NewClient(cfg)

	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.Timeout != cfg.Timeout {
		t.Errorf("client.Timeout = %v, want %v", client.Timeout, cfg.Timeout)
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatal("client.Transport is not *http.Transport")
	}
	if transport.MaxIdleConns != cfg.MaxIdleConns {
		t.Errorf("transport.MaxIdleConns = %d, want %d", transport.MaxIdleConns, cfg.MaxIdleConns)
	}
	if transport.TLSClientConfig != nil {
		t.Error("TLSClientConfig should be nil when DisableSSLVerification is false")
	}
}

func TestNewClient_InsecureSkipVerify(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.DisableSSLVerification = true

	client := NewClient(cfg)
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatal("client.Transport is not *http.Transport")
	}
	if transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify to be true")
	}
}
