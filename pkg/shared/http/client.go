// Package http configures the outbound *http.Client used by platform
// clients, exporters and LLM providers. Retry/backoff and circuit
// breaking are layered on top by pkg/retry, per spec §9's "implement as
// a single helper shared across all outbound HTTP" — this package only
// owns transport-level tuning (timeouts, connection pooling).
package http

import (
	"crypto/tls"
	"net/http"
	"time"
)

// ClientConfig tunes the transport. Defaults match spec §5's 30s total /
// 10s connect outbound budget.
type ClientConfig struct {
	Timeout                 time.Duration
	MaxRetries              int
	DisableSSLVerification  bool
	MaxIdleConns            int
	IdleConnTimeout         time.Duration
	TLSHandshakeTimeout     time.Duration
	ResponseHeaderTimeout   time.Duration
}

// DefaultClientConfig returns the orchestrator's standard outbound
// budget: 30s total, 3 retries (handled by pkg/retry, not here), modest
// connection pooling.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:                30 * time.Second,
		MaxRetries:             3,
		DisableSSLVerification: false,
		MaxIdleConns:           10,
		IdleConnTimeout:        90 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
	}
}

// NewClient builds an *http.Client from cfg.
func NewClient(cfg ClientConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}
	if cfg.DisableSSLVerification {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in, test/dev only
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}
