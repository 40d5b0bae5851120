package exporters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

func TestEmailExporter_Export_DeliversViaResend(t *testing.T) {
	var gotAuth, gotFrom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotFrom, _ = body["from"].(string)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "email-1"})
	}))
	defer server.Close()

	e := &EmailExporter{
		apiKey:      "re_test",
		fromAddress: "noreply@yarnnn.com",
		// resendAPIURL is a hardcoded package constant; route around it
		// with a transport that rewrites every request to the test server.
		httpClient: &http.Client{Transport: redirectTo(server.URL)},
		log:        zap.NewNop(),
	}

	result, err := e.Export(context.Background(), uuid.New(), domain.Destination{Target: "person@example.com"}, "weekly digest")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Status != domain.DeliveryDelivered || result.ExternalID != "email-1" {
		t.Errorf("result = %+v", result)
	}
	if gotAuth != "Bearer re_test" {
		t.Errorf("Authorization header = %q", gotAuth)
	}
	if gotFrom != "noreply@yarnnn.com" {
		t.Errorf("from = %q, want noreply@yarnnn.com", gotFrom)
	}
}

func TestEmailExporter_Export_NoRecipientFails(t *testing.T) {
	e := NewEmailExporter("re_test", "noreply@yarnnn.com", zap.NewNop())
	result, err := e.Export(context.Background(), uuid.New(), domain.Destination{}, "content")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Status != domain.DeliveryFailed {
		t.Errorf("status = %v, want failed", result.Status)
	}
}

func TestEmailExporter_Export_MissingAPIKeyFails(t *testing.T) {
	e := NewEmailExporter("", "noreply@yarnnn.com", zap.NewNop())
	result, err := e.Export(context.Background(), uuid.New(), domain.Destination{Target: "person@example.com"}, "content")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Status != domain.DeliveryFailed {
		t.Errorf("status = %v, want failed without an API key", result.Status)
	}
}

// redirectTo rewrites every outbound request to target the given test
// server, regardless of the original URL — used so EmailExporter's
// hardcoded resendAPIURL constant can be exercised against httptest.
type redirectTo string

func (r redirectTo) RoundTrip(req *http.Request) (*http.Response, error) {
	target, err := http.NewRequestWithContext(req.Context(), req.Method, string(r), req.Body)
	if err != nil {
		return nil, err
	}
	target.Header = req.Header
	return http.DefaultTransport.RoundTrip(target)
}
