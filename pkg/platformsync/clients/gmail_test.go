package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

func newGmailTestClient(t *testing.T, handler http.HandlerFunc) *GmailClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewGmailClient()
	c.baseURL = srv.URL
	return c
}

func TestGmailClient_Fetch(t *testing.T) {
	client := newGmailTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/messages/msg1"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":           "msg1",
				"snippet":      "quarterly report attached",
				"internalDate": "1700000000000",
				"payload":      map[string]any{"headers": []map[string]any{{"name": "Subject", "value": "Q3 report"}}},
			})
		case strings.Contains(r.URL.Path, "/messages"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"messages": []map[string]any{{"id": "msg1"}},
			})
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	})

	results := client.Fetch(context.Background(), "token", []string{"INBOX"}, nil)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if len(results[0].Items) != 1 || results[0].Items[0].Content != "quarterly report attached" {
		t.Errorf("Items = %+v, unexpected content", results[0].Items)
	}
	if results[0].Items[0].ContentType != domain.ContentEmail {
		t.Errorf("ContentType = %q, want email", results[0].Items[0].ContentType)
	}
}

func TestGmailClient_ListResources(t *testing.T) {
	client := newGmailTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"labels": []map[string]any{{"id": "INBOX", "name": "Inbox"}},
		})
	})

	resources, err := client.ListResources(context.Background(), "token")
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	if len(resources) != 1 || resources[0].ID != "INBOX" {
		t.Errorf("resources = %+v, want one label INBOX", resources)
	}
}

func TestGmailClient_RetriesClassifiedAsTransientOn429(t *testing.T) {
	client := newGmailTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	results := client.Fetch(context.Background(), "token", []string{"INBOX"}, nil)
	if results[0].Err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestGmailClient_PermissionErrorOn401(t *testing.T) {
	client := newGmailTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.ListResources(context.Background(), "token")
	if err == nil {
		t.Fatal("expected error on 401")
	}
}
