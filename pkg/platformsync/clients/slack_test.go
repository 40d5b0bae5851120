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

func newSlackTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestSlackClient_Fetch(t *testing.T) {
	srv := newSlackTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "conversations.history") {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok": true,
				"messages": []map[string]any{
					{"type": "message", "user": "U1", "text": "hello world", "ts": "1700000000.000100"},
				},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	client := NewSlackClientWithAPIURL(srv.URL + "/")
	results := client.Fetch(context.Background(), "xoxb-test", []string{"C1"}, nil)

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if len(results[0].Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(results[0].Items))
	}
	if results[0].Items[0].Content != "hello world" {
		t.Errorf("Content = %q, want 'hello world'", results[0].Items[0].Content)
	}
	if results[0].Items[0].ContentType != domain.ContentMessage {
		t.Errorf("ContentType = %q, want message", results[0].Items[0].ContentType)
	}
}

func TestSlackClient_ListResources(t *testing.T) {
	srv := newSlackTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"channels": []map[string]any{
				{"id": "C1", "name": "eng-weekly"},
			},
			"response_metadata": map[string]any{"next_cursor": ""},
		})
	})

	client := NewSlackClientWithAPIURL(srv.URL + "/")
	resources, err := client.ListResources(context.Background(), "xoxb-test")
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	if len(resources) != 1 || resources[0].ID != "C1" {
		t.Errorf("resources = %+v, want one resource with ID C1", resources)
	}
}

func TestSlackClient_AutoJoinsOnNotInChannel(t *testing.T) {
	historyCalls := 0
	srv := newSlackTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "conversations.history"):
			historyCalls++
			if historyCalls == 1 {
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "not_in_channel"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "messages": []map[string]any{}})
		case strings.Contains(r.URL.Path, "conversations.join"):
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": map[string]any{"id": "C1"}})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	})

	client := NewSlackClientWithAPIURL(srv.URL + "/")
	results := client.Fetch(context.Background(), "xoxb-test", []string{"C1"}, nil)

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("expected auto-join to recover from not_in_channel, got error: %v", results[0].Err)
	}
	if historyCalls != 2 {
		t.Errorf("historyCalls = %d, want 2 (initial + retry after join)", historyCalls)
	}
}
