package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newCalendarTestClient(t *testing.T, handler http.HandlerFunc) *CalendarClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewCalendarClient()
	c.baseURL = srv.URL
	return c
}

func TestCalendarClient_Fetch(t *testing.T) {
	client := newCalendarTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"id": "ev1", "summary": "1:1 sync", "start": map[string]any{"dateTime": "2026-08-01T10:00:00Z"}, "updated": "2026-07-30T08:00:00Z"},
			},
			"nextSyncToken": "token-abc",
		})
	})

	results := client.Fetch(context.Background(), "token", []string{"primary"}, nil)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if results[0].Cursor != "token-abc" {
		t.Errorf("Cursor = %q, want token-abc", results[0].Cursor)
	}
	if len(results[0].Items) != 1 || results[0].Items[0].Content != "1:1 sync" {
		t.Errorf("Items = %+v, unexpected", results[0].Items)
	}
}

func TestCalendarClient_FallsBackToFullWindowOn410(t *testing.T) {
	calls := 0
	client := newCalendarTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if strings.Contains(r.URL.RawQuery, "syncToken") {
			w.WriteHeader(http.StatusGone)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":         []map[string]any{},
			"nextSyncToken": "fresh-token",
		})
	})

	results := client.Fetch(context.Background(), "token", []string{"primary"}, map[string]string{"primary": "stale-token"})
	if results[0].Err != nil {
		t.Fatalf("expected fallback to succeed, got error: %v", results[0].Err)
	}
	if results[0].Cursor != "fresh-token" {
		t.Errorf("Cursor = %q, want fresh-token after fallback", results[0].Cursor)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (stale attempt + fallback)", calls)
	}
}

func TestCalendarClient_ListResources(t *testing.T) {
	client := newCalendarTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{"id": "primary", "summary": "Work"}},
		})
	})

	resources, err := client.ListResources(context.Background(), "token")
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	if len(resources) != 1 || resources[0].ID != "primary" {
		t.Errorf("resources = %+v, want one calendar named primary", resources)
	}
}
