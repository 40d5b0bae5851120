package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newNotionTestClient(t *testing.T, handler http.HandlerFunc) *NotionClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewNotionClient()
	c.baseURL = srv.URL
	return c
}

func TestNotionClient_Fetch(t *testing.T) {
	client := newNotionTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/blocks/"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"type": "paragraph", "paragraph": map[string]any{
						"rich_text": []map[string]any{{"plain_text": "meeting notes go here"}},
					}},
				},
			})
		case strings.Contains(r.URL.Path, "/pages/"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":               "page1",
				"last_edited_time": "2026-07-01T10:00:00Z",
				"properties": map[string]any{
					"title": map[string]any{"title": []map[string]any{{"plain_text": "Weekly Notes"}}},
				},
			})
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	})

	results := client.Fetch(context.Background(), "secret", []string{"page1"}, nil)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if len(results[0].Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(results[0].Items))
	}
	if results[0].Items[0].Content != "meeting notes go here" {
		t.Errorf("Content = %q, want flattened block text", results[0].Items[0].Content)
	}
	if results[0].Items[0].Metadata["title"] != "Weekly Notes" {
		t.Errorf("Metadata[title] = %v, want Weekly Notes", results[0].Items[0].Metadata["title"])
	}
}

func TestNotionClient_ListResources(t *testing.T) {
	client := newNotionTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": "page1", "properties": map[string]any{
					"title": map[string]any{"title": []map[string]any{{"plain_text": "Roadmap"}}},
				}},
			},
		})
	})

	resources, err := client.ListResources(context.Background(), "secret")
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	if len(resources) != 1 || resources[0].Name != "Roadmap" {
		t.Errorf("resources = %+v, want one page named Roadmap", resources)
	}
}
