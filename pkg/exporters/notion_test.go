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
	sharedhttp "github.com/kvkthecreator/yarnnn/pkg/shared/http"
)

func newTestNotionExporter(t *testing.T, handler http.HandlerFunc) *NotionExporter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &NotionExporter{
		creds:      &fakeCreds{creds: Credentials{AccessToken: "secret_test"}},
		httpClient: sharedhttp.NewClient(sharedhttp.DefaultClientConfig()),
		baseURL:    srv.URL,
		log:        zap.NewNop(),
	}
}

func TestNotionExporter_Export_CreatesPage(t *testing.T) {
	e := newTestNotionExporter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "page-1", "url": "https://notion.so/page-1"})
	})

	result, err := e.Export(context.Background(), uuid.New(), domain.Destination{Platform: domain.PlatformNotion, Target: "parent-page", Format: "page"}, "# Status\nall green")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Status != domain.DeliveryDelivered || result.ExternalID != "page-1" {
		t.Errorf("result = %+v", result)
	}
}

func TestNotionExporter_Export_DraftRequiresDraftsDatabaseID(t *testing.T) {
	e := newTestNotionExporter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not call the API without drafts_database_id")
	})

	result, err := e.Export(context.Background(), uuid.New(), domain.Destination{Target: "x", Format: "draft"}, "content")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Status != domain.DeliveryFailed {
		t.Errorf("status = %v, want failed", result.Status)
	}
}

func TestNotionExporter_Export_DatabaseItemUsesDatabaseID(t *testing.T) {
	var gotBody map[string]any
	e := newTestNotionExporter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "item-1", "url": "https://notion.so/item-1"})
	})

	dest := domain.Destination{Target: "ignored", Format: "database_item", Options: map[string]string{"database_id": "db-1"}}
	result, err := e.Export(context.Background(), uuid.New(), dest, "content")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.ExternalID != "item-1" {
		t.Errorf("ExternalID = %q, want item-1", result.ExternalID)
	}
	parent, _ := gotBody["parent"].(map[string]any)
	if parent["database_id"] != "db-1" {
		t.Errorf("parent = %+v, want database_id=db-1", parent)
	}
}
