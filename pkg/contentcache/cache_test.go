package contentcache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

func newTestCache() *Cache {
	return New(NewMemoryStore(), zap.NewNop())
}

func TestUpsertItems_SetsExpiresAtFromTTL(t *testing.T) {
	c := newTestCache()
	userID := uuid.New()
	ctx := context.Background()

	items := []domain.PlatformContent{
		{ExternalID: "msg-1", Content: "hello", ContentType: domain.ContentMessage, SourceTime: time.Now()},
	}
	if err := c.UpsertItems(ctx, userID, domain.PlatformSlack, "C123", items, 24); err != nil {
		t.Fatalf("UpsertItems() error = %v", err)
	}

	rows, err := c.Query(ctx, userID, QueryFilter{}, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].ExpiresAt.Before(time.Now().Add(23 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want ~24h from now", rows[0].ExpiresAt)
	}
}

func TestUpsertItems_UpsertsByExternalKey(t *testing.T) {
	c := newTestCache()
	userID := uuid.New()
	ctx := context.Background()

	first := []domain.PlatformContent{{ExternalID: "msg-1", Content: "v1", SourceTime: time.Now()}}
	if err := c.UpsertItems(ctx, userID, domain.PlatformSlack, "C123", first, 24); err != nil {
		t.Fatalf("UpsertItems() error = %v", err)
	}

	second := []domain.PlatformContent{{ExternalID: "msg-1", Content: "v2", SourceTime: time.Now()}}
	if err := c.UpsertItems(ctx, userID, domain.PlatformSlack, "C123", second, 24); err != nil {
		t.Fatalf("UpsertItems() error = %v", err)
	}

	rows, _ := c.Query(ctx, userID, QueryFilter{}, 0)
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1 (upsert, not insert)", len(rows))
	}
	if rows[0].Content != "v2" {
		t.Errorf("Content = %q, want v2", rows[0].Content)
	}
}

func TestQuery_ExcludesExpiredUnretained(t *testing.T) {
	c := newTestCache()
	userID := uuid.New()
	ctx := context.Background()

	items := []domain.PlatformContent{{ExternalID: "msg-1", Content: "stale", SourceTime: time.Now()}}
	if err := c.UpsertItems(ctx, userID, domain.PlatformSlack, "C123", items, -1); err != nil {
		t.Fatalf("UpsertItems() error = %v", err)
	}

	rows, err := c.Query(ctx, userID, QueryFilter{}, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("len(rows) = %d, want 0 (expired, not retained)", len(rows))
	}
}

func TestQuery_IncludesRetainedPastExpiry(t *testing.T) {
	c := newTestCache()
	userID := uuid.New()
	ctx := context.Background()

	items := []domain.PlatformContent{{ExternalID: "msg-1", Content: "kept", Retained: true, SourceTime: time.Now()}}
	if err := c.UpsertItems(ctx, userID, domain.PlatformSlack, "C123", items, -1); err != nil {
		t.Fatalf("UpsertItems() error = %v", err)
	}

	rows, err := c.Query(ctx, userID, QueryFilter{}, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("len(rows) = %d, want 1 (retained rows survive expiry)", len(rows))
	}
}

func TestRetain_IsIdempotent(t *testing.T) {
	c := newTestCache()
	userID := uuid.New()
	ctx := context.Background()

	items := []domain.PlatformContent{{ExternalID: "msg-1", Content: "x", SourceTime: time.Now()}}
	if err := c.UpsertItems(ctx, userID, domain.PlatformSlack, "C123", items, 24); err != nil {
		t.Fatalf("UpsertItems() error = %v", err)
	}
	rows, _ := c.Query(ctx, userID, QueryFilter{}, 0)
	id := rows[0].ID

	if err := c.Retain(ctx, []uuid.UUID{id}); err != nil {
		t.Fatalf("Retain() error = %v", err)
	}
	if err := c.Retain(ctx, []uuid.UUID{id}); err != nil {
		t.Fatalf("Retain() second call error = %v", err)
	}

	rows, _ = c.Query(ctx, userID, QueryFilter{}, 0)
	if !rows[0].Retained {
		t.Error("expected row to be retained")
	}
}

func TestUpsertLandscape_PrunesRemovedResources(t *testing.T) {
	c := newTestCache()
	connID := uuid.New()
	ctx := context.Background()

	initial := domain.Landscape{
		Resources:       []domain.Resource{{ID: "C1"}, {ID: "C2"}},
		SelectedSources: []string{"C1", "C2"},
	}
	if err := c.store.PutLandscape(ctx, connID, initial); err != nil {
		t.Fatalf("PutLandscape() error = %v", err)
	}

	refreshed := domain.Landscape{
		Resources: []domain.Resource{{ID: "C1"}, {ID: "C3"}},
	}
	if err := c.UpsertLandscape(ctx, connID, refreshed); err != nil {
		t.Fatalf("UpsertLandscape() error = %v", err)
	}

	got, err := c.store.GetLandscape(ctx, connID)
	if err != nil {
		t.Fatalf("GetLandscape() error = %v", err)
	}
	if len(got.SelectedSources) != 1 || got.SelectedSources[0] != "C1" {
		t.Errorf("SelectedSources = %v, want [C1]", got.SelectedSources)
	}
}

func TestFieldExtractor(t *testing.T) {
	fe, err := NewFieldExtractor(".name")
	if err != nil {
		t.Fatalf("NewFieldExtractor() error = %v", err)
	}

	raw := map[string]any{"name": "#eng-weekly", "id": "C123"}
	got, err := fe.Extract(raw)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "#eng-weekly" {
		t.Errorf("Extract() = %q, want #eng-weekly", got)
	}
}

func TestPurgeExpired(t *testing.T) {
	c := newTestCache()
	userID := uuid.New()
	ctx := context.Background()

	items := []domain.PlatformContent{{ExternalID: "msg-1", Content: "stale", SourceTime: time.Now()}}
	if err := c.UpsertItems(ctx, userID, domain.PlatformSlack, "C123", items, -1); err != nil {
		t.Fatalf("UpsertItems() error = %v", err)
	}

	removed, err := c.PurgeExpired(ctx, 0)
	if err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}
