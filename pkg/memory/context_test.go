package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

func TestMemoryStore_Upsert_WeakerSourceCannotOverwriteStronger(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	if err := Remember(ctx, store, userID, "name", "Ada", domain.SourceUserStated, 1.0); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if err := Remember(ctx, store, userID, "name", "a pattern guess", domain.SourcePattern, 0.4); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}

	got, err := store.Get(ctx, userID, "name")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || got.Value != "Ada" {
		t.Fatalf("got = %+v, want the user_stated value to survive", got)
	}
}

func TestMemoryStore_Upsert_StrongerSourceOverwritesWeaker(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	if err := Remember(ctx, store, userID, "role", "inferred role", domain.SourcePattern, 0.5); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if err := Remember(ctx, store, userID, "role", "Staff Engineer", domain.SourceUserStated, 1.0); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}

	got, err := store.Get(ctx, userID, "role")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || got.Value != "Staff Engineer" {
		t.Fatalf("got = %+v, want the user_stated overwrite to win", got)
	}
}

func TestMemoryStore_Upsert_EqualPrioritySourceOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	if err := Remember(ctx, store, userID, "tone_slack", "casual", domain.SourceFeedback, 0.8); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if err := Remember(ctx, store, userID, "tone_slack", "formal", domain.SourceFeedback, 0.9); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}

	got, err := store.Get(ctx, userID, "tone_slack")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || got.Value != "formal" {
		t.Fatalf("got = %+v, want the later same-source write to win", got)
	}
}

func TestMemoryStore_List_ReturnsAllKeysForUser(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	Remember(ctx, store, userID, "name", "Ada", domain.SourceUserStated, 1.0)
	Remember(ctx, store, userID, "fact:presenting", "board next month", domain.SourceConversation, 0.7)

	rows, err := store.List(ctx, userID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
}

func TestSourceRank_OrdersStrongestFirst(t *testing.T) {
	expr := sourceRank("col")
	if expr == "" {
		t.Fatal("sourceRank() returned an empty expression")
	}
	// Sanity: every ContextSource the domain package defines appears.
	for _, s := range []domain.ContextSource{domain.SourceUserStated, domain.SourceConversation, domain.SourceFeedback, domain.SourcePattern} {
		if !strings.Contains(expr, string(s)) {
			t.Errorf("sourceRank() missing source %q", s)
		}
	}
}
