package domain

import (
	"testing"
	"time"
)

func TestLandscape_Prune(t *testing.T) {
	l := Landscape{Resources: []Resource{{ID: "C1"}, {ID: "C2"}}}

	got := l.Prune([]string{"C1", "C2", "C3"})
	want := []string{"C1", "C2"}
	if len(got) != len(want) {
		t.Fatalf("Prune() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Prune()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLandscape_Prune_PreservesOrder(t *testing.T) {
	l := Landscape{Resources: []Resource{{ID: "C3"}, {ID: "C1"}, {ID: "C2"}}}
	got := l.Prune([]string{"C1", "C2", "C3"})
	want := []string{"C1", "C2", "C3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Prune() did not preserve input order: got %v, want %v", got, want)
		}
	}
}

func TestLandscape_Prune_EmptyResourcesDropsEverything(t *testing.T) {
	l := Landscape{}
	got := l.Prune([]string{"C1", "C2"})
	if len(got) != 0 {
		t.Errorf("Prune() = %v, want empty", got)
	}
}

func TestPlatformContent_Live(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	live := PlatformContent{ExpiresAt: now.Add(time.Hour)}
	if !live.Live(now) {
		t.Error("expected row with future ExpiresAt to be live")
	}

	expired := PlatformContent{ExpiresAt: now.Add(-time.Hour)}
	if expired.Live(now) {
		t.Error("expected row with past ExpiresAt and Retained=false to not be live")
	}

	retained := PlatformContent{ExpiresAt: now.Add(-time.Hour), Retained: true}
	if !retained.Live(now) {
		t.Error("expected retained row to be live regardless of ExpiresAt")
	}
}

func TestPriority_KnownSourcesOrdered(t *testing.T) {
	if Priority(SourceUserStated) >= Priority(SourceConversation) {
		t.Error("expected user_stated to outrank conversation")
	}
	if Priority(SourceConversation) >= Priority(SourceFeedback) {
		t.Error("expected conversation to outrank feedback")
	}
	if Priority(SourceFeedback) >= Priority(SourcePattern) {
		t.Error("expected feedback to outrank pattern")
	}
}

func TestPriority_UnknownSourceIsWeakest(t *testing.T) {
	if Priority("bogus") <= Priority(SourcePattern) {
		t.Error("expected an unknown source to rank weaker than pattern")
	}
}

func TestDominates(t *testing.T) {
	if !Dominates(SourceUserStated, SourceFeedback) {
		t.Error("expected user_stated to dominate feedback")
	}
	if Dominates(SourceFeedback, SourceUserStated) {
		t.Error("expected feedback to not dominate user_stated")
	}
	if !Dominates(SourceUserStated, SourceUserStated) {
		t.Error("expected a source to dominate itself (equal priority is allowed to overwrite)")
	}
}

func TestDeliverableVersion_Terminal(t *testing.T) {
	cases := []struct {
		status DeliveryStatus
		want   bool
	}{
		{DeliveryPending, false},
		{DeliveryDelivering, false},
		{DeliveryDelivered, true},
		{DeliveryPartial, true},
		{DeliveryFailed, true},
	}
	for _, tc := range cases {
		v := DeliverableVersion{DeliveryStatus: tc.status}
		if got := v.Terminal(); got != tc.want {
			t.Errorf("Terminal() for status %q = %v, want %v", tc.status, got, tc.want)
		}
	}
}
