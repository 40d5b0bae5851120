package platformsync

import (
	"testing"
	"time"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

func TestShouldSyncNow_NeverSynced(t *testing.T) {
	if !ShouldSyncNow(domain.TierFree, time.UTC, time.Time{}, time.Now()) {
		t.Error("expected true when lastSync is zero")
	}
}

func TestShouldSyncNow_ProHourly(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	last := now.Add(-50 * time.Minute)
	if !ShouldSyncNow(domain.TierPro, time.UTC, last, now) {
		t.Error("expected due after 50 minutes for pro tier (min gap 45m)")
	}

	last = now.Add(-30 * time.Minute)
	if ShouldSyncNow(domain.TierPro, time.UTC, last, now) {
		t.Error("expected not due after only 30 minutes for pro tier")
	}
}

func TestShouldSyncNow_FreeTwiceDaily(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	last := now.Add(-11 * time.Hour)
	if ShouldSyncNow(domain.TierFree, time.UTC, last, now) {
		t.Error("expected not due before the ~12h spacing for free tier")
	}

	last = now.Add(-13 * time.Hour)
	if !ShouldSyncNow(domain.TierFree, time.UTC, last, now) {
		t.Error("expected due after the ~12h spacing for free tier")
	}
}

func TestShouldSyncNow_StarterFourTimesDaily(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	last := now.Add(-5 * time.Hour)
	if ShouldSyncNow(domain.TierStarter, time.UTC, last, now) {
		t.Error("expected not due before the ~6h spacing for starter tier")
	}

	last = now.Add(-7 * time.Hour)
	if !ShouldSyncNow(domain.TierStarter, time.UTC, last, now) {
		t.Error("expected due after the ~6h spacing for starter tier")
	}
}

func TestShouldSyncNow_RespectsTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	last := now.Add(-50 * time.Minute)
	if !ShouldSyncNow(domain.TierPro, loc, last, now) {
		t.Error("expected elapsed-time comparison to be timezone-independent for absolute instants")
	}
}
