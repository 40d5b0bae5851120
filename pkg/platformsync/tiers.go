// Package platformsync implements the tier-driven sync engine (C2):
// resolving whether a user is due for a sync, fetching their selected
// sources from each connected provider, and writing results to the
// content cache.
package platformsync

import (
	"time"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// CadencePerDay is how many sync cycles a tier gets in a 24h window.
var CadencePerDay = map[domain.Tier]int{
	domain.TierFree:    2,
	domain.TierStarter: 4,
	domain.TierPro:     24,
}

// MinGap is the minimum time that must elapse between two syncs for a
// tier, independent of the nominal cadence — it exists so a tick that
// fires slightly early, or a restart that re-evaluates backlog, can
// never double-run a sync.
var MinGap = map[domain.Tier]time.Duration{
	domain.TierFree:    6 * time.Hour,
	domain.TierStarter: 4 * time.Hour,
	domain.TierPro:     45 * time.Minute,
}

// ShouldSyncNow reports whether a user on tier, in timezone loc, whose
// last sync was lastSync (zero if never synced), is due for another
// sync at now. A user is due once at least MinGap has elapsed since
// their last sync; tiers with sub-daily cadence (free, starter) are
// additionally evenly spaced across the day by dividing 24h by their
// per-day count, so "free" syncs roughly every 12h rather than
// clustering both runs near midnight.
func ShouldSyncNow(tier domain.Tier, loc *time.Location, lastSync time.Time, now time.Time) bool {
	if lastSync.IsZero() {
		return true
	}

	minGap, ok := MinGap[tier]
	if !ok {
		minGap = MinGap[domain.TierFree]
	}

	perDay := CadencePerDay[tier]
	interval := minGap
	if perDay > 0 {
		if spaced := 24 * time.Hour / time.Duration(perDay); spaced > interval {
			interval = spaced
		}
	}

	local := now.In(loc)
	lastLocal := lastSync.In(loc)
	return local.Sub(lastLocal) >= interval
}
