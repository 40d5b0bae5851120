package signal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/contentcache"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// per-platform read bounds for the summary digest (spec §4.3 Step 1).
const (
	calendarUpcomingWindow = 7 * 24 * time.Hour
	recentWindow           = 7 * 24 * time.Hour
	digestMaxItems         = 20
	digestMaxCharsPerItem  = 160
)

// Summarizer builds a SignalSummary from the content cache.
type Summarizer struct {
	cache *contentcache.Cache
	now   func() time.Time
}

// NewSummarizer constructs a Summarizer over cache.
func NewSummarizer(cache *contentcache.Cache) *Summarizer {
	return &Summarizer{cache: cache, now: time.Now}
}

// BuildSummary reads live content for each connected platform and
// returns the bounded digest the reasoning pass consumes.
func (s *Summarizer) BuildSummary(ctx context.Context, userID uuid.UUID) (SignalSummary, error) {
	now := s.now()
	var summary SignalSummary

	calendar, err := s.platformSummary(ctx, userID, domain.PlatformCalendar, now.Add(-recentWindow), now.Add(calendarUpcomingWindow), "next 7 days")
	if err != nil {
		return summary, fmt.Errorf("calendar summary: %w", err)
	}
	summary.Calendar = calendar

	gmail, err := s.platformSummary(ctx, userID, domain.PlatformGmail, now.Add(-recentWindow), now, "last 7 days")
	if err != nil {
		return summary, fmt.Errorf("gmail summary: %w", err)
	}
	summary.Gmail = gmail

	slack, err := s.platformSummary(ctx, userID, domain.PlatformSlack, now.Add(-recentWindow), now, "last 7 days")
	if err != nil {
		return summary, fmt.Errorf("slack summary: %w", err)
	}
	summary.Slack = slack

	notion, err := s.platformSummary(ctx, userID, domain.PlatformNotion, now.Add(-recentWindow), now, "latest edits")
	if err != nil {
		return summary, fmt.Errorf("notion summary: %w", err)
	}
	summary.Notion = notion

	return summary, nil
}

func (s *Summarizer) platformSummary(ctx context.Context, userID uuid.UUID, platform domain.Platform, since, until time.Time, window string) (*PlatformSummary, error) {
	filter := contentcache.QueryFilter{Platform: &platform, Since: &since, Until: &until}
	rows, err := s.cache.Query(ctx, userID, filter, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &PlatformSummary{
		ItemsCount: len(rows),
		Window:     window,
		Digest:     digest(rows),
	}, nil
}

func digest(rows []domain.PlatformContent) string {
	var b strings.Builder
	n := len(rows)
	if n > digestMaxItems {
		n = digestMaxItems
	}
	for i := 0; i < n; i++ {
		text := rows[i].Content
		if len(text) > digestMaxCharsPerItem {
			text = text[:digestMaxCharsPerItem] + "..."
		}
		b.WriteString("- ")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}
