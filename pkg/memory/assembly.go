package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// Budget knobs mirroring working_memory.py's module-level constants —
// the working-memory payload is meant to stay well under the ~2,000
// token prompt-injection budget (spec §4.5).
const (
	maxContextEntries = 20
	maxDeliverables    = 5
	maxPlatforms       = 5
)

// DeliverableLister is the subset of pkg/deliverable.Store the
// assembler needs. Declared locally (rather than importing
// pkg/deliverable) to keep pkg/memory a leaf package; satisfied by
// duck typing.
type DeliverableLister interface {
	ListActive(ctx context.Context, userID uuid.UUID) ([]domain.Deliverable, error)
	PendingReviews(ctx context.Context, userID uuid.UUID) (int, error)
}

// ConnectionLister is the subset of platform connection persistence
// the assembler needs.
type ConnectionLister interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.PlatformConnection, error)
}

// SyncRegistryReader supplies per-platform resource counts.
type SyncRegistryReader interface {
	ListSyncRegistry(ctx context.Context, userID uuid.UUID) ([]domain.SyncRegistryEntry, error)
}

// ActivityReader is the subset of pkg/activity's store the assembler
// needs for the system-status summary.
type ActivityReader interface {
	LastEvent(ctx context.Context, userID uuid.UUID, eventType domain.ActivityEventType) (*domain.ActivityEvent, error)
	CountSince(ctx context.Context, userID uuid.UUID, eventType domain.ActivityEventType, since time.Time) (int, error)
}

// Assembler builds the working-memory text injected into the
// deliverable agent and signal orchestrator prompts — the Go
// equivalent of working_memory.py's build_working_memory plus
// format_for_prompt, collapsed into one text-returning call since this
// module's prompts are plain strings rather than nested JSON.
type Assembler struct {
	context      Store
	deliverables DeliverableLister
	connections  ConnectionLister
	syncRegistry SyncRegistryReader
	activity     ActivityReader
	now          func() time.Time
	log          *zap.Logger
}

// NewAssembler wires an Assembler to its collaborators.
func NewAssembler(context Store, deliverables DeliverableLister, connections ConnectionLister, syncRegistry SyncRegistryReader, activity ActivityReader, log *zap.Logger) *Assembler {
	return &Assembler{
		context:      context,
		deliverables: deliverables,
		connections:  connections,
		syncRegistry: syncRegistry,
		activity:     activity,
		now:          time.Now,
		log:          log,
	}
}

// Assemble satisfies pkg/deliverable.MemoryReader. Every section is
// best-effort: a failing collaborator logs a warning and is omitted
// rather than failing the whole assembly, matching every _get_* helper
// in working_memory.py catching its own exceptions.
func (a *Assembler) Assemble(ctx context.Context, userID uuid.UUID) (string, error) {
	var b strings.Builder
	b.WriteString("## Working Memory\n")

	rows, err := a.context.List(ctx, userID)
	if err != nil {
		a.log.Warn("working memory: failed to load user context", zap.Error(err))
		rows = nil
	}
	writeProfile(&b, rows)
	writePreferences(&b, rows)
	writeKnown(&b, rows)
	a.writeDeliverables(ctx, &b, userID)
	a.writePlatforms(ctx, &b, userID)
	a.writeSystemSummary(ctx, &b, userID)

	return b.String(), nil
}

var profileKeys = map[string]bool{"name": true, "role": true, "company": true, "timezone": true, "summary": true}

func writeProfile(b *strings.Builder, rows []domain.UserContext) {
	profile := map[string]string{}
	for _, r := range rows {
		if profileKeys[r.Key] {
			profile[r.Key] = r.Value
		}
	}
	if profile["name"] == "" && profile["timezone"] == "" && profile["summary"] == "" {
		return
	}
	b.WriteString("\n### About you\n")
	if profile["name"] != "" {
		line := profile["name"]
		if profile["role"] != "" {
			line += " (" + profile["role"] + ")"
		}
		if profile["company"] != "" {
			line += " at " + profile["company"]
		}
		fmt.Fprintf(b, "%s\n", line)
	}
	if profile["timezone"] != "" {
		fmt.Fprintf(b, "Timezone: %s\n", profile["timezone"])
	}
	if profile["summary"] != "" {
		fmt.Fprintf(b, "%s\n", profile["summary"])
	}
}

func writePreferences(b *strings.Builder, rows []domain.UserContext) {
	type pref struct {
		tone, verbosity string
		general         []string
	}
	byPlatform := map[string]*pref{}
	order := []string{}
	get := func(platform string) *pref {
		p, ok := byPlatform[platform]
		if !ok {
			p = &pref{}
			byPlatform[platform] = p
			order = append(order, platform)
		}
		return p
	}

	for _, r := range rows {
		switch {
		case strings.HasPrefix(r.Key, "tone_"):
			get(strings.TrimPrefix(r.Key, "tone_")).tone = r.Value
		case strings.HasPrefix(r.Key, "verbosity_"):
			get(strings.TrimPrefix(r.Key, "verbosity_")).verbosity = r.Value
		case strings.HasPrefix(r.Key, "preference:"):
			p := get("general")
			p.general = append(p.general, r.Value)
		}
	}
	if len(order) == 0 {
		return
	}

	b.WriteString("\n### Your preferences\n")
	for _, platform := range order {
		p := byPlatform[platform]
		var parts []string
		if p.tone != "" {
			parts = append(parts, "tone: "+p.tone)
		}
		if p.verbosity != "" {
			parts = append(parts, "verbosity: "+p.verbosity)
		}
		if len(parts) > 0 {
			fmt.Fprintf(b, "- **%s**: %s\n", platform, strings.Join(parts, ", "))
		}
		for _, g := range p.general {
			fmt.Fprintf(b, "- Prefers: %s\n", g)
		}
	}
}

func writeKnown(b *strings.Builder, rows []domain.UserContext) {
	var lines []string
	for _, r := range rows {
		switch {
		case strings.HasPrefix(r.Key, "fact:"):
			lines = append(lines, "- "+r.Value)
		case strings.HasPrefix(r.Key, "instruction:"):
			lines = append(lines, "- Note: "+r.Value)
		case strings.HasPrefix(r.Key, "preference:"):
			lines = append(lines, "- Prefers: "+r.Value)
		}
	}
	if len(lines) == 0 {
		return
	}
	b.WriteString("\n### What you've told me\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
}

func (a *Assembler) writeDeliverables(ctx context.Context, b *strings.Builder, userID uuid.UUID) {
	all, err := a.deliverables.ListActive(ctx, userID)
	if err != nil {
		a.log.Warn("working memory: failed to load deliverables", zap.Error(err))
		return
	}
	if len(all) == 0 {
		return
	}
	b.WriteString("\n### Active deliverables\n")
	shown := all
	if len(shown) > maxDeliverables {
		shown = shown[:maxDeliverables]
	}
	for _, d := range shown {
		recipient := d.Destination.Target
		if recipient == "" {
			recipient = "unspecified"
		}
		fmt.Fprintf(b, "- %s (%s) → %s\n", d.Title, d.Schedule.Frequency, recipient)
	}
	if len(all) > maxDeliverables {
		fmt.Fprintf(b, "  ... and %d more active deliverables\n", len(all)-maxDeliverables)
	}
}

func (a *Assembler) writePlatforms(ctx context.Context, b *strings.Builder, userID uuid.UUID) {
	conns, err := a.connections.ListForUser(ctx, userID)
	if err != nil {
		a.log.Warn("working memory: failed to load platform connections", zap.Error(err))
		return
	}
	if len(conns) == 0 {
		return
	}
	now := a.now()
	b.WriteString("\n### Connected platforms\n")
	shown := conns
	if len(shown) > maxPlatforms {
		shown = shown[:maxPlatforms]
	}
	for _, c := range shown {
		if c.Status == domain.ConnectionConnected {
			fmt.Fprintf(b, "- %s: %s\n", c.Platform, freshness(c.LastSyncedAt, now))
		} else {
			fmt.Fprintf(b, "- %s: %s\n", c.Platform, c.Status)
		}
	}
}

// freshness renders a human-readable sync-recency indicator, matching
// working_memory.py's _calculate_freshness buckets.
func freshness(lastSynced *time.Time, now time.Time) string {
	if lastSynced == nil {
		return "never synced"
	}
	delta := now.Sub(*lastSynced)
	switch {
	case delta < time.Hour:
		return "fresh"
	case delta < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(delta.Hours()))
	case delta < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(delta.Hours()/24))
	default:
		return fmt.Sprintf("stale (%d days)", int(delta.Hours()/24))
	}
}

// writeSystemSummary is the Go equivalent of ADR-072's
// _get_system_summary: last signal pass, per-platform sync freshness
// with resource counts, pending reviews, and failed syncs in the last
// 24 hours — replacing a raw activity dump with actionable state.
func (a *Assembler) writeSystemSummary(ctx context.Context, b *strings.Builder, userID uuid.UUID) {
	now := a.now()
	var lines []string

	if last, err := a.activity.LastEvent(ctx, userID, domain.EventSignalProcessed); err != nil {
		a.log.Warn("working memory: failed to load last signal pass", zap.Error(err))
	} else if last != nil {
		actions, _ := last.Metadata["actions_taken"].([]any)
		triggered, _ := last.Metadata["deliverables_triggered"].([]any)
		if len(actions) > 0 || len(triggered) > 0 {
			lines = append(lines, fmt.Sprintf("- Signal processing: %s (%d actions, %d triggered)", freshness(&last.CreatedAt, now), len(actions), len(triggered)))
		} else {
			lines = append(lines, fmt.Sprintf("- Signal processing: %s (no actions)", freshness(&last.CreatedAt, now)))
		}
	}

	if registry, err := a.syncRegistry.ListSyncRegistry(ctx, userID); err != nil {
		a.log.Warn("working memory: failed to load sync registry", zap.Error(err))
	} else {
		counts := map[domain.Platform]int{}
		for _, e := range registry {
			counts[e.Platform]++
		}
		for platform, n := range counts {
			lines = append(lines, fmt.Sprintf("- %s: %d resource%s synced", platform, n, plural(n)))
		}
	}

	if pending, err := a.deliverables.PendingReviews(ctx, userID); err != nil {
		a.log.Warn("working memory: failed to count pending reviews", zap.Error(err))
	} else if pending > 0 {
		lines = append(lines, fmt.Sprintf("- Pending reviews: %d item%s", pending, plural(pending)))
	}

	if failed, err := a.activity.CountSince(ctx, userID, domain.EventPlatformSyncFailed, now.Add(-24*time.Hour)); err != nil {
		a.log.Warn("working memory: failed to count failed syncs", zap.Error(err))
	} else if failed > 0 {
		lines = append(lines, fmt.Sprintf("- Failed syncs (24h): %d", failed))
	}

	if len(lines) == 0 {
		return
	}
	b.WriteString("\n### System status\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
