package deliverable

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kvkthecreator/yarnnn/pkg/contentcache"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

const (
	maxGatherItemsPerSource = 40
	maxDigestChars          = 400
)

// GatheredContext is the gather step's result, per spec §4.4 Step 2.
type GatheredContext struct {
	Content            string
	SourcesUsed        []string
	ItemsFetched       int
	PlatformContentIDs []uuid.UUID
}

// Gatherer implements spec §4.4 Step 2: dispatch on
// TypeClassification.Binding to assemble textual context for
// generation.
type Gatherer struct {
	cache *contentcache.Cache
}

// NewGatherer wraps the content cache query path.
func NewGatherer(cache *contentcache.Cache) *Gatherer {
	return &Gatherer{cache: cache}
}

// Gather assembles context for d per its binding, always appending
// recentContext (working-memory, spec §4.5) and pastVersions (feedback
// continuity) to whatever platform content it finds.
func (g *Gatherer) Gather(ctx context.Context, d domain.Deliverable, recentContext, pastVersions, researchDirective string) (GatheredContext, error) {
	var platformSection string
	var used []string
	var ids []uuid.UUID
	var itemCount int
	var err error

	switch d.TypeClassification.Binding {
	case domain.BindingPlatform:
		platformSection, used, ids, itemCount, err = g.gatherPlatform(ctx, d.UserID, d.TypeClassification.PrimaryPlatform)
	case domain.BindingCrossPlatform:
		platformSection, used, ids, itemCount, err = g.gatherCrossPlatform(ctx, d.UserID, d.Sources)
	case domain.BindingResearch:
		// No platform grounding; research directive carries the load.
	case domain.BindingHybrid:
		platformSection, used, ids, itemCount, err = g.gatherCrossPlatform(ctx, d.UserID, d.Sources)
	default:
		return GatheredContext{}, fmt.Errorf("unknown binding %q", d.TypeClassification.Binding)
	}
	if err != nil {
		return GatheredContext{}, err
	}

	var b strings.Builder
	if platformSection != "" {
		b.WriteString(platformSection)
		b.WriteString("\n\n")
	}
	if researchDirective != "" {
		b.WriteString("## Research Directive\n")
		b.WriteString(researchDirective)
		b.WriteString("\n\n")
	}
	if recentContext != "" {
		b.WriteString("## Working Memory\n")
		b.WriteString(recentContext)
		b.WriteString("\n\n")
	}
	if pastVersions != "" {
		b.WriteString("## Past Versions\n")
		b.WriteString(pastVersions)
	}

	return GatheredContext{
		Content:            strings.TrimSpace(b.String()),
		SourcesUsed:        used,
		ItemsFetched:       itemCount,
		PlatformContentIDs: ids,
	}, nil
}

func (g *Gatherer) gatherPlatform(ctx context.Context, userID uuid.UUID, platform domain.Platform) (string, []string, []uuid.UUID, int, error) {
	items, err := g.cache.Query(ctx, userID, contentcache.QueryFilter{Platform: &platform}, maxGatherItemsPerSource)
	if err != nil {
		return "", nil, nil, 0, fmt.Errorf("query platform content for %s: %w", platform, err)
	}
	return renderItems(string(platform), items), []string{string(platform)}, idsOf(items), len(items), nil
}

// gatherCrossPlatform queries every distinct provider in sources in
// parallel (spec §4.4: "Query Content Cache for all providers in
// sources, in parallel, then concatenate"), bounded by an errgroup the
// way pkg/platformsync's SyncDueUsers fans out per-user work.
func (g *Gatherer) gatherCrossPlatform(ctx context.Context, userID uuid.UUID, sources []domain.DeliverableSource) (string, []string, []uuid.UUID, int, error) {
	providers := distinctProviders(sources)
	if len(providers) == 0 {
		return "", nil, nil, 0, nil
	}

	sections := make([]string, len(providers))
	idSets := make([][]uuid.UUID, len(providers))
	counts := make([]int, len(providers))

	grp, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		i, p := i, p
		grp.Go(func() error {
			items, err := g.cache.Query(gctx, userID, contentcache.QueryFilter{Platform: &p}, maxGatherItemsPerSource)
			if err != nil {
				return fmt.Errorf("query platform content for %s: %w", p, err)
			}
			sections[i] = renderItems(string(p), items)
			idSets[i] = idsOf(items)
			counts[i] = len(items)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return "", nil, nil, 0, err
	}

	var b strings.Builder
	var used []string
	var ids []uuid.UUID
	var total int
	for i, p := range providers {
		if sections[i] == "" {
			continue
		}
		b.WriteString(sections[i])
		b.WriteString("\n\n")
		used = append(used, string(p))
		ids = append(ids, idSets[i]...)
		total += counts[i]
	}
	return strings.TrimSpace(b.String()), used, ids, total, nil
}

func renderItems(platform string, items []domain.PlatformContent) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n", platform)
	for _, item := range items {
		content := item.Content
		if len(content) > maxDigestChars {
			content = content[:maxDigestChars] + "…"
		}
		fmt.Fprintf(&b, "- [%s] %s\n", item.SourceTime.Format(time.RFC3339), content)
	}
	return b.String()
}

func idsOf(items []domain.PlatformContent) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

func distinctProviders(sources []domain.DeliverableSource) []domain.Platform {
	seen := make(map[domain.Platform]bool)
	var out []domain.Platform
	for _, s := range sources {
		if s.Type != domain.SourceIntegrationImport || s.Provider == "" || seen[s.Provider] {
			continue
		}
		seen[s.Provider] = true
		out = append(out, s.Provider)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
