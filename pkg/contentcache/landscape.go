package contentcache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/itchyny/gojq"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// UpsertLandscape implements spec §4.1's compare-then-swap rule: it
// re-reads the connection's current selected_sources immediately
// before writing, prunes against the incoming resource set, and writes
// the merged result — so a concurrent user edit to the selection
// between read and write is never silently clobbered by a sync-time
// refresh.
func (c *Cache) UpsertLandscape(ctx context.Context, connectionID uuid.UUID, incoming domain.Landscape) error {
	current, err := c.store.GetLandscape(ctx, connectionID)
	if err != nil {
		return err
	}

	merged := domain.Landscape{
		Resources:       incoming.Resources,
		SelectedSources: incoming.Prune(current.SelectedSources),
	}
	return c.store.PutLandscape(ctx, connectionID, merged)
}

// FieldExtractor evaluates a jq-style query against a provider's raw
// JSON resource payload, used to pull platform-specific fields (e.g.
// Slack's `.name`, Notion's `.properties.title`) into a Resource
// without each client hand-writing a JSON-walking switch.
type FieldExtractor struct {
	query *gojq.Query
}

// NewFieldExtractor compiles a jq query string.
func NewFieldExtractor(query string) (*FieldExtractor, error) {
	q, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("failed to parse field extractor query %q: %w", query, err)
	}
	return &FieldExtractor{query: q}, nil
}

// Extract runs the compiled query against raw (an already-decoded
// JSON value, e.g. from json.Unmarshal into map[string]any) and
// returns the first result as a string. Non-string results are
// formatted with fmt.Sprint.
func (f *FieldExtractor) Extract(raw any) (string, error) {
	iter := f.query.Run(raw)
	v, ok := iter.Next()
	if !ok {
		return "", nil
	}
	if err, ok := v.(error); ok {
		return "", fmt.Errorf("field extractor query failed: %w", err)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}
