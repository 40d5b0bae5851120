// Package clients implements one PlatformClient per connected
// provider (Slack, Gmail, Notion, Calendar), each fetching its
// selected resources and translating provider payloads into
// domain.PlatformContent rows.
package clients

import (
	"context"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// FetchResult is one provider's fetch outcome for a single resource.
type FetchResult struct {
	ResourceID string
	Items      []domain.PlatformContent
	// SourceLatestAt is the newest source timestamp observed, used to
	// populate SyncRegistryEntry.SourceLatestAt.
	SourceLatestAt *domain.PlatformContent
	Cursor         string
	Err            error
}

// PlatformClient fetches content for a set of selected resource IDs
// and the provider's current resource catalog (for landscape refresh).
type PlatformClient interface {
	// Platform identifies which provider this client serves.
	Platform() domain.Platform

	// Fetch retrieves content for each of resourceIDs. Per spec §4.2,
	// one resource's failure must not abort the others: implementations
	// return one FetchResult per input ID, each carrying its own Err.
	Fetch(ctx context.Context, accessToken string, resourceIDs []string, cursors map[string]string) []FetchResult

	// ListResources returns the provider's current catalog (channels,
	// labels, pages, calendars), used to refresh a connection's
	// Landscape.
	ListResources(ctx context.Context, accessToken string) ([]domain.Resource, error)
}
