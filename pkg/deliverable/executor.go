package deliverable

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/contentcache"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// MemoryReader supplies GetSystemState's payload: the working-memory
// snapshot built by pkg/memory. Declared locally to avoid an import
// cycle (pkg/memory has no reason to depend on pkg/deliverable).
type MemoryReader interface {
	Assemble(ctx context.Context, userID uuid.UUID) (string, error)
}

// CacheToolExecutor implements ToolExecutor over the content cache plus
// an optional working-memory reader. WebSearch is intentionally
// unimplemented here — no web search provider ships in this module —
// and reports a fixed "unavailable" result rather than erroring the
// whole round, consistent with the original's "handle unexpected tools
// gracefully" behavior.
type CacheToolExecutor struct {
	cache  *contentcache.Cache
	memory MemoryReader
	userID uuid.UUID
}

// NewCacheToolExecutor scopes an executor to one user's data for the
// duration of a single generation run.
func NewCacheToolExecutor(cache *contentcache.Cache, memory MemoryReader, userID uuid.UUID) *CacheToolExecutor {
	return &CacheToolExecutor{cache: cache, memory: memory, userID: userID}
}

func (e *CacheToolExecutor) Execute(ctx context.Context, name string, input map[string]any) (string, error) {
	switch name {
	case "Search":
		var args struct {
			Query string `json:"query"`
		}
		if err := marshalToolInput(input, &args); err != nil {
			return "", fmt.Errorf("invalid Search input: %w", err)
		}
		return e.search(ctx, args.Query)
	case "List":
		var args struct {
			Kind string `json:"kind"`
		}
		if err := marshalToolInput(input, &args); err != nil {
			return "", fmt.Errorf("invalid List input: %w", err)
		}
		return e.list(ctx, args.Kind)
	case "Read":
		return "", fmt.Errorf("Read is not supported outside a Search result's id")
	case "WebSearch":
		return "web search is unavailable in this deployment", nil
	case "GetSystemState":
		if e.memory == nil {
			return "no working-memory snapshot available", nil
		}
		return e.memory.Assemble(ctx, e.userID)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func (e *CacheToolExecutor) search(ctx context.Context, query string) (string, error) {
	items, err := e.cache.Query(ctx, e.userID, contentcache.QueryFilter{}, 20)
	if err != nil {
		return "", err
	}
	var matched []domain.PlatformContent
	for _, item := range items {
		if query == "" || strings.Contains(strings.ToLower(item.Content), strings.ToLower(query)) {
			matched = append(matched, item)
		}
	}
	payload, err := json.Marshal(matched)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (e *CacheToolExecutor) list(ctx context.Context, kind string) (string, error) {
	var platform *domain.Platform
	if kind != "" {
		p := domain.Platform(kind)
		platform = &p
	}
	items, err := e.cache.Query(ctx, e.userID, contentcache.QueryFilter{Platform: platform}, 20)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
