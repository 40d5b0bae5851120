package exporters

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kvkthecreator/yarnnn/pkg/deliverable"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// Registry resolves a deliverable.Exporter by destination platform.
// One Registry is built once at startup and shared across every
// deliverable generation run.
type Registry struct {
	mu        sync.RWMutex
	exporters map[domain.Platform]deliverable.Exporter
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{exporters: make(map[domain.Platform]deliverable.Exporter)}
}

// Register adds or replaces the exporter for platform.
func (r *Registry) Register(platform domain.Platform, exporter deliverable.Exporter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exporters[platform] = exporter
}

// Unregister removes platform's exporter, if any. Never panics on a
// platform that isn't registered.
func (r *Registry) Unregister(platform domain.Platform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.exporters, platform)
}

// Get returns platform's exporter, satisfying deliverable.ExporterRegistry.
func (r *Registry) Get(platform domain.Platform) (deliverable.Exporter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.exporters[platform]
	return e, ok
}

// GetOrRaise returns platform's exporter, or an error listing the
// platforms that are registered.
func (r *Registry) GetOrRaise(platform domain.Platform) (deliverable.Exporter, error) {
	e, ok := r.Get(platform)
	if !ok {
		return nil, fmt.Errorf("no exporter registered for platform %q, available: %v", platform, r.ListPlatforms())
	}
	return e, nil
}

// ListPlatforms returns the registered platform identifiers, sorted.
func (r *Registry) ListPlatforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	platforms := make([]string, 0, len(r.exporters))
	for p := range r.exporters {
		platforms = append(platforms, string(p))
	}
	sort.Strings(platforms)
	return platforms
}

// Count returns the number of registered exporters.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.exporters)
}

// IsRegistered reports whether platform has a registered exporter.
func (r *Registry) IsRegistered(platform domain.Platform) bool {
	_, ok := r.Get(platform)
	return ok
}

// NewDefaultRegistry wires the orchestrator's standard exporter set:
// Slack, Notion, Gmail, email (Resend, the no-OAuth default fallback
// channel) and download, each under its own platform key.
func NewDefaultRegistry(slack *SlackExporter, notion *NotionExporter, gmail *GmailExporter, email *EmailExporter, download *DownloadExporter) *Registry {
	r := NewRegistry()
	r.Register(domain.PlatformSlack, slack)
	r.Register(domain.PlatformNotion, notion)
	r.Register(domain.PlatformGmail, gmail)
	r.Register(domain.PlatformEmail, email)
	r.Register(domain.PlatformDownload, download)
	return r
}
