package exporters

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/deliverable"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

type stubExporter struct{}

func (stubExporter) Export(ctx context.Context, userID uuid.UUID, dest domain.Destination, content string) (deliverable.ExportResult, error) {
	return deliverable.ExportResult{Status: domain.DeliveryDelivered}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if r.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", r.Count())
	}

	r.Register(domain.PlatformSlack, stubExporter{})
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
	if !r.IsRegistered(domain.PlatformSlack) {
		t.Error("expected slack to be registered")
	}

	e, ok := r.Get(domain.PlatformSlack)
	if !ok || e == nil {
		t.Fatal("Get() failed to find the registered exporter")
	}
}

func TestRegistry_GetOrRaise_UnknownPlatformListsAvailable(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.PlatformSlack, stubExporter{})
	r.Register(domain.PlatformNotion, stubExporter{})

	_, err := r.GetOrRaise(domain.PlatformGmail)
	if err == nil {
		t.Fatal("expected an error for an unregistered platform")
	}
	if !strings.Contains(err.Error(), "notion") || !strings.Contains(err.Error(), "slack") {
		t.Errorf("error = %q, want it to list available platforms", err.Error())
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.PlatformSlack, stubExporter{})
	r.Unregister(domain.PlatformSlack)

	if r.IsRegistered(domain.PlatformSlack) {
		t.Error("expected slack to be unregistered")
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}

	// Unregistering something absent must not panic.
	r.Unregister(domain.PlatformSlack)
}

func TestNewDefaultRegistry_WiresAllPlatforms(t *testing.T) {
	r := NewDefaultRegistry(stubSlack(), stubNotion(), stubGmail(), stubEmail(), NewDownloadExporter())
	want := []string{"download", "email", "gmail", "notion", "slack"}
	got := r.ListPlatforms()
	if len(got) != len(want) {
		t.Fatalf("ListPlatforms() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ListPlatforms()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func stubSlack() *SlackExporter   { return &SlackExporter{} }
func stubNotion() *NotionExporter { return &NotionExporter{} }
func stubGmail() *GmailExporter   { return &GmailExporter{} }
func stubEmail() *EmailExporter   { return &EmailExporter{} }
