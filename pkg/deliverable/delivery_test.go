package deliverable

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

type fakeExporter struct {
	result ExportResult
	err    error
}

func (f *fakeExporter) Export(ctx context.Context, userID uuid.UUID, dest domain.Destination, content string) (ExportResult, error) {
	return f.result, f.err
}

type fakeExporterRegistry struct {
	exporters map[domain.Platform]Exporter
}

func (f *fakeExporterRegistry) Get(platform domain.Platform) (Exporter, bool) {
	e, ok := f.exporters[platform]
	return e, ok
}

type fakeEmailLookup struct {
	email string
}

func (f *fakeEmailLookup) Email(ctx context.Context, userID uuid.UUID) (string, error) {
	return f.email, nil
}

func TestDeliverer_Deliver_SuccessfulExport(t *testing.T) {
	registry := &fakeExporterRegistry{exporters: map[domain.Platform]Exporter{
		domain.PlatformSlack: &fakeExporter{result: ExportResult{Status: domain.DeliveryDelivered, ExternalID: "msg1"}},
	}}
	d := NewDeliverer(registry, &fakeEmailLookup{})

	logs, status := d.Deliver(context.Background(), uuid.New(), domain.Destination{Platform: domain.PlatformSlack, Target: "#eng"}, "content")
	if status != domain.DeliveryDelivered {
		t.Errorf("status = %v, want delivered", status)
	}
	if len(logs) != 1 || logs[0].ExternalID != "msg1" {
		t.Errorf("logs = %+v", logs)
	}
}

func TestDeliverer_Deliver_MissingTargetFallsBackToEmail(t *testing.T) {
	registry := &fakeExporterRegistry{exporters: map[domain.Platform]Exporter{
		domain.PlatformEmail: &fakeExporter{result: ExportResult{Status: domain.DeliveryDelivered, ExternalID: "m1"}},
	}}
	d := NewDeliverer(registry, &fakeEmailLookup{email: "user@example.com"})

	logs, status := d.Deliver(context.Background(), uuid.New(), domain.Destination{}, "content")
	if status != domain.DeliveryDelivered {
		t.Fatalf("status = %v, want delivered via email fallback", status)
	}
	if logs[0].Destination.Target != "user@example.com" {
		t.Errorf("fallback target = %q, want user@example.com", logs[0].Destination.Target)
	}
}

func TestDeliverer_Deliver_NoExporterRegisteredIsFailed(t *testing.T) {
	registry := &fakeExporterRegistry{exporters: map[domain.Platform]Exporter{}}
	d := NewDeliverer(registry, &fakeEmailLookup{})

	logs, status := d.Deliver(context.Background(), uuid.New(), domain.Destination{Platform: domain.PlatformNotion, Target: "page1"}, "content")
	if status != domain.DeliveryFailed {
		t.Errorf("status = %v, want failed", status)
	}
	if len(logs) != 1 || logs[0].Error == "" {
		t.Errorf("logs = %+v, want a recorded error", logs)
	}
}
