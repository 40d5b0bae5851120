package exporters

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

func TestDownloadExporter_Export_DefaultsToMarkdown(t *testing.T) {
	e := NewDownloadExporter()
	result, err := e.Export(context.Background(), uuid.New(), domain.Destination{}, "# Title\nbody")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Status != domain.DeliveryDelivered {
		t.Errorf("status = %v, want delivered", result.Status)
	}
	if !strings.HasSuffix(result.ExternalID, ".md") {
		t.Errorf("ExternalID = %q, want a .md filename", result.ExternalID)
	}
}

func TestDownloadExporter_Export_PDFUnsupported(t *testing.T) {
	e := NewDownloadExporter()
	result, err := e.Export(context.Background(), uuid.New(), domain.Destination{Format: "pdf"}, "content")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Status != domain.DeliveryFailed {
		t.Errorf("status = %v, want failed for pdf", result.Status)
	}
}

func TestDownloadExporter_Render_HTMLEscapesContent(t *testing.T) {
	e := NewDownloadExporter()
	html, err := e.Render("My Title", "## Heading\n<script>alert(1)</script>", "html")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("Render() did not escape embedded HTML")
	}
	if !strings.Contains(html, "<h2>") {
		t.Errorf("Render() = %q, want a rendered h2 heading", html)
	}
}

func TestDownloadExporter_Filename_SanitizesUnsafeCharacters(t *testing.T) {
	got := filename(`report: Q1/2026 <final>`, "md")
	if strings.ContainsAny(got, `:/<>`) {
		t.Errorf("filename() = %q, still contains unsafe characters", got)
	}
}
