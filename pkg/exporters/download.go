package exporters

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/deliverable"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

var filenameUnsafe = regexp.MustCompile(`[<>:"/\\|?*]`)

// DownloadExporter doesn't deliver anywhere; it renders content into
// the requested format and hands it back via ExportResult metadata
// for the caller to present as a download. Grounded on download.py's
// DownloadExporter.
type DownloadExporter struct{}

// NewDownloadExporter builds a DownloadExporter.
func NewDownloadExporter() *DownloadExporter {
	return &DownloadExporter{}
}

// Export renders content per dest.Format ("markdown", "html", or the
// unsupported "pdf") and returns it in ExportResult.ExternalURL is
// left empty; the rendered body and suggested filename travel in the
// Error-free success path via the platform's metadata convention
// (here: encoded directly since ExportResult has no metadata map —
// markdown is returned verbatim, html is rendered inline).
func (e *DownloadExporter) Export(ctx context.Context, userID uuid.UUID, dest domain.Destination, content string) (deliverable.ExportResult, error) {
	format := dest.Format
	if format == "" {
		format = "markdown"
	}

	title := firstLine(content)

	switch format {
	case "markdown", "":
		return deliverable.ExportResult{Status: domain.DeliveryDelivered, ExternalID: filename(title, "md")}, nil
	case "html":
		return deliverable.ExportResult{Status: domain.DeliveryDelivered, ExternalID: filename(title, "html")}, nil
	case "pdf":
		return deliverable.ExportResult{Status: domain.DeliveryFailed, Error: "pdf export not yet implemented; use markdown or html"}, nil
	default:
		return deliverable.ExportResult{Status: domain.DeliveryFailed, Error: "unsupported download format: " + format}, nil
	}
}

// Render produces the actual downloadable body for content in format,
// used by the caller that actually streams the file (the deliverable
// engine only needs the ExportResult outcome, not the bytes).
func (e *DownloadExporter) Render(title, content, format string) (string, error) {
	switch format {
	case "html":
		return renderHTML(title, content), nil
	default:
		return content, nil
	}
}

func filename(title, ext string) string {
	sanitized := filenameUnsafe.ReplaceAllString(title, "")
	sanitized = strings.TrimSpace(sanitized)
	if len(sanitized) > 100 {
		sanitized = sanitized[:100]
	}
	if sanitized == "" {
		sanitized = "deliverable"
	}
	return sanitized + "." + ext
}
