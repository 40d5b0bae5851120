package exporters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	internalerrors "github.com/kvkthecreator/yarnnn/internal/errors"
	"github.com/kvkthecreator/yarnnn/pkg/deliverable"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
	"github.com/kvkthecreator/yarnnn/pkg/metrics"
	sharedhttp "github.com/kvkthecreator/yarnnn/pkg/shared/http"
)

const (
	notionAPIBaseURL = "https://api.notion.com/v1"
	notionAPIVersion = "2022-06-28"
)

// NotionExporter creates pages, database items, or draft-database
// entries via the Notion REST API directly — grounded on notion.py's
// NotionExporter and reusing the request/response style of
// pkg/platformsync/clients.NotionClient (the ingestion-side reader).
type NotionExporter struct {
	creds      CredentialResolver
	httpClient *http.Client
	baseURL    string
	log        *zap.Logger
}

// NewNotionExporter builds a NotionExporter.
func NewNotionExporter(creds CredentialResolver, log *zap.Logger) *NotionExporter {
	return &NotionExporter{
		creds:      creds,
		httpClient: sharedhttp.NewClient(sharedhttp.DefaultClientConfig()),
		baseURL:    notionAPIBaseURL,
		log:        log,
	}
}

// Export creates a page under dest.Target ("page"), a database item
// ("database_item"), or a draft entry in a YARNNN Drafts database
// ("draft").
func (e *NotionExporter) Export(ctx context.Context, userID uuid.UUID, dest domain.Destination, content string) (deliverable.ExportResult, error) {
	if dest.Target == "" {
		return fail("no target page specified"), nil
	}

	creds, err := e.creds.Resolve(ctx, userID, domain.PlatformNotion)
	if err != nil {
		metrics.RecordDeliveryError(string(domain.PlatformNotion), "auth")
		return fail("could not resolve notion credentials: " + err.Error()), nil
	}

	title := firstLine(content)
	format := dest.Format
	if format == "" {
		format = "page"
	}

	var (
		parentID   string
		parentType string
		properties map[string]any
	)

	switch format {
	case "draft":
		draftsDB := option(dest, "drafts_database_id", "")
		if draftsDB == "" {
			return fail("draft format requires drafts_database_id in options"), nil
		}
		targetName := option(dest, "target_name", dest.Target)
		properties = map[string]any{
			"Status":      map[string]any{"select": map[string]any{"name": "Draft"}},
			"Target Name": map[string]any{"rich_text": []map[string]any{{"type": "text", "text": map[string]any{"content": targetName}}}},
		}
		if targetURL := option(dest, "target_url", ""); targetURL != "" {
			properties["Target Location"] = map[string]any{"url": targetURL}
		}
		parentID, parentType = draftsDB, "database_id"

	case "database_item":
		databaseID := option(dest, "database_id", "")
		if databaseID == "" {
			return fail("database_item format requires database_id in options"), nil
		}
		parentID, parentType = databaseID, "database_id"

	case "page":
		parentID, parentType = dest.Target, "page_id"

	default:
		return fail("unsupported notion format: " + format), nil
	}

	page, err := e.createPage(ctx, creds.AccessToken, parentID, parentType, title, content, properties)
	if err != nil {
		metrics.RecordDeliveryError(string(domain.PlatformNotion), classifyErr(err))
		return fail(err.Error()), nil
	}

	e.log.Info("notion export delivered", zap.String("parent_id", parentID), zap.String("page_id", page.ID))
	return deliverable.ExportResult{Status: domain.DeliveryDelivered, ExternalID: page.ID, ExternalURL: page.URL}, nil
}

type notionPage struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (e *NotionExporter) createPage(ctx context.Context, accessToken, parentID, parentType, title, content string, extraProperties map[string]any) (notionPage, error) {
	properties := map[string]any{
		"title": map[string]any{"title": []map[string]any{{"type": "text", "text": map[string]any{"content": title}}}},
	}
	for k, v := range extraProperties {
		properties[k] = v
	}

	body := map[string]any{
		"parent":     map[string]string{parentType: parentID},
		"properties": properties,
		"children":   markdownToNotionBlocks(content),
	}

	var page notionPage
	if err := e.do(ctx, accessToken, http.MethodPost, "/pages", body, &page); err != nil {
		return notionPage{}, err
	}
	return page, nil
}

func (e *NotionExporter) do(ctx context.Context, accessToken, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode notion request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build notion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Notion-Version", notionAPIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return internalerrors.Transient("notion request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return internalerrors.Transient("notion request", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return internalerrors.Permission("notion request", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return fmt.Errorf("notion request failed with status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode notion response: %w", err)
	}
	return nil
}

func classifyErr(err error) string {
	if internalerrors.Is(err, internalerrors.KindPermission) {
		return "auth"
	}
	if internalerrors.Is(err, internalerrors.KindTransient) {
		return "transient"
	}
	return "unknown"
}
