package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	internalerrors "github.com/kvkthecreator/yarnnn/internal/errors"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
	sharedhttp "github.com/kvkthecreator/yarnnn/pkg/shared/http"
)

const (
	notionBaseURL     = "https://api.notion.com/v1"
	notionAPIVersion  = "2022-06-28"
)

// NotionClient fetches pages directly by ID and flattens their child
// blocks to text, per spec §4.2's table.
type NotionClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewNotionClient() *NotionClient {
	return &NotionClient{
		httpClient: sharedhttp.NewClient(sharedhttp.DefaultClientConfig()),
		baseURL:    notionBaseURL,
	}
}

func (c *NotionClient) Platform() domain.Platform { return domain.PlatformNotion }

func (c *NotionClient) Fetch(ctx context.Context, accessToken string, resourceIDs []string, cursors map[string]string) []FetchResult {
	results := make([]FetchResult, 0, len(resourceIDs))
	for _, pageID := range resourceIDs {
		items, err := c.fetchPage(ctx, accessToken, pageID)
		results = append(results, FetchResult{ResourceID: pageID, Items: items, Err: err})
	}
	return results
}

func (c *NotionClient) fetchPage(ctx context.Context, accessToken, pageID string) ([]domain.PlatformContent, error) {
	var page struct {
		ID             string `json:"id"`
		LastEditedTime string `json:"last_edited_time"`
		Properties     map[string]struct {
			Title []struct {
				PlainText string `json:"plain_text"`
			} `json:"title"`
		} `json:"properties"`
	}
	if err := c.do(ctx, accessToken, http.MethodGet, "/pages/"+pageID, nil, &page); err != nil {
		return nil, err
	}

	title := pageID
	if titleProp, ok := page.Properties["title"]; ok && len(titleProp.Title) > 0 {
		title = titleProp.Title[0].PlainText
	}

	text, err := c.flattenBlocks(ctx, accessToken, pageID)
	if err != nil {
		return nil, err
	}

	content := domain.PlatformContent{
		ExternalID:  pageID,
		Content:     text,
		ContentType: domain.ContentPage,
		SourceTime:  parseRFC3339(page.LastEditedTime),
		Metadata:    map[string]any{"title": title},
	}
	return []domain.PlatformContent{content}, nil
}

func (c *NotionClient) flattenBlocks(ctx context.Context, accessToken, pageID string) (string, error) {
	var resp struct {
		Results []struct {
			Type      string `json:"type"`
			Paragraph *struct {
				RichText []struct {
					PlainText string `json:"plain_text"`
				} `json:"rich_text"`
			} `json:"paragraph,omitempty"`
		} `json:"results"`
	}
	if err := c.do(ctx, accessToken, http.MethodGet, "/blocks/"+pageID+"/children", nil, &resp); err != nil {
		return "", err
	}

	var lines []string
	for _, block := range resp.Results {
		if block.Paragraph == nil {
			continue
		}
		var parts []string
		for _, rt := range block.Paragraph.RichText {
			parts = append(parts, rt.PlainText)
		}
		if line := strings.Join(parts, ""); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (c *NotionClient) ListResources(ctx context.Context, accessToken string) ([]domain.Resource, error) {
	body, _ := json.Marshal(map[string]any{
		"filter": map[string]string{"value": "page", "property": "object"},
	})
	var resp struct {
		Results []struct {
			ID         string `json:"id"`
			Properties map[string]struct {
				Title []struct {
					PlainText string `json:"plain_text"`
				} `json:"title"`
			} `json:"properties"`
		} `json:"results"`
	}
	if err := c.do(ctx, accessToken, http.MethodPost, "/search", body, &resp); err != nil {
		return nil, err
	}

	resources := make([]domain.Resource, 0, len(resp.Results))
	for _, r := range resp.Results {
		name := r.ID
		if titleProp, ok := r.Properties["title"]; ok && len(titleProp.Title) > 0 {
			name = titleProp.Title[0].PlainText
		}
		resources = append(resources, domain.Resource{ID: r.ID, Name: name, Kind: "page"})
	}
	return resources, nil
}

func (c *NotionClient) do(ctx context.Context, accessToken, method, path string, body []byte, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build notion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Notion-Version", notionAPIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
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
