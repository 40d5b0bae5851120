package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
	internalerrors "github.com/kvkthecreator/yarnnn/internal/errors"
	sharedhttp "github.com/kvkthecreator/yarnnn/pkg/shared/http"
)

const (
	gmailBaseURL        = "https://gmail.googleapis.com/gmail/v1"
	gmailMessagesPerLabel = 50
	gmailLookbackDays    = 7
)

// GmailClient fetches recent label messages via the Gmail REST API.
// The teacher's pack has no Google API client library, so this talks
// REST directly over the shared http.Client with an oauth2 static
// token source (see DESIGN.md).
type GmailClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewGmailClient builds a GmailClient over the shared outbound
// *http.Client configuration.
func NewGmailClient() *GmailClient {
	return &GmailClient{
		httpClient: sharedhttp.NewClient(sharedhttp.DefaultClientConfig()),
		baseURL:    gmailBaseURL,
	}
}

func (c *GmailClient) Platform() domain.Platform { return domain.PlatformGmail }

func (c *GmailClient) Fetch(ctx context.Context, accessToken string, resourceIDs []string, cursors map[string]string) []FetchResult {
	results := make([]FetchResult, 0, len(resourceIDs))
	for _, labelID := range resourceIDs {
		items, err := c.fetchLabel(ctx, accessToken, labelID)
		results = append(results, FetchResult{ResourceID: labelID, Items: items, Err: err})
	}
	return results
}

func (c *GmailClient) fetchLabel(ctx context.Context, accessToken, labelID string) ([]domain.PlatformContent, error) {
	after := time.Now().AddDate(0, 0, -gmailLookbackDays).Unix()
	query := url.Values{
		"labelIds":   {labelID},
		"maxResults": {strconv.Itoa(gmailMessagesPerLabel)},
		"q":          {fmt.Sprintf("after:%d", after)},
	}

	var listResp struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := c.getJSON(ctx, accessToken, "/users/me/messages?"+query.Encode(), &listResp); err != nil {
		return nil, err
	}

	items := make([]domain.PlatformContent, 0, len(listResp.Messages))
	for _, m := range listResp.Messages {
		var msg struct {
			ID       string `json:"id"`
			Snippet  string `json:"snippet"`
			InternalDate string `json:"internalDate"`
			Payload struct {
				Headers []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"headers"`
			} `json:"payload"`
		}
		if err := c.getJSON(ctx, accessToken, "/users/me/messages/"+m.ID+"?format=metadata", &msg); err != nil {
			return nil, err
		}

		sourceTime := time.Now()
		if ms, err := strconv.ParseInt(msg.InternalDate, 10, 64); err == nil {
			sourceTime = time.UnixMilli(ms)
		}

		items = append(items, domain.PlatformContent{
			ExternalID:  msg.ID,
			Content:     msg.Snippet,
			ContentType: domain.ContentEmail,
			SourceTime:  sourceTime,
			Metadata:    map[string]any{"label_id": labelID, "headers": msg.Payload.Headers},
		})
	}
	return items, nil
}

func (c *GmailClient) ListResources(ctx context.Context, accessToken string) ([]domain.Resource, error) {
	var resp struct {
		Labels []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"labels"`
	}
	if err := c.getJSON(ctx, accessToken, "/users/me/labels", &resp); err != nil {
		return nil, err
	}

	resources := make([]domain.Resource, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		resources = append(resources, domain.Resource{ID: l.ID, Name: l.Name, Kind: "label"})
	}
	return resources, nil
}

func (c *GmailClient) getJSON(ctx context.Context, accessToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build gmail request: %w", err)
	}
	token := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return internalerrors.Transient("gmail request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return internalerrors.Transient("gmail request", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return internalerrors.Permission("gmail request", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return fmt.Errorf("gmail request failed with status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gmail response: %w", err)
	}
	return nil
}
