package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	internalerrors "github.com/kvkthecreator/yarnnn/internal/errors"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
	sharedhttp "github.com/kvkthecreator/yarnnn/pkg/shared/http"
)

const (
	calendarBaseURL   = "https://www.googleapis.com/calendar/v3"
	calendarLookDays  = 7
)

// CalendarClient fetches upcoming events, using an incremental
// sync_token when one is cached from a prior fetch and falling back to
// a full window re-fetch on 410 Gone (the token expired), per spec
// §4.2's table.
type CalendarClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewCalendarClient() *CalendarClient {
	return &CalendarClient{
		httpClient: sharedhttp.NewClient(sharedhttp.DefaultClientConfig()),
		baseURL:    calendarBaseURL,
	}
}

func (c *CalendarClient) Platform() domain.Platform { return domain.PlatformCalendar }

func (c *CalendarClient) Fetch(ctx context.Context, accessToken string, resourceIDs []string, cursors map[string]string) []FetchResult {
	results := make([]FetchResult, 0, len(resourceIDs))
	for _, calendarID := range resourceIDs {
		items, nextCursor, err := c.fetchCalendar(ctx, accessToken, calendarID, cursors[calendarID])
		results = append(results, FetchResult{ResourceID: calendarID, Items: items, Cursor: nextCursor, Err: err})
	}
	return results
}

func (c *CalendarClient) fetchCalendar(ctx context.Context, accessToken, calendarID, syncToken string) ([]domain.PlatformContent, string, error) {
	query := url.Values{}
	if syncToken != "" {
		query.Set("syncToken", syncToken)
	} else {
		query.Set("timeMin", time.Now().Format(time.RFC3339))
		query.Set("timeMax", time.Now().AddDate(0, 0, calendarLookDays).Format(time.RFC3339))
		query.Set("singleEvents", "true")
	}

	var resp struct {
		Items []struct {
			ID    string `json:"id"`
			Summary string `json:"summary"`
			Start struct {
				DateTime string `json:"dateTime"`
				Date     string `json:"date"`
			} `json:"start"`
			Updated string `json:"updated"`
		} `json:"items"`
		NextSyncToken string `json:"nextSyncToken"`
	}

	path := "/calendars/" + url.PathEscape(calendarID) + "/events?" + query.Encode()
	if err := c.getJSON(ctx, accessToken, path, &resp); err != nil {
		if isGone(err) {
			// Stale sync token: fall back to a full window re-fetch.
			return c.fetchCalendar(ctx, accessToken, calendarID, "")
		}
		return nil, "", err
	}

	items := make([]domain.PlatformContent, 0, len(resp.Items))
	for _, ev := range resp.Items {
		start := ev.Start.DateTime
		if start == "" {
			start = ev.Start.Date
		}
		items = append(items, domain.PlatformContent{
			ExternalID:  ev.ID,
			Content:     ev.Summary,
			ContentType: domain.ContentEvent,
			SourceTime:  parseRFC3339(ev.Updated),
			Metadata:    map[string]any{"calendar_id": calendarID, "start": start},
		})
	}
	return items, resp.NextSyncToken, nil
}

func (c *CalendarClient) ListResources(ctx context.Context, accessToken string) ([]domain.Resource, error) {
	var resp struct {
		Items []struct {
			ID      string `json:"id"`
			Summary string `json:"summary"`
		} `json:"items"`
	}
	if err := c.getJSON(ctx, accessToken, "/users/me/calendarList", &resp); err != nil {
		return nil, err
	}

	resources := make([]domain.Resource, 0, len(resp.Items))
	for _, cal := range resp.Items {
		resources = append(resources, domain.Resource{ID: cal.ID, Name: cal.Summary, Kind: "calendar"})
	}
	return resources, nil
}

func (c *CalendarClient) getJSON(ctx context.Context, accessToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build calendar request: %w", err)
	}
	token := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return internalerrors.Transient("calendar request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		return internalerrors.NotFound("calendar sync token", fmt.Errorf("status 410"))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return internalerrors.Transient("calendar request", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return internalerrors.Permission("calendar request", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return fmt.Errorf("calendar request failed with status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode calendar response: %w", err)
	}
	return nil
}

func isGone(err error) bool {
	return internalerrors.Is(err, internalerrors.KindNotFound)
}
