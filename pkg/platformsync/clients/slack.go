package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// messagesPerChannel bounds Slack's fetch per spec §4.2's table: 50
// messages per selected channel.
const messagesPerChannel = 50

// SlackClient fetches recent channel messages via the slack-go SDK.
type SlackClient struct {
	newAPI func(token string) *goslack.Client
}

// NewSlackClient builds a SlackClient. newAPI is overridable in tests
// so they can point at a mock server via goslack.OptionAPIURL.
func NewSlackClient() *SlackClient {
	return &SlackClient{newAPI: func(token string) *goslack.Client {
		return goslack.New(token)
	}}
}

// NewSlackClientWithAPIURL builds a SlackClient that targets a custom
// API URL, for tests against a mock server.
func NewSlackClientWithAPIURL(apiURL string) *SlackClient {
	return &SlackClient{newAPI: func(token string) *goslack.Client {
		return goslack.New(token, goslack.OptionAPIURL(apiURL))
	}}
}

func (c *SlackClient) Platform() domain.Platform { return domain.PlatformSlack }

func (c *SlackClient) Fetch(ctx context.Context, accessToken string, resourceIDs []string, cursors map[string]string) []FetchResult {
	api := c.newAPI(accessToken)
	results := make([]FetchResult, 0, len(resourceIDs))

	for _, channelID := range resourceIDs {
		items, err := c.fetchChannel(ctx, api, channelID)
		results = append(results, FetchResult{ResourceID: channelID, Items: items, Err: err})
	}
	return results
}

func (c *SlackClient) fetchChannel(ctx context.Context, api *goslack.Client, channelID string) ([]domain.PlatformContent, error) {
	history, err := api.GetConversationHistoryContext(ctx, &goslack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     messagesPerChannel,
	})
	if err != nil {
		if isNotInChannel(err) {
			if joinErr := c.autoJoin(ctx, api, channelID); joinErr != nil {
				return nil, joinErr
			}
			history, err = api.GetConversationHistoryContext(ctx, &goslack.GetConversationHistoryParameters{
				ChannelID: channelID,
				Limit:     messagesPerChannel,
			})
			if err != nil {
				return nil, fmt.Errorf("conversations.history failed after auto-join: %w", err)
			}
		} else if isPermissionDenied(err) {
			// Private channel without access: skip, not fatal.
			return nil, nil
		} else {
			return nil, fmt.Errorf("conversations.history failed: %w", err)
		}
	}

	items := make([]domain.PlatformContent, 0, len(history.Messages))
	for _, msg := range history.Messages {
		sourceTime := slackTimestampToTime(msg.Timestamp)
		items = append(items, domain.PlatformContent{
			ExternalID:  msg.Timestamp,
			Content:     msg.Text,
			ContentType: domain.ContentMessage,
			SourceTime:  sourceTime,
			Metadata: map[string]any{
				"user":       msg.User,
				"channel_id": channelID,
			},
		})
	}
	return items, nil
}

func (c *SlackClient) autoJoin(ctx context.Context, api *goslack.Client, channelID string) error {
	if _, _, _, err := api.JoinConversationContext(ctx, channelID); err != nil {
		return fmt.Errorf("failed to auto-join channel %s: %w", channelID, err)
	}
	return nil
}

func (c *SlackClient) ListResources(ctx context.Context, accessToken string) ([]domain.Resource, error) {
	api := c.newAPI(accessToken)
	var resources []domain.Resource
	cursor := ""
	for {
		channels, nextCursor, err := api.GetConversationsContext(ctx, &goslack.GetConversationsParameters{
			Types:  []string{"public_channel"},
			Cursor: cursor,
			Limit:  200,
		})
		if err != nil {
			return nil, fmt.Errorf("conversations.list failed: %w", err)
		}
		for _, ch := range channels {
			resources = append(resources, domain.Resource{ID: ch.ID, Name: ch.Name, Kind: "channel"})
		}
		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}
	return resources, nil
}

func isNotInChannel(err error) bool {
	return strings.Contains(err.Error(), "not_in_channel")
}

func isPermissionDenied(err error) bool {
	return strings.Contains(err.Error(), "channel_not_found") || strings.Contains(err.Error(), "missing_scope")
}

func slackTimestampToTime(ts string) time.Time {
	var sec, nsec int64
	if _, err := fmt.Sscanf(ts, "%d.%d", &sec, &nsec); err != nil {
		return time.Time{}
	}
	return time.Unix(sec, nsec*1000)
}
