package exporters

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	goslack "github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/deliverable"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
	"github.com/kvkthecreator/yarnnn/pkg/metrics"
)

// SlackExporter delivers content to Slack channels or, for
// dm_draft, as a direct message to the user — grounded on slack.py's
// SlackExporter (message/thread/blocks/dm_draft formats) and reusing
// the slack-go client the teacher's ingestion side already depends on.
type SlackExporter struct {
	creds  CredentialResolver
	newAPI func(token string) *goslack.Client
	log    *zap.Logger
}

// NewSlackExporter builds a SlackExporter.
func NewSlackExporter(creds CredentialResolver, log *zap.Logger) *SlackExporter {
	return &SlackExporter{
		creds:  creds,
		newAPI: func(token string) *goslack.Client { return goslack.New(token) },
		log:    log,
	}
}

// Export posts content to target, or DMs it as a draft when
// format=="dm_draft" and options.user_email is set.
func (e *SlackExporter) Export(ctx context.Context, userID uuid.UUID, dest domain.Destination, content string) (deliverable.ExportResult, error) {
	if dest.Target == "" {
		return fail("no target channel specified"), nil
	}

	creds, err := e.creds.Resolve(ctx, userID, domain.PlatformSlack)
	if err != nil {
		metrics.RecordDeliveryError(string(domain.PlatformSlack), "auth")
		return fail("could not resolve slack credentials: " + err.Error()), nil
	}

	api := e.newAPI(creds.AccessToken)
	format := dest.Format
	if format == "" {
		format = "message"
	}

	if format == "dm_draft" {
		return e.deliverDMDraft(ctx, api, dest, content)
	}

	text := content
	title := firstLine(content)
	blocks := goslack.MsgOptionBlocks(contentBlocks(title, content)...)
	opts := []goslack.MsgOption{goslack.MsgOptionText(text, false), blocks}
	if format == "thread" {
		if threadTS := option(dest, "thread_ts", ""); threadTS != "" {
			opts = append(opts, goslack.MsgOptionTS(threadTS))
		}
	}

	_, ts, err := api.PostMessageContext(ctx, dest.Target, opts...)
	if err != nil {
		metrics.RecordDeliveryError(string(domain.PlatformSlack), classifySlackErr(err))
		return fail(err.Error()), nil
	}

	e.log.Info("slack export delivered", zap.String("channel", dest.Target), zap.String("ts", ts))
	return deliverable.ExportResult{Status: domain.DeliveryDelivered, ExternalID: ts}, nil
}

// deliverDMDraft looks up the user by email, opens a DM, and posts
// the draft with a banner noting its intended destination — ADR-032's
// platform-centric draft delivery for Slack.
func (e *SlackExporter) deliverDMDraft(ctx context.Context, api *goslack.Client, dest domain.Destination, content string) (deliverable.ExportResult, error) {
	userEmail := option(dest, "user_email", "")
	if userEmail == "" {
		return fail("dm_draft format requires user_email in options"), nil
	}

	user, err := api.GetUserByEmailContext(ctx, userEmail)
	if err != nil {
		metrics.RecordDeliveryError(string(domain.PlatformSlack), "not_found")
		return fail(fmt.Sprintf("could not find slack user for email %s: %s", userEmail, err)), nil
	}

	channel, _, _, err := api.OpenConversationContext(ctx, &goslack.OpenConversationParameters{Users: []string{user.ID}})
	if err != nil {
		metrics.RecordDeliveryError(string(domain.PlatformSlack), "transient")
		return fail("could not open DM channel: " + err.Error()), nil
	}

	title := firstLine(content)
	channelName := strings.TrimPrefix(dest.Target, "#")
	blocks := []goslack.Block{
		goslack.NewHeaderBlock(goslack.NewTextBlockObject(goslack.PlainTextType, "Draft ready for "+channelName, true, false)),
		goslack.NewDividerBlock(),
	}
	blocks = append(blocks, contentBlocks(title, content)...)
	blocks = append(blocks,
		goslack.NewDividerBlock(),
		goslack.NewContextBlock("", goslack.NewTextBlockObject(goslack.MarkdownType,
			fmt.Sprintf("This is a draft for %s. Copy the content above and paste it there when ready.", dest.Target), false, false)),
	)

	_, ts, err := api.PostMessageContext(ctx, channel.ID, goslack.MsgOptionBlocks(blocks...), goslack.MsgOptionText("Draft ready for "+channelName, false))
	if err != nil {
		metrics.RecordDeliveryError(string(domain.PlatformSlack), classifySlackErr(err))
		return fail(err.Error()), nil
	}

	return deliverable.ExportResult{Status: domain.DeliveryDelivered, ExternalID: ts}, nil
}

// contentBlocks renders content as a handful of Slack section blocks,
// truncated per Slack's 3000-char section text limit.
func contentBlocks(title, content string) []goslack.Block {
	const maxSection = 2900
	if len(content) > maxSection {
		content = content[:maxSection] + "…"
	}
	return []goslack.Block{
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, content, false, false), nil, nil),
	}
}

func classifySlackErr(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ratelimited"):
		return "rate_limited"
	case strings.Contains(msg, "not_in_channel"), strings.Contains(msg, "channel_not_found"):
		return "not_found"
	case strings.Contains(msg, "not_authed"), strings.Contains(msg, "invalid_auth"):
		return "auth"
	default:
		return "transient"
	}
}

func fail(msg string) deliverable.ExportResult {
	return deliverable.ExportResult{Status: domain.DeliveryFailed, Error: msg}
}
