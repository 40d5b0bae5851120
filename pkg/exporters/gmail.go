package exporters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"go.uber.org/zap"

	internalerrors "github.com/kvkthecreator/yarnnn/internal/errors"
	"github.com/kvkthecreator/yarnnn/pkg/deliverable"
	"github.com/kvkthecreator/yarnnn/pkg/domain"
	"github.com/kvkthecreator/yarnnn/pkg/metrics"
	sharedhttp "github.com/kvkthecreator/yarnnn/pkg/shared/http"
)

const gmailAPIBaseURL = "https://gmail.googleapis.com/gmail/v1"

// GmailExporter sends or drafts messages as the connected user via
// the Gmail REST API, refreshing the user's OAuth access token from
// their stored refresh token on every call — grounded on gmail.py's
// GmailExporter, reusing the oauth2 static-token idiom already
// established by pkg/platformsync/clients.GmailClient for the
// ingestion side.
type GmailExporter struct {
	creds        CredentialResolver
	oauthConfig  *oauth2.Config
	httpClient   *http.Client
	baseURL      string
	log          *zap.Logger
}

// NewGmailExporter builds a GmailExporter. clientID/clientSecret are
// the orchestrator's registered Google OAuth app credentials
// (internal/config's IntegrationsConfig).
func NewGmailExporter(creds CredentialResolver, clientID, clientSecret string, log *zap.Logger) *GmailExporter {
	return &GmailExporter{
		creds: creds,
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
		},
		httpClient: sharedhttp.NewClient(sharedhttp.DefaultClientConfig()),
		baseURL:    gmailAPIBaseURL,
		log:        log,
	}
}

// Export sends (format "send"/"html"), replies to a thread ("reply"),
// or creates a draft ("draft") in the recipient's Gmail account.
func (e *GmailExporter) Export(ctx context.Context, userID uuid.UUID, dest domain.Destination, content string) (deliverable.ExportResult, error) {
	if dest.Target == "" || !strings.Contains(dest.Target, "@") {
		return fail("no recipient email specified"), nil
	}

	creds, err := e.creds.Resolve(ctx, userID, domain.PlatformGmail)
	if err != nil || creds.RefreshToken == "" {
		metrics.RecordDeliveryError(string(domain.PlatformGmail), "auth")
		return fail("missing refresh token — reconnect gmail in settings"), nil
	}

	tokenSource := e.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
	token, err := tokenSource.Token()
	if err != nil {
		metrics.RecordDeliveryError(string(domain.PlatformGmail), "auth")
		return fail("could not refresh gmail access token: " + err.Error()), nil
	}

	format := dest.Format
	if format == "" {
		format = "send"
	}
	if format == "reply" && option(dest, "thread_id", "") == "" {
		return fail("reply format requires thread_id in options"), nil
	}

	subject := option(dest, "subject", firstLine(content))
	useHTML := format == "html"
	body := content
	if useHTML {
		body = renderHTML(subject, content)
	}

	raw := buildRFC2822(dest.Target, subject, body, useHTML)
	threadID := ""
	if format == "reply" {
		threadID = option(dest, "thread_id", "")
	}

	var result deliverable.ExportResult
	if format == "draft" {
		result, err = e.createDraft(ctx, token.AccessToken, raw, threadID)
	} else {
		result, err = e.sendMessage(ctx, token.AccessToken, raw, threadID)
	}
	if err != nil {
		metrics.RecordDeliveryError(string(domain.PlatformGmail), classifyErr(err))
		return fail(err.Error()), nil
	}

	e.log.Info("gmail export delivered", zap.String("recipient", dest.Target), zap.String("format", format))
	return result, nil
}

func (e *GmailExporter) createDraft(ctx context.Context, accessToken, raw, threadID string) (deliverable.ExportResult, error) {
	body := map[string]any{"message": messagePayload(raw, threadID)}
	var resp struct {
		ID string `json:"id"`
	}
	if err := e.do(ctx, accessToken, http.MethodPost, "/users/me/drafts", body, &resp); err != nil {
		return deliverable.ExportResult{}, err
	}
	return deliverable.ExportResult{Status: domain.DeliveryDelivered, ExternalID: resp.ID}, nil
}

func (e *GmailExporter) sendMessage(ctx context.Context, accessToken, raw, threadID string) (deliverable.ExportResult, error) {
	body := messagePayload(raw, threadID)
	var resp struct {
		ID string `json:"id"`
	}
	if err := e.do(ctx, accessToken, http.MethodPost, "/users/me/messages/send", body, &resp); err != nil {
		return deliverable.ExportResult{}, err
	}
	return deliverable.ExportResult{Status: domain.DeliveryDelivered, ExternalID: resp.ID}, nil
}

func messagePayload(raw, threadID string) map[string]any {
	payload := map[string]any{"raw": raw}
	if threadID != "" {
		payload["threadId"] = threadID
	}
	return payload
}

// buildRFC2822 builds a minimal RFC 2822 message, base64url-encoded as
// Gmail's API requires.
func buildRFC2822(to, subject, body string, isHTML bool) string {
	contentType := "text/plain; charset=UTF-8"
	if isHTML {
		contentType = "text/html; charset=UTF-8"
	}
	msg := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: %s\r\n\r\n%s", to, subject, contentType, body)
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(msg))
}

func (e *GmailExporter) do(ctx context.Context, accessToken, method, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode gmail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, strings.NewReader(string(encoded)))
	if err != nil {
		return fmt.Errorf("failed to build gmail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := e.httpClient.Do(req)
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

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gmail response: %w", err)
	}
	return nil
}
