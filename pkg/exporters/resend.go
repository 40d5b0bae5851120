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

const resendAPIURL = "https://api.resend.com/emails"

// EmailExporter delivers via the Resend API using a server-side API
// key rather than per-user OAuth — the default, always-available
// delivery channel (ADR-066 in the original: "email-first delivery").
// Unlike GmailExporter, no CredentialResolver lookup is needed.
type EmailExporter struct {
	apiKey      string
	fromAddress string
	httpClient  *http.Client
	log         *zap.Logger
}

// NewEmailExporter builds an EmailExporter against the Resend API.
func NewEmailExporter(apiKey, fromAddress string, log *zap.Logger) *EmailExporter {
	return &EmailExporter{
		apiKey:      apiKey,
		fromAddress: fromAddress,
		httpClient:  sharedhttp.NewClient(sharedhttp.DefaultClientConfig()),
		log:         log,
	}
}

// Export renders content to HTML (falling back to a preformatted
// block on render failure, matching resend.py's exception handling)
// and POSTs it via Resend.
func (e *EmailExporter) Export(ctx context.Context, userID uuid.UUID, dest domain.Destination, content string) (deliverable.ExportResult, error) {
	if dest.Target == "" {
		return fail("no recipient email specified"), nil
	}
	if e.apiKey == "" {
		metrics.RecordDeliveryError(string(domain.PlatformEmail), "auth")
		return fail("RESEND_API_KEY not configured"), nil
	}

	subject := option(dest, "subject", firstLine(content))
	html := renderHTML(subject, content)

	payload := map[string]any{
		"from":    e.fromAddress,
		"to":      []string{dest.Target},
		"subject": subject,
		"html":    html,
		"text":    content,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fail("failed to encode resend request: " + err.Error()), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendAPIURL, bytes.NewReader(encoded))
	if err != nil {
		return fail("failed to build resend request: " + err.Error()), nil
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		metrics.RecordDeliveryError(string(domain.PlatformEmail), "transient")
		return fail(internalerrors.Transient("resend request", err).Error()), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errType := "unknown"
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			errType = "transient"
		} else if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			errType = "auth"
		}
		metrics.RecordDeliveryError(string(domain.PlatformEmail), errType)
		return fail(fmt.Sprintf("resend delivery failed with status %d", resp.StatusCode)), nil
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fail("failed to decode resend response: " + err.Error()), nil
	}

	e.log.Info("email export delivered", zap.String("recipient", dest.Target), zap.String("message_id", result.ID))
	return deliverable.ExportResult{Status: domain.DeliveryDelivered, ExternalID: result.ID}, nil
}
