package deliverable

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
)

// ExportResult is one destination's delivery outcome (spec §4.4 Step
// 6: "{status, external_id?, external_url?, error?}").
type ExportResult struct {
	Status      domain.DeliveryStatus
	ExternalID  string
	ExternalURL string
	Error       string
}

// Exporter delivers rendered content to one destination platform.
// Satisfied by pkg/exporters' registry entries, passed in as an
// interface so pkg/deliverable never imports pkg/exporters directly.
type Exporter interface {
	Export(ctx context.Context, userID uuid.UUID, dest domain.Destination, content string) (ExportResult, error)
}

// ExporterRegistry resolves an Exporter by destination platform.
type ExporterRegistry interface {
	Get(platform domain.Platform) (Exporter, bool)
}

// UserEmailLookup resolves a user's registered email for the
// email-first delivery fallback (spec §4.4 Step 6).
type UserEmailLookup interface {
	Email(ctx context.Context, userID uuid.UUID) (string, error)
}

// Deliverer implements spec §4.4 Step 6: normalize the destination
// list, dispatch each to its exporter, and roll up a version-level
// DeliveryStatus.
type Deliverer struct {
	registry ExporterRegistry
	emails   UserEmailLookup
}

// NewDeliverer wires a Deliverer to its exporter registry and email
// lookup.
func NewDeliverer(registry ExporterRegistry, emails UserEmailLookup) *Deliverer {
	return &Deliverer{registry: registry, emails: emails}
}

// Deliver normalizes dest (falling back to the user's email when
// missing or incomplete) and dispatches, returning the per-destination
// logs and the rolled-up status: delivered (all ok), partial, or
// failed.
func (d *Deliverer) Deliver(ctx context.Context, userID uuid.UUID, dest domain.Destination, content string) ([]domain.DestinationDeliveryLog, domain.DeliveryStatus) {
	destinations := d.normalize(ctx, userID, []domain.Destination{dest})
	if len(destinations) == 0 {
		return nil, domain.DeliveryFailed
	}

	var logs []domain.DestinationDeliveryLog
	okCount := 0
	for _, target := range destinations {
		log := domain.DestinationDeliveryLog{ID: uuid.New(), Destination: target, AttemptedAt: time.Now()}

		exporter, ok := d.registry.Get(target.Platform)
		if !ok {
			log.Status = domain.DeliveryFailed
			log.Error = fmt.Sprintf("no exporter registered for platform %q", target.Platform)
			logs = append(logs, log)
			continue
		}

		result, err := exporter.Export(ctx, userID, target, content)
		if err != nil {
			log.Status = domain.DeliveryFailed
			log.Error = err.Error()
			logs = append(logs, log)
			continue
		}

		log.Status = result.Status
		log.ExternalID = result.ExternalID
		log.ExternalURL = result.ExternalURL
		log.Error = result.Error
		logs = append(logs, log)
		if result.Status == domain.DeliveryDelivered {
			okCount++
		}
	}

	switch {
	case okCount == len(logs):
		return logs, domain.DeliveryDelivered
	case okCount == 0:
		return logs, domain.DeliveryFailed
	default:
		return logs, domain.DeliveryPartial
	}
}

// normalize expands a single Destination into its multi-destination
// list (currently always one entry — spec §4.4 allows a destination to
// be a list, modeled at the caller via repeated Destination values) and
// falls back to the user's registered email when a destination has no
// usable target.
func (d *Deliverer) normalize(ctx context.Context, userID uuid.UUID, destinations []domain.Destination) []domain.Destination {
	var out []domain.Destination
	for _, dest := range destinations {
		if dest.Target != "" && dest.Target != "dm" {
			out = append(out, dest)
			continue
		}
		if d.emails == nil {
			continue
		}
		email, err := d.emails.Email(ctx, userID)
		if err != nil || email == "" {
			continue
		}
		out = append(out, domain.Destination{Platform: domain.PlatformEmail, Target: email, Format: "send"})
	}
	return out
}
