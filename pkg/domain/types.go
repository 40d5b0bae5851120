// Package domain holds the shared entity types for the orchestrator:
// platform connections, content, deliverables, versions, tickets and
// signal history. Keeping them in one package avoids import cycles
// between the components that read and write them (content cache,
// sync engine, signal orchestrator, deliverable engine).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tier is a user's subscription tier, which drives platform sync
// cadence (see pkg/platformsync).
type Tier string

const (
	TierFree    Tier = "free"
	TierStarter Tier = "starter"
	TierPro     Tier = "pro"
)

// User is the account the rest of the domain model hangs off of.
type User struct {
	ID       uuid.UUID
	Email    string
	Tier     Tier
	Timezone string
}

// ConnectionStatus is the lifecycle state of a PlatformConnection.
type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionError        ConnectionStatus = "error"
)

// Platform identifies a connected provider.
type Platform string

const (
	PlatformSlack    Platform = "slack"
	PlatformGmail    Platform = "gmail"
	PlatformNotion   Platform = "notion"
	PlatformCalendar Platform = "calendar"

	// PlatformEmail is the server-side, no-OAuth delivery channel
	// (Resend). It is the default destination fallback: unlike
	// PlatformGmail it never requires the user's own Google
	// connection, so every user can receive deliverables by email.
	PlatformEmail Platform = "email"

	// PlatformDownload has no external delivery target; the rendered
	// content is handed back for the caller to save locally.
	PlatformDownload Platform = "download"
)

// Resource is one entry in a Landscape's catalog: a channel, label,
// page or calendar the provider exposes.
type Resource struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Kind     string            `json:"kind,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Landscape is a per-connection catalog of resources plus the user's
// selection. Invariant: SelectedSources must be a subset of Resources'
// IDs; UpsertLandscape is responsible for enforcing that on every write.
type Landscape struct {
	Resources       []Resource `json:"resources"`
	SelectedSources []string   `json:"selected_sources"`
}

// Prune returns a copy of selected with any ID no longer present in
// resources removed, preserving input order. It is pure so callers can
// unit test the pruning rule independent of storage.
func (l Landscape) Prune(current []string) []string {
	known := make(map[string]struct{}, len(l.Resources))
	for _, r := range l.Resources {
		known[r.ID] = struct{}{}
	}
	pruned := make([]string, 0, len(current))
	for _, id := range current {
		if _, ok := known[id]; ok {
			pruned = append(pruned, id)
		}
	}
	return pruned
}

// PlatformConnection is a (user_id, platform) unique credential + state
// record. Credentials are stored encrypted; decryption happens only
// inside pkg/platformsync/clients via the token manager.
type PlatformConnection struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	Platform              Platform
	EncryptedAccessToken  string
	EncryptedRefreshToken string
	TeamID                string
	AuthedUserID          string
	LandingTargets        map[string]string
	Status                ConnectionStatus
	LastSyncedAt          *time.Time
	Landscape             Landscape
	LandscapeDiscoveredAt *time.Time
}

// SyncRegistryEntry records per-resource freshness, keyed by
// (user_id, platform, resource_id).
type SyncRegistryEntry struct {
	UserID         uuid.UUID
	Platform       Platform
	ResourceID     string
	LastSyncedAt   time.Time
	ItemCount      int
	SourceLatestAt *time.Time
	Cursor         string
}

// ContentType classifies a PlatformContent row.
type ContentType string

const (
	ContentMessage ContentType = "message"
	ContentEmail   ContentType = "email"
	ContentPage    ContentType = "page"
	ContentEvent   ContentType = "event"
)

// PlatformContent is one row of the unified content cache, unique per
// (user_id, platform, resource_id, external_id).
type PlatformContent struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Platform       Platform
	ResourceID     string
	ExternalID     string
	Content        string
	ContentType    ContentType
	Metadata       map[string]any
	SourceTime     time.Time
	FetchedAt      time.Time
	Retained       bool
	ExpiresAt      time.Time
}

// Live reports whether the row is visible to queries: retained, or not
// yet expired.
func (c PlatformContent) Live(now time.Time) bool {
	return c.Retained || c.ExpiresAt.After(now)
}

// ContextSource is the provenance of a UserContext entry. Lower-index
// sources dominate higher-index ones on write (see Priority).
type ContextSource string

const (
	SourceUserStated  ContextSource = "user_stated"
	SourceConversation ContextSource = "conversation"
	SourceFeedback    ContextSource = "feedback"
	SourcePattern     ContextSource = "pattern"
)

// contextPriority orders sources from strongest to weakest. A write
// from a weaker source must never overwrite a value set by a stronger
// one (spec §3).
var contextPriority = map[ContextSource]int{
	SourceUserStated:   0,
	SourceConversation:  1,
	SourceFeedback:      2,
	SourcePattern:       3,
}

// Priority returns a source's rank; lower is stronger.
func Priority(s ContextSource) int {
	if p, ok := contextPriority[s]; ok {
		return p
	}
	return len(contextPriority) // unknown sources are weakest
}

// Dominates reports whether source a is at least as strong as source b,
// i.e. a write from a is allowed to overwrite an existing value from b.
func Dominates(a, b ContextSource) bool {
	return Priority(a) <= Priority(b)
}

// UserContext is a (user_id, key) unique memory entry.
type UserContext struct {
	UserID     uuid.UUID
	Key        string
	Value      string
	Source     ContextSource
	Confidence float64
	UpdatedAt  time.Time
}

// Binding is the context-gathering strategy a Deliverable's
// TypeClassification selects.
type Binding string

const (
	BindingPlatform      Binding = "platform_bound"
	BindingCrossPlatform Binding = "cross_platform"
	BindingResearch      Binding = "research"
	BindingHybrid        Binding = "hybrid"
)

// TypeClassification carries binding plus freshness hints.
type TypeClassification struct {
	Binding                 Binding  `json:"binding"`
	PrimaryPlatform         Platform `json:"primary_platform,omitempty"`
	FreshnessRequirementHrs float64  `json:"freshness_requirement_hours,omitempty"`
}

// ScheduleFrequency is the recurrence unit of a Schedule.
type ScheduleFrequency string

const (
	FrequencyDaily   ScheduleFrequency = "daily"
	FrequencyWeekly  ScheduleFrequency = "weekly"
	FrequencyMonthly ScheduleFrequency = "monthly"
)

// Schedule is the single JSON schedule representation spec §9 mandates
// in place of the original's dual schedule_*/frequency_* columns.
type Schedule struct {
	Frequency ScheduleFrequency `json:"frequency"`
	Day       string            `json:"day,omitempty"`  // weekday name for weekly, day-of-month for monthly
	Time      string            `json:"time"`           // "HH:MM"
	Timezone  string            `json:"timezone"`
}

// SourceKind is the kind of a Deliverable source entry.
type SourceKind string

const (
	SourceIntegrationImport SourceKind = "integration_import"
	SourceDocument          SourceKind = "document"
	SourceDescription       SourceKind = "description"
)

// DeliverableSource is one entry of Deliverable.Sources.
type DeliverableSource struct {
	Type       SourceKind `json:"type"`
	Provider   Platform   `json:"provider,omitempty"`
	ResourceID string     `json:"resource_id,omitempty"`
}

// Destination describes where and how a version is delivered. A
// Deliverable may target one Destination or (via Destinations on the
// version-time delivery call) several.
type Destination struct {
	Platform Platform          `json:"platform"`
	Target   string            `json:"target"`
	Format   string            `json:"format,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
}

// TriggerType distinguishes schedule-driven from manually-triggered runs.
type TriggerType string

const (
	TriggerSchedule TriggerType = "schedule"
	TriggerManual   TriggerType = "manual"
)

// Origin records who/what created a Deliverable.
type Origin string

const (
	OriginUserCreated    Origin = "user_created"
	OriginSignalEmergent Origin = "signal_emergent"
	OriginSuggested      Origin = "suggested"
)

// DeliverableStatus gates whether the scheduler will run it.
type DeliverableStatus string

const (
	DeliverableActive    DeliverableStatus = "active"
	DeliverablePaused    DeliverableStatus = "paused"
	DeliverableSuggested DeliverableStatus = "suggested"
)

// Deliverable is a recurring or one-shot artifact spec.
type Deliverable struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	Title              string
	Description        string
	DeliverableType    string
	TypeClassification TypeClassification
	Schedule           Schedule
	Sources            []DeliverableSource
	Destination        Destination
	TriggerType        TriggerType
	Origin             Origin
	Status             DeliverableStatus
	NextRunAt          time.Time
	CreatedAt          time.Time
}

// VersionStatus is the lifecycle state of a DeliverableVersion.
type VersionStatus string

const (
	VersionGenerating VersionStatus = "generating"
	VersionDelivered  VersionStatus = "delivered"
	VersionFailed     VersionStatus = "failed"
	VersionSuggested  VersionStatus = "suggested"
	VersionDraft      VersionStatus = "draft"
)

// DeliveryStatus is the outcome of the delivery step, independent of
// VersionStatus (a version can be "delivered" content-wise while its
// delivery is still "delivering").
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliveryDelivering DeliveryStatus = "delivering"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryPartial    DeliveryStatus = "partial"
	DeliveryFailed     DeliveryStatus = "failed"
)

// SourceSnapshot records, per source, the freshness state observed at
// generation time.
type SourceSnapshot struct {
	Platform   Platform  `json:"platform"`
	ResourceID string    `json:"resource_id"`
	SyncedAt   time.Time `json:"synced_at"`
	Stale      bool      `json:"stale"`
}

// DeliverableVersion is one generated instance of a Deliverable.
type DeliverableVersion struct {
	ID                uuid.UUID
	DeliverableID     uuid.UUID
	VersionNumber     int
	Status            VersionStatus
	DraftContent      string
	FinalContent      string
	DeliveryStatus    DeliveryStatus
	DeliveryExternalID  string
	DeliveryExternalURL string
	DeliveryError       string
	SourceSnapshots   []SourceSnapshot
	PlatformContentIDs []uuid.UUID
	DeliveredAt       *time.Time
	CreatedAt         time.Time
}

// Terminal reports whether the version's delivery has reached a state
// after which it is immutable (spec §3: "immutable after terminal state").
func (v DeliverableVersion) Terminal() bool {
	return v.DeliveryStatus == DeliveryDelivered ||
		v.DeliveryStatus == DeliveryPartial ||
		v.DeliveryStatus == DeliveryFailed
}

// DestinationDeliveryLog is a supplemental entity (see SPEC_FULL.md §C)
// recording one delivery attempt per (version, destination) pair,
// independent of the version's rolled-up DeliveryStatus.
type DestinationDeliveryLog struct {
	ID          uuid.UUID
	VersionID   uuid.UUID
	Destination Destination
	Status      DeliveryStatus
	ExternalID  string
	ExternalURL string
	Error       string
	AttemptedAt time.Time
}

// WorkTicketStatus is the lifecycle state of a WorkTicket.
type WorkTicketStatus string

const (
	TicketPending   WorkTicketStatus = "pending"
	TicketRunning   WorkTicketStatus = "running"
	TicketCompleted WorkTicketStatus = "completed"
	TicketFailed    WorkTicketStatus = "failed"
)

// WorkTicket is one per generation. Per ADR-042 (spec §3), DependsOn is
// always empty — there is no ticket chaining, and exactly one ticket
// exists per version.
type WorkTicket struct {
	ID                    uuid.UUID
	DeliverableID         uuid.UUID
	DeliverableVersionID  uuid.UUID
	Status                WorkTicketStatus
	StartedAt             *time.Time
	CompletedAt           *time.Time
	ErrorMessage          string
}

// SignalHistory is a dedupe record preventing re-triggering off the
// same signal within a configured window.
type SignalHistory struct {
	UserID          uuid.UUID
	DeliverableType string
	SignalRef       string
	CreatedAt       time.Time
}

// ActivityEventType enumerates the append-only activity log's event
// kinds (spec §6).
type ActivityEventType string

const (
	EventPlatformSynced      ActivityEventType = "platform_synced"
	EventSignalProcessed     ActivityEventType = "signal_processed"
	EventDeliverableRun      ActivityEventType = "deliverable_run"
	EventSchedulerHeartbeat  ActivityEventType = "scheduler_heartbeat"
	EventMemoryWritten       ActivityEventType = "memory_written"
	EventPlatformSyncFailed  ActivityEventType = "platform_sync_failed"
	EventSchedulerDropped    ActivityEventType = "scheduler_dropped"
)

// ActivityEvent is one append-only row.
type ActivityEvent struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	EventType ActivityEventType
	Summary   string
	Metadata  map[string]any
	CreatedAt time.Time
}
