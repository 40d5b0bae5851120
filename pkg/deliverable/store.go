// Package deliverable implements the deliverable execution engine
// (spec §4.4): freshness check, strategy-based context gathering,
// bounded headless generation, and exporter-backed delivery.
package deliverable

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/pkg/domain"
	sharederrors "github.com/kvkthecreator/yarnnn/pkg/shared/errors"
)

// Store is the persistence port for deliverables, their versions, and
// work tickets. PostgresStore is the production implementation;
// package tests use an in-memory fake.
type Store interface {
	Due(ctx context.Context, now time.Time) ([]domain.Deliverable, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]domain.Deliverable, error)
	CreateSignalEmergent(ctx context.Context, userID uuid.UUID, deliverableType, title, description string, sources []domain.DeliverableSource) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Deliverable, error)
	SetNextRunAt(ctx context.Context, id uuid.UUID, at time.Time) error

	NextVersionNumber(ctx context.Context, deliverableID uuid.UUID) (int, error)
	CreateVersion(ctx context.Context, v domain.DeliverableVersion) error
	UpdateVersionContent(ctx context.Context, versionID uuid.UUID, draft, final string) error
	FinalizeVersion(ctx context.Context, versionID uuid.UUID, status domain.VersionStatus, delivery domain.DeliveryStatus, deliveredAt *time.Time) error
	RecordSourceSnapshots(ctx context.Context, versionID uuid.UUID, snapshots []domain.SourceSnapshot) error
	RecentVersions(ctx context.Context, deliverableID uuid.UUID, limit int) ([]domain.DeliverableVersion, error)

	CreateTicket(ctx context.Context, ticket domain.WorkTicket) error
	CompleteTicket(ctx context.Context, ticketID uuid.UUID) error
	FailTicket(ctx context.Context, ticketID uuid.UUID, errMsg string) error

	RecordDelivery(ctx context.Context, log domain.DestinationDeliveryLog) error

	// PendingReviews counts versions awaiting user action (draft or
	// suggested) across all of userID's deliverables — part of the
	// working-memory system summary (spec §4.5).
	PendingReviews(ctx context.Context, userID uuid.UUID) (int, error)
}

// PostgresStore is the production Store backed by pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPostgresStore wraps a connection pool.
func NewPostgresStore(pool *pgxpool.Pool, log *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, log: log}
}

func (s *PostgresStore) Due(ctx context.Context, now time.Time) ([]domain.Deliverable, error) {
	const stmt = `
SELECT id, user_id, title, description, deliverable_type, type_classification, schedule,
       sources, destination, trigger_type, origin, status, next_run_at, created_at
FROM deliverables
WHERE status = $1 AND next_run_at <= $2
ORDER BY next_run_at ASC`
	rows, err := s.pool.Query(ctx, stmt, domain.DeliverableActive, now)
	if err != nil {
		return nil, sharederrors.FailedToOn("query due deliverables", "deliverable", "", err)
	}
	defer rows.Close()
	return scanDeliverables(rows)
}

func (s *PostgresStore) ListActive(ctx context.Context, userID uuid.UUID) ([]domain.Deliverable, error) {
	const stmt = `
SELECT id, user_id, title, description, deliverable_type, type_classification, schedule,
       sources, destination, trigger_type, origin, status, next_run_at, created_at
FROM deliverables
WHERE user_id = $1 AND status != $2`
	rows, err := s.pool.Query(ctx, stmt, userID, domain.DeliverablePaused)
	if err != nil {
		return nil, sharederrors.FailedToOn("list active deliverables", "deliverable", userID.String(), err)
	}
	defer rows.Close()
	return scanDeliverables(rows)
}

func (s *PostgresStore) CreateSignalEmergent(ctx context.Context, userID uuid.UUID, deliverableType, title, description string, sources []domain.DeliverableSource) (uuid.UUID, error) {
	id := uuid.New()
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return uuid.Nil, sharederrors.FailedToOn("marshal deliverable sources", "deliverable", deliverableType, err)
	}
	classification, _ := json.Marshal(domain.TypeClassification{Binding: domain.BindingCrossPlatform})
	schedule, _ := json.Marshal(domain.Schedule{Frequency: domain.FrequencyDaily, Time: "09:00", Timezone: "UTC"})
	const stmt = `
INSERT INTO deliverables
	(id, user_id, title, description, deliverable_type, type_classification, schedule, sources, destination, trigger_type, origin, status, next_run_at, created_at)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, '{}', $9, $10, $11, $12, $13)`
	now := time.Now()
	if _, err := s.pool.Exec(ctx, stmt, id, userID, title, description, deliverableType, classification, schedule, sourcesJSON,
		domain.TriggerSchedule, domain.OriginSignalEmergent, domain.DeliverableActive, now, now); err != nil {
		return uuid.Nil, sharederrors.FailedToOn("create signal-emergent deliverable", "deliverable", deliverableType, err)
	}
	return id, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*domain.Deliverable, error) {
	const stmt = `
SELECT id, user_id, title, description, deliverable_type, type_classification, schedule,
       sources, destination, trigger_type, origin, status, next_run_at, created_at
FROM deliverables WHERE id = $1`
	row := s.pool.QueryRow(ctx, stmt, id)
	d, err := scanDeliverable(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, sharederrors.FailedToOn("get deliverable", "deliverable", id.String(), err)
	}
	return d, nil
}

func (s *PostgresStore) SetNextRunAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	const stmt = `UPDATE deliverables SET next_run_at = $2 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, stmt, id, at); err != nil {
		return sharederrors.FailedToOn("set next_run_at", "deliverable", id.String(), err)
	}
	return nil
}

func (s *PostgresStore) NextVersionNumber(ctx context.Context, deliverableID uuid.UUID) (int, error) {
	const stmt = `SELECT COALESCE(MAX(version_number), 0) + 1 FROM deliverable_versions WHERE deliverable_id = $1`
	var n int
	if err := s.pool.QueryRow(ctx, stmt, deliverableID).Scan(&n); err != nil {
		return 0, sharederrors.FailedToOn("compute next version number", "deliverable", deliverableID.String(), err)
	}
	return n, nil
}

func (s *PostgresStore) CreateVersion(ctx context.Context, v domain.DeliverableVersion) error {
	const stmt = `
INSERT INTO deliverable_versions
	(id, deliverable_id, version_number, status, draft_content, final_content, delivery_status, created_at)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := s.pool.Exec(ctx, stmt, v.ID, v.DeliverableID, v.VersionNumber, v.Status, v.DraftContent, v.FinalContent, v.DeliveryStatus, v.CreatedAt); err != nil {
		return sharederrors.FailedToOn("create deliverable version", "deliverable", v.DeliverableID.String(), err)
	}
	return nil
}

func (s *PostgresStore) UpdateVersionContent(ctx context.Context, versionID uuid.UUID, draft, final string) error {
	const stmt = `UPDATE deliverable_versions SET draft_content = $2, final_content = $3 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, stmt, versionID, draft, final); err != nil {
		return sharederrors.FailedToOn("update version content", "deliverable", versionID.String(), err)
	}
	return nil
}

func (s *PostgresStore) FinalizeVersion(ctx context.Context, versionID uuid.UUID, status domain.VersionStatus, delivery domain.DeliveryStatus, deliveredAt *time.Time) error {
	const stmt = `UPDATE deliverable_versions SET status = $2, delivery_status = $3, delivered_at = $4 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, stmt, versionID, status, delivery, deliveredAt); err != nil {
		return sharederrors.FailedToOn("finalize version", "deliverable", versionID.String(), err)
	}
	return nil
}

func (s *PostgresStore) RecordSourceSnapshots(ctx context.Context, versionID uuid.UUID, snapshots []domain.SourceSnapshot) error {
	payload, err := json.Marshal(snapshots)
	if err != nil {
		return sharederrors.FailedToOn("marshal source snapshots", "deliverable", versionID.String(), err)
	}
	const stmt = `UPDATE deliverable_versions SET source_snapshots = $2 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, stmt, versionID, payload); err != nil {
		return sharederrors.FailedToOn("record source snapshots", "deliverable", versionID.String(), err)
	}
	return nil
}

func (s *PostgresStore) RecentVersions(ctx context.Context, deliverableID uuid.UUID, limit int) ([]domain.DeliverableVersion, error) {
	const stmt = `
SELECT id, deliverable_id, version_number, status, draft_content, final_content, delivery_status, created_at
FROM deliverable_versions
WHERE deliverable_id = $1
ORDER BY version_number DESC
LIMIT $2`
	rows, err := s.pool.Query(ctx, stmt, deliverableID, limit)
	if err != nil {
		return nil, sharederrors.FailedToOn("list recent versions", "deliverable", deliverableID.String(), err)
	}
	defer rows.Close()

	var out []domain.DeliverableVersion
	for rows.Next() {
		var v domain.DeliverableVersion
		if err := rows.Scan(&v.ID, &v.DeliverableID, &v.VersionNumber, &v.Status, &v.DraftContent, &v.FinalContent, &v.DeliveryStatus, &v.CreatedAt); err != nil {
			return nil, sharederrors.FailedToOn("scan deliverable version", "deliverable", deliverableID.String(), err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateTicket(ctx context.Context, ticket domain.WorkTicket) error {
	const stmt = `
INSERT INTO work_tickets (id, deliverable_id, deliverable_version_id, status, started_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, stmt, ticket.ID, ticket.DeliverableID, ticket.DeliverableVersionID, ticket.Status, ticket.StartedAt); err != nil {
		return sharederrors.FailedToOn("create work ticket", "deliverable", ticket.DeliverableID.String(), err)
	}
	return nil
}

func (s *PostgresStore) CompleteTicket(ctx context.Context, ticketID uuid.UUID) error {
	const stmt = `UPDATE work_tickets SET status = $2, completed_at = $3 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, stmt, ticketID, domain.TicketCompleted, time.Now()); err != nil {
		return sharederrors.FailedToOn("complete work ticket", "deliverable", ticketID.String(), err)
	}
	return nil
}

func (s *PostgresStore) FailTicket(ctx context.Context, ticketID uuid.UUID, errMsg string) error {
	const stmt = `UPDATE work_tickets SET status = $2, completed_at = $3, error_message = $4 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, stmt, ticketID, domain.TicketFailed, time.Now(), errMsg); err != nil {
		return sharederrors.FailedToOn("fail work ticket", "deliverable", ticketID.String(), err)
	}
	return nil
}

func (s *PostgresStore) RecordDelivery(ctx context.Context, log domain.DestinationDeliveryLog) error {
	const stmt = `
INSERT INTO destination_delivery_log (id, version_id, destination, status, external_id, external_url, error, attempted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	destJSON, err := json.Marshal(log.Destination)
	if err != nil {
		return sharederrors.FailedToOn("marshal delivery destination", "deliverable", log.VersionID.String(), err)
	}
	if _, err := s.pool.Exec(ctx, stmt, log.ID, log.VersionID, destJSON, log.Status, log.ExternalID, log.ExternalURL, log.Error, log.AttemptedAt); err != nil {
		return sharederrors.FailedToOn("record destination delivery", "deliverable", log.VersionID.String(), err)
	}
	return nil
}

func (s *PostgresStore) PendingReviews(ctx context.Context, userID uuid.UUID) (int, error) {
	const stmt = `
SELECT COUNT(*)
FROM deliverable_versions v
JOIN deliverables d ON d.id = v.deliverable_id
WHERE d.user_id = $1 AND v.status IN ($2, $3)`
	var count int
	if err := s.pool.QueryRow(ctx, stmt, userID, domain.VersionDraft, domain.VersionSuggested).Scan(&count); err != nil {
		return 0, sharederrors.FailedToOn("count pending reviews", "deliverable", userID.String(), err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeliverable(row rowScanner) (*domain.Deliverable, error) {
	var d domain.Deliverable
	var classification, schedule, sources, destination []byte
	if err := row.Scan(&d.ID, &d.UserID, &d.Title, &d.Description, &d.DeliverableType, &classification, &schedule,
		&sources, &destination, &d.TriggerType, &d.Origin, &d.Status, &d.NextRunAt, &d.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(classification, &d.TypeClassification); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(schedule, &d.Schedule); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sources, &d.Sources); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(destination, &d.Destination); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDeliverables(rows pgx.Rows) ([]domain.Deliverable, error) {
	var out []domain.Deliverable
	for rows.Next() {
		d, err := scanDeliverable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
