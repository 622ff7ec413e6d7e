package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/atelier-erp/atelier/internal/platform/id"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

const shipmentColumns = `id, sale_id, courier, tracking_code, status,
	last_checked_at, next_check_at, check_attempts, last_error, created_at, updated_at`

// CreateShipment inserts one shipment record. A sale carries at most
// one shipment.
func (s *Store) CreateShipment(ctx context.Context, shipment domain.Shipment) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	shipmentID := strings.TrimSpace(shipment.ID)
	if shipmentID == "" {
		return fmt.Errorf("shipment id is required")
	}
	if strings.TrimSpace(shipment.SaleID) == "" {
		return fmt.Errorf("shipment sale id is required")
	}
	if strings.TrimSpace(shipment.TrackingCode) == "" {
		return fmt.Errorf("shipment tracking code is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO shipments (
		   id, sale_id, courier, tracking_code, status,
		   last_checked_at, next_check_at, check_attempts, last_error,
		   created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		shipmentID, shipment.SaleID, shipment.Courier, shipment.TrackingCode,
		shipment.Status.String(), toMillisPtr(shipment.LastCheckedAt),
		toMillis(shipment.NextCheckAt), shipment.CheckAttempts, shipment.LastError,
		toMillis(shipment.CreatedAt), toMillis(shipment.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "shipments.sale_id") {
			return fmt.Errorf("sale %s shipment: %w", shipment.SaleID, storage.ErrAlreadyExists)
		}
		if isUniqueViolation(err, "shipments.id") {
			return fmt.Errorf("shipment %s: %w", shipmentID, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("create shipment: %w", err)
	}
	return nil
}

func scanShipment(row rowScanner) (domain.Shipment, error) {
	var shipment domain.Shipment
	var status string
	var lastCheckedAt sql.NullInt64
	var nextCheckAt, createdAt, updatedAt int64
	err := row.Scan(
		&shipment.ID, &shipment.SaleID, &shipment.Courier, &shipment.TrackingCode,
		&status, &lastCheckedAt, &nextCheckAt, &shipment.CheckAttempts,
		&shipment.LastError, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Shipment{}, err
	}
	shipment.Status, err = domain.ParseShipmentStatus(status)
	if err != nil {
		return domain.Shipment{}, fmt.Errorf("shipment %s: %w", shipment.ID, err)
	}
	shipment.LastCheckedAt = fromMillisPtr(lastCheckedAt)
	shipment.NextCheckAt = fromMillis(nextCheckAt)
	shipment.CreatedAt = fromMillis(createdAt)
	shipment.UpdatedAt = fromMillis(updatedAt)
	return shipment, nil
}

// GetShipment loads one shipment by ID.
func (s *Store) GetShipment(ctx context.Context, shipmentID string) (domain.Shipment, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Shipment{}, err
	}
	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" {
		return domain.Shipment{}, fmt.Errorf("shipment id is required")
	}

	shipment, err := scanShipment(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE id = ?`, shipmentID,
	))
	if err == sql.ErrNoRows {
		return domain.Shipment{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Shipment{}, fmt.Errorf("get shipment: %w", err)
	}
	return shipment, nil
}

// GetShipmentBySale loads the shipment attached to a sale.
func (s *Store) GetShipmentBySale(ctx context.Context, saleID string) (domain.Shipment, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Shipment{}, err
	}
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.Shipment{}, fmt.Errorf("sale id is required")
	}

	shipment, err := scanShipment(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE sale_id = ?`, saleID,
	))
	if err == sql.ErrNoRows {
		return domain.Shipment{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Shipment{}, fmt.Errorf("get shipment by sale: %w", err)
	}
	return shipment, nil
}

// ListShipments pages through shipments ordered by ID, optionally
// narrowed to one status.
func (s *Store) ListShipments(ctx context.Context, status domain.ShipmentStatus, pageSize int, pageToken string) (storage.ShipmentPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ShipmentPage{}, err
	}
	if pageSize <= 0 {
		return storage.ShipmentPage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	where := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if pageToken != "" {
		where = append(where, "id > ?")
		args = append(args, pageToken)
	}
	if status != domain.ShipmentStatusUnspecified {
		where = append(where, "status = ?")
		args = append(args, status.String())
	}
	sqlQuery := `SELECT ` + shipmentColumns + ` FROM shipments`
	if len(where) > 0 {
		sqlQuery += " WHERE " + strings.Join(where, " AND ")
	}
	sqlQuery += " ORDER BY id ASC LIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return storage.ShipmentPage{}, fmt.Errorf("list shipments: %w", err)
	}
	defer rows.Close()

	page := storage.ShipmentPage{Shipments: make([]domain.Shipment, 0, pageSize)}
	for rows.Next() {
		shipment, err := scanShipment(rows)
		if err != nil {
			return storage.ShipmentPage{}, fmt.Errorf("list shipments: %w", err)
		}
		page.Shipments = append(page.Shipments, shipment)
	}
	if err := rows.Err(); err != nil {
		return storage.ShipmentPage{}, fmt.Errorf("list shipments: %w", err)
	}
	if len(page.Shipments) > pageSize {
		page.NextPageToken = page.Shipments[pageSize-1].ID
		page.Shipments = page.Shipments[:pageSize]
	}
	return page, nil
}

func listShipmentEventsTx(ctx context.Context, db execer, shipmentID string) ([]domain.ShipmentEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, shipment_id, occurred_at, status, location, description, created_at
		   FROM shipment_events
		  WHERE shipment_id = ?
		  ORDER BY occurred_at ASC, created_at ASC`, shipmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list shipment events: %w", err)
	}
	defer rows.Close()

	var events []domain.ShipmentEvent
	for rows.Next() {
		var event domain.ShipmentEvent
		var status string
		var occurredAt, createdAt int64
		if err := rows.Scan(
			&event.ID, &event.ShipmentID, &occurredAt, &status,
			&event.Location, &event.Description, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("list shipment events: %w", err)
		}
		event.Status, err = domain.ParseShipmentStatus(status)
		if err != nil {
			return nil, fmt.Errorf("shipment event %s: %w", event.ID, err)
		}
		event.OccurredAt = fromMillis(occurredAt)
		event.CreatedAt = fromMillis(createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list shipment events: %w", err)
	}
	return events, nil
}

// ListShipmentEvents returns the timeline of one shipment, oldest first.
func (s *Store) ListShipmentEvents(ctx context.Context, shipmentID string) ([]domain.ShipmentEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" {
		return nil, fmt.Errorf("shipment id is required")
	}
	return listShipmentEventsTx(ctx, s.sqlDB, shipmentID)
}

// ListDueShipments returns non-terminal shipments whose next check is
// due, ordered by how long they have waited.
func (s *Store) ListDueShipments(ctx context.Context, now time.Time, limit int) ([]domain.Shipment, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+shipmentColumns+` FROM shipments
		  WHERE status NOT IN (?, ?) AND next_check_at <= ?
		  ORDER BY next_check_at ASC, id ASC
		  LIMIT ?`,
		domain.ShipmentStatusDelivered.String(), domain.ShipmentStatusReturned.String(),
		toMillis(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due shipments: %w", err)
	}
	defer rows.Close()

	var shipments []domain.Shipment
	for rows.Next() {
		shipment, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("list due shipments: %w", err)
		}
		shipments = append(shipments, shipment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list due shipments: %w", err)
	}
	return shipments, nil
}

// RecordShipmentCheck applies one courier poll outcome in a
// transaction: fresh timeline events are appended, the status advances
// without regressing from terminal states, and reaching delivered or
// returned lands a notification in the outbox.
func (s *Store) RecordShipmentCheck(ctx context.Context, input storage.ShipmentCheckInput) (storage.ShipmentCheckResult, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ShipmentCheckResult{}, err
	}
	shipmentID := strings.TrimSpace(input.ShipmentID)
	if shipmentID == "" {
		return storage.ShipmentCheckResult{}, fmt.Errorf("shipment id is required")
	}
	checkedAt := input.CheckedAt.UTC()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.ShipmentCheckResult{}, fmt.Errorf("begin record shipment check: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	shipment, err := scanShipment(tx.QueryRowContext(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE id = ?`, shipmentID,
	))
	if err == sql.ErrNoRows {
		return storage.ShipmentCheckResult{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ShipmentCheckResult{}, fmt.Errorf("record shipment check: %w", err)
	}

	if strings.TrimSpace(input.CheckError) != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE shipments SET
			   last_checked_at = ?, next_check_at = ?, check_attempts = check_attempts + 1,
			   last_error = ?, updated_at = ?
			 WHERE id = ?`,
			toMillis(checkedAt), toMillis(input.NextCheckAt), input.CheckError,
			toMillis(checkedAt), shipmentID,
		); err != nil {
			return storage.ShipmentCheckResult{}, fmt.Errorf("record shipment check failure: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return storage.ShipmentCheckResult{}, fmt.Errorf("commit record shipment check: %w", err)
		}
		lastChecked := checkedAt
		shipment.LastCheckedAt = &lastChecked
		shipment.NextCheckAt = input.NextCheckAt.UTC()
		shipment.CheckAttempts++
		shipment.LastError = input.CheckError
		shipment.UpdatedAt = checkedAt
		return storage.ShipmentCheckResult{Shipment: shipment}, nil
	}

	existing, err := listShipmentEventsTx(ctx, tx, shipmentID)
	if err != nil {
		return storage.ShipmentCheckResult{}, err
	}
	fresh := domain.MergeShipmentEvents(existing, input.Events)
	for i := range fresh {
		eventID, err := id.NewID()
		if err != nil {
			return storage.ShipmentCheckResult{}, fmt.Errorf("generate shipment event id: %w", err)
		}
		fresh[i].ID = eventID
		fresh[i].ShipmentID = shipmentID
		fresh[i].CreatedAt = checkedAt
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO shipment_events (
			   id, shipment_id, occurred_at, status, location, description, created_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			eventID, shipmentID, toMillis(fresh[i].OccurredAt), fresh[i].Status.String(),
			fresh[i].Location, fresh[i].Description, toMillis(checkedAt),
		); err != nil {
			return storage.ShipmentCheckResult{}, fmt.Errorf("insert shipment event: %w", err)
		}
	}

	timeline, err := listShipmentEventsTx(ctx, tx, shipmentID)
	if err != nil {
		return storage.ShipmentCheckResult{}, err
	}
	newStatus := domain.AdvanceShipmentStatus(shipment.Status, timeline)

	if _, err := tx.ExecContext(ctx,
		`UPDATE shipments SET
		   status = ?, last_checked_at = ?, next_check_at = ?,
		   check_attempts = check_attempts + 1, last_error = '', updated_at = ?
		 WHERE id = ?`,
		newStatus.String(), toMillis(checkedAt), toMillis(input.NextCheckAt),
		toMillis(checkedAt), shipmentID,
	); err != nil {
		return storage.ShipmentCheckResult{}, fmt.Errorf("record shipment check: %w", err)
	}

	if newStatus.Terminal() && newStatus != shipment.Status {
		eventType := domain.EventShipmentDelivered
		if newStatus == domain.ShipmentStatusReturned {
			eventType = domain.EventShipmentReturned
		}
		var location string
		if len(timeline) > 0 {
			location = timeline[len(timeline)-1].Location
		}
		payload, err := domain.MarshalEventPayload(domain.ShipmentEventPayload{
			ShipmentID:   shipmentID,
			SaleNumber:   saleNumberTx(ctx, tx, shipment.SaleID),
			TrackingCode: shipment.TrackingCode,
			Status:       newStatus.String(),
			Location:     location,
		})
		if err != nil {
			return storage.ShipmentCheckResult{}, err
		}
		if err := enqueueOutboxEvent(ctx, tx, eventType, payload,
			domain.EventDedupeKey(eventType, shipmentID), checkedAt); err != nil {
			return storage.ShipmentCheckResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.ShipmentCheckResult{}, fmt.Errorf("commit record shipment check: %w", err)
	}

	lastChecked := checkedAt
	shipment.Status = newStatus
	shipment.LastCheckedAt = &lastChecked
	shipment.NextCheckAt = input.NextCheckAt.UTC()
	shipment.CheckAttempts++
	shipment.LastError = ""
	shipment.UpdatedAt = checkedAt
	return storage.ShipmentCheckResult{Shipment: shipment, FreshEvents: fresh}, nil
}

// saleNumberTx resolves a sale document number for notification
// payloads. Missing sales yield an empty number.
func saleNumberTx(ctx context.Context, db execer, saleID string) string {
	if strings.TrimSpace(saleID) == "" {
		return ""
	}
	var number string
	if err := db.QueryRowContext(ctx,
		`SELECT number FROM sales WHERE id = ?`, saleID,
	).Scan(&number); err != nil {
		return ""
	}
	return number
}

// PruneShipmentEvents deletes all but the newest keep events per
// delivered shipment whose delivery predates the cutoff, and reports
// how many rows were removed. Shipments still in flight keep their full
// timeline.
func (s *Store) PruneShipmentEvents(ctx context.Context, keep int, deliveredBefore time.Time) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative")
	}
	if deliveredBefore.IsZero() {
		return 0, fmt.Errorf("cutoff is required")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM shipment_events
		  WHERE shipment_id IN (
		    SELECT id FROM shipments
		     WHERE status = 'delivered' AND updated_at < ?
		  )
		  AND id NOT IN (
		    SELECT inner_events.id FROM shipment_events AS inner_events
		     WHERE inner_events.shipment_id = shipment_events.shipment_id
		     ORDER BY inner_events.occurred_at DESC, inner_events.created_at DESC
		     LIMIT ?
		  )`, toMillis(deliveredBefore), keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune shipment events: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune shipment events: %w", err)
	}
	return removed, nil
}

var _ storage.ShipmentStore = (*Store)(nil)
