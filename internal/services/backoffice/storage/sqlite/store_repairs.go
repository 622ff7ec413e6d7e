package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

// CreateRepair persists a new repair order and allocates its document
// number in the same transaction.
func (s *Store) CreateRepair(ctx context.Context, repair domain.Repair) (storage.RepairRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RepairRecord{}, err
	}
	repairID := strings.TrimSpace(repair.ID)
	if repairID == "" {
		return storage.RepairRecord{}, fmt.Errorf("repair id is required")
	}
	if strings.TrimSpace(repair.ClientID) == "" {
		return storage.RepairRecord{}, fmt.Errorf("repair client id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.RepairRecord{}, fmt.Errorf("begin create repair: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	number := strings.TrimSpace(repair.Number)
	if number == "" {
		number, err = nextDocumentNumber(ctx, tx, domain.RepairNumberPrefix)
		if err != nil {
			return storage.RepairRecord{}, err
		}
	}
	repair.Number = number

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO repairs (
		   id, number, client_id, item_description, issue, status,
		   estimated_price, final_price, amount_paid,
		   received_at, promised_at, delivered_at, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)`,
		repairID, number, repair.ClientID, repair.ItemDescription, repair.Issue,
		repair.Status.String(), int64(repair.EstimatedPrice), int64(repair.FinalPrice),
		toMillis(repair.ReceivedAt), toMillisPtr(repair.PromisedAt),
		toMillisPtr(repair.DeliveredAt), toMillis(repair.CreatedAt), toMillis(repair.UpdatedAt),
	); err != nil {
		if isUniqueViolation(err, "repairs.") {
			return storage.RepairRecord{}, fmt.Errorf("repair %s: %w", number, storage.ErrAlreadyExists)
		}
		return storage.RepairRecord{}, fmt.Errorf("create repair: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.RepairRecord{}, fmt.Errorf("commit create repair: %w", err)
	}
	return storage.RepairRecord{Repair: repair}, nil
}

func loadRepairTx(ctx context.Context, db execer, repairID string) (storage.RepairRecord, error) {
	var record storage.RepairRecord
	var status string
	var estimated, final, amountPaid int64
	var receivedAt, createdAt, updatedAt int64
	var promisedAt, deliveredAt sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT id, number, client_id, item_description, issue, status,
		        estimated_price, final_price, amount_paid,
		        received_at, promised_at, delivered_at, created_at, updated_at
		   FROM repairs WHERE id = ?`, repairID,
	).Scan(
		&record.Repair.ID, &record.Repair.Number, &record.Repair.ClientID,
		&record.Repair.ItemDescription, &record.Repair.Issue, &status,
		&estimated, &final, &amountPaid,
		&receivedAt, &promisedAt, &deliveredAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return storage.RepairRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.RepairRecord{}, fmt.Errorf("load repair: %w", err)
	}
	record.Repair.Status, err = domain.ParseRepairStatus(status)
	if err != nil {
		return storage.RepairRecord{}, fmt.Errorf("repair %s: %w", repairID, err)
	}
	record.Repair.EstimatedPrice = money.Amount(estimated)
	record.Repair.FinalPrice = money.Amount(final)
	record.AmountPaid = money.Amount(amountPaid)
	record.Repair.ReceivedAt = fromMillis(receivedAt)
	record.Repair.PromisedAt = fromMillisPtr(promisedAt)
	record.Repair.DeliveredAt = fromMillisPtr(deliveredAt)
	record.Repair.CreatedAt = fromMillis(createdAt)
	record.Repair.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// GetRepair loads one repair with its payment total.
func (s *Store) GetRepair(ctx context.Context, repairID string) (storage.RepairRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RepairRecord{}, err
	}
	repairID = strings.TrimSpace(repairID)
	if repairID == "" {
		return storage.RepairRecord{}, fmt.Errorf("repair id is required")
	}
	return loadRepairTx(ctx, s.sqlDB, repairID)
}

// GetRepairByNumber loads one repair by its document number.
func (s *Store) GetRepairByNumber(ctx context.Context, number string) (storage.RepairRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RepairRecord{}, err
	}
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" {
		return storage.RepairRecord{}, fmt.Errorf("repair number is required")
	}

	var repairID string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id FROM repairs WHERE number = ?`, number,
	).Scan(&repairID)
	if err == sql.ErrNoRows {
		return storage.RepairRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.RepairRecord{}, fmt.Errorf("get repair by number: %w", err)
	}
	return loadRepairTx(ctx, s.sqlDB, repairID)
}

// ListRepairs pages through repairs ordered by document number, newest
// first, narrowed by the given filter.
func (s *Store) ListRepairs(ctx context.Context, filter storage.RepairFilter, pageSize int, pageToken string) (storage.RepairPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RepairPage{}, err
	}
	if pageSize <= 0 {
		return storage.RepairPage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	where := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if pageToken != "" {
		where = append(where, "number < ?")
		args = append(args, pageToken)
	}
	if clientID := strings.TrimSpace(filter.ClientID); clientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, clientID)
	}
	if filter.Status != domain.RepairStatusUnspecified {
		where = append(where, "status = ?")
		args = append(args, filter.Status.String())
	}
	sqlQuery := `SELECT id, number FROM repairs`
	if len(where) > 0 {
		sqlQuery += " WHERE " + strings.Join(where, " AND ")
	}
	sqlQuery += " ORDER BY number DESC LIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return storage.RepairPage{}, fmt.Errorf("list repairs: %w", err)
	}
	type repairKey struct{ id, number string }
	keys := make([]repairKey, 0, pageSize+1)
	for rows.Next() {
		var key repairKey
		if err := rows.Scan(&key.id, &key.number); err != nil {
			rows.Close()
			return storage.RepairPage{}, fmt.Errorf("list repairs: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return storage.RepairPage{}, fmt.Errorf("list repairs: %w", err)
	}
	rows.Close()

	page := storage.RepairPage{Repairs: make([]storage.RepairRecord, 0, pageSize)}
	if len(keys) > pageSize {
		page.NextPageToken = keys[pageSize-1].number
		keys = keys[:pageSize]
	}
	for _, key := range keys {
		record, err := loadRepairTx(ctx, s.sqlDB, key.id)
		if err != nil {
			return storage.RepairPage{}, fmt.Errorf("list repairs: %w", err)
		}
		page.Repairs = append(page.Repairs, record)
	}
	return page, nil
}

// UpdateRepairDetails edits descriptive fields and prices. Delivered and
// cancelled repairs are immutable.
func (s *Store) UpdateRepairDetails(ctx context.Context, repairID string, update storage.RepairDetailsUpdate, at time.Time) (storage.RepairRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RepairRecord{}, err
	}
	repairID = strings.TrimSpace(repairID)
	if repairID == "" {
		return storage.RepairRecord{}, fmt.Errorf("repair id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.RepairRecord{}, fmt.Errorf("begin update repair: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	record, err := loadRepairTx(ctx, tx, repairID)
	if err != nil {
		return storage.RepairRecord{}, err
	}
	repair := record.Repair
	if repair.Status == domain.RepairStatusDelivered || repair.Status == domain.RepairStatusCancelled {
		return storage.RepairRecord{}, apperrors.Newf(apperrors.CodeConflict,
			"repair %s is closed", repair.Number)
	}

	if update.ItemDescription != nil {
		item := strings.TrimSpace(*update.ItemDescription)
		if item == "" {
			return storage.RepairRecord{}, domain.ErrRepairItemEmpty
		}
		repair.ItemDescription = item
	}
	if update.Issue != nil {
		repair.Issue = strings.TrimSpace(*update.Issue)
	}
	if update.EstimatedPrice != nil {
		if update.EstimatedPrice.IsNegative() {
			return storage.RepairRecord{}, apperrors.New(apperrors.CodeProductNegativeAmount,
				"repair estimate must not be negative")
		}
		repair.EstimatedPrice = *update.EstimatedPrice
	}
	if update.FinalPrice != nil {
		if update.FinalPrice.IsNegative() {
			return storage.RepairRecord{}, apperrors.New(apperrors.CodeProductNegativeAmount,
				"repair final price must not be negative")
		}
		repair.FinalPrice = *update.FinalPrice
	}
	if update.PromisedAt != nil {
		promised := update.PromisedAt.UTC()
		repair.PromisedAt = &promised
	}
	repair.UpdatedAt = at.UTC()

	if _, err := tx.ExecContext(ctx,
		`UPDATE repairs SET
		   item_description = ?, issue = ?, estimated_price = ?, final_price = ?,
		   promised_at = ?, updated_at = ?
		 WHERE id = ?`,
		repair.ItemDescription, repair.Issue, int64(repair.EstimatedPrice),
		int64(repair.FinalPrice), toMillisPtr(repair.PromisedAt),
		toMillis(repair.UpdatedAt), repairID,
	); err != nil {
		return storage.RepairRecord{}, fmt.Errorf("update repair: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.RepairRecord{}, fmt.Errorf("commit update repair: %w", err)
	}
	record.Repair = repair
	return record, nil
}

// TransitionRepair moves a repair along its lifecycle in one
// transaction. Delivery is gated on the final price being set and fully
// paid; reaching ready lands a repair.ready notification in the outbox.
func (s *Store) TransitionRepair(ctx context.Context, repairID string, to domain.RepairStatus, at time.Time) (storage.RepairRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RepairRecord{}, err
	}
	repairID = strings.TrimSpace(repairID)
	if repairID == "" {
		return storage.RepairRecord{}, fmt.Errorf("repair id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.RepairRecord{}, fmt.Errorf("begin transition repair: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	record, err := loadRepairTx(ctx, tx, repairID)
	if err != nil {
		return storage.RepairRecord{}, err
	}
	transitioned, err := domain.TransitionRepair(record.Repair, to, record.AmountPaid, at)
	if err != nil {
		return storage.RepairRecord{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE repairs SET status = ?, delivered_at = ?, updated_at = ? WHERE id = ?`,
		transitioned.Status.String(), toMillisPtr(transitioned.DeliveredAt),
		toMillis(transitioned.UpdatedAt), repairID,
	); err != nil {
		return storage.RepairRecord{}, fmt.Errorf("transition repair: %w", err)
	}

	if to == domain.RepairStatusReady {
		payload, err := domain.MarshalEventPayload(domain.RepairEventPayload{
			RepairID:   repairID,
			Number:     transitioned.Number,
			ClientName: clientNameTx(ctx, tx, transitioned.ClientID),
			Item:       transitioned.ItemDescription,
			FinalPrice: transitioned.FinalPrice,
		})
		if err != nil {
			return storage.RepairRecord{}, err
		}
		if err := enqueueOutboxEvent(ctx, tx, domain.EventRepairReady, payload,
			domain.EventDedupeKey(domain.EventRepairReady, repairID), at); err != nil {
			return storage.RepairRecord{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.RepairRecord{}, fmt.Errorf("commit transition repair: %w", err)
	}
	record.Repair = transitioned
	return record, nil
}

var _ storage.RepairStore = (*Store)(nil)
