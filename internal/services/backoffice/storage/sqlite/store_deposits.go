package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

// CreateDeposit inserts one held deposit record.
func (s *Store) CreateDeposit(ctx context.Context, deposit domain.Deposit) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	depositID := strings.TrimSpace(deposit.ID)
	if depositID == "" {
		return fmt.Errorf("deposit id is required")
	}
	if strings.TrimSpace(deposit.ClientID) == "" {
		return fmt.Errorf("deposit client id is required")
	}
	if deposit.Amount <= 0 {
		return fmt.Errorf("deposit amount must be positive")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO deposits (
		   id, client_id, amount, status, note, applied_sale_id,
		   taken_at, settled_at, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		depositID, deposit.ClientID, int64(deposit.Amount), deposit.Status.String(),
		deposit.Note, deposit.AppliedSaleID, toMillis(deposit.TakenAt),
		toMillisPtr(deposit.SettledAt), toMillis(deposit.CreatedAt), toMillis(deposit.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "deposits.id") {
			return fmt.Errorf("deposit %s: %w", depositID, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("create deposit: %w", err)
	}
	return nil
}

func loadDepositTx(ctx context.Context, db execer, depositID string) (domain.Deposit, error) {
	var deposit domain.Deposit
	var status string
	var amount, takenAt, createdAt, updatedAt int64
	var settledAt sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT id, client_id, amount, status, note, applied_sale_id,
		        taken_at, settled_at, created_at, updated_at
		   FROM deposits WHERE id = ?`, depositID,
	).Scan(
		&deposit.ID, &deposit.ClientID, &amount, &status, &deposit.Note,
		&deposit.AppliedSaleID, &takenAt, &settledAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Deposit{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Deposit{}, fmt.Errorf("load deposit: %w", err)
	}
	deposit.Amount = money.Amount(amount)
	deposit.Status, err = domain.ParseDepositStatus(status)
	if err != nil {
		return domain.Deposit{}, fmt.Errorf("deposit %s: %w", depositID, err)
	}
	deposit.TakenAt = fromMillis(takenAt)
	deposit.SettledAt = fromMillisPtr(settledAt)
	deposit.CreatedAt = fromMillis(createdAt)
	deposit.UpdatedAt = fromMillis(updatedAt)
	return deposit, nil
}

// GetDeposit loads one deposit by ID.
func (s *Store) GetDeposit(ctx context.Context, depositID string) (domain.Deposit, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Deposit{}, err
	}
	depositID = strings.TrimSpace(depositID)
	if depositID == "" {
		return domain.Deposit{}, fmt.Errorf("deposit id is required")
	}
	return loadDepositTx(ctx, s.sqlDB, depositID)
}

// ListDeposits pages through deposits ordered by ID, narrowed by the
// given filter.
func (s *Store) ListDeposits(ctx context.Context, filter storage.DepositFilter, pageSize int, pageToken string) (storage.DepositPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.DepositPage{}, err
	}
	if pageSize <= 0 {
		return storage.DepositPage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	where := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if pageToken != "" {
		where = append(where, "id > ?")
		args = append(args, pageToken)
	}
	if clientID := strings.TrimSpace(filter.ClientID); clientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, clientID)
	}
	if filter.Status != domain.DepositStatusUnspecified {
		where = append(where, "status = ?")
		args = append(args, filter.Status.String())
	}
	sqlQuery := `SELECT id, client_id, amount, status, note, applied_sale_id,
	                    taken_at, settled_at, created_at, updated_at
	               FROM deposits`
	if len(where) > 0 {
		sqlQuery += " WHERE " + strings.Join(where, " AND ")
	}
	sqlQuery += " ORDER BY id ASC LIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return storage.DepositPage{}, fmt.Errorf("list deposits: %w", err)
	}
	defer rows.Close()

	page := storage.DepositPage{Deposits: make([]domain.Deposit, 0, pageSize)}
	for rows.Next() {
		var deposit domain.Deposit
		var status string
		var amount, takenAt, createdAt, updatedAt int64
		var settledAt sql.NullInt64
		if err := rows.Scan(
			&deposit.ID, &deposit.ClientID, &amount, &status, &deposit.Note,
			&deposit.AppliedSaleID, &takenAt, &settledAt, &createdAt, &updatedAt,
		); err != nil {
			return storage.DepositPage{}, fmt.Errorf("list deposits: %w", err)
		}
		deposit.Amount = money.Amount(amount)
		deposit.Status, err = domain.ParseDepositStatus(status)
		if err != nil {
			return storage.DepositPage{}, fmt.Errorf("deposit %s: %w", deposit.ID, err)
		}
		deposit.TakenAt = fromMillis(takenAt)
		deposit.SettledAt = fromMillisPtr(settledAt)
		deposit.CreatedAt = fromMillis(createdAt)
		deposit.UpdatedAt = fromMillis(updatedAt)
		page.Deposits = append(page.Deposits, deposit)
	}
	if err := rows.Err(); err != nil {
		return storage.DepositPage{}, fmt.Errorf("list deposits: %w", err)
	}
	if len(page.Deposits) > pageSize {
		page.NextPageToken = page.Deposits[pageSize-1].ID
		page.Deposits = page.Deposits[:pageSize]
	}
	return page, nil
}

// ApplyDeposit consumes a held deposit against a sale in one
// transaction: the deposit settles, a deposit-method payment lands on
// the sale, and the sale status is recomputed from the new total.
func (s *Store) ApplyDeposit(ctx context.Context, depositID string, saleID string, at time.Time) (domain.Deposit, storage.SaleRecord, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Deposit{}, storage.SaleRecord{}, err
	}
	depositID = strings.TrimSpace(depositID)
	if depositID == "" {
		return domain.Deposit{}, storage.SaleRecord{}, fmt.Errorf("deposit id is required")
	}
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.Deposit{}, storage.SaleRecord{}, fmt.Errorf("sale id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Deposit{}, storage.SaleRecord{}, fmt.Errorf("begin apply deposit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deposit, err := loadDepositTx(ctx, tx, depositID)
	if err != nil {
		return domain.Deposit{}, storage.SaleRecord{}, err
	}
	record, err := loadSaleTx(ctx, tx, saleID)
	if err != nil {
		return domain.Deposit{}, storage.SaleRecord{}, err
	}
	if record.Sale.Status == domain.SaleStatusCancelled {
		return domain.Deposit{}, storage.SaleRecord{}, domain.ErrSaleCancelled
	}

	applied, err := domain.ApplyDeposit(deposit, saleID, at)
	if err != nil {
		return domain.Deposit{}, storage.SaleRecord{}, err
	}

	payment, err := domain.CreatePayment(domain.CreatePaymentInput{
		SaleID: saleID,
		Amount: deposit.Amount,
		Method: domain.PaymentMethodDeposit,
		Note:   fmt.Sprintf("deposit %s applied", depositID),
		PaidAt: at,
	}, func() time.Time { return at }, nil)
	if err != nil {
		return domain.Deposit{}, storage.SaleRecord{}, err
	}
	if err := insertPaymentTx(ctx, tx, payment); err != nil {
		return domain.Deposit{}, storage.SaleRecord{}, err
	}

	paid, err := sumSalePaymentsTx(ctx, tx, saleID)
	if err != nil {
		return domain.Deposit{}, storage.SaleRecord{}, err
	}
	totals := record.Sale.Totals()
	newStatus := domain.SaleStatusForPayments(totals.Total, paid)
	if _, err := tx.ExecContext(ctx,
		`UPDATE sales SET amount_paid = ?, status = ?, updated_at = ? WHERE id = ?`,
		int64(paid), newStatus.String(), toMillis(at), saleID,
	); err != nil {
		return domain.Deposit{}, storage.SaleRecord{}, fmt.Errorf("apply deposit payment: %w", err)
	}

	if newStatus == domain.SaleStatusPaid && record.Sale.Status != domain.SaleStatusPaid {
		payload, err := domain.MarshalEventPayload(domain.SaleEventPayload{
			SaleID:     saleID,
			Number:     record.Sale.Number,
			ClientName: clientNameTx(ctx, tx, record.Sale.ClientID),
			Total:      totals.Total,
			Paid:       paid,
		})
		if err != nil {
			return domain.Deposit{}, storage.SaleRecord{}, err
		}
		if err := enqueueOutboxEvent(ctx, tx, domain.EventSalePaid, payload,
			domain.EventDedupeKey(domain.EventSalePaid, saleID), at); err != nil {
			return domain.Deposit{}, storage.SaleRecord{}, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE deposits SET status = ?, applied_sale_id = ?, settled_at = ?, updated_at = ?
		  WHERE id = ?`,
		applied.Status.String(), applied.AppliedSaleID,
		toMillisPtr(applied.SettledAt), toMillis(applied.UpdatedAt), depositID,
	); err != nil {
		return domain.Deposit{}, storage.SaleRecord{}, fmt.Errorf("apply deposit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Deposit{}, storage.SaleRecord{}, fmt.Errorf("commit apply deposit: %w", err)
	}
	record.Sale.Status = newStatus
	record.Sale.UpdatedAt = at.UTC()
	record.AmountPaid = paid
	return applied, record, nil
}

// RefundDeposit returns a held deposit to the client.
func (s *Store) RefundDeposit(ctx context.Context, depositID string, at time.Time) (domain.Deposit, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Deposit{}, err
	}
	depositID = strings.TrimSpace(depositID)
	if depositID == "" {
		return domain.Deposit{}, fmt.Errorf("deposit id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Deposit{}, fmt.Errorf("begin refund deposit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deposit, err := loadDepositTx(ctx, tx, depositID)
	if err != nil {
		return domain.Deposit{}, err
	}
	refunded, err := domain.RefundDeposit(deposit, at)
	if err != nil {
		return domain.Deposit{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE deposits SET status = ?, settled_at = ?, updated_at = ? WHERE id = ?`,
		refunded.Status.String(), toMillisPtr(refunded.SettledAt),
		toMillis(refunded.UpdatedAt), depositID,
	); err != nil {
		return domain.Deposit{}, fmt.Errorf("refund deposit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Deposit{}, fmt.Errorf("commit refund deposit: %w", err)
	}
	return refunded, nil
}

var _ storage.DepositStore = (*Store)(nil)
