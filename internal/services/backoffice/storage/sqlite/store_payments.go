package sqlite

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

func insertPaymentTx(ctx context.Context, db execer, payment domain.Payment) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO payments (
		   id, sale_id, repair_id, amount, method, note, recorded_by, paid_at, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.SaleID, payment.RepairID, int64(payment.Amount),
		payment.Method.String(), payment.Note, payment.RecordedBy,
		toMillis(payment.PaidAt), toMillis(payment.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "payments.id") {
			return fmt.Errorf("payment %s: %w", payment.ID, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func sumSalePaymentsTx(ctx context.Context, db execer, saleID string) (money.Amount, error) {
	var paid int64
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE sale_id = ?`, saleID,
	).Scan(&paid)
	if err != nil {
		return 0, fmt.Errorf("sum sale payments: %w", err)
	}
	return money.Amount(paid), nil
}

// RecordSalePayment inserts a payment and recomputes the sale status
// from the new payment total inside the same transaction. Covering the
// total lands a sale.paid notification in the outbox.
func (s *Store) RecordSalePayment(ctx context.Context, payment domain.Payment) (storage.SaleRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SaleRecord{}, err
	}
	if strings.TrimSpace(payment.ID) == "" {
		return storage.SaleRecord{}, fmt.Errorf("payment id is required")
	}
	saleID := strings.TrimSpace(payment.SaleID)
	if saleID == "" {
		return storage.SaleRecord{}, fmt.Errorf("payment sale id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.SaleRecord{}, fmt.Errorf("begin record sale payment: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	record, err := loadSaleTx(ctx, tx, saleID)
	if err != nil {
		return storage.SaleRecord{}, err
	}
	if record.Sale.Status == domain.SaleStatusCancelled {
		return storage.SaleRecord{}, domain.ErrSaleCancelled
	}

	if err := insertPaymentTx(ctx, tx, payment); err != nil {
		return storage.SaleRecord{}, err
	}
	paid, err := sumSalePaymentsTx(ctx, tx, saleID)
	if err != nil {
		return storage.SaleRecord{}, err
	}

	totals := record.Sale.Totals()
	newStatus := domain.SaleStatusForPayments(totals.Total, paid)
	if _, err := tx.ExecContext(ctx,
		`UPDATE sales SET amount_paid = ?, status = ?, updated_at = ? WHERE id = ?`,
		int64(paid), newStatus.String(), toMillis(payment.PaidAt), saleID,
	); err != nil {
		return storage.SaleRecord{}, fmt.Errorf("record sale payment: %w", err)
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
			return storage.SaleRecord{}, err
		}
		if err := enqueueOutboxEvent(ctx, tx, domain.EventSalePaid, payload,
			domain.EventDedupeKey(domain.EventSalePaid, saleID), payment.PaidAt); err != nil {
			return storage.SaleRecord{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.SaleRecord{}, fmt.Errorf("commit record sale payment: %w", err)
	}
	record.Sale.Status = newStatus
	record.Sale.UpdatedAt = payment.PaidAt.UTC()
	record.AmountPaid = paid
	return record, nil
}

// RecordRepairPayment inserts a payment against an open repair.
func (s *Store) RecordRepairPayment(ctx context.Context, payment domain.Payment) (storage.RepairRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RepairRecord{}, err
	}
	if strings.TrimSpace(payment.ID) == "" {
		return storage.RepairRecord{}, fmt.Errorf("payment id is required")
	}
	repairID := strings.TrimSpace(payment.RepairID)
	if repairID == "" {
		return storage.RepairRecord{}, fmt.Errorf("payment repair id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.RepairRecord{}, fmt.Errorf("begin record repair payment: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	record, err := loadRepairTx(ctx, tx, repairID)
	if err != nil {
		return storage.RepairRecord{}, err
	}
	if record.Repair.Status == domain.RepairStatusCancelled || record.Repair.Status == domain.RepairStatusDelivered {
		return storage.RepairRecord{}, apperrors.Newf(apperrors.CodeConflict,
			"repair %s is closed", record.Repair.Number)
	}

	if err := insertPaymentTx(ctx, tx, payment); err != nil {
		return storage.RepairRecord{}, err
	}
	var paid int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE repair_id = ?`, repairID,
	).Scan(&paid); err != nil {
		return storage.RepairRecord{}, fmt.Errorf("sum repair payments: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE repairs SET amount_paid = ?, updated_at = ? WHERE id = ?`,
		paid, toMillis(payment.PaidAt), repairID,
	); err != nil {
		return storage.RepairRecord{}, fmt.Errorf("record repair payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.RepairRecord{}, fmt.Errorf("commit record repair payment: %w", err)
	}
	record.Repair.UpdatedAt = payment.PaidAt.UTC()
	record.AmountPaid = money.Amount(paid)
	return record, nil
}

func listPayments(ctx context.Context, db execer, column, targetID string) ([]domain.Payment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, sale_id, repair_id, amount, method, note, recorded_by, paid_at, created_at
		   FROM payments WHERE `+column+` = ? ORDER BY paid_at ASC, created_at ASC`, targetID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var payment domain.Payment
		var amount, paidAt, createdAt int64
		var method string
		if err := rows.Scan(
			&payment.ID, &payment.SaleID, &payment.RepairID, &amount, &method,
			&payment.Note, &payment.RecordedBy, &paidAt, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}
		payment.Amount = money.Amount(amount)
		payment.Method, err = domain.ParsePaymentMethod(method)
		if err != nil {
			return nil, fmt.Errorf("payment %s: %w", payment.ID, err)
		}
		payment.PaidAt = fromMillis(paidAt)
		payment.CreatedAt = fromMillis(createdAt)
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// ListPaymentsForSale returns the payments recorded against a sale,
// oldest first.
func (s *Store) ListPaymentsForSale(ctx context.Context, saleID string) ([]domain.Payment, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return nil, fmt.Errorf("sale id is required")
	}
	return listPayments(ctx, s.sqlDB, "sale_id", saleID)
}

// ListPaymentsForRepair returns the payments recorded against a repair,
// oldest first.
func (s *Store) ListPaymentsForRepair(ctx context.Context, repairID string) ([]domain.Payment, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	repairID = strings.TrimSpace(repairID)
	if repairID == "" {
		return nil, fmt.Errorf("repair id is required")
	}
	return listPayments(ctx, s.sqlDB, "repair_id", repairID)
}

var _ storage.PaymentStore = (*Store)(nil)
