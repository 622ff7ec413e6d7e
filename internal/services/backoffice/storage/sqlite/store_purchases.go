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

// CreatePurchase inserts a draft intake batch with its lines.
func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	purchaseID := strings.TrimSpace(purchase.ID)
	if purchaseID == "" {
		return fmt.Errorf("purchase id is required")
	}
	if strings.TrimSpace(purchase.SupplierID) == "" {
		return fmt.Errorf("purchase supplier id is required")
	}
	if len(purchase.Lines) == 0 {
		return fmt.Errorf("purchase requires at least one line")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create purchase: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO purchases (
		   id, supplier_id, reference, status, received_at, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		purchaseID, purchase.SupplierID, purchase.Reference, purchase.Status.String(),
		toMillisPtr(purchase.ReceivedAt), toMillis(purchase.CreatedAt), toMillis(purchase.UpdatedAt),
	); err != nil {
		if isUniqueViolation(err, "purchases.id") {
			return fmt.Errorf("purchase %s: %w", purchaseID, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("create purchase: %w", err)
	}

	for i, line := range purchase.Lines {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO purchase_lines (id, purchase_id, product_id, qty, unit_cost, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			line.ID, purchaseID, line.ProductID, line.Qty, int64(line.UnitCost), i,
		); err != nil {
			return fmt.Errorf("create purchase line %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create purchase: %w", err)
	}
	return nil
}

func loadPurchaseTx(ctx context.Context, db execer, purchaseID string) (domain.Purchase, error) {
	var purchase domain.Purchase
	var status string
	var receivedAt sql.NullInt64
	var createdAt, updatedAt int64
	err := db.QueryRowContext(ctx,
		`SELECT id, supplier_id, reference, status, received_at, created_at, updated_at
		   FROM purchases WHERE id = ?`, purchaseID,
	).Scan(
		&purchase.ID, &purchase.SupplierID, &purchase.Reference, &status,
		&receivedAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Purchase{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("load purchase: %w", err)
	}
	purchase.Status, err = domain.ParsePurchaseStatus(status)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("purchase %s: %w", purchaseID, err)
	}
	purchase.ReceivedAt = fromMillisPtr(receivedAt)
	purchase.CreatedAt = fromMillis(createdAt)
	purchase.UpdatedAt = fromMillis(updatedAt)

	rows, err := db.QueryContext(ctx,
		`SELECT id, product_id, qty, unit_cost FROM purchase_lines
		  WHERE purchase_id = ? ORDER BY position ASC`, purchaseID,
	)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("load purchase lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var line domain.PurchaseLine
		var unitCost int64
		if err := rows.Scan(&line.ID, &line.ProductID, &line.Qty, &unitCost); err != nil {
			return domain.Purchase{}, fmt.Errorf("load purchase lines: %w", err)
		}
		line.UnitCost = money.Amount(unitCost)
		purchase.Lines = append(purchase.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Purchase{}, fmt.Errorf("load purchase lines: %w", err)
	}
	return purchase, nil
}

// GetPurchase loads one intake batch with its lines.
func (s *Store) GetPurchase(ctx context.Context, purchaseID string) (domain.Purchase, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Purchase{}, err
	}
	purchaseID = strings.TrimSpace(purchaseID)
	if purchaseID == "" {
		return domain.Purchase{}, fmt.Errorf("purchase id is required")
	}
	return loadPurchaseTx(ctx, s.sqlDB, purchaseID)
}

// ListPurchases pages through intake batches ordered by ID, optionally
// narrowed to one supplier.
func (s *Store) ListPurchases(ctx context.Context, supplierID string, pageSize int, pageToken string) (storage.PurchasePage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PurchasePage{}, err
	}
	if pageSize <= 0 {
		return storage.PurchasePage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)
	supplierID = strings.TrimSpace(supplierID)

	where := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if pageToken != "" {
		where = append(where, "id > ?")
		args = append(args, pageToken)
	}
	if supplierID != "" {
		where = append(where, "supplier_id = ?")
		args = append(args, supplierID)
	}
	sqlQuery := `SELECT id FROM purchases`
	if len(where) > 0 {
		sqlQuery += " WHERE " + strings.Join(where, " AND ")
	}
	sqlQuery += " ORDER BY id ASC LIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return storage.PurchasePage{}, fmt.Errorf("list purchases: %w", err)
	}
	ids := make([]string, 0, pageSize+1)
	for rows.Next() {
		var purchaseID string
		if err := rows.Scan(&purchaseID); err != nil {
			rows.Close()
			return storage.PurchasePage{}, fmt.Errorf("list purchases: %w", err)
		}
		ids = append(ids, purchaseID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return storage.PurchasePage{}, fmt.Errorf("list purchases: %w", err)
	}
	rows.Close()

	page := storage.PurchasePage{Purchases: make([]domain.Purchase, 0, pageSize)}
	if len(ids) > pageSize {
		page.NextPageToken = ids[pageSize-1]
		ids = ids[:pageSize]
	}
	for _, purchaseID := range ids {
		purchase, err := loadPurchaseTx(ctx, s.sqlDB, purchaseID)
		if err != nil {
			return storage.PurchasePage{}, fmt.Errorf("list purchases: %w", err)
		}
		page.Purchases = append(page.Purchases, purchase)
	}
	return page, nil
}

// ReceivePurchase posts a draft batch in one transaction: each line adds
// its quantity to product stock, sets the product cost to the line unit
// cost, and flips draft or sold products back to in-stock.
func (s *Store) ReceivePurchase(ctx context.Context, purchaseID string, at time.Time) (domain.Purchase, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Purchase{}, err
	}
	purchaseID = strings.TrimSpace(purchaseID)
	if purchaseID == "" {
		return domain.Purchase{}, fmt.Errorf("purchase id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("begin receive purchase: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	purchase, err := loadPurchaseTx(ctx, tx, purchaseID)
	if err != nil {
		return domain.Purchase{}, err
	}
	received, err := domain.ReceivePurchase(purchase, at)
	if err != nil {
		return domain.Purchase{}, err
	}

	for _, line := range received.Lines {
		result, err := tx.ExecContext(ctx,
			`UPDATE products SET
			   stock_qty = stock_qty + ?,
			   cost = ?,
			   status = CASE WHEN status IN ('draft', 'sold') THEN 'in-stock' ELSE status END,
			   updated_at = ?
			 WHERE id = ?`,
			line.Qty, int64(line.UnitCost), toMillis(at), line.ProductID,
		)
		if err != nil {
			return domain.Purchase{}, fmt.Errorf("post purchase line stock: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return domain.Purchase{}, fmt.Errorf("post purchase line stock: %w", err)
		}
		if affected == 0 {
			return domain.Purchase{}, fmt.Errorf("product %s: %w", line.ProductID, storage.ErrNotFound)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE purchases SET status = ?, received_at = ?, updated_at = ? WHERE id = ?`,
		received.Status.String(), toMillisPtr(received.ReceivedAt), toMillis(received.UpdatedAt), purchaseID,
	); err != nil {
		return domain.Purchase{}, fmt.Errorf("receive purchase: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Purchase{}, fmt.Errorf("commit receive purchase: %w", err)
	}
	return received, nil
}

// CancelPurchase abandons a draft batch. Received batches are immutable.
func (s *Store) CancelPurchase(ctx context.Context, purchaseID string, at time.Time) (domain.Purchase, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Purchase{}, err
	}
	purchaseID = strings.TrimSpace(purchaseID)
	if purchaseID == "" {
		return domain.Purchase{}, fmt.Errorf("purchase id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("begin cancel purchase: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	purchase, err := loadPurchaseTx(ctx, tx, purchaseID)
	if err != nil {
		return domain.Purchase{}, err
	}
	cancelled, err := domain.CancelPurchase(purchase, at)
	if err != nil {
		return domain.Purchase{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE purchases SET status = ?, updated_at = ? WHERE id = ?`,
		cancelled.Status.String(), toMillis(cancelled.UpdatedAt), purchaseID,
	); err != nil {
		return domain.Purchase{}, fmt.Errorf("cancel purchase: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Purchase{}, fmt.Errorf("commit cancel purchase: %w", err)
	}
	return cancelled, nil
}

var _ storage.PurchaseStore = (*Store)(nil)
