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

// CreateSale persists a sale in one transaction: the document number is
// allocated, each line decrements product stock, and a sale.created
// notification lands in the outbox.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (storage.SaleRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SaleRecord{}, err
	}
	saleID := strings.TrimSpace(sale.ID)
	if saleID == "" {
		return storage.SaleRecord{}, fmt.Errorf("sale id is required")
	}
	if len(sale.Lines) == 0 {
		return storage.SaleRecord{}, fmt.Errorf("sale requires at least one line")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.SaleRecord{}, fmt.Errorf("begin create sale: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, line := range sale.Lines {
		var sku, status string
		var stockQty int64
		err := tx.QueryRowContext(ctx,
			`SELECT sku, status, stock_qty FROM products WHERE id = ?`, line.ProductID,
		).Scan(&sku, &status, &stockQty)
		if err == sql.ErrNoRows {
			return storage.SaleRecord{}, fmt.Errorf("product %s: %w", line.ProductID, storage.ErrNotFound)
		}
		if err != nil {
			return storage.SaleRecord{}, fmt.Errorf("load sale line product: %w", err)
		}
		if status != domain.ProductStatusInStock.String() {
			return storage.SaleRecord{}, apperrors.Newf(apperrors.CodeProductNotSellable,
				"product %s is %s", sku, status)
		}
		if stockQty < line.Qty {
			return storage.SaleRecord{}, apperrors.Newf(apperrors.CodeProductInsufficientStock,
				"product %s has %d of %d requested", sku, stockQty, line.Qty)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET
			   stock_qty = stock_qty - ?,
			   status = CASE WHEN stock_qty - ? <= 0 THEN 'sold' ELSE status END,
			   updated_at = ?
			 WHERE id = ?`,
			line.Qty, line.Qty, toMillis(sale.CreatedAt), line.ProductID,
		); err != nil {
			return storage.SaleRecord{}, fmt.Errorf("decrement sale line stock: %w", err)
		}
	}

	number := strings.TrimSpace(sale.Number)
	if number == "" {
		number, err = nextDocumentNumber(ctx, tx, domain.SaleNumberPrefix)
		if err != nil {
			return storage.SaleRecord{}, err
		}
	}
	sale.Number = number

	totals := sale.Totals()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sales (
		   id, number, client_id, status, discount_percent,
		   subtotal, discount_amount, total, amount_paid,
		   sold_at, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		saleID, number, sale.ClientID, sale.Status.String(), sale.DiscountPercent,
		int64(totals.Subtotal), int64(totals.Discount), int64(totals.Total),
		toMillis(sale.SoldAt), toMillis(sale.CreatedAt), toMillis(sale.UpdatedAt),
	); err != nil {
		if isUniqueViolation(err, "sales.") {
			return storage.SaleRecord{}, fmt.Errorf("sale %s: %w", number, storage.ErrAlreadyExists)
		}
		return storage.SaleRecord{}, fmt.Errorf("create sale: %w", err)
	}

	for i, line := range sale.Lines {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sale_lines (id, sale_id, product_id, qty, unit_price, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			line.ID, saleID, line.ProductID, line.Qty, int64(line.UnitPrice), i,
		); err != nil {
			return storage.SaleRecord{}, fmt.Errorf("create sale line %d: %w", i+1, err)
		}
	}

	payload, err := domain.MarshalEventPayload(domain.SaleEventPayload{
		SaleID:     saleID,
		Number:     number,
		ClientName: clientNameTx(ctx, tx, sale.ClientID),
		Total:      totals.Total,
	})
	if err != nil {
		return storage.SaleRecord{}, err
	}
	if err := enqueueOutboxEvent(ctx, tx, domain.EventSaleCreated, payload,
		domain.EventDedupeKey(domain.EventSaleCreated, saleID), sale.CreatedAt); err != nil {
		return storage.SaleRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return storage.SaleRecord{}, fmt.Errorf("commit create sale: %w", err)
	}
	return storage.SaleRecord{Sale: sale}, nil
}

// clientNameTx resolves a client name for notification payloads. Missing
// clients and walk-in sales yield an empty name.
func clientNameTx(ctx context.Context, db execer, clientID string) string {
	if strings.TrimSpace(clientID) == "" {
		return ""
	}
	var name string
	if err := db.QueryRowContext(ctx,
		`SELECT full_name FROM clients WHERE id = ?`, clientID,
	).Scan(&name); err != nil {
		return ""
	}
	return name
}

func loadSaleTx(ctx context.Context, db execer, saleID string) (storage.SaleRecord, error) {
	var record storage.SaleRecord
	var status string
	var subtotal, discountAmount, total, amountPaid int64
	var soldAt, createdAt, updatedAt int64
	err := db.QueryRowContext(ctx,
		`SELECT id, number, client_id, status, discount_percent,
		        subtotal, discount_amount, total, amount_paid,
		        sold_at, created_at, updated_at
		   FROM sales WHERE id = ?`, saleID,
	).Scan(
		&record.Sale.ID, &record.Sale.Number, &record.Sale.ClientID, &status,
		&record.Sale.DiscountPercent, &subtotal, &discountAmount, &total, &amountPaid,
		&soldAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return storage.SaleRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SaleRecord{}, fmt.Errorf("load sale: %w", err)
	}
	record.Sale.Status, err = domain.ParseSaleStatus(status)
	if err != nil {
		return storage.SaleRecord{}, fmt.Errorf("sale %s: %w", saleID, err)
	}
	record.AmountPaid = money.Amount(amountPaid)
	record.Sale.SoldAt = fromMillis(soldAt)
	record.Sale.CreatedAt = fromMillis(createdAt)
	record.Sale.UpdatedAt = fromMillis(updatedAt)

	rows, err := db.QueryContext(ctx,
		`SELECT id, product_id, qty, unit_price FROM sale_lines
		  WHERE sale_id = ? ORDER BY position ASC`, saleID,
	)
	if err != nil {
		return storage.SaleRecord{}, fmt.Errorf("load sale lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var line domain.SaleLine
		var unitPrice int64
		if err := rows.Scan(&line.ID, &line.ProductID, &line.Qty, &unitPrice); err != nil {
			return storage.SaleRecord{}, fmt.Errorf("load sale lines: %w", err)
		}
		line.UnitPrice = money.Amount(unitPrice)
		record.Sale.Lines = append(record.Sale.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return storage.SaleRecord{}, fmt.Errorf("load sale lines: %w", err)
	}
	return record, nil
}

// GetSale loads one sale with its lines and payment total.
func (s *Store) GetSale(ctx context.Context, saleID string) (storage.SaleRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SaleRecord{}, err
	}
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return storage.SaleRecord{}, fmt.Errorf("sale id is required")
	}
	return loadSaleTx(ctx, s.sqlDB, saleID)
}

// GetSaleByNumber loads one sale by its document number.
func (s *Store) GetSaleByNumber(ctx context.Context, number string) (storage.SaleRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SaleRecord{}, err
	}
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" {
		return storage.SaleRecord{}, fmt.Errorf("sale number is required")
	}

	var saleID string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id FROM sales WHERE number = ?`, number,
	).Scan(&saleID)
	if err == sql.ErrNoRows {
		return storage.SaleRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SaleRecord{}, fmt.Errorf("get sale by number: %w", err)
	}
	return loadSaleTx(ctx, s.sqlDB, saleID)
}

// ListSales pages through sales ordered by document number, newest
// first, narrowed by the given filter.
func (s *Store) ListSales(ctx context.Context, filter storage.SaleFilter, pageSize int, pageToken string) (storage.SalePage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SalePage{}, err
	}
	if pageSize <= 0 {
		return storage.SalePage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	where := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if pageToken != "" {
		where = append(where, "number < ?")
		args = append(args, pageToken)
	}
	if clientID := strings.TrimSpace(filter.ClientID); clientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, clientID)
	}
	if filter.Status != domain.SaleStatusUnspecified {
		where = append(where, "status = ?")
		args = append(args, filter.Status.String())
	}
	if !filter.From.IsZero() {
		where = append(where, "sold_at >= ?")
		args = append(args, toMillis(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "sold_at < ?")
		args = append(args, toMillis(filter.To))
	}
	sqlQuery := `SELECT id, number FROM sales`
	if len(where) > 0 {
		sqlQuery += " WHERE " + strings.Join(where, " AND ")
	}
	sqlQuery += " ORDER BY number DESC LIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return storage.SalePage{}, fmt.Errorf("list sales: %w", err)
	}
	type saleKey struct{ id, number string }
	keys := make([]saleKey, 0, pageSize+1)
	for rows.Next() {
		var key saleKey
		if err := rows.Scan(&key.id, &key.number); err != nil {
			rows.Close()
			return storage.SalePage{}, fmt.Errorf("list sales: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return storage.SalePage{}, fmt.Errorf("list sales: %w", err)
	}
	rows.Close()

	page := storage.SalePage{Sales: make([]storage.SaleRecord, 0, pageSize)}
	if len(keys) > pageSize {
		page.NextPageToken = keys[pageSize-1].number
		keys = keys[:pageSize]
	}
	for _, key := range keys {
		record, err := loadSaleTx(ctx, s.sqlDB, key.id)
		if err != nil {
			return storage.SalePage{}, fmt.Errorf("list sales: %w", err)
		}
		page.Sales = append(page.Sales, record)
	}
	return page, nil
}

// CancelSale aborts an unpaid sale and restores the stock its lines
// consumed. Sales with recorded payments are refused.
func (s *Store) CancelSale(ctx context.Context, saleID string, at time.Time) (storage.SaleRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SaleRecord{}, err
	}
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return storage.SaleRecord{}, fmt.Errorf("sale id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.SaleRecord{}, fmt.Errorf("begin cancel sale: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	record, err := loadSaleTx(ctx, tx, saleID)
	if err != nil {
		return storage.SaleRecord{}, err
	}
	cancelled, err := domain.CancelSale(record.Sale, record.AmountPaid, at)
	if err != nil {
		return storage.SaleRecord{}, err
	}

	for _, line := range cancelled.Lines {
		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET
			   stock_qty = stock_qty + ?,
			   status = CASE WHEN status = 'sold' THEN 'in-stock' ELSE status END,
			   updated_at = ?
			 WHERE id = ?`,
			line.Qty, toMillis(at), line.ProductID,
		); err != nil {
			return storage.SaleRecord{}, fmt.Errorf("restore sale line stock: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sales SET status = ?, updated_at = ? WHERE id = ?`,
		cancelled.Status.String(), toMillis(cancelled.UpdatedAt), saleID,
	); err != nil {
		return storage.SaleRecord{}, fmt.Errorf("cancel sale: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.SaleRecord{}, fmt.Errorf("commit cancel sale: %w", err)
	}
	record.Sale = cancelled
	return record, nil
}

// SummarizeSalesForDay aggregates the non-cancelled sales sold during
// the UTC day containing the given time.
func (s *Store) SummarizeSalesForDay(ctx context.Context, day time.Time) (storage.SaleSummary, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SaleSummary{}, err
	}

	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)
	summary := storage.SaleSummary{Day: dayStart}

	var subtotal, discount, total, paid int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(subtotal), 0), COALESCE(SUM(discount_amount), 0),
		        COALESCE(SUM(total), 0), COALESCE(SUM(amount_paid), 0)
		   FROM sales
		  WHERE sold_at >= ? AND sold_at < ? AND status <> 'cancelled'`,
		toMillis(dayStart), toMillis(dayEnd),
	).Scan(&summary.SaleCount, &subtotal, &discount, &total, &paid)
	if err != nil {
		return storage.SaleSummary{}, fmt.Errorf("summarize sales: %w", err)
	}
	summary.Subtotal = money.Amount(subtotal)
	summary.Discount = money.Amount(discount)
	summary.Total = money.Amount(total)
	summary.Paid = money.Amount(paid)

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT p.method, COALESCE(SUM(p.amount), 0)
		   FROM payments p
		   JOIN sales s ON s.id = p.sale_id
		  WHERE s.sold_at >= ? AND s.sold_at < ? AND s.status <> 'cancelled'
		  GROUP BY p.method
		  ORDER BY p.method ASC`,
		toMillis(dayStart), toMillis(dayEnd),
	)
	if err != nil {
		return storage.SaleSummary{}, fmt.Errorf("summarize sales by method: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var method string
		var amount int64
		if err := rows.Scan(&method, &amount); err != nil {
			return storage.SaleSummary{}, fmt.Errorf("summarize sales by method: %w", err)
		}
		parsed, err := domain.ParsePaymentMethod(method)
		if err != nil {
			return storage.SaleSummary{}, fmt.Errorf("summarize sales by method: %w", err)
		}
		summary.ByMethod = append(summary.ByMethod, storage.MethodTotal{
			Method: parsed,
			Total:  money.Amount(amount),
		})
	}
	if err := rows.Err(); err != nil {
		return storage.SaleSummary{}, fmt.Errorf("summarize sales by method: %w", err)
	}
	return summary, nil
}

var _ storage.SaleStore = (*Store)(nil)
