package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

// PutSupplier inserts or updates one supplier record.
func (s *Store) PutSupplier(ctx context.Context, supplier domain.Supplier) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	supplierID := strings.TrimSpace(supplier.ID)
	if supplierID == "" {
		return fmt.Errorf("supplier id is required")
	}
	if strings.TrimSpace(supplier.Name) == "" {
		return fmt.Errorf("supplier name is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO suppliers (
		   id, name, contact_name, phone, email, notes, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   contact_name = excluded.contact_name,
		   phone = excluded.phone,
		   email = excluded.email,
		   notes = excluded.notes,
		   updated_at = excluded.updated_at`,
		supplierID, supplier.Name, supplier.ContactName, supplier.Phone,
		supplier.Email, supplier.Notes, toMillis(supplier.CreatedAt), toMillis(supplier.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put supplier: %w", err)
	}
	return nil
}

// GetSupplier loads one supplier by ID.
func (s *Store) GetSupplier(ctx context.Context, supplierID string) (domain.Supplier, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Supplier{}, err
	}
	supplierID = strings.TrimSpace(supplierID)
	if supplierID == "" {
		return domain.Supplier{}, fmt.Errorf("supplier id is required")
	}

	var supplier domain.Supplier
	var createdAt, updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, contact_name, phone, email, notes, created_at, updated_at
		   FROM suppliers WHERE id = ?`, supplierID,
	).Scan(
		&supplier.ID, &supplier.Name, &supplier.ContactName, &supplier.Phone,
		&supplier.Email, &supplier.Notes, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Supplier{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Supplier{}, fmt.Errorf("get supplier: %w", err)
	}
	supplier.CreatedAt = fromMillis(createdAt)
	supplier.UpdatedAt = fromMillis(updatedAt)
	return supplier, nil
}

// ListSuppliers pages through suppliers ordered by ID.
func (s *Store) ListSuppliers(ctx context.Context, pageSize int, pageToken string) (storage.SupplierPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SupplierPage{}, err
	}
	if pageSize <= 0 {
		return storage.SupplierPage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	var (
		rows *sql.Rows
		err  error
	)
	if pageToken == "" {
		rows, err = s.sqlDB.QueryContext(ctx,
			`SELECT id, name, contact_name, phone, email, notes, created_at, updated_at
			   FROM suppliers ORDER BY id ASC LIMIT ?`,
			pageSize+1,
		)
	} else {
		rows, err = s.sqlDB.QueryContext(ctx,
			`SELECT id, name, contact_name, phone, email, notes, created_at, updated_at
			   FROM suppliers WHERE id > ? ORDER BY id ASC LIMIT ?`,
			pageToken, pageSize+1,
		)
	}
	if err != nil {
		return storage.SupplierPage{}, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	page := storage.SupplierPage{Suppliers: make([]domain.Supplier, 0, pageSize)}
	for rows.Next() {
		var supplier domain.Supplier
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&supplier.ID, &supplier.Name, &supplier.ContactName, &supplier.Phone,
			&supplier.Email, &supplier.Notes, &createdAt, &updatedAt,
		); err != nil {
			return storage.SupplierPage{}, fmt.Errorf("list suppliers: %w", err)
		}
		supplier.CreatedAt = fromMillis(createdAt)
		supplier.UpdatedAt = fromMillis(updatedAt)
		page.Suppliers = append(page.Suppliers, supplier)
	}
	if err := rows.Err(); err != nil {
		return storage.SupplierPage{}, fmt.Errorf("list suppliers: %w", err)
	}
	if len(page.Suppliers) > pageSize {
		page.NextPageToken = page.Suppliers[pageSize-1].ID
		page.Suppliers = page.Suppliers[:pageSize]
	}
	return page, nil
}

var _ storage.SupplierStore = (*Store)(nil)
