package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

const productColumns = `id, sku, name, category, metal, weight_mg, size,
	supplier_id, cost, price, stock_qty, status, notes, created_at, updated_at`

// PutProduct inserts or updates one catalog record.
func (s *Store) PutProduct(ctx context.Context, product domain.Product) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	productID := strings.TrimSpace(product.ID)
	if productID == "" {
		return fmt.Errorf("product id is required")
	}
	sku := strings.ToUpper(strings.TrimSpace(product.SKU))
	if sku == "" {
		return fmt.Errorf("product sku is required")
	}
	if strings.TrimSpace(product.Name) == "" {
		return fmt.Errorf("product name is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO products (
		   id, sku, name, category, metal, weight_mg, size, supplier_id,
		   cost, price, stock_qty, status, notes, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   sku = excluded.sku,
		   name = excluded.name,
		   category = excluded.category,
		   metal = excluded.metal,
		   weight_mg = excluded.weight_mg,
		   size = excluded.size,
		   supplier_id = excluded.supplier_id,
		   cost = excluded.cost,
		   price = excluded.price,
		   stock_qty = excluded.stock_qty,
		   status = excluded.status,
		   notes = excluded.notes,
		   updated_at = excluded.updated_at`,
		productID, sku, product.Name, product.Category.String(), product.Metal.String(),
		product.WeightMg, product.Size, product.SupplierID,
		int64(product.Cost), int64(product.Price), product.StockQty,
		product.Status.String(), product.Notes,
		toMillis(product.CreatedAt), toMillis(product.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "products.sku") {
			return fmt.Errorf("product sku %s: %w", sku, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("put product: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var product domain.Product
	var category, metal, status string
	var cost, price, createdAt, updatedAt int64
	err := row.Scan(
		&product.ID, &product.SKU, &product.Name, &category, &metal,
		&product.WeightMg, &product.Size, &product.SupplierID,
		&cost, &price, &product.StockQty, &status, &product.Notes,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}
	product.Category, err = domain.ParseCategory(category)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s: %w", product.ID, err)
	}
	product.Metal, err = domain.ParseMetal(metal)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s: %w", product.ID, err)
	}
	product.Status, err = domain.ParseProductStatus(status)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s: %w", product.ID, err)
	}
	product.Cost = money.Amount(cost)
	product.Price = money.Amount(price)
	product.CreatedAt = fromMillis(createdAt)
	product.UpdatedAt = fromMillis(updatedAt)
	return product, nil
}

// GetProduct loads one product by ID.
func (s *Store) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Product{}, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, fmt.Errorf("product id is required")
	}

	product, err := scanProduct(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, productID,
	))
	if err == sql.ErrNoRows {
		return domain.Product{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// GetProductBySKU loads one product by its stock keeping unit.
func (s *Store) GetProductBySKU(ctx context.Context, sku string) (domain.Product, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Product{}, err
	}
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return domain.Product{}, fmt.Errorf("product sku is required")
	}

	product, err := scanProduct(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE sku = ?`, sku,
	))
	if err == sql.ErrNoRows {
		return domain.Product{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product by sku: %w", err)
	}
	return product, nil
}

// ListProducts pages through the catalog ordered by ID, narrowed by the
// given filter.
func (s *Store) ListProducts(ctx context.Context, filter storage.ProductFilter, pageSize int, pageToken string) (storage.ProductPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ProductPage{}, err
	}
	if pageSize <= 0 {
		return storage.ProductPage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	where := make([]string, 0, 5)
	args := make([]any, 0, 7)
	if pageToken != "" {
		where = append(where, "id > ?")
		args = append(args, pageToken)
	}
	if filter.Status != domain.ProductStatusUnspecified {
		where = append(where, "status = ?")
		args = append(args, filter.Status.String())
	}
	if filter.Category != domain.CategoryUnspecified {
		where = append(where, "category = ?")
		args = append(args, filter.Category.String())
	}
	if filter.Metal != domain.MetalUnspecified {
		where = append(where, "metal = ?")
		args = append(args, filter.Metal.String())
	}
	if query := strings.TrimSpace(filter.Query); query != "" {
		like := "%" + query + "%"
		where = append(where, "(sku LIKE ? OR name LIKE ?)")
		args = append(args, strings.ToUpper(like), like)
	}
	if filter.MaxStock >= 0 {
		where = append(where, "stock_qty <= ?")
		args = append(args, filter.MaxStock)
	}

	sqlQuery := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		sqlQuery += " WHERE " + strings.Join(where, " AND ")
	}
	sqlQuery += " ORDER BY id ASC LIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return storage.ProductPage{}, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	page := storage.ProductPage{Products: make([]domain.Product, 0, pageSize)}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return storage.ProductPage{}, fmt.Errorf("list products: %w", err)
		}
		page.Products = append(page.Products, product)
	}
	if err := rows.Err(); err != nil {
		return storage.ProductPage{}, fmt.Errorf("list products: %w", err)
	}
	if len(page.Products) > pageSize {
		page.NextPageToken = page.Products[pageSize-1].ID
		page.Products = page.Products[:pageSize]
	}
	return page, nil
}

var _ storage.ProductStore = (*Store)(nil)
