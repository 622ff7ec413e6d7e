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

// PutClient inserts or updates one client record.
func (s *Store) PutClient(ctx context.Context, client domain.Client) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	clientID := strings.TrimSpace(client.ID)
	if clientID == "" {
		return fmt.Errorf("client id is required")
	}
	if strings.TrimSpace(client.FullName) == "" {
		return fmt.Errorf("client name is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO clients (
		   id, full_name, phone, email, telegram_username,
		   discount_percent, notes, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   full_name = excluded.full_name,
		   phone = excluded.phone,
		   email = excluded.email,
		   telegram_username = excluded.telegram_username,
		   discount_percent = excluded.discount_percent,
		   notes = excluded.notes,
		   updated_at = excluded.updated_at`,
		clientID, client.FullName, client.Phone, client.Email, client.TelegramUsername,
		client.DiscountPercent, client.Notes, toMillis(client.CreatedAt), toMillis(client.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "clients.phone") {
			return fmt.Errorf("client phone %s: %w", client.Phone, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("put client: %w", err)
	}
	return nil
}

func scanClient(row *sql.Row) (domain.Client, error) {
	var client domain.Client
	var createdAt, updatedAt int64
	err := row.Scan(
		&client.ID, &client.FullName, &client.Phone, &client.Email,
		&client.TelegramUsername, &client.DiscountPercent, &client.Notes,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Client{}, err
	}
	client.CreatedAt = fromMillis(createdAt)
	client.UpdatedAt = fromMillis(updatedAt)
	return client, nil
}

const clientColumns = `id, full_name, phone, email, telegram_username,
	discount_percent, notes, created_at, updated_at`

// GetClient loads one client by ID.
func (s *Store) GetClient(ctx context.Context, clientID string) (domain.Client, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Client{}, err
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return domain.Client{}, fmt.Errorf("client id is required")
	}

	client, err := scanClient(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ?`, clientID,
	))
	if err == sql.ErrNoRows {
		return domain.Client{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Client{}, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

// GetClientByPhone loads one client by normalized phone number.
func (s *Store) GetClientByPhone(ctx context.Context, phone string) (domain.Client, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Client{}, err
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return domain.Client{}, fmt.Errorf("client phone is required")
	}

	client, err := scanClient(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE phone = ?`, phone,
	))
	if err == sql.ErrNoRows {
		return domain.Client{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Client{}, fmt.Errorf("get client by phone: %w", err)
	}
	return client, nil
}

// ListClients pages through clients ordered by ID. A query narrows the
// listing to names and phone numbers containing it.
func (s *Store) ListClients(ctx context.Context, query string, pageSize int, pageToken string) (storage.ClientPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ClientPage{}, err
	}
	if pageSize <= 0 {
		return storage.ClientPage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)
	query = strings.TrimSpace(query)

	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if pageToken != "" {
		where = append(where, "id > ?")
		args = append(args, pageToken)
	}
	if query != "" {
		like := "%" + query + "%"
		where = append(where, "(full_name LIKE ? OR phone LIKE ?)")
		args = append(args, like, like)
	}
	sqlQuery := `SELECT ` + clientColumns + ` FROM clients`
	if len(where) > 0 {
		sqlQuery += " WHERE " + strings.Join(where, " AND ")
	}
	sqlQuery += " ORDER BY id ASC LIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return storage.ClientPage{}, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	page := storage.ClientPage{Clients: make([]domain.Client, 0, pageSize)}
	for rows.Next() {
		var client domain.Client
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&client.ID, &client.FullName, &client.Phone, &client.Email,
			&client.TelegramUsername, &client.DiscountPercent, &client.Notes,
			&createdAt, &updatedAt,
		); err != nil {
			return storage.ClientPage{}, fmt.Errorf("list clients: %w", err)
		}
		client.CreatedAt = fromMillis(createdAt)
		client.UpdatedAt = fromMillis(updatedAt)
		page.Clients = append(page.Clients, client)
	}
	if err := rows.Err(); err != nil {
		return storage.ClientPage{}, fmt.Errorf("list clients: %w", err)
	}
	if len(page.Clients) > pageSize {
		page.NextPageToken = page.Clients[pageSize-1].ID
		page.Clients = page.Clients[:pageSize]
	}
	return page, nil
}

// GetClientBalance folds the client's documents and money flows into a
// net position. Obligations count non-cancelled sales and delivered
// repairs; held deposits count toward the client until applied.
func (s *Store) GetClientBalance(ctx context.Context, clientID string) (domain.ClientBalance, error) {
	if err := s.ready(ctx); err != nil {
		return domain.ClientBalance{}, err
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return domain.ClientBalance{}, fmt.Errorf("client id is required")
	}

	var found int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT 1 FROM clients WHERE id = ?`, clientID,
	).Scan(&found)
	if err == sql.ErrNoRows {
		return domain.ClientBalance{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.ClientBalance{}, fmt.Errorf("get client balance: %w", err)
	}

	var inputs domain.ClientBalanceInputs
	aggregates := []struct {
		query string
		dest  *money.Amount
	}{
		{
			query: `SELECT COALESCE(SUM(total), 0) FROM sales
			         WHERE client_id = ? AND status <> 'cancelled'`,
			dest: &inputs.SaleTotals,
		},
		{
			query: `SELECT COALESCE(SUM(final_price), 0) FROM repairs
			         WHERE client_id = ? AND status = 'delivered'`,
			dest: &inputs.DeliveredRepairs,
		},
		{
			query: `SELECT COALESCE(SUM(p.amount), 0) FROM payments p
			          JOIN sales s ON s.id = p.sale_id
			         WHERE s.client_id = ?`,
			dest: &inputs.SalePayments,
		},
		{
			query: `SELECT COALESCE(SUM(p.amount), 0) FROM payments p
			          JOIN repairs r ON r.id = p.repair_id
			         WHERE r.client_id = ?`,
			dest: &inputs.RepairPayments,
		},
		{
			query: `SELECT COALESCE(SUM(amount), 0) FROM deposits
			         WHERE client_id = ? AND status = 'held'`,
			dest: &inputs.HeldDepositAmount,
		},
	}
	for _, agg := range aggregates {
		var value int64
		if err := s.sqlDB.QueryRowContext(ctx, agg.query, clientID).Scan(&value); err != nil {
			return domain.ClientBalance{}, fmt.Errorf("get client balance: %w", err)
		}
		*agg.dest = money.Amount(value)
	}

	return domain.ComputeClientBalance(clientID, inputs), nil
}

var _ storage.ClientStore = (*Store)(nil)
