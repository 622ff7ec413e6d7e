package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

const staffColumns = `id, username, password_hash, display_name, role,
	telegram_chat_id, active, created_at, updated_at`

// PutStaffUser inserts or updates one back-office account.
func (s *Store) PutStaffUser(ctx context.Context, user domain.StaffUser) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	userID := strings.TrimSpace(user.ID)
	if userID == "" {
		return fmt.Errorf("staff user id is required")
	}
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return fmt.Errorf("staff username is required")
	}

	active := 0
	if user.Active {
		active = 1
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO staff_users (
		   id, username, password_hash, display_name, role,
		   telegram_chat_id, active, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   username = excluded.username,
		   password_hash = excluded.password_hash,
		   display_name = excluded.display_name,
		   role = excluded.role,
		   telegram_chat_id = excluded.telegram_chat_id,
		   active = excluded.active,
		   updated_at = excluded.updated_at`,
		userID, username, user.PasswordHash, user.DisplayName, user.Role.String(),
		user.TelegramChatID, active, toMillis(user.CreatedAt), toMillis(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "staff_users.username") {
			return fmt.Errorf("staff username %s: %w", username, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("put staff user: %w", err)
	}
	return nil
}

func scanStaffUser(row rowScanner) (domain.StaffUser, error) {
	var user domain.StaffUser
	var role string
	var active int
	var createdAt, updatedAt int64
	err := row.Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.DisplayName, &role,
		&user.TelegramChatID, &active, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.StaffUser{}, err
	}
	user.Role, err = domain.ParseStaffRole(role)
	if err != nil {
		return domain.StaffUser{}, fmt.Errorf("staff user %s: %w", user.ID, err)
	}
	user.Active = active != 0
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return user, nil
}

// GetStaffUser loads one account by ID.
func (s *Store) GetStaffUser(ctx context.Context, userID string) (domain.StaffUser, error) {
	if err := s.ready(ctx); err != nil {
		return domain.StaffUser{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.StaffUser{}, fmt.Errorf("staff user id is required")
	}

	user, err := scanStaffUser(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff_users WHERE id = ?`, userID,
	))
	if err == sql.ErrNoRows {
		return domain.StaffUser{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.StaffUser{}, fmt.Errorf("get staff user: %w", err)
	}
	return user, nil
}

// GetStaffUserByUsername loads one account by its login name.
func (s *Store) GetStaffUserByUsername(ctx context.Context, username string) (domain.StaffUser, error) {
	if err := s.ready(ctx); err != nil {
		return domain.StaffUser{}, err
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return domain.StaffUser{}, fmt.Errorf("staff username is required")
	}

	user, err := scanStaffUser(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff_users WHERE username = ?`, username,
	))
	if err == sql.ErrNoRows {
		return domain.StaffUser{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.StaffUser{}, fmt.Errorf("get staff user by username: %w", err)
	}
	return user, nil
}

// GetStaffUserByTelegramChatID loads the account bound to a Telegram
// chat.
func (s *Store) GetStaffUserByTelegramChatID(ctx context.Context, chatID int64) (domain.StaffUser, error) {
	if err := s.ready(ctx); err != nil {
		return domain.StaffUser{}, err
	}
	if chatID == 0 {
		return domain.StaffUser{}, fmt.Errorf("telegram chat id is required")
	}

	user, err := scanStaffUser(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff_users WHERE telegram_chat_id = ?`, chatID,
	))
	if err == sql.ErrNoRows {
		return domain.StaffUser{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.StaffUser{}, fmt.Errorf("get staff user by chat: %w", err)
	}
	return user, nil
}

// ListStaffUsers pages through accounts ordered by ID.
func (s *Store) ListStaffUsers(ctx context.Context, pageSize int, pageToken string) (storage.StaffUserPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.StaffUserPage{}, err
	}
	if pageSize <= 0 {
		return storage.StaffUserPage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	var (
		rows *sql.Rows
		err  error
	)
	if pageToken == "" {
		rows, err = s.sqlDB.QueryContext(ctx,
			`SELECT `+staffColumns+` FROM staff_users ORDER BY id ASC LIMIT ?`,
			pageSize+1,
		)
	} else {
		rows, err = s.sqlDB.QueryContext(ctx,
			`SELECT `+staffColumns+` FROM staff_users WHERE id > ? ORDER BY id ASC LIMIT ?`,
			pageToken, pageSize+1,
		)
	}
	if err != nil {
		return storage.StaffUserPage{}, fmt.Errorf("list staff users: %w", err)
	}
	defer rows.Close()

	page := storage.StaffUserPage{Users: make([]domain.StaffUser, 0, pageSize)}
	for rows.Next() {
		user, err := scanStaffUser(rows)
		if err != nil {
			return storage.StaffUserPage{}, fmt.Errorf("list staff users: %w", err)
		}
		page.Users = append(page.Users, user)
	}
	if err := rows.Err(); err != nil {
		return storage.StaffUserPage{}, fmt.Errorf("list staff users: %w", err)
	}
	if len(page.Users) > pageSize {
		page.NextPageToken = page.Users[pageSize-1].ID
		page.Users = page.Users[:pageSize]
	}
	return page, nil
}

// BindStaffTelegram attaches a Telegram chat to an account. Any earlier
// binding of the same chat moves to the new account.
func (s *Store) BindStaffTelegram(ctx context.Context, userID string, chatID int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("staff user id is required")
	}
	if chatID == 0 {
		return fmt.Errorf("telegram chat id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bind telegram: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE staff_users SET telegram_chat_id = 0 WHERE telegram_chat_id = ?`, chatID,
	); err != nil {
		return fmt.Errorf("unbind telegram chat: %w", err)
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE staff_users SET telegram_chat_id = ? WHERE id = ?`, chatID, userID,
	)
	if err != nil {
		return fmt.Errorf("bind telegram chat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("bind telegram chat: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bind telegram: %w", err)
	}
	return nil
}

var _ storage.StaffStore = (*Store)(nil)
