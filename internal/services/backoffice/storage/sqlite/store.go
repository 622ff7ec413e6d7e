// Package sqlite provides the SQLite-backed back-office storage
// implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atelier-erp/atelier/internal/platform/id"
	sqlitemigrate "github.com/atelier-erp/atelier/internal/platform/storage/sqlitemigrate"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists back-office state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toMillisPtr(value *time.Time) any {
	if value == nil {
		return nil
	}
	return toMillis(*value)
}

func fromMillisPtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

// Open opens a SQLite back-office store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// isUniqueViolation reports whether err is a primary-key or unique
// constraint failure mentioning the qualified column, e.g. "products.sku".
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, column)
}

// execer covers *sql.DB and *sql.Tx for helpers that run inside or
// outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// nextDocumentNumber allocates the next number in a document family,
// e.g. S-000123. Allocation happens inside the caller's transaction so
// numbers stay gapless per committed document.
func nextDocumentNumber(ctx context.Context, tx *sql.Tx, prefix string) (string, error) {
	var next int64
	err := tx.QueryRowContext(ctx,
		`SELECT next_seq FROM document_numbers WHERE prefix = ?`, prefix,
	).Scan(&next)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_numbers (prefix, next_seq) VALUES (?, 2)`, prefix,
		); err != nil {
			return "", fmt.Errorf("seed document sequence %s: %w", prefix, err)
		}
		next = 1
	case err != nil:
		return "", fmt.Errorf("read document sequence %s: %w", prefix, err)
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE document_numbers SET next_seq = next_seq + 1 WHERE prefix = ?`, prefix,
		); err != nil {
			return "", fmt.Errorf("advance document sequence %s: %w", prefix, err)
		}
	}
	return domain.FormatDocumentNumber(prefix, next), nil
}

// enqueueOutboxEvent inserts a pending notification inside the caller's
// transaction. A duplicate dedupe key leaves the existing event alone.
func enqueueOutboxEvent(ctx context.Context, db execer, eventType, payloadJSON, dedupeKey string, now time.Time) error {
	eventID, err := id.NewID()
	if err != nil {
		return fmt.Errorf("generate outbox event id: %w", err)
	}
	nowMillis := toMillis(now)
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO notification_outbox (
		   id, event_type, payload_json, dedupe_key, status,
		   attempt_count, next_attempt_at, lease_owner, last_error,
		   created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, 0, ?, '', '', ?, ?)`,
		eventID, eventType, payloadJSON, dedupeKey, string(storage.OutboxStatusPending),
		nowMillis, nowMillis, nowMillis,
	); err != nil {
		return fmt.Errorf("enqueue outbox event: %w", err)
	}
	return nil
}
