package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

const outboxColumns = `id, event_type, payload_json, dedupe_key, status,
	attempt_count, next_attempt_at, lease_owner, lease_expires_at,
	last_error, processed_at, created_at, updated_at`

// leaseEligible matches events a consumer may claim: pending events that
// are due, plus leased events whose lease expired.
const leaseEligible = `(status = 'pending' AND next_attempt_at <= ?)
	OR (status = 'leased' AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?)`

func scanOutboxEvent(row rowScanner) (storage.OutboxEvent, error) {
	var event storage.OutboxEvent
	var status string
	var nextAttemptAt, createdAt, updatedAt int64
	var leaseExpiresAt, processedAt sql.NullInt64
	err := row.Scan(
		&event.ID, &event.EventType, &event.PayloadJSON, &event.DedupeKey, &status,
		&event.AttemptCount, &nextAttemptAt, &event.LeaseOwner, &leaseExpiresAt,
		&event.LastError, &processedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return storage.OutboxEvent{}, err
	}
	event.Status = storage.OutboxStatus(status)
	event.NextAttemptAt = fromMillis(nextAttemptAt)
	event.LeaseExpiresAt = fromMillisPtr(leaseExpiresAt)
	event.ProcessedAt = fromMillisPtr(processedAt)
	event.CreatedAt = fromMillis(createdAt)
	event.UpdatedAt = fromMillis(updatedAt)
	return event, nil
}

// EnqueueOutboxEvent inserts a pending notification event. A duplicate
// dedupe key leaves the existing event in place without error.
func (s *Store) EnqueueOutboxEvent(ctx context.Context, event storage.OutboxEvent) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(event.EventType) == "" {
		return fmt.Errorf("outbox event type is required")
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if strings.TrimSpace(event.ID) != "" {
		nowMillis := toMillis(createdAt)
		nextAttempt := event.NextAttemptAt
		if nextAttempt.IsZero() {
			nextAttempt = createdAt
		}
		if _, err := s.sqlDB.ExecContext(ctx,
			`INSERT OR IGNORE INTO notification_outbox (
			   id, event_type, payload_json, dedupe_key, status,
			   attempt_count, next_attempt_at, lease_owner, last_error,
			   created_at, updated_at
			 ) VALUES (?, ?, ?, ?, ?, 0, ?, '', '', ?, ?)`,
			event.ID, event.EventType, event.PayloadJSON, event.DedupeKey,
			string(storage.OutboxStatusPending), toMillis(nextAttempt), nowMillis, nowMillis,
		); err != nil {
			return fmt.Errorf("enqueue outbox event: %w", err)
		}
		return nil
	}
	return enqueueOutboxEvent(ctx, s.sqlDB, event.EventType, event.PayloadJSON,
		event.DedupeKey, createdAt)
}

// LeaseOutboxEvents claims up to limit due events for a consumer.
// Expired leases are reclaimed. Claims happen one event at a time so a
// concurrent consumer skips rows it lost.
func (s *Store) LeaseOutboxEvents(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]storage.OutboxEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return nil, fmt.Errorf("consumer is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if leaseTTL <= 0 {
		return nil, fmt.Errorf("lease ttl must be greater than zero")
	}

	nowMillis := toMillis(now)
	leaseExpiry := toMillis(now.Add(leaseTTL))

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin lease outbox events: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM notification_outbox
		  WHERE `+leaseEligible+`
		  ORDER BY next_attempt_at ASC, created_at ASC, id ASC
		  LIMIT ?`,
		nowMillis, nowMillis, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select outbox candidates: %w", err)
	}
	candidates := make([]string, 0, limit)
	for rows.Next() {
		var eventID string
		if err := rows.Scan(&eventID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("select outbox candidates: %w", err)
		}
		candidates = append(candidates, eventID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("select outbox candidates: %w", err)
	}
	rows.Close()

	leased := make([]storage.OutboxEvent, 0, len(candidates))
	for _, eventID := range candidates {
		result, err := tx.ExecContext(ctx,
			`UPDATE notification_outbox SET
			   status = 'leased', lease_owner = ?, lease_expires_at = ?, updated_at = ?
			 WHERE id = ? AND (`+leaseEligible+`)`,
			consumer, leaseExpiry, nowMillis, eventID, nowMillis, nowMillis,
		)
		if err != nil {
			return nil, fmt.Errorf("lease outbox event: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("lease outbox event: %w", err)
		}
		if affected == 0 {
			continue
		}
		event, err := scanOutboxEvent(tx.QueryRowContext(ctx,
			`SELECT `+outboxColumns+` FROM notification_outbox WHERE id = ?`, eventID,
		))
		if err != nil {
			return nil, fmt.Errorf("reload leased outbox event: %w", err)
		}
		leased = append(leased, event)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lease outbox events: %w", err)
	}
	return leased, nil
}

// MarkOutboxEventSucceeded records a delivered event. The caller must
// still hold the lease.
func (s *Store) MarkOutboxEventSucceeded(ctx context.Context, eventID string, consumer string, processedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	eventID = strings.TrimSpace(eventID)
	consumer = strings.TrimSpace(consumer)
	if eventID == "" || consumer == "" {
		return fmt.Errorf("event id and consumer are required")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE notification_outbox SET
		   status = 'succeeded', processed_at = ?, lease_owner = '',
		   lease_expires_at = NULL, updated_at = ?
		 WHERE id = ? AND status = 'leased' AND lease_owner = ?`,
		toMillis(processedAt), toMillis(processedAt), eventID, consumer,
	)
	if err != nil {
		return fmt.Errorf("mark outbox event succeeded: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark outbox event succeeded: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkOutboxEventRetry returns a leased event to pending for a later
// attempt. The caller must still hold the lease.
func (s *Store) MarkOutboxEventRetry(ctx context.Context, eventID string, consumer string, nextAttemptAt time.Time, lastError string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	eventID = strings.TrimSpace(eventID)
	consumer = strings.TrimSpace(consumer)
	if eventID == "" || consumer == "" {
		return fmt.Errorf("event id and consumer are required")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE notification_outbox SET
		   status = 'pending', attempt_count = attempt_count + 1,
		   next_attempt_at = ?, last_error = ?, lease_owner = '',
		   lease_expires_at = NULL, updated_at = ?
		 WHERE id = ? AND status = 'leased' AND lease_owner = ?`,
		toMillis(nextAttemptAt), lastError, toMillis(nextAttemptAt), eventID, consumer,
	)
	if err != nil {
		return fmt.Errorf("mark outbox event retry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark outbox event retry: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkOutboxEventDead abandons a leased event after repeated failures.
// The caller must still hold the lease.
func (s *Store) MarkOutboxEventDead(ctx context.Context, eventID string, consumer string, lastError string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	eventID = strings.TrimSpace(eventID)
	consumer = strings.TrimSpace(consumer)
	if eventID == "" || consumer == "" {
		return fmt.Errorf("event id and consumer are required")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE notification_outbox SET
		   status = 'dead', attempt_count = attempt_count + 1, last_error = ?,
		   lease_owner = '', lease_expires_at = NULL, processed_at = ?, updated_at = ?
		 WHERE id = ? AND status = 'leased' AND lease_owner = ?`,
		lastError, toMillis(at), toMillis(at), eventID, consumer,
	)
	if err != nil {
		return fmt.Errorf("mark outbox event dead: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark outbox event dead: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CountOutboxEvents reports how many events sit in each status.
func (s *Store) CountOutboxEvents(ctx context.Context) (map[storage.OutboxStatus]int64, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM notification_outbox GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("count outbox events: %w", err)
	}
	defer rows.Close()

	counts := make(map[storage.OutboxStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("count outbox events: %w", err)
		}
		counts[storage.OutboxStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count outbox events: %w", err)
	}
	return counts, nil
}

// RequeueDeadOutboxEvents moves up to limit dead events back to pending
// so the dispatcher retries them, and reports how many were revived.
// Oldest events go first.
func (s *Store) RequeueDeadOutboxEvents(ctx context.Context, limit int, now time.Time) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, fmt.Errorf("requeue limit must be greater than zero")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`WITH to_requeue AS (
		   SELECT id FROM notification_outbox
		   WHERE status = 'dead'
		   ORDER BY updated_at ASC, id ASC
		   LIMIT ?
		 )
		 UPDATE notification_outbox SET
		   status = 'pending', attempt_count = 0, next_attempt_at = ?,
		   last_error = '', processed_at = NULL, updated_at = ?
		 WHERE status = 'dead'
		   AND id IN (SELECT id FROM to_requeue)`,
		limit, toMillis(now), toMillis(now),
	)
	if err != nil {
		return 0, fmt.Errorf("requeue dead outbox events: %w", err)
	}
	revived, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue dead outbox events: %w", err)
	}
	return revived, nil
}

var _ storage.OutboxStore = (*Store)(nil)
