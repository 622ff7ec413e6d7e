package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

// PutPricingRule inserts or updates one pricing script.
func (s *Store) PutPricingRule(ctx context.Context, rule storage.PricingRule) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ruleID := strings.TrimSpace(rule.ID)
	if ruleID == "" {
		return fmt.Errorf("pricing rule id is required")
	}
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("pricing rule name is required")
	}
	if strings.TrimSpace(rule.Source) == "" {
		return fmt.Errorf("pricing rule source is required")
	}

	active := 0
	if rule.Active {
		active = 1
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO pricing_rules (id, name, source, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   source = excluded.source,
		   active = excluded.active,
		   updated_at = excluded.updated_at`,
		ruleID, rule.Name, rule.Source, active,
		toMillis(rule.CreatedAt), toMillis(rule.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put pricing rule: %w", err)
	}
	return nil
}

func scanPricingRule(row rowScanner) (storage.PricingRule, error) {
	var rule storage.PricingRule
	var active int
	var createdAt, updatedAt int64
	err := row.Scan(&rule.ID, &rule.Name, &rule.Source, &active, &createdAt, &updatedAt)
	if err != nil {
		return storage.PricingRule{}, err
	}
	rule.Active = active != 0
	rule.CreatedAt = fromMillis(createdAt)
	rule.UpdatedAt = fromMillis(updatedAt)
	return rule, nil
}

// GetPricingRule loads one pricing script by ID.
func (s *Store) GetPricingRule(ctx context.Context, ruleID string) (storage.PricingRule, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PricingRule{}, err
	}
	ruleID = strings.TrimSpace(ruleID)
	if ruleID == "" {
		return storage.PricingRule{}, fmt.Errorf("pricing rule id is required")
	}

	rule, err := scanPricingRule(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, source, active, created_at, updated_at
		   FROM pricing_rules WHERE id = ?`, ruleID,
	))
	if err == sql.ErrNoRows {
		return storage.PricingRule{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.PricingRule{}, fmt.Errorf("get pricing rule: %w", err)
	}
	return rule, nil
}

// GetActivePricingRule returns the single active script, or ErrNotFound
// when pricing runs on the built-in formula.
func (s *Store) GetActivePricingRule(ctx context.Context) (storage.PricingRule, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PricingRule{}, err
	}

	rule, err := scanPricingRule(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, source, active, created_at, updated_at
		   FROM pricing_rules WHERE active = 1 ORDER BY updated_at DESC LIMIT 1`,
	))
	if err == sql.ErrNoRows {
		return storage.PricingRule{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.PricingRule{}, fmt.Errorf("get active pricing rule: %w", err)
	}
	return rule, nil
}

// SetActivePricingRule activates one script and deactivates the rest.
func (s *Store) SetActivePricingRule(ctx context.Context, ruleID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ruleID = strings.TrimSpace(ruleID)
	if ruleID == "" {
		return fmt.Errorf("pricing rule id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set active pricing rule: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE pricing_rules SET active = 0 WHERE active = 1`,
	); err != nil {
		return fmt.Errorf("deactivate pricing rules: %w", err)
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE pricing_rules SET active = 1 WHERE id = ?`, ruleID,
	)
	if err != nil {
		return fmt.Errorf("activate pricing rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("activate pricing rule: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set active pricing rule: %w", err)
	}
	return nil
}

// ListPricingRules returns all pricing scripts ordered by name.
func (s *Store) ListPricingRules(ctx context.Context) ([]storage.PricingRule, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, source, active, created_at, updated_at
		   FROM pricing_rules ORDER BY name ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list pricing rules: %w", err)
	}
	defer rows.Close()

	var rules []storage.PricingRule
	for rows.Next() {
		rule, err := scanPricingRule(rows)
		if err != nil {
			return nil, fmt.Errorf("list pricing rules: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pricing rules: %w", err)
	}
	return rules, nil
}

var _ storage.PricingRuleStore = (*Store)(nil)
