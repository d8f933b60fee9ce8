package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ruleColumns = `id, name, project_id, condition, threshold, severity, enabled, event_type, field_path, field_value, created_at, updated_at`

// Store provides Postgres-backed alert rule persistence. Hand-written SQL
// in the same idiom as pkg/credential and pkg/billing's stores, not sqlc —
// no generated-query tooling appears anywhere else in this module.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanRule(row pgx.Row) (Rule, error) {
	var r Rule
	var id uuid.UUID
	var condition, severity string

	err := row.Scan(&id, &r.Name, &r.ProjectID, &condition, &r.Threshold, &severity,
		&r.Enabled, &r.EventType, &r.FieldPath, &r.FieldValue, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Rule{}, err
	}

	r.ID = id.String()
	r.Condition = Condition(condition)
	r.Severity = Severity(severity)
	return r, nil
}

// ListEnabled returns every enabled rule, across all projects. Implements
// RuleLister for Manager.
func (s *Store) ListEnabled(ctx context.Context) ([]Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE enabled = true ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing enabled alert rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert rule row: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ListPage returns one page of a project's rules, ordered oldest-first,
// along with the total count for the project (for the admin list
// endpoint's offset pagination).
func (s *Store) ListPage(ctx context.Context, projectID string, offset, limit int) ([]Rule, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM alert_rules WHERE project_id = $1`, projectID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting alert rules: %w", err)
	}

	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE project_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing alert rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning alert rule row: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, total, rows.Err()
}

// Get returns a single rule by id, or pgx.ErrNoRows if none exists.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE id = $1`
	return scanRule(s.pool.QueryRow(ctx, query, id))
}

// Create inserts a new alert rule.
func (s *Store) Create(ctx context.Context, r Rule) (Rule, error) {
	query := `
	INSERT INTO alert_rules (name, project_id, condition, threshold, severity, enabled, event_type, field_path, field_value, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	RETURNING ` + ruleColumns

	now := time.Now().UTC()
	return scanRule(s.pool.QueryRow(ctx, query,
		r.Name, r.ProjectID, string(r.Condition), r.Threshold, string(r.Severity),
		r.Enabled, r.EventType, r.FieldPath, r.FieldValue, now,
	))
}

// Update replaces the mutable fields of an existing rule.
func (s *Store) Update(ctx context.Context, id uuid.UUID, r Rule) (Rule, error) {
	query := `
	UPDATE alert_rules SET
		name = $2, condition = $3, threshold = $4, severity = $5, enabled = $6,
		event_type = $7, field_path = $8, field_value = $9, updated_at = $10
	WHERE id = $1
	RETURNING ` + ruleColumns

	return scanRule(s.pool.QueryRow(ctx, query,
		id, r.Name, string(r.Condition), r.Threshold, string(r.Severity), r.Enabled,
		r.EventType, r.FieldPath, r.FieldValue, time.Now().UTC(),
	))
}

// Delete permanently removes a rule.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting alert rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
