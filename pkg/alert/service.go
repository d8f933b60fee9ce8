package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a rule does not exist or does not belong to
// the requesting project.
var ErrNotFound = errors.New("alert: rule not found")

// ruleStore is the persistence surface Service depends on. Declared
// locally so Service can be tested without a database.
type ruleStore interface {
	ListPage(ctx context.Context, projectID string, offset, limit int) ([]Rule, int, error)
	Get(ctx context.Context, id uuid.UUID) (Rule, error)
	Create(ctx context.Context, r Rule) (Rule, error)
	Update(ctx context.Context, id uuid.UUID, r Rule) (Rule, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service implements the admin CRUD surface for alert rules (SPEC_FULL.md
// §5's supplemented "admin API" for spec §3's rule lifecycle).
type Service struct {
	store ruleStore
}

// NewService creates a Service.
func NewService(store ruleStore) *Service {
	return &Service{store: store}
}

// ListPage returns one offset-paginated page of a project's rules and the
// project's total rule count.
func (s *Service) ListPage(ctx context.Context, projectID string, offset, limit int) ([]Rule, int, error) {
	return s.store.ListPage(ctx, projectID, offset, limit)
}

// Create validates and persists a new rule scoped to projectID.
func (s *Service) Create(ctx context.Context, projectID string, r Rule) (Rule, error) {
	r.ProjectID = projectID
	if err := validateRule(r); err != nil {
		return Rule{}, err
	}
	return s.store.Create(ctx, r)
}

// Get returns a single rule, scoped to projectID.
func (s *Service) Get(ctx context.Context, projectID string, id uuid.UUID) (Rule, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return Rule{}, err
	}
	if r.ProjectID != projectID {
		return Rule{}, ErrNotFound
	}
	return r, nil
}

// Update applies a full replacement of a rule's mutable fields, scoped to
// projectID.
func (s *Service) Update(ctx context.Context, projectID string, id uuid.UUID, r Rule) (Rule, error) {
	existing, err := s.Get(ctx, projectID, id)
	if err != nil {
		return Rule{}, err
	}

	r.ProjectID = existing.ProjectID
	if err := validateRule(r); err != nil {
		return Rule{}, err
	}
	return s.store.Update(ctx, id, r)
}

// Delete removes a rule, scoped to projectID.
func (s *Service) Delete(ctx context.Context, projectID string, id uuid.UUID) error {
	if _, err := s.Get(ctx, projectID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

func validateRule(r Rule) error {
	switch r.Condition {
	case ConditionErrorRateThreshold, ConditionCostThreshold, ConditionLatencyThreshold, ConditionErrorCount, ConditionEventMatch:
	default:
		return fmt.Errorf("alert: unknown condition %q", r.Condition)
	}

	switch r.Severity {
	case SeverityInfo, SeverityWarning, SeverityCritical:
	default:
		return fmt.Errorf("alert: unknown severity %q", r.Severity)
	}

	if r.Condition == ConditionEventMatch && (r.FieldPath == "" || r.FieldValue == "") {
		return errors.New("alert: event_match rules require field_path and field_value")
	}

	return nil
}
