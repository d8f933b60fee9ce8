// Package seed provisions default alert rules for a project, for the
// "seed-rules" run mode used to bootstrap a new deployment.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wisbric/lynex/pkg/alert"
)

// defaultRules are the starter rules provisioned for a project with none
// configured yet: one per condition kind, tuned to reasonable defaults.
func defaultRules(projectID string) []alert.Rule {
	return []alert.Rule{
		{
			Name:      "high error rate",
			ProjectID: projectID,
			Condition: alert.ConditionErrorCount,
			Severity:  alert.SeverityWarning,
			Enabled:   true,
			EventType: "error",
		},
		{
			Name:      "high token cost",
			ProjectID: projectID,
			Condition: alert.ConditionCostThreshold,
			Threshold: 10.0,
			Severity:  alert.SeverityCritical,
			Enabled:   true,
		},
		{
			Name:      "slow model response",
			ProjectID: projectID,
			Condition: alert.ConditionLatencyThreshold,
			Threshold: 5000,
			Severity:  alert.SeverityWarning,
			Enabled:   true,
			EventType: "model_response",
		},
	}
}

// ruleProvisioner is the subset of alert.Service's surface seed needs.
// Declared locally so Run can be tested without a database.
type ruleProvisioner interface {
	ListPage(ctx context.Context, projectID string, offset, limit int) ([]alert.Rule, int, error)
	Create(ctx context.Context, projectID string, r alert.Rule) (alert.Rule, error)
}

// Run provisions defaultRules for projectID. It is idempotent: if the
// project already has any rules configured, it logs and returns nil rather
// than creating duplicates.
func Run(ctx context.Context, svc ruleProvisioner, projectID string, logger *slog.Logger) error {
	_, total, err := svc.ListPage(ctx, projectID, 0, 1)
	if err != nil {
		return fmt.Errorf("checking existing rules for project %q: %w", projectID, err)
	}
	if total > 0 {
		logger.Info("seed-rules: project already has rules configured, skipping", "project_id", projectID, "existing_rules", total)
		return nil
	}

	rules := defaultRules(projectID)
	for _, r := range rules {
		created, err := svc.Create(ctx, projectID, r)
		if err != nil {
			return fmt.Errorf("seeding rule %q: %w", r.Name, err)
		}
		logger.Info("seed-rules: created rule", "name", created.Name, "id", created.ID, "condition", created.Condition)
	}

	logger.Info("seed-rules: completed successfully", "project_id", projectID, "rules", len(rules))
	return nil
}
