// Package alert implements the rule-based alert engine (spec §4.8): rule
// storage, periodic reload, per-event evaluation, and the triggered-alert
// type handed to pkg/notifier.
package alert

import "time"

// Condition enumerates the supported rule predicates.
type Condition string

const (
	ConditionErrorRateThreshold Condition = "error_rate_threshold"
	ConditionCostThreshold      Condition = "cost_threshold"
	ConditionLatencyThreshold   Condition = "latency_threshold"
	ConditionErrorCount         Condition = "error_count"
	ConditionEventMatch         Condition = "event_match"
)

// Severity enumerates the alert severity levels.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// defaultLatencyFieldPath is used for latency_threshold rules that don't
// specify a field_path.
const defaultLatencyFieldPath = "body.latencyMs"

// Rule is a configured alert condition, scoped to a single project.
type Rule struct {
	ID        string
	Name      string
	ProjectID string
	Condition Condition
	Threshold float64
	Severity  Severity
	Enabled   bool

	// EventType, if set, restricts the rule to events of that type.
	EventType string
	// FieldPath is a dotted path into the event/body used by
	// latency_threshold and event_match rules.
	FieldPath string
	// FieldValue is the expected stringified value for event_match rules.
	FieldValue string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Alert is a single triggered instance of a Rule.
type Alert struct {
	RuleID    string
	RuleName  string
	ProjectID string
	Severity  Severity
	Message   string
	EventID   string
	EventType string
	Metadata  map[string]any
	FiredAt   time.Time
}
