package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/wisbric/lynex/pkg/event"
)

// getNestedValue resolves a dotted path against the event's known
// top-level fields, descending into body/context maps for subsequent
// segments. Any missing or non-map hop returns ok=false, matching the
// original's "return None on any missing/non-dict hop" contract.
func getNestedValue(enriched event.Enriched, path string) (any, bool) {
	parts := strings.Split(path, ".")
	if len(parts) == 0 || parts[0] == "" {
		return nil, false
	}

	var cur any
	switch parts[0] {
	case "event_id":
		cur = enriched.EventID
	case "project_id":
		cur = enriched.ProjectID
	case "type":
		cur = string(enriched.Type)
	case "trace_id":
		cur = enriched.TraceID
	case "timestamp":
		cur = enriched.Timestamp
	case "body":
		if enriched.Body == nil {
			return nil, false
		}
		cur = enriched.Body.Raw()
	case "context":
		cur = map[string]any(enriched.Context)
	case "estimated_cost_usd":
		cur = enriched.EstimatedCostUSD
	case "queue_latency_ms":
		cur = enriched.QueueLatencyMs
	default:
		return nil, false
	}

	for _, key := range parts[1:] {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[key]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// evaluateRule checks a single rule against an enriched event, returning
// the triggered alert or nil. Mirrors alerts.py's evaluate_rule exactly:
// enabled + project match + optional event-type filter, then a
// condition-kind-specific predicate.
func evaluateRule(rule Rule, enriched event.Enriched) *Alert {
	if !rule.Enabled {
		return nil
	}
	if rule.ProjectID != enriched.ProjectID {
		return nil
	}
	if rule.EventType != "" && string(enriched.Type) != rule.EventType {
		return nil
	}

	var triggered bool
	var message string

	switch rule.Condition {
	case ConditionErrorCount:
		if enriched.Type == event.TypeError {
			triggered = true
			errMsg := "unknown error"
			if enriched.Body != nil {
				if m, ok := enriched.Body.Raw()["message"].(string); ok && m != "" {
					errMsg = m
				}
			}
			message = fmt.Sprintf("Error occurred: %s", errMsg)
		}

	case ConditionLatencyThreshold:
		path := rule.FieldPath
		if path == "" {
			path = defaultLatencyFieldPath
		}
		if raw, ok := getNestedValue(enriched, path); ok {
			if latency, ok := toFloat64(raw); ok && latency > rule.Threshold {
				triggered = true
				message = fmt.Sprintf("High latency detected: %gms (threshold: %gms)", latency, rule.Threshold)
			}
		}

	case ConditionCostThreshold:
		if enriched.EstimatedCostUSD > rule.Threshold {
			triggered = true
			message = fmt.Sprintf("High cost event: $%.4f (threshold: $%g)", enriched.EstimatedCostUSD, rule.Threshold)
		}

	case ConditionEventMatch:
		if rule.FieldPath != "" && rule.FieldValue != "" {
			if raw, ok := getNestedValue(enriched, rule.FieldPath); ok {
				if fmt.Sprint(raw) == rule.FieldValue {
					triggered = true
					message = fmt.Sprintf("Event matched: %s = %s", rule.FieldPath, rule.FieldValue)
				}
			}
		}

	case ConditionErrorRateThreshold:
		// Reserved for a future windowed-rate variant; not evaluated
		// per-event, matching the original enum member that the
		// reference implementation never wired into evaluate_rule.
	}

	if !triggered {
		return nil
	}

	return &Alert{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		ProjectID: rule.ProjectID,
		Severity:  rule.Severity,
		Message:   message,
		EventID:   enriched.EventID,
		EventType: string(enriched.Type),
		Metadata: map[string]any{
			"event_type": string(enriched.Type),
			"timestamp":  enriched.Timestamp,
		},
		FiredAt: time.Now().UTC(),
	}
}
