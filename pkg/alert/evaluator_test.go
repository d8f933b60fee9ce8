package alert

import (
	"testing"
	"time"

	"github.com/wisbric/lynex/pkg/event"
)

func enrichedFixture(eventType event.Type, body map[string]any) event.Enriched {
	return event.Enriched{
		Envelope: event.Envelope{
			EventID:   "evt_1",
			ProjectID: "proj_1",
			Type:      eventType,
			Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Body:      event.NewBody(eventType, body),
		},
	}
}

func TestEvaluateRuleErrorCount(t *testing.T) {
	rule := Rule{ID: "r1", Name: "errors", ProjectID: "proj_1", Condition: ConditionErrorCount, Severity: SeverityWarning, Enabled: true, EventType: "error"}
	enriched := enrichedFixture(event.TypeError, map[string]any{"message": "boom"})

	alert := evaluateRule(rule, enriched)

	if alert == nil {
		t.Fatal("expected alert to trigger")
	}
	if alert.Message != "Error occurred: boom" {
		t.Errorf("message = %q", alert.Message)
	}
}

func TestEvaluateRuleErrorCountIgnoresNonErrorEvents(t *testing.T) {
	rule := Rule{ID: "r1", ProjectID: "proj_1", Condition: ConditionErrorCount, Severity: SeverityWarning, Enabled: true}
	enriched := enrichedFixture(event.TypeLog, map[string]any{"message": "hi"})

	if alert := evaluateRule(rule, enriched); alert != nil {
		t.Fatalf("expected no alert, got %+v", alert)
	}
}

func TestEvaluateRuleLatencyThresholdDefaultPath(t *testing.T) {
	rule := Rule{ID: "r1", Name: "latency", ProjectID: "proj_1", Condition: ConditionLatencyThreshold, Threshold: 1000, Severity: SeverityWarning, Enabled: true, EventType: "model_response"}
	enriched := enrichedFixture(event.TypeModelResponse, map[string]any{"latencyMs": float64(1500)})

	alert := evaluateRule(rule, enriched)

	if alert == nil {
		t.Fatal("expected alert to trigger")
	}
}

func TestEvaluateRuleLatencyThresholdNotExceeded(t *testing.T) {
	rule := Rule{ID: "r1", ProjectID: "proj_1", Condition: ConditionLatencyThreshold, Threshold: 1000, Severity: SeverityWarning, Enabled: true}
	enriched := enrichedFixture(event.TypeModelResponse, map[string]any{"latencyMs": float64(500)})

	if alert := evaluateRule(rule, enriched); alert != nil {
		t.Fatalf("expected no alert, got %+v", alert)
	}
}

func TestEvaluateRuleCostThreshold(t *testing.T) {
	rule := Rule{ID: "r1", Name: "cost", ProjectID: "proj_1", Condition: ConditionCostThreshold, Threshold: 0.5, Severity: SeverityCritical, Enabled: true}
	enriched := enrichedFixture(event.TypeTokenUsage, map[string]any{})
	enriched.EstimatedCostUSD = 1.25

	alert := evaluateRule(rule, enriched)

	if alert == nil {
		t.Fatal("expected alert to trigger")
	}
	if alert.Severity != SeverityCritical {
		t.Errorf("severity = %q", alert.Severity)
	}
}

func TestEvaluateRuleEventMatch(t *testing.T) {
	rule := Rule{ID: "r1", Name: "model match", ProjectID: "proj_1", Condition: ConditionEventMatch, Severity: SeverityInfo, Enabled: true, FieldPath: "body.model", FieldValue: "gpt-4"}
	enriched := enrichedFixture(event.TypeTokenUsage, map[string]any{"model": "gpt-4"})

	alert := evaluateRule(rule, enriched)

	if alert == nil {
		t.Fatal("expected alert to trigger")
	}
}

func TestEvaluateRuleEventMatchMissingPathNeverTriggers(t *testing.T) {
	rule := Rule{ID: "r1", ProjectID: "proj_1", Condition: ConditionEventMatch, Severity: SeverityInfo, Enabled: true, FieldPath: "body.missing.deeper", FieldValue: "x"}
	enriched := enrichedFixture(event.TypeTokenUsage, map[string]any{"model": "gpt-4"})

	if alert := evaluateRule(rule, enriched); alert != nil {
		t.Fatalf("expected no alert, got %+v", alert)
	}
}

func TestEvaluateRuleSkipsDisabled(t *testing.T) {
	rule := Rule{ID: "r1", ProjectID: "proj_1", Condition: ConditionErrorCount, Enabled: false}
	enriched := enrichedFixture(event.TypeError, map[string]any{})

	if alert := evaluateRule(rule, enriched); alert != nil {
		t.Fatalf("expected no alert for disabled rule, got %+v", alert)
	}
}

func TestEvaluateRuleSkipsProjectMismatch(t *testing.T) {
	rule := Rule{ID: "r1", ProjectID: "proj_other", Condition: ConditionErrorCount, Enabled: true}
	enriched := enrichedFixture(event.TypeError, map[string]any{})

	if alert := evaluateRule(rule, enriched); alert != nil {
		t.Fatalf("expected no alert for mismatched project, got %+v", alert)
	}
}

func TestEvaluateRuleSkipsEventTypeMismatch(t *testing.T) {
	rule := Rule{ID: "r1", ProjectID: "proj_1", Condition: ConditionCostThreshold, Threshold: 0, Severity: SeverityInfo, Enabled: true, EventType: "log"}
	enriched := enrichedFixture(event.TypeTokenUsage, map[string]any{})
	enriched.EstimatedCostUSD = 10

	if alert := evaluateRule(rule, enriched); alert != nil {
		t.Fatalf("expected no alert for event_type mismatch, got %+v", alert)
	}
}

func TestGetNestedValueReturnsNilOnMissingHop(t *testing.T) {
	enriched := enrichedFixture(event.TypeLog, map[string]any{"level": "info"})

	if _, ok := getNestedValue(enriched, "body.nope.deeper"); ok {
		t.Fatal("expected ok=false for missing hop")
	}
	if _, ok := getNestedValue(enriched, "body.level"); !ok {
		t.Fatal("expected ok=true for present path")
	}
}
