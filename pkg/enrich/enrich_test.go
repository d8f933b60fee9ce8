package enrich

import (
	"testing"
	"time"

	"github.com/wisbric/lynex/pkg/event"
)

func TestEnrichSetsQueueLatency(t *testing.T) {
	queuedAt := time.Now().Add(-500 * time.Millisecond)
	e := event.Envelope{ProjectID: "proj_1", Type: event.TypeLog, Body: event.NewBody(event.TypeLog, map[string]any{"level": "info", "message": "hi"})}

	enriched := Enrich(e, queuedAt)

	if enriched.QueueLatencyMs <= 0 {
		t.Errorf("QueueLatencyMs = %v, want > 0", enriched.QueueLatencyMs)
	}
	if enriched.ProcessedAt.IsZero() {
		t.Error("ProcessedAt should be set")
	}
}

func TestEnrichNeverNegativeLatency(t *testing.T) {
	futureQueuedAt := time.Now().Add(time.Hour)
	e := event.Envelope{ProjectID: "proj_1", Type: event.TypeLog}

	enriched := Enrich(e, futureQueuedAt)

	if enriched.QueueLatencyMs != 0 {
		t.Errorf("QueueLatencyMs = %v, want 0 when queuedAt is in the future", enriched.QueueLatencyMs)
	}
}

func TestEnrichSkipsLatencyWhenQueuedAtZero(t *testing.T) {
	e := event.Envelope{ProjectID: "proj_1", Type: event.TypeLog}

	enriched := Enrich(e, time.Time{})

	if enriched.QueueLatencyMs != 0 {
		t.Errorf("QueueLatencyMs = %v, want 0 when queuedAt is zero", enriched.QueueLatencyMs)
	}
}

func TestEnrichTokenUsageAttachesCost(t *testing.T) {
	e := event.Envelope{
		ProjectID: "proj_1",
		Type:      event.TypeTokenUsage,
		Body: event.NewBody(event.TypeTokenUsage, map[string]any{
			"model":         "gpt-4",
			"input_tokens":  float64(1000),
			"output_tokens": float64(500),
		}),
	}

	enriched := Enrich(e, time.Now())

	if enriched.CostBreakdown == nil {
		t.Fatal("CostBreakdown should be set for token_usage events")
	}
	if enriched.CostBreakdown.NormalizedModel != "gpt-4" {
		t.Errorf("NormalizedModel = %q, want gpt-4", enriched.CostBreakdown.NormalizedModel)
	}
	if enriched.EstimatedCostUSD != 0.06 {
		t.Errorf("EstimatedCostUSD = %v, want 0.06", enriched.EstimatedCostUSD)
	}
}

func TestEnrichTokenUsageFromTotalTokensSplits70_30(t *testing.T) {
	e := event.Envelope{
		ProjectID: "proj_1",
		Type:      event.TypeTokenUsage,
		Body: event.NewBody(event.TypeTokenUsage, map[string]any{
			"model":        "gpt-4",
			"total_tokens": float64(1000),
		}),
	}

	enriched := Enrich(e, time.Now())

	if enriched.CostBreakdown == nil {
		t.Fatal("CostBreakdown should be set")
	}
	if enriched.EstimatedCostUSD <= 0 {
		t.Errorf("EstimatedCostUSD = %v, want > 0", enriched.EstimatedCostUSD)
	}
}

func TestEnrichNonTokenUsageHasNoCostBreakdown(t *testing.T) {
	e := event.Envelope{ProjectID: "proj_1", Type: event.TypeLog, Body: event.NewBody(event.TypeLog, map[string]any{"level": "info", "message": "hi"})}

	enriched := Enrich(e, time.Now())

	if enriched.CostBreakdown != nil {
		t.Error("CostBreakdown should be nil for non-token_usage events")
	}
}
