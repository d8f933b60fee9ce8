package analytics

import (
	"testing"
	"time"

	"github.com/wisbric/lynex/pkg/event"
)

func TestRowFromEnrichedMapsFields(t *testing.T) {
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	enriched := event.Enriched{
		Envelope: event.Envelope{
			EventID:   "evt_1",
			ProjectID: "proj_1",
			Type:      event.TypeLog,
			Timestamp: ts,
			SDK:       event.SDKInfo{Name: "python", Version: "1.0"},
			Body:      event.NewBody(event.TypeLog, map[string]any{"message": "hi"}),
			Context:   map[string]any{"env": "prod"},
		},
		QueuedAt:         ts,
		ProcessedAt:      ts.Add(time.Second),
		QueueLatencyMs:   12.5,
		EstimatedCostUSD: 0.02,
	}

	row, err := RowFromEnriched(enriched)
	if err != nil {
		t.Fatalf("RowFromEnriched() error = %v", err)
	}

	if row.EventID != "evt_1" || row.ProjectID != "proj_1" || row.Type != "log" {
		t.Errorf("row = %+v", row)
	}
	if row.Body != `{"message":"hi"}` {
		t.Errorf("Body = %q", row.Body)
	}
	if row.Context != `{"env":"prod"}` {
		t.Errorf("Context = %q", row.Context)
	}
	if row.Timestamp != ts.Unix() {
		t.Errorf("Timestamp = %d, want %d", row.Timestamp, ts.Unix())
	}
	if row.QueueLatencyMs != 12.5 {
		t.Errorf("QueueLatencyMs = %v", row.QueueLatencyMs)
	}
}
