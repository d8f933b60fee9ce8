package alert

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/wisbric/lynex/pkg/event"
)

type fakeRuleLister struct {
	rules []Rule
	err   error
	calls int
}

func (f *fakeRuleLister) ListEnabled(_ context.Context) ([]Rule, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rules, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManagerLoadPopulatesSnapshot(t *testing.T) {
	store := &fakeRuleLister{rules: []Rule{{ID: "r1", ProjectID: "proj_1", Condition: ConditionErrorCount, Enabled: true}}}
	m := NewManager(store, testLogger())

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(m.Rules()) != 1 {
		t.Fatalf("Rules() len = %d, want 1", len(m.Rules()))
	}
}

func TestManagerEvaluateReturnsAllTriggeredAlerts(t *testing.T) {
	store := &fakeRuleLister{rules: []Rule{
		{ID: "r1", Name: "errors", ProjectID: "proj_1", Condition: ConditionErrorCount, Severity: SeverityWarning, Enabled: true, EventType: "error"},
		{ID: "r2", Name: "cost", ProjectID: "proj_1", Condition: ConditionCostThreshold, Threshold: 0.1, Severity: SeverityCritical, Enabled: true},
	}}
	m := NewManager(store, testLogger())
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	enriched := event.Enriched{
		Envelope:         event.Envelope{EventID: "evt_1", ProjectID: "proj_1", Type: event.TypeError, Body: event.NewBody(event.TypeError, map[string]any{"message": "boom"})},
		EstimatedCostUSD: 1.0,
	}

	alerts := m.Evaluate(enriched)

	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2", len(alerts))
	}
}

func TestManagerLoadFailureKeepsPreviousSnapshot(t *testing.T) {
	store := &fakeRuleLister{rules: []Rule{{ID: "r1", ProjectID: "proj_1", Enabled: true}}}
	m := NewManager(store, testLogger())
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	store.err = errors.New("db down")
	if err := m.Load(context.Background()); err == nil {
		t.Fatal("expected Load() to return error")
	}
	if len(m.Rules()) != 1 {
		t.Fatalf("Rules() len = %d, want 1 (previous snapshot retained)", len(m.Rules()))
	}
}
