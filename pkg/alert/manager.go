package alert

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wisbric/lynex/pkg/event"
)

// refreshInterval is how often the manager reloads rules from the store
// (spec §4.8: "a background task in every processor reloads from the rule
// store every 60 s").
const refreshInterval = 60 * time.Second

// RuleLister loads the currently enabled rule set. Declared locally so
// Manager can be tested without a database.
type RuleLister interface {
	ListEnabled(ctx context.Context) ([]Rule, error)
}

// Manager holds the current rule set as an atomically-swapped snapshot so
// readers never observe a torn, partially-reloaded view, and refreshes it
// periodically in the background.
type Manager struct {
	store  RuleLister
	logger *slog.Logger
	rules  atomic.Pointer[[]Rule]
}

// NewManager creates a Manager with an empty rule set; call Load or Run to
// populate it.
func NewManager(store RuleLister, logger *slog.Logger) *Manager {
	m := &Manager{store: store, logger: logger}
	empty := []Rule{}
	m.rules.Store(&empty)
	return m
}

// Load fetches the current rule set from the store and swaps it in.
func (m *Manager) Load(ctx context.Context) error {
	rules, err := m.store.ListEnabled(ctx)
	if err != nil {
		return err
	}
	m.rules.Store(&rules)
	m.logger.Info("alert: loaded rules", "count", len(rules))
	return nil
}

// Rules returns the current rule snapshot.
func (m *Manager) Rules() []Rule {
	return *m.rules.Load()
}

// Run blocks, reloading the rule set every refreshInterval until ctx is
// canceled. Load failures are logged and the previous snapshot is kept.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Load(ctx); err != nil {
				m.logger.Error("alert: rule reload failed, keeping previous snapshot", "error", err)
			}
		}
	}
}

// Evaluate checks every current rule against an enriched event and returns
// every triggered alert. Mirrors alerts.py's evaluate_event: a panic-free
// per-rule evaluation loop that never lets one bad rule stop the rest.
func (m *Manager) Evaluate(enriched event.Enriched) []Alert {
	var triggered []Alert
	for _, rule := range m.Rules() {
		alert := evaluateRule(rule, enriched)
		if alert == nil {
			continue
		}
		triggered = append(triggered, *alert)
		m.logger.Info("alert: triggered", "rule_name", alert.RuleName, "message", alert.Message, "project_id", alert.ProjectID)
	}
	return triggered
}
