// Package notifier implements the alert fan-out sinks: HTTP webhook,
// chat (Slack) webhook, and console. All three share one operation,
// send, so the alert engine can dispatch to them uniformly (spec §4.13).
package notifier

import (
	"context"
	"time"
)

// Alert is the triggered-alert payload handed to every notifier.
type Alert struct {
	RuleID      string
	RuleName    string
	ProjectID   string
	Severity    string
	Message     string
	EventID     string
	EventType   string
	TriggeredAt time.Time
}

// Result is the outcome of a single notifier's send attempt.
type Result struct {
	Success bool
	Channel string
	Error   string
}

// Notifier sends a triggered alert to one channel.
type Notifier interface {
	Send(ctx context.Context, alert Alert) Result
	Close() error
}
