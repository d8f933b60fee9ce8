package notifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wisbric/lynex/internal/telemetry"
)

// sendTimeout bounds how long any single notifier gets before the fan-out
// moves on without it.
const sendTimeout = 10 * time.Second

// Fanout dispatches a triggered alert to every configured notifier
// concurrently. One notifier's failure or slowness never blocks or fails
// the others (spec §4.13).
type Fanout struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewFanout creates a Fanout over the given notifiers, in the order they
// should appear in logs. A nil or empty slice is valid — Send becomes a
// no-op.
func NewFanout(logger *slog.Logger, notifiers ...Notifier) *Fanout {
	return &Fanout{notifiers: notifiers, logger: logger}
}

// Send dispatches alert to all notifiers and waits for every attempt to
// finish or time out, logging each result. It never returns an error —
// notifier failures are recorded, not propagated, since alert delivery is
// best-effort by design.
func (f *Fanout) Send(ctx context.Context, alert Alert) []Result {
	if len(f.notifiers) == 0 {
		return nil
	}

	results := make([]Result, len(f.notifiers))
	var wg sync.WaitGroup
	wg.Add(len(f.notifiers))

	for i, n := range f.notifiers {
		go func(i int, n Notifier) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			defer cancel()

			result := n.Send(sendCtx, alert)
			results[i] = result

			outcome := "success"
			if !result.Success {
				outcome = "failure"
				f.logger.Warn("notifier: send failed",
					"channel", result.Channel, "error", result.Error, "rule_id", alert.RuleID)
			}
			telemetry.NotifierSendTotal.WithLabelValues(result.Channel, outcome).Inc()
		}(i, n)
	}

	wg.Wait()
	return results
}

// Close shuts down every notifier, collecting but not failing on errors.
func (f *Fanout) Close() error {
	var firstErr error
	for _, n := range f.notifiers {
		if err := n.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
