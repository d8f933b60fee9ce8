// Package processor implements the main consume/enrich/evaluate/write/ack
// loop: the worker that drains the durable event bus, enriches each
// event, evaluates it against the alert rule engine, lands it in the
// analytics store, and acknowledges it once storage has accepted it
// (spec §4.10).
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/wisbric/lynex/internal/telemetry"
	"github.com/wisbric/lynex/pkg/alert"
	"github.com/wisbric/lynex/pkg/analytics"
	"github.com/wisbric/lynex/pkg/bus"
	"github.com/wisbric/lynex/pkg/enrich"
	"github.com/wisbric/lynex/pkg/event"
	"github.com/wisbric/lynex/pkg/notifier"
)

// readCount and readBlock bound a single read from the bus (spec §4.10:
// "up to 10 new messages ... 5s block").
const (
	defaultReadCount = 10
	defaultReadBlock = 5 * time.Second
)

// claimInterval and claimIdle govern reclaiming messages stuck with a
// consumer that died mid-processing (spec §4.10 step 3).
const (
	defaultClaimInterval = 30 * time.Second
	defaultClaimIdle     = 60 * time.Second
)

// transientBackoffMin/Max bound the sleep-and-continue delay on a
// transient bus/store error (spec §4.10: "sleep 1-5s, continue").
const (
	transientBackoffMin = 1 * time.Second
	transientBackoffMax = 5 * time.Second
)

// ruleEvaluator is the alert engine surface Processor depends on.
// Declared locally so Processor can be tested without a database.
type ruleEvaluator interface {
	Evaluate(enriched event.Enriched) []alert.Alert
}

// notifierSender is the notifier fan-out surface.
type notifierSender interface {
	Send(ctx context.Context, a notifier.Alert) []notifier.Result
}

// analyticsWriter is the analytics store surface.
type analyticsWriter interface {
	Insert(ctx context.Context, row analytics.Row) error
	Close(ctx context.Context) error
}

// archiver is kicked off as a background task at startup; Processor
// doesn't know or care how it does its work, only that it runs until ctx
// is canceled.
type archiver interface {
	Run(ctx context.Context)
}

// Config tunes the processor's read/claim/backoff behavior. A zero value
// falls back to the spec's stated defaults.
type Config struct {
	ReadCount     int64
	ReadBlock     time.Duration
	ClaimInterval time.Duration
	ClaimIdle     time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReadCount <= 0 {
		c.ReadCount = defaultReadCount
	}
	if c.ReadBlock <= 0 {
		c.ReadBlock = defaultReadBlock
	}
	if c.ClaimInterval <= 0 {
		c.ClaimInterval = defaultClaimInterval
	}
	if c.ClaimIdle <= 0 {
		c.ClaimIdle = defaultClaimIdle
	}
	return c
}

// Processor runs the consume/enrich/evaluate/write/ack loop against one
// durable bus consumer group.
type Processor struct {
	bus       bus.Bus
	rules     ruleEvaluator
	notifiers notifierSender
	analytics analyticsWriter
	archiver  archiver
	logger    *slog.Logger
	cfg       Config

	consumer string
}

// New creates a Processor. archiver may be nil, in which case no
// background archival task is started.
func New(b bus.Bus, rules ruleEvaluator, notifiers notifierSender, an analyticsWriter, arch archiver, logger *slog.Logger, cfg Config) *Processor {
	return &Processor{
		bus:       b,
		rules:     rules,
		notifiers: notifiers,
		analytics: an,
		archiver:  arch,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		consumer:  fmt.Sprintf("processor-%d", time.Now().Unix()),
	}
}

// Run executes the startup sequence and then blocks in the main loop
// until ctx is canceled, at which point it stops reading, flushes the
// analytics writer, and returns.
func (p *Processor) Run(ctx context.Context) error {
	if err := p.bus.CreateGroup(ctx); err != nil {
		return fmt.Errorf("processor: creating consumer group: %w", err)
	}

	p.logger.Info("processor: started", "consumer", p.consumer)

	if p.archiver != nil {
		go p.archiver.Run(ctx)
	}

	go p.claimLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return p.shutdown()
		default:
		}

		messages, err := p.bus.ReadAs(ctx, p.consumer, p.cfg.ReadCount, p.cfg.ReadBlock)
		if err != nil {
			if ctx.Err() != nil {
				return p.shutdown()
			}
			p.logger.Warn("processor: read failed, backing off", "error", err)
			sleepTransient(ctx)
			continue
		}

		for _, msg := range messages {
			p.handle(ctx, msg)
		}
	}
}

// shutdown flushes buffered analytics rows and closes the bus connection.
// Run on the cancel path; uses a fresh context since ctx is already done.
func (p *Processor) shutdown() error {
	p.logger.Info("processor: shutting down", "consumer", p.consumer)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.analytics.Close(shutdownCtx); err != nil {
		p.logger.Error("processor: flushing analytics writer on shutdown", "error", err)
	}
	if err := p.bus.Close(); err != nil {
		p.logger.Error("processor: closing bus on shutdown", "error", err)
	}
	return nil
}

// claimLoop periodically reclaims messages left pending by a consumer
// that died mid-processing, and runs them through the same handling path.
func (p *Processor) claimLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.ClaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reclaimPending(ctx)
		}
	}
}

func (p *Processor) reclaimPending(ctx context.Context) {
	pending, err := p.bus.PendingRange(ctx, p.cfg.ReadCount)
	if err != nil {
		p.logger.Warn("processor: listing pending messages failed", "error", err)
		return
	}

	var idleIDs []string
	for _, entry := range pending {
		if entry.Idle >= p.cfg.ClaimIdle {
			idleIDs = append(idleIDs, entry.ID)
		}
	}
	if len(idleIDs) == 0 {
		return
	}

	claimed, err := p.bus.Claim(ctx, p.consumer, p.cfg.ClaimIdle, idleIDs)
	if err != nil {
		p.logger.Warn("processor: claiming idle messages failed", "error", err)
		return
	}

	telemetry.ProcessorClaimedTotal.Add(float64(len(claimed)))
	for _, msg := range claimed {
		p.handle(ctx, msg)
	}
}

// handle parses, enriches, evaluates, and stores one message, acking it
// only once the analytics writer has accepted it. A message that fails
// to parse is a poison pill — it is logged and acked rather than
// redelivered forever, since no amount of retrying will make it parse.
func (p *Processor) handle(ctx context.Context, msg bus.Message) {
	envelope, queuedAt, err := event.ParseFields(msg.Fields)
	if err != nil {
		p.logger.Error("processor: dropping unparseable message", "error", err, "message_id", msg.ID)
		telemetry.ProcessorMessagesTotal.WithLabelValues("dropped").Inc()
		p.ack(ctx, msg.ID)
		return
	}

	enriched := enrich.Enrich(envelope, queuedAt)

	p.evaluateAsync(enriched)

	row, err := analytics.RowFromEnriched(enriched)
	if err != nil {
		p.logger.Error("processor: dropping unencodable message", "error", err, "message_id", msg.ID)
		telemetry.ProcessorMessagesTotal.WithLabelValues("dropped").Inc()
		p.ack(ctx, msg.ID)
		return
	}

	if err := p.analytics.Insert(ctx, row); err != nil {
		p.logger.Warn("processor: analytics write failed, leaving unacked for redelivery",
			"error", err, "message_id", msg.ID, "event_id", enriched.EventID)
		telemetry.ProcessorMessagesTotal.WithLabelValues("write_failed").Inc()
		return
	}

	telemetry.ProcessorMessagesTotal.WithLabelValues("processed").Inc()
	p.ack(ctx, msg.ID)
}

// evaluateAsync runs the alert rules and fans out any triggered alerts to
// notifiers in the background: the spec is explicit that notification is
// fire-and-forget and must never hold up the ack path. It deliberately
// uses a detached context so a notifier mid-send survives the processor's
// own shutdown signal; Fanout already bounds each send with its own
// per-notifier timeout.
func (p *Processor) evaluateAsync(enriched event.Enriched) {
	alerts := p.rules.Evaluate(enriched)
	telemetry.AlertsEvaluatedTotal.Inc()
	if len(alerts) == 0 {
		return
	}

	go func() {
		for _, a := range alerts {
			telemetry.AlertsTriggeredTotal.WithLabelValues(string(a.Severity)).Inc()
			p.notifiers.Send(context.Background(), toNotifierAlert(a))
		}
	}()
}

func toNotifierAlert(a alert.Alert) notifier.Alert {
	return notifier.Alert{
		RuleID:      a.RuleID,
		RuleName:    a.RuleName,
		ProjectID:   a.ProjectID,
		Severity:    string(a.Severity),
		Message:     a.Message,
		EventID:     a.EventID,
		EventType:   a.EventType,
		TriggeredAt: a.FiredAt,
	}
}

func (p *Processor) ack(ctx context.Context, id string) {
	if err := p.bus.Ack(ctx, id); err != nil && !errors.Is(ctx.Err(), context.Canceled) {
		p.logger.Warn("processor: ack failed", "error", err, "message_id", id)
	}
}

// sleepTransient waits 1-5s (spec §4.10), or until ctx is canceled,
// whichever comes first.
func sleepTransient(ctx context.Context) {
	d := transientBackoffMin + time.Duration(rand.Int63n(int64(transientBackoffMax-transientBackoffMin)))
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
