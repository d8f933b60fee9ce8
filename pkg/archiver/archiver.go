// Package archiver implements the cold-tier archiver: a periodic job that
// exports aged rows from the analytics store to object storage as
// Snappy-compressed Parquet files, optionally tombstoning the exported
// rows afterward (spec §4.11).
package archiver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wisbric/lynex/internal/telemetry"
	"github.com/wisbric/lynex/pkg/analytics"
)

// Defaults mirror spec.md §4.11.
const (
	DefaultAfterDays = 30
	DefaultBatchSize = 10000
	DefaultInterval  = 24 * time.Hour
)

// uploadMaxAttempts bounds retries for a single month-batch upload
// (spec §4.11: "up to 3 attempts").
const uploadMaxAttempts = 3

// Store is the analytics-store read/delete surface the archiver needs.
// Declared locally so Archiver can be tested without ClickHouse.
type Store interface {
	SelectOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]analytics.Row, error)
	DeleteByEventIDs(ctx context.Context, ids []string) error
}

// ObjectStore is the cold-tier object storage surface.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
	Verify(ctx context.Context, key string) error
}

// Config tunes the archive cycle. A zero value falls back to spec.md's
// stated defaults.
type Config struct {
	Prefix             string
	AfterDays          int
	BatchSize          int
	Interval           time.Duration
	DeleteAfterArchive bool
}

func (c Config) withDefaults() Config {
	if c.AfterDays <= 0 {
		c.AfterDays = DefaultAfterDays
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return c
}

// Archiver runs the periodic export cycle.
type Archiver struct {
	store  Store
	object ObjectStore
	logger *slog.Logger
	cfg    Config

	now func() time.Time
}

// New creates an Archiver.
func New(store Store, object ObjectStore, logger *slog.Logger, cfg Config) *Archiver {
	return &Archiver{
		store:  store,
		object: object,
		logger: logger,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
}

// Run executes one cycle immediately, then every cfg.Interval, until ctx
// is canceled.
func (a *Archiver) Run(ctx context.Context) {
	a.runCycle(ctx)

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runCycle(ctx)
		}
	}
}

// runCycle selects aged rows, groups them by year-month, and exports
// each group independently: one group's failure never aborts the others
// (spec §4.11: "failure of a month-batch does not abort the cycle for
// other months").
func (a *Archiver) runCycle(ctx context.Context) {
	cutoff := a.now().UTC().AddDate(0, 0, -a.cfg.AfterDays)

	rows, err := a.store.SelectOlderThan(ctx, cutoff, a.cfg.BatchSize)
	if err != nil {
		a.logger.Error("archiver: selecting aged rows failed", "error", err)
		telemetry.ArchiveCycleFailuresTotal.Inc()
		return
	}
	if len(rows) == 0 {
		a.logger.Info("archiver: no aged rows to export", "cutoff", cutoff)
		return
	}

	for month, group := range groupByMonth(rows) {
		if err := a.exportGroup(ctx, month, group); err != nil {
			a.logger.Error("archiver: month-batch export failed", "month", month, "error", err, "rows", len(group))
			telemetry.ArchiveCycleFailuresTotal.Inc()
			continue
		}
		telemetry.ArchiveRowsExportedTotal.Add(float64(len(group)))
		a.logger.Info("archiver: exported month-batch", "month", month, "rows", len(group))
	}
}

func (a *Archiver) exportGroup(ctx context.Context, month string, rows []analytics.Row) error {
	data, err := encodeParquet(rows)
	if err != nil {
		return fmt.Errorf("encoding parquet: %w", err)
	}

	key := fmt.Sprintf("%s/%s/events_%s.parquet", a.cfg.Prefix, month, a.now().UTC().Format("20060102_150405"))

	if err := uploadWithRetry(ctx, a.object, key, data); err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	if err := a.object.Verify(ctx, key); err != nil {
		return fmt.Errorf("verifying %s: %w", key, err)
	}

	if a.cfg.DeleteAfterArchive {
		ids := make([]string, len(rows))
		for i, r := range rows {
			ids[i] = r.EventID
		}
		if err := a.store.DeleteByEventIDs(ctx, ids); err != nil {
			return fmt.Errorf("deleting archived rows for %s: %w", key, err)
		}
	}

	return nil
}

// groupByMonth buckets rows by the UTC year-month of their timestamp
// (spec §4.11 step 2).
func groupByMonth(rows []analytics.Row) map[string][]analytics.Row {
	groups := make(map[string][]analytics.Row)
	for _, r := range rows {
		month := time.Unix(r.Timestamp, 0).UTC().Format("2006-01")
		groups[month] = append(groups[month], r)
	}
	return groups
}
