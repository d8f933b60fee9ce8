package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/cenkalti/backoff/v5"
)

// connectMaxAttempts bounds retries for the initial connection (spec
// §4.9: "up to 5 attempts for initial connection").
const connectMaxAttempts = 5

// ClickHouseConfig configures the analytics store connection.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseStore is the production store backend, implementing the
// Writer's store interface over the native ClickHouse protocol.
type ClickHouseStore struct {
	conn clickhouse.Conn
}

// Connect opens a ClickHouse connection and pings it, retrying with
// exponential backoff.
func Connect(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, conn.Ping(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(time.Second),
			backoff.WithMaxInterval(10*time.Second),
		)),
		backoff.WithMaxTries(connectMaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	return &ClickHouseStore{conn: conn}, nil
}

// InsertBatch writes rows to the events table in a single batch insert.
func (s *ClickHouseStore) InsertBatch(ctx context.Context, rows []Row) error {
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO events (
		event_id, project_id, type, timestamp, sdk_name, sdk_version,
		body, context, queued_at, processed_at, queue_latency_ms, estimated_cost_usd
	)`)
	if err != nil {
		return fmt.Errorf("preparing batch: %w", err)
	}

	for _, row := range rows {
		err := batch.Append(
			row.EventID, row.ProjectID, row.Type, time.Unix(row.Timestamp, 0).UTC(),
			row.SDKName, row.SDKVersion, row.Body, row.Context,
			time.Unix(row.QueuedAt, 0).UTC(), time.Unix(row.ProcessedAt, 0).UTC(),
			row.QueueLatencyMs, row.EstimatedCostUSD,
		)
		if err != nil {
			return fmt.Errorf("appending row %s to batch: %w", row.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("sending batch: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}

// SelectOlderThan returns up to limit rows with a timestamp before
// cutoff, ordered oldest-first, for the cold-tier archiver (spec §4.11
// step 1).
func (s *ClickHouseStore) SelectOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]Row, error) {
	rows, err := s.conn.Query(ctx, `SELECT
		event_id, project_id, type, timestamp, sdk_name, sdk_version,
		body, context, queued_at, processed_at, queue_latency_ms, estimated_cost_usd
		FROM events WHERE timestamp < ? ORDER BY timestamp LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting rows for archive: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var r Row
		var ts, queuedAt, processedAt time.Time
		if err := rows.Scan(&r.EventID, &r.ProjectID, &r.Type, &ts, &r.SDKName, &r.SDKVersion,
			&r.Body, &r.Context, &queuedAt, &processedAt, &r.QueueLatencyMs, &r.EstimatedCostUSD); err != nil {
			return nil, fmt.Errorf("scanning archive row: %w", err)
		}
		r.Timestamp = ts.Unix()
		r.QueuedAt = queuedAt.Unix()
		r.ProcessedAt = processedAt.Unix()
		result = append(result, r)
	}
	return result, rows.Err()
}

// DeleteByEventIDs issues a lightweight delete mutation for the given
// event ids, used after a successful archive upload when
// DELETE_AFTER_ARCHIVE is enabled (spec §4.11 step 4).
func (s *ClickHouseStore) DeleteByEventIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.conn.Exec(ctx, `ALTER TABLE events DELETE WHERE event_id IN ?`, ids); err != nil {
		return fmt.Errorf("deleting archived rows: %w", err)
	}
	return nil
}
