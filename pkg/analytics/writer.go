package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/wisbric/lynex/internal/telemetry"
)

// writeMaxAttempts bounds retries for a single batch write (spec §4.9:
// "up to 3 attempts for writes").
const writeMaxAttempts = 3

// store is the persistence surface Writer depends on. Declared locally so
// Writer can be tested without a ClickHouse connection.
type store interface {
	InsertBatch(ctx context.Context, rows []Row) error
	Close() error
}

// Writer buffers rows in memory and drains them to the columnar store in
// batches, re-prepending on failure so the caller can decide whether to
// acknowledge the source message (spec §4.9).
type Writer struct {
	store     store
	threshold int
	logger    *slog.Logger

	mu     sync.Mutex
	buffer []Row
}

// NewWriter creates a Writer flushing at the given threshold.
func NewWriter(s store, threshold int, logger *slog.Logger) *Writer {
	if threshold <= 0 {
		threshold = 100
	}
	return &Writer{store: s, threshold: threshold, logger: logger}
}

// Insert appends row to the buffer, flushing immediately if the threshold
// is reached.
func (w *Writer) Insert(ctx context.Context, row Row) error {
	w.mu.Lock()
	w.buffer = append(w.buffer, row)
	depth := len(w.buffer)
	full := depth >= w.threshold
	w.mu.Unlock()

	telemetry.AnalyticsBufferDepth.Set(float64(depth))

	if full {
		return w.Flush(ctx)
	}
	return nil
}

// Flush drains the current buffer to the store in one batched write. On
// failure the batch is re-prepended ahead of anything buffered in the
// meantime, and the error is returned so the caller (the processor loop)
// can skip acking the source messages.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}
	batch := w.buffer
	w.buffer = nil
	w.mu.Unlock()
	telemetry.AnalyticsBufferDepth.Set(0)

	if err := w.writeWithRetry(ctx, batch); err != nil {
		w.mu.Lock()
		w.buffer = append(batch, w.buffer...)
		telemetry.AnalyticsBufferDepth.Set(float64(len(w.buffer)))
		w.mu.Unlock()

		telemetry.AnalyticsFlushTotal.WithLabelValues("failure").Inc()
		w.logger.Error("analytics: flush failed, batch re-buffered", "error", err, "rows", len(batch))
		return err
	}

	telemetry.AnalyticsFlushTotal.WithLabelValues("success").Inc()
	return nil
}

func (w *Writer) writeWithRetry(ctx context.Context, rows []Row) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, w.store.InsertBatch(ctx, rows)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(time.Second),
			backoff.WithMaxInterval(10*time.Second),
		)),
		backoff.WithMaxTries(writeMaxAttempts),
	)
	return err
}

// Run periodically flushes the buffer so low-volume projects don't wait
// indefinitely to reach the threshold. Blocks until ctx is canceled.
func (w *Writer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				w.logger.Error("analytics: periodic flush failed", "error", err)
			}
		}
	}
}

// Close flushes any remaining buffered rows and closes the underlying
// store connection.
func (w *Writer) Close(ctx context.Context) error {
	flushErr := w.Flush(ctx)
	closeErr := w.store.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
