package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/lynex/internal/telemetry"
	"github.com/wisbric/lynex/pkg/event"
)

// MemoryBus is a bounded, mutex-guarded ring buffer used when the durable
// bus is unreachable. Events queued here do not survive a process
// restart; capacity overflow drops the newest message and counts it.
// Message ids carry the "mem-" prefix so downstream code can tell
// durable and fallback deliveries apart.
type MemoryBus struct {
	mu       sync.Mutex
	capacity int
	queue    []Message
	pending  map[string]time.Time // id -> delivery time, for idle-claim emulation
	logger   *slog.Logger
}

// NewMemoryBus creates a fallback bus with the given ring capacity.
func NewMemoryBus(capacity int, logger *slog.Logger) *MemoryBus {
	return &MemoryBus{
		capacity: capacity,
		pending:  make(map[string]time.Time),
		logger:   logger,
	}
}

func (m *MemoryBus) Append(_ context.Context, fields event.Fields) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) >= m.capacity {
		telemetry.BusMemoryFallbackDroppedTotal.Inc()
		m.logger.Warn("bus: in-memory fallback ring full, dropping newest event",
			"capacity", m.capacity)
		return "", ErrUnavailable
	}

	id := "mem-" + uuid.New().String()
	m.queue = append(m.queue, Message{ID: id, Fields: fields})
	telemetry.BusMemoryFallbackTotal.Inc()
	return id, nil
}

func (m *MemoryBus) CreateGroup(_ context.Context) error { return nil }

func (m *MemoryBus) ReadAs(_ context.Context, _ string, count int64, block time.Duration) ([]Message, error) {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.mu.Unlock()
		if block > 0 {
			time.Sleep(block)
		}
		m.mu.Lock()
	}
	defer m.mu.Unlock()

	n := int64(len(m.queue))
	if n > count {
		n = count
	}
	out := make([]Message, n)
	copy(out, m.queue[:n])
	m.queue = m.queue[n:]

	now := time.Now()
	for _, msg := range out {
		m.pending[msg.ID] = now
	}

	return out, nil
}

func (m *MemoryBus) Ack(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
	return nil
}

func (m *MemoryBus) PendingRange(_ context.Context, count int64) ([]Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Pending, 0, len(m.pending))
	now := time.Now()
	for id, deliveredAt := range m.pending {
		out = append(out, Pending{ID: id, Idle: now.Sub(deliveredAt)})
		if int64(len(out)) >= count {
			break
		}
	}
	return out, nil
}

// Claim is a no-op for the memory fallback: messages delivered but never
// acked are simply lost on restart, which is the documented
// non-durability concession of fallback mode.
func (m *MemoryBus) Claim(_ context.Context, _ string, _ time.Duration, _ []string) ([]Message, error) {
	return nil, nil
}

func (m *MemoryBus) Len(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.queue)), nil
}

func (m *MemoryBus) Degraded() bool { return true }

func (m *MemoryBus) Close() error { return nil }
