package bus

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/wisbric/lynex/pkg/event"
)

// FallbackBus wraps a durable RedisBus with an in-memory ring used only
// for Append: when the durable bus is unreachable, ingest still accepts
// the request by queuing into the ring instead of rejecting it. Read-side
// operations (used by the processor, never by ingest) always talk to the
// durable bus directly — there is no consumer for memory-mode messages;
// the ring exists purely to keep ingest available during a Redis outage.
type FallbackBus struct {
	primary  *RedisBus
	fallback *MemoryBus
	degraded atomic.Bool
}

// NewFallbackBus wraps primary with a fallback ring of the given capacity.
func NewFallbackBus(primary *RedisBus, fallback *MemoryBus) *FallbackBus {
	return &FallbackBus{primary: primary, fallback: fallback}
}

func (b *FallbackBus) Append(ctx context.Context, fields event.Fields) (string, error) {
	id, err := b.primary.Append(ctx, fields)
	if err == nil {
		b.degraded.Store(false)
		return id, nil
	}

	b.degraded.Store(true)
	return b.fallback.Append(ctx, fields)
}

func (b *FallbackBus) CreateGroup(ctx context.Context) error {
	return b.primary.CreateGroup(ctx)
}

func (b *FallbackBus) ReadAs(ctx context.Context, consumer string, count int64, block time.Duration) ([]Message, error) {
	return b.primary.ReadAs(ctx, consumer, count, block)
}

func (b *FallbackBus) Ack(ctx context.Context, id string) error {
	return b.primary.Ack(ctx, id)
}

func (b *FallbackBus) PendingRange(ctx context.Context, count int64) ([]Pending, error) {
	return b.primary.PendingRange(ctx, count)
}

func (b *FallbackBus) Claim(ctx context.Context, consumer string, minIdle time.Duration, ids []string) ([]Message, error) {
	return b.primary.Claim(ctx, consumer, minIdle, ids)
}

func (b *FallbackBus) Len(ctx context.Context) (int64, error) {
	if b.degraded.Load() {
		return b.fallback.Len(ctx)
	}
	return b.primary.Len(ctx)
}

func (b *FallbackBus) Degraded() bool { return b.degraded.Load() }

func (b *FallbackBus) Close() error {
	_ = b.fallback.Close()
	return b.primary.Close()
}
