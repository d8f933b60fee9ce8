// Package bus implements the durable event bus: an append-only,
// consumer-group-aware log backed by Redis Streams, with an in-memory
// ring-buffer fallback for when Redis is unreachable.
package bus

import (
	"context"
	"errors"
	"time"

	"github.com/wisbric/lynex/pkg/event"
)

// ErrUnavailable is returned when neither the durable bus nor its fallback
// can accept an append (the fallback ring is only unavailable if it's been
// closed, which normally never happens).
var ErrUnavailable = errors.New("bus: unavailable")

// Message is one entry read from the bus.
type Message struct {
	ID     string
	Fields event.Fields
}

// Pending describes a message awaiting acknowledgement in a consumer group.
type Pending struct {
	ID   string
	Idle time.Duration
}

// Bus is the durable event bus contract used by ingest and the processor.
type Bus interface {
	// Append writes fields to the stream, trimming approximately to the
	// configured max length, and returns the assigned message id.
	Append(ctx context.Context, fields event.Fields) (string, error)

	// CreateGroup creates the consumer group if it doesn't already exist.
	// "already exists" is not an error.
	CreateGroup(ctx context.Context) error

	// ReadAs reads up to count new messages never delivered to this group,
	// blocking up to block awaiting new ones.
	ReadAs(ctx context.Context, consumer string, count int64, block time.Duration) ([]Message, error)

	// Ack removes id from the group's pending set.
	Ack(ctx context.Context, id string) error

	// PendingRange lists pending messages in age order, up to count.
	PendingRange(ctx context.Context, count int64) ([]Pending, error)

	// Claim transfers ownership of ids whose idle time is >= minIdle.
	Claim(ctx context.Context, consumer string, minIdle time.Duration, ids []string) ([]Message, error)

	// Len reports the approximate current stream length.
	Len(ctx context.Context) (int64, error)

	// Degraded reports whether the bus is currently operating in the
	// non-durable in-memory fallback mode.
	Degraded() bool

	Close() error
}
