package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wisbric/lynex/pkg/event"
)

// RedisBus is the durable bus implementation backed by Redis Streams.
type RedisBus struct {
	client *redis.Client
	stream string
	group  string
	maxLen int64
}

// NewRedisBus creates a RedisBus for the given stream and consumer group.
func NewRedisBus(client *redis.Client, stream, group string, maxLen int64) *RedisBus {
	return &RedisBus{client: client, stream: stream, group: group, maxLen: maxLen}
}

func (b *RedisBus) Append(ctx context.Context, fields event.Fields) (string, error) {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		MaxLen: b.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("appending to stream: %w", err)
	}
	return id, nil
}

func (b *RedisBus) CreateGroup(ctx context.Context) error {
	err := b.client.XGroupCreateMkStream(ctx, b.stream, b.group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

func (b *RedisBus) ReadAs(ctx context.Context, consumer string, count int64, block time.Duration) ([]Message, error) {
	res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.group,
		Consumer: consumer,
		Streams:  []string{b.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var out []Message
	for _, stream := range res {
		for _, msg := range stream.Messages {
			out = append(out, Message{ID: msg.ID, Fields: toFields(msg.Values)})
		}
	}
	return out, nil
}

func (b *RedisBus) Ack(ctx context.Context, id string) error {
	if err := b.client.XAck(ctx, b.stream, b.group, id).Err(); err != nil {
		return fmt.Errorf("acking message: %w", err)
	}
	return nil
}

func (b *RedisBus) PendingRange(ctx context.Context, count int64) ([]Pending, error) {
	res, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: b.stream,
		Group:  b.group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing pending messages: %w", err)
	}

	out := make([]Pending, 0, len(res))
	for _, p := range res {
		out = append(out, Pending{ID: p.ID, Idle: p.Idle})
	}
	return out, nil
}

func (b *RedisBus) Claim(ctx context.Context, consumer string, minIdle time.Duration, ids []string) ([]Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	msgs, err := b.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   b.stream,
		Group:    b.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("claiming messages: %w", err)
	}

	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, Message{ID: msg.ID, Fields: toFields(msg.Values)})
	}
	return out, nil
}

func (b *RedisBus) Len(ctx context.Context) (int64, error) {
	n, err := b.client.XLen(ctx, b.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("reading stream length: %w", err)
	}
	return n, nil
}

func (b *RedisBus) Degraded() bool { return false }

func (b *RedisBus) Close() error { return b.client.Close() }

func toFields(values map[string]any) event.Fields {
	f := make(event.Fields, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok {
			f[k] = s
		}
	}
	return f
}
