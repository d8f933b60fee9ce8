package usage

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedLimit struct {
	limit     int64
	unlimited bool
	err       error
}

func (f fixedLimit) Limit(ctx context.Context, userID string) (int64, bool, error) {
	return f.limit, f.unlimited, f.err
}

func TestCheckAndIncrementUnlimitedShortCircuits(t *testing.T) {
	a := New(nil, fixedLimit{unlimited: true}, noopLogger())

	allowed, stats, err := a.CheckAndIncrement(context.Background(), "user_1", 1)
	if err != nil {
		t.Fatalf("CheckAndIncrement() error = %v", err)
	}
	if !allowed || !stats.Unlimited {
		t.Errorf("CheckAndIncrement() = (%v, %+v), want allowed unlimited", allowed, stats)
	}
}

func TestCheckAndIncrementFailsOpenOnRedisError(t *testing.T) {
	// A client pointed at an address nothing listens on exercises the
	// fail-open path without needing a live Redis server.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	a := New(rdb, fixedLimit{limit: 10}, noopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	allowed, _, err := a.CheckAndIncrement(ctx, "user_1", 1)
	if err != nil {
		t.Fatalf("CheckAndIncrement() error = %v", err)
	}
	if !allowed {
		t.Error("CheckAndIncrement() should fail open when redis is unavailable")
	}
}
