// Package usage implements the per-user monthly event counter that backs
// the ingest rate-limit guard. It fails open: when Redis is unavailable
// the accountant allows the request and logs, rather than blocking ingest.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "usage:"
	keyTTL    = 32 * 24 * time.Hour
)

// LimitLookup resolves a user's current monthly event limit. Implemented
// by pkg/billing; declared here to avoid an import cycle.
type LimitLookup interface {
	Limit(ctx context.Context, userID string) (limit int64, unlimited bool, err error)
}

// Stats describes the outcome of a check_and_increment call. Used is
// capped at Limit: the counter itself is free to overshoot (the increment
// that crosses the threshold is never rolled back), but a rejected caller
// should never be told they used more than their limit.
type Stats struct {
	Used      int64
	Limit     int64
	Remaining int64
	Unlimited bool
}

// Accountant enforces per-user monthly usage limits against Redis counters.
type Accountant struct {
	redis  *redis.Client
	limits LimitLookup
	logger *slog.Logger
}

// New creates an Accountant.
func New(rdb *redis.Client, limits LimitLookup, logger *slog.Logger) *Accountant {
	return &Accountant{redis: rdb, limits: limits, logger: logger}
}

func monthKey(userID string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, userID, time.Now().UTC().Format("2006-01"))
}

// CheckAndIncrement atomically increments the caller's counter for the
// current month and compares it against their tier limit. A race that
// pushes the counter over the threshold is tolerated: the increment is
// never rolled back, so the next call (not this one) observes the
// rejection. On Redis unavailability this fails open.
func (a *Accountant) CheckAndIncrement(ctx context.Context, userID string, n int64) (bool, Stats, error) {
	limit, unlimited, err := a.limits.Limit(ctx, userID)
	if err != nil {
		a.logger.Warn("usage: resolving tier limit failed open", "error", err, "user_id", userID)
		return true, Stats{Unlimited: true}, nil
	}
	if unlimited {
		return true, Stats{Unlimited: true}, nil
	}

	key := monthKey(userID)

	used, err := a.redis.IncrBy(ctx, key, n).Result()
	if err != nil {
		a.logger.Warn("usage: redis unavailable, failing open", "error", err, "user_id", userID)
		return true, Stats{Limit: limit}, nil
	}
	if used == n {
		// First increment on this key: set the natural-expiry TTL.
		a.redis.Expire(ctx, key, keyTTL)
	}

	reportedUsed := used
	if reportedUsed > limit {
		reportedUsed = limit
	}
	remaining := limit - reportedUsed
	if remaining < 0 {
		remaining = 0
	}

	stats := Stats{Used: reportedUsed, Limit: limit, Remaining: remaining}
	return used <= limit, stats, nil
}

// ResetIfNeeded clears the current month's counter, used when a billing
// period transition occurs mid-month (paid-tier webhook reconciliation).
func (a *Accountant) ResetIfNeeded(ctx context.Context, userID string) error {
	if err := a.redis.Del(ctx, monthKey(userID)).Err(); err != nil {
		return fmt.Errorf("resetting usage counter: %w", err)
	}
	return nil
}
