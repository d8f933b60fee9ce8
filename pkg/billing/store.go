package billing

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const subscriptionColumns = `user_id, tier, external_membership_id, external_plan_id, status, current_period_start, current_period_end, events_used`

// Store provides Postgres-backed subscription persistence.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanSubscription(row pgx.Row) (Subscription, error) {
	var s Subscription
	var tier, status string
	err := row.Scan(&s.UserID, &tier, &s.ExternalMembershipID, &s.ExternalPlanID, &status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.EventsUsed)
	s.Tier = Tier(tier)
	s.Status = Status(status)
	return s, err
}

// Find returns the subscription for a user, or pgx.ErrNoRows if none exists.
func (s *Store) Find(ctx context.Context, userID string) (Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	return scanSubscription(s.pool.QueryRow(ctx, query, userID))
}

// Upsert inserts or replaces the subscription row for a user.
func (s *Store) Upsert(ctx context.Context, sub Subscription) (Subscription, error) {
	query := `
	INSERT INTO subscriptions (` + subscriptionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (user_id) DO UPDATE SET
		tier = EXCLUDED.tier,
		external_membership_id = EXCLUDED.external_membership_id,
		external_plan_id = EXCLUDED.external_plan_id,
		status = EXCLUDED.status,
		current_period_start = EXCLUDED.current_period_start,
		current_period_end = EXCLUDED.current_period_end,
		events_used = EXCLUDED.events_used
	RETURNING ` + subscriptionColumns

	return scanSubscription(s.pool.QueryRow(ctx, query,
		sub.UserID, string(sub.Tier), sub.ExternalMembershipID, sub.ExternalPlanID,
		string(sub.Status), sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.EventsUsed,
	))
}
