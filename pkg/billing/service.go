package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

const freePeriod = 30 * 24 * time.Hour

// periodTransitionThreshold is how far the stored period start must move
// before a webhook-driven update is treated as a new billing period (and
// the usage counter reset), rather than a metadata-only touch.
const periodTransitionThreshold = 24 * time.Hour

// Service implements subscription lookup, lazy free-tier provisioning,
// and webhook-driven reconciliation.
type Service struct {
	store  *Store
	usage  usageResetter
	logger *slog.Logger
}

// usageResetter is the subset of pkg/usage.Accountant the billing service
// needs, declared locally to avoid an import cycle (pkg/usage already
// depends on billing.LimitLookup).
type usageResetter interface {
	ResetIfNeeded(ctx context.Context, userID string) error
}

// NewService creates a Service.
func NewService(store *Store, usage usageResetter, logger *slog.Logger) *Service {
	return &Service{store: store, usage: usage, logger: logger}
}

// GetSubscription returns the caller's current subscription, lazily
// creating a free one if none exists. A free subscription whose period
// has elapsed is auto-renewed for another 30 days with its counter
// reset; paid tiers are never auto-extended here — only a webhook moves
// them forward.
func (s *Service) GetSubscription(ctx context.Context, userID string) (Subscription, error) {
	sub, err := s.store.Find(ctx, userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return s.createFreeSubscription(ctx, userID)
		}
		return Subscription{}, fmt.Errorf("loading subscription: %w", err)
	}

	if sub.Tier == TierFree && time.Now().After(sub.CurrentPeriodEnd) {
		sub.CurrentPeriodStart = time.Now().UTC()
		sub.CurrentPeriodEnd = sub.CurrentPeriodStart.Add(freePeriod)
		sub.EventsUsed = 0
		sub, err = s.store.Upsert(ctx, sub)
		if err != nil {
			return Subscription{}, fmt.Errorf("renewing free subscription: %w", err)
		}
		if err := s.usage.ResetIfNeeded(ctx, userID); err != nil {
			s.logger.Warn("billing: resetting usage counter on free renewal", "error", err, "user_id", userID)
		}
	}

	return sub, nil
}

func (s *Service) createFreeSubscription(ctx context.Context, userID string) (Subscription, error) {
	now := time.Now().UTC()
	sub := Subscription{
		UserID:             userID,
		Tier:               TierFree,
		Status:             StatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(freePeriod),
	}
	sub, err := s.store.Upsert(ctx, sub)
	if err != nil {
		return Subscription{}, fmt.Errorf("creating free subscription: %w", err)
	}
	return sub, nil
}

// WebhookMembership is the subset of a Whop membership payload this
// service acts on.
type WebhookMembership struct {
	ID      string
	PlanID  string
	Valid   bool
	Period  WebhookPeriod
}

// WebhookPeriod carries the membership's current billing period, when
// the payload includes one. A zero value leaves the stored period
// untouched.
type WebhookPeriod struct {
	Start time.Time
	End   time.Time
}

// UpdateFromWebhook reconciles a subscription against a Whop webhook
// payload: it maps the plan id to a tier, records the external ids, and
// derives status from the valid flag. A period whose start moved by
// more than 24 hours from what's stored is treated as a new billing
// cycle and resets the usage counter.
func (s *Service) UpdateFromWebhook(ctx context.Context, userID string, m WebhookMembership) (Subscription, error) {
	existing, err := s.store.Find(ctx, userID)
	periodChanged := false
	if err != nil {
		if err != pgx.ErrNoRows {
			return Subscription{}, fmt.Errorf("loading subscription for webhook update: %w", err)
		}
		existing = Subscription{UserID: userID, CurrentPeriodStart: time.Now().UTC()}
	}

	sub := existing
	sub.UserID = userID
	sub.Tier = tierForPlan(m.PlanID)
	sub.ExternalMembershipID = &m.ID
	sub.ExternalPlanID = &m.PlanID
	if m.Valid {
		sub.Status = StatusActive
	} else {
		sub.Status = StatusCanceled
	}

	if !m.Period.Start.IsZero() {
		delta := m.Period.Start.Sub(existing.CurrentPeriodStart)
		if delta < 0 {
			delta = -delta
		}
		if delta > periodTransitionThreshold {
			periodChanged = true
		}
		sub.CurrentPeriodStart = m.Period.Start
	}
	if !m.Period.End.IsZero() {
		sub.CurrentPeriodEnd = m.Period.End
	}
	if periodChanged {
		sub.EventsUsed = 0
	}

	sub, err = s.store.Upsert(ctx, sub)
	if err != nil {
		return Subscription{}, fmt.Errorf("upserting subscription from webhook: %w", err)
	}

	if periodChanged {
		if err := s.usage.ResetIfNeeded(ctx, userID); err != nil {
			s.logger.Warn("billing: resetting usage counter on period transition", "error", err, "user_id", userID)
		}
	}

	return sub, nil
}

// MarkPastDue transitions a user's subscription to past_due, used for a
// payment.failed webhook. A user with no subscription yet has nothing to
// mark and is a no-op.
func (s *Service) MarkPastDue(ctx context.Context, userID string) (Subscription, error) {
	sub, err := s.store.Find(ctx, userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Subscription{}, nil
		}
		return Subscription{}, fmt.Errorf("loading subscription for payment.failed: %w", err)
	}

	sub.Status = StatusPastDue
	sub, err = s.store.Upsert(ctx, sub)
	if err != nil {
		return Subscription{}, fmt.Errorf("marking subscription past_due: %w", err)
	}
	return sub, nil
}

// Limit implements pkg/usage.LimitLookup.
func (s *Service) Limit(ctx context.Context, userID string) (int64, bool, error) {
	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	policy := PolicyFor(sub.Tier)
	return policy.EventLimit, policy.IsUnlimited(), nil
}
