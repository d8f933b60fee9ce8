// Package billing implements subscription lifecycle, tier policy, and
// Whop webhook-driven reconciliation.
package billing

import "time"

// Tier is a subscription tier.
type Tier string

const (
	TierFree     Tier = "free"
	TierPro      Tier = "pro"
	TierBusiness Tier = "business"
)

// Status is a subscription's lifecycle status.
type Status string

const (
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
	StatusPastDue  Status = "past_due"
)

// Unlimited is the EventLimit sentinel meaning "no monthly cap", kept
// distinct from both 0 (misconfigured) and MaxInt (easy to overflow/compare
// wrong) so "unlimited" can never be mistaken for either.
const Unlimited int64 = -1

// TierPolicy is the literal per-tier limit table.
type TierPolicy struct {
	Tier           Tier
	EventLimit     int64 // Unlimited sentinel, never 0 or MaxInt64
	RetentionDays  int
	MaxProjects    int // Unlimited sentinel
	MaxMembers     int // Unlimited sentinel
	MaxAlertRules  int // Unlimited sentinel
}

// IsUnlimited reports whether the policy's event limit is unbounded.
func (p TierPolicy) IsUnlimited() bool { return p.EventLimit == Unlimited }

const unlimitedInt = -1

var tierPolicies = map[Tier]TierPolicy{
	TierFree: {
		Tier:          TierFree,
		EventLimit:    50_000,
		RetentionDays: 7,
		MaxProjects:   1,
		MaxMembers:    1,
		MaxAlertRules: 3,
	},
	TierPro: {
		Tier:          TierPro,
		EventLimit:    500_000,
		RetentionDays: 30,
		MaxProjects:   5,
		MaxMembers:    5,
		MaxAlertRules: 20,
	},
	TierBusiness: {
		Tier:          TierBusiness,
		EventLimit:    5_000_000,
		RetentionDays: 90,
		MaxProjects:   unlimitedInt,
		MaxMembers:    unlimitedInt,
		MaxAlertRules: unlimitedInt,
	},
}

// PolicyFor returns the TierPolicy for a tier, falling back to free for
// an unrecognized value.
func PolicyFor(t Tier) TierPolicy {
	if p, ok := tierPolicies[t]; ok {
		return p
	}
	return tierPolicies[TierFree]
}

// planTierMap maps external (Whop) plan ids to tiers. Unknown plan ids
// map to free.
var planTierMap = map[string]Tier{
	"plan_pro_monthly":      TierPro,
	"plan_pro_annual":       TierPro,
	"plan_business_monthly": TierBusiness,
	"plan_business_annual":  TierBusiness,
}

func tierForPlan(planID string) Tier {
	if t, ok := planTierMap[planID]; ok {
		return t
	}
	return TierFree
}

// Subscription is a user's billing subscription.
type Subscription struct {
	UserID                string
	Tier                  Tier
	ExternalMembershipID  *string
	ExternalPlanID        *string
	Status                Status
	CurrentPeriodStart    time.Time
	CurrentPeriodEnd      time.Time
	EventsUsed            int64
}

// Response is the public JSON shape of a Subscription.
type Response struct {
	UserID             string    `json:"user_id"`
	Tier               string    `json:"tier"`
	Status             string    `json:"status"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	EventsUsed         int64     `json:"events_used"`
	EventLimit         int64     `json:"event_limit"`
	Unlimited          bool      `json:"unlimited"`
}

// ToResponse converts a Subscription to its public DTO.
func (s Subscription) ToResponse() Response {
	policy := PolicyFor(s.Tier)
	return Response{
		UserID:             s.UserID,
		Tier:               string(s.Tier),
		Status:             string(s.Status),
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		EventsUsed:         s.EventsUsed,
		EventLimit:         policy.EventLimit,
		Unlimited:          policy.IsUnlimited(),
	}
}
