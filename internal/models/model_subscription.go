package models

import (
	"time"

	"github.com/perkflow/perkflow/pkg/types"
)

// Subscription is one user's billing relationship over time (a ledger row).
// It is created as "pending" by checkout and afterwards written exclusively
// from provider-reported state.
type Subscription struct {
	ID     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	// PlanID is nullable so plan deletion never cascades into billing history.
	PlanID               *string                  `gorm:"column:plan_id;type:uuid" json:"plan_id"`
	Plan                 *Plan                    `gorm:"foreignKey:PlanID;constraint:OnDelete:SET NULL" json:"plan,omitempty"`
	StripeCustomerID     *string                  `gorm:"column:stripe_customer_id;type:varchar(255);index" json:"stripe_customer_id"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id;type:varchar(255);index" json:"stripe_subscription_id"`
	Status               types.SubscriptionStatus `gorm:"column:status;type:varchar(50);not null;default:pending" json:"status"`
	TrialEnd             *time.Time               `gorm:"column:trial_end" json:"trial_end"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end" json:"current_period_end"`
	AutoRenew            bool                     `gorm:"column:auto_renew;not null;default:true" json:"auto_renew"`
	CreatedAt            time.Time                `json:"created_at"`
	UpdatedAt            time.Time                `json:"updated_at"`
}

func (Subscription) TableName() string { return "subscription" }

// ProviderState is the provider-reported slice of subscription state applied
// onto a ledger row during reconciliation.
type ProviderState struct {
	SubscriptionID   string
	Status           types.SubscriptionStatus
	TrialEnd         *time.Time
	CurrentPeriodEnd *time.Time
}

// ApplyProviderState overwrites the lifecycle fields with provider-reported
// truth. It is idempotent and reports whether the row changed. A canceled
// subscription is terminal: the call becomes a no-op.
func (s *Subscription) ApplyProviderState(st ProviderState) bool {
	if s.Status.Terminal() {
		return false
	}
	changed := false
	if st.SubscriptionID != "" &&
		(s.StripeSubscriptionID == nil || *s.StripeSubscriptionID != st.SubscriptionID) {
		id := st.SubscriptionID
		s.StripeSubscriptionID = &id
		changed = true
	}
	if s.Status != st.Status {
		s.Status = st.Status
		changed = true
	}
	if !equalTime(s.TrialEnd, st.TrialEnd) {
		s.TrialEnd = st.TrialEnd
		changed = true
	}
	if !equalTime(s.CurrentPeriodEnd, st.CurrentPeriodEnd) {
		s.CurrentPeriodEnd = st.CurrentPeriodEnd
		changed = true
	}
	return changed
}

// IsTrial reports whether the subscription is inside its trial window at t.
func (s *Subscription) IsTrial(t time.Time) bool {
	if s == nil || s.TrialEnd == nil {
		return false
	}
	return s.Status.Qualifying() && s.TrialEnd.After(t)
}

// IsPaidActive reports whether the subscription is active outside a trial.
func (s *Subscription) IsPaidActive() bool {
	return s != nil && s.Status == types.SubscriptionStatusActive
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
