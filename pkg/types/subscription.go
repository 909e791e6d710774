package types

// SubscriptionStatus mirrors the provider's subscription lifecycle states,
// plus the local-only "pending" state set before the provider confirms.
type SubscriptionStatus string

const (
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
)

// Terminal reports whether no further transitions are accepted from s.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionStatusCanceled
}

// Qualifying reports whether s counts toward the one-subscription-per-user
// rule (an active or trialing subscription blocks new checkouts).
func (s SubscriptionStatus) Qualifying() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// QualifyingStatuses is the database filter counterpart of Qualifying.
var QualifyingStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusTrialing,
}
