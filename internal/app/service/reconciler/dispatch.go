package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/perkflow/perkflow/internal/models"
	"github.com/perkflow/perkflow/pkg/logctx"
	"github.com/perkflow/perkflow/pkg/metrics"
	"github.com/perkflow/perkflow/pkg/types"
)

// handleCheckoutCompleted links the pending ledger row created at checkout
// to the provider subscription, pulls the authoritative subscription state,
// and triggers the referral benefit grant. Runs exactly once per purchase
// in the happy path and is harmless when replayed.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}
	log := logctx.FromCtx(ctx, s.log)

	userID := sess.Metadata["user_id"]
	if userID == "" || sess.Subscription == nil {
		log.Warnw("checkout_completed_missing_refs",
			"event_id", event.ID, "has_subscription", sess.Subscription != nil)
		return nil
	}
	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}

	sub, err := s.ledgerSvc.FindPending(ctx, userID, customerID)
	if err != nil {
		return err
	}
	if sub == nil {
		// The provider will not resend this permanently; the row stays
		// unresolved (no reconciliation sweep exists).
		log.Warnw("checkout_completed_no_pending_row",
			"user_id", userID, "customer_id", customerID)
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "miss").Inc()
		return nil
	}

	state, err := s.provider.GetSubscription(ctx, sess.Subscription.ID)
	if err != nil {
		return fmt.Errorf("fetch provider subscription: %w", err)
	}

	currentPeriodEnd := state.CurrentPeriodEnd
	if currentPeriodEnd == nil && sub.Plan != nil {
		// Provider omitted the boundary; fall back to plan arithmetic
		// anchored at the row's creation.
		end := sub.Plan.PeriodEnd(sub.CreatedAt)
		currentPeriodEnd = &end
	}

	if err := s.ledgerSvc.ApplyProviderState(ctx, sub, models.ProviderState{
		SubscriptionID:   state.ID,
		Status:           state.Status,
		TrialEnd:         state.TrialEnd,
		CurrentPeriodEnd: currentPeriodEnd,
	}); err != nil {
		return err
	}
	log.Infow("checkout_completed_applied",
		"subscription_id", sub.ID, "status", sub.Status)

	// Both side effects are swallow-all by design; neither may fail the ack.
	s.referralSvc.GrantBenefits(ctx, userID, sub)
	s.notifierSvc.SubscriptionActivated(ctx, userID, sub)
	return nil
}

// handleSubscriptionCreated applies lifecycle fields from the event payload
// onto the row linked by external subscription id, falling back to the
// customer's pending row when the link was not made yet.
func (s *Service) handleSubscriptionCreated(ctx context.Context, event stripe.Event) error {
	var obj stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}
	log := logctx.FromCtx(ctx, s.log)

	sub, err := s.ledgerSvc.FindByProviderSubscriptionID(ctx, obj.ID)
	if err != nil {
		return err
	}
	if sub == nil && obj.Customer != nil {
		sub, err = s.ledgerSvc.FindPendingByCustomer(ctx, obj.Customer.ID)
		if err != nil {
			return err
		}
	}
	if sub == nil {
		log.Warnw("subscription_created_no_matching_row", "provider_subscription_id", obj.ID)
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "miss").Inc()
		return nil
	}

	if err := s.ledgerSvc.ApplyProviderState(ctx, sub, providerStateFrom(&obj)); err != nil {
		return err
	}
	log.Infow("subscription_created_applied", "subscription_id", sub.ID, "status", sub.Status)
	return nil
}

// handleSubscriptionUpdated overwrites lifecycle fields for the linked row.
// Bulk-update semantics: zero matched rows is a silent no-op, not an error.
func (s *Service) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var obj stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}

	st := providerStateFrom(&obj)
	count, err := s.ledgerSvc.UpdateByProviderSubscriptionID(ctx, obj.ID, st.Status, st.TrialEnd, st.CurrentPeriodEnd)
	if err != nil {
		return err
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription_updated_applied",
		"provider_subscription_id", obj.ID, "rows", count, "status", st.Status)
	return nil
}

// handleSubscriptionDeleted forces the linked row into the terminal
// canceled state.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var obj stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}

	count, err := s.ledgerSvc.CancelByProviderSubscriptionID(ctx, obj.ID)
	if err != nil {
		return err
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription_deleted_applied",
		"provider_subscription_id", obj.ID, "rows", count)
	return nil
}

// providerStateFrom converts an event-embedded subscription object into the
// ledger's provider-state shape.
func providerStateFrom(obj *stripe.Subscription) models.ProviderState {
	return models.ProviderState{
		SubscriptionID:   obj.ID,
		Status:           types.SubscriptionStatus(obj.Status),
		TrialEnd:         unixTime(obj.TrialEnd),
		CurrentPeriodEnd: unixTime(obj.CurrentPeriodEnd),
	}
}

func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
