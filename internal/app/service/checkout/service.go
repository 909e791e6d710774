package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/perkflow/perkflow/internal/app/service/ledger"
	"github.com/perkflow/perkflow/internal/app/service/notifier"
	planSvc "github.com/perkflow/perkflow/internal/app/service/plan"
	"github.com/perkflow/perkflow/internal/app/service/referral"
	"github.com/perkflow/perkflow/internal/models"
	"github.com/perkflow/perkflow/internal/platform/stripeapi"
	"github.com/perkflow/perkflow/pkg/apperr"
	"github.com/perkflow/perkflow/pkg/config"
	"github.com/perkflow/perkflow/pkg/logctx"
)

// Service drives the purchase flow: it gates a new checkout on the single
// qualifying-subscription rule, provisions the provider customer and
// session, and writes the pending ledger row the webhook reconciler later
// resolves. It also owns the session-status poll that acts as a fallback
// when the completion webhook is delayed.
type Service struct {
	cfg         config.StripeConfig
	db          *gorm.DB
	plans       *planSvc.Service
	ledgerSvc   *ledger.Service
	referralSvc *referral.Service
	notifierSvc *notifier.Service
	provider    stripeapi.Provider
	log         *zap.SugaredLogger
}

func NewService(
	cfg *config.Config,
	db *gorm.DB,
	plans *planSvc.Service,
	ledgerSvc *ledger.Service,
	referralSvc *referral.Service,
	notifierSvc *notifier.Service,
	provider stripeapi.Provider,
	log *zap.SugaredLogger,
) *Service {
	return &Service{
		cfg:         cfg.Stripe,
		db:          db,
		plans:       plans,
		ledgerSvc:   ledgerSvc,
		referralSvc: referralSvc,
		notifierSvc: notifierSvc,
		provider:    provider,
		log:         log,
	}
}

// StartResult is handed back to the client for the redirect.
type StartResult struct {
	CheckoutURL       string       `json:"checkout_url"`
	CheckoutSessionID string       `json:"checkout_session_id"`
	SubscriptionID    string       `json:"subscription_id"`
	Plan              *models.Plan `json:"plan"`
	TrialDays         int          `json:"trial_days"`
}

// SessionResult is the polled state of a checkout session after redirect.
type SessionResult struct {
	SessionID     string               `json:"session_id"`
	Status        string               `json:"status"`
	PaymentStatus string               `json:"payment_status"`
	Paid          bool                 `json:"paid"`
	Subscription  *models.Subscription `json:"subscription,omitempty"`
}

// StartCheckout runs the purchase flow for userID and planID. Empty
// successURL/cancelURL fall back to the configured defaults.
//
// Steps, in order: the plan must exist and be purchasable, the user must not
// already hold a qualifying subscription, a provider customer is reused from
// any earlier ledger row or freshly created, the session is opened, and the
// pending row is written last so an aborted flow leaves only provider-side
// garbage.
func (s *Service) StartCheckout(ctx context.Context, userID, planID, successURL, cancelURL string) (*StartResult, error) {
	plan, err := s.plans.GetActive(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.StripePriceID == nil {
		return nil, apperr.Provider(fmt.Errorf("plan %s has no provider price", plan.ID))
	}

	existing, err := s.ledgerSvc.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ledger.ConflictFor(existing, time.Now())
	}

	customerID, err := s.customerFor(ctx, userID, planID)
	if err != nil {
		return nil, err
	}

	if successURL == "" {
		successURL = s.cfg.SuccessURL
	}
	if cancelURL == "" {
		cancelURL = s.cfg.CancelURL
	}
	sess, err := s.provider.CreateCheckoutSession(ctx, stripeapi.CheckoutParams{
		CustomerID: customerID,
		PriceID:    *plan.StripePriceID,
		TrialDays:  plan.TrialDays,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Metadata: map[string]string{
			"user_id": userID,
			"plan_id": plan.ID,
		},
	})
	if err != nil {
		return nil, apperr.Provider(err)
	}

	sub, err := s.ledgerSvc.CreatePending(ctx, userID, plan, customerID)
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("checkout_started",
		"user_id", userID, "plan_id", plan.ID,
		"session_id", sess.ID, "subscription_id", sub.ID)

	return &StartResult{
		CheckoutURL:       sess.URL,
		CheckoutSessionID: sess.ID,
		SubscriptionID:    sub.ID,
		Plan:              plan,
		TrialDays:         plan.TrialDays,
	}, nil
}

// customerFor reuses the provider customer from any earlier ledger row of
// the user, creating one only for first-time buyers.
func (s *Service) customerFor(ctx context.Context, userID, planID string) (string, error) {
	customerID, err := s.ledgerSvc.AnyCustomerID(ctx, userID)
	if err != nil {
		return "", err
	}
	if customerID != "" {
		return customerID, nil
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.NotFound("user")
		}
		return "", fmt.Errorf("load user: %w", err)
	}
	customerID, err = s.provider.CreateCustomer(ctx, user.Email, user.FullName, map[string]string{
		"user_id": userID,
		"plan_id": planID,
	})
	if err != nil {
		return "", apperr.Provider(err)
	}
	return customerID, nil
}

// SessionStatus polls the provider for a checkout session and, when payment
// already went through but the completion webhook has not landed yet, runs
// the same resolution the webhook handler would: link the pending row, apply
// provider state, grant referral benefits once. The pending-row lookup makes
// the fulfillment race-free against the webhook path.
func (s *Service) SessionStatus(ctx context.Context, userID, sessionID string) (*SessionResult, error) {
	state, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Provider(err)
	}
	if state.Metadata["user_id"] != userID {
		return nil, apperr.NotFound("checkout session")
	}

	res := &SessionResult{
		SessionID:     state.ID,
		Status:        state.Status,
		PaymentStatus: state.PaymentStatus,
		Paid:          state.Paid,
	}
	if !state.Paid || state.SubscriptionID == "" {
		return res, nil
	}

	log := logctx.FromCtx(ctx, s.log)
	sub, err := s.ledgerSvc.FindPending(ctx, userID, state.CustomerID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		// Already resolved by the webhook; report the current row.
		sub, err = s.ledgerSvc.FindByProviderSubscriptionID(ctx, state.SubscriptionID)
		if err != nil {
			return nil, err
		}
		res.Subscription = sub
		return res, nil
	}

	provState, err := s.provider.GetSubscription(ctx, state.SubscriptionID)
	if err != nil {
		return nil, apperr.Provider(err)
	}
	if err := s.ledgerSvc.ApplyProviderState(ctx, sub, models.ProviderState{
		SubscriptionID:   provState.ID,
		Status:           provState.Status,
		TrialEnd:         provState.TrialEnd,
		CurrentPeriodEnd: provState.CurrentPeriodEnd,
	}); err != nil {
		return nil, err
	}
	log.Infow("checkout_resolved_by_poll", "subscription_id", sub.ID, "status", sub.Status)

	s.referralSvc.GrantBenefits(ctx, userID, sub)
	s.notifierSvc.SubscriptionActivated(ctx, userID, sub)

	res.Subscription = sub
	return res, nil
}

// SetAutoRenew flips period-end cancellation for the user's qualifying
// subscription, provider first so a provider rejection leaves the local flag
// untouched.
func (s *Service) SetAutoRenew(ctx context.Context, userID string, autoRenew bool) (*models.Subscription, error) {
	sub, err := s.ledgerSvc.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound("active subscription")
	}
	if sub.StripeSubscriptionID == nil {
		return nil, apperr.Validation("subscription is not linked to the payment provider yet")
	}

	if err := s.provider.SetCancelAtPeriodEnd(ctx, *sub.StripeSubscriptionID, !autoRenew); err != nil {
		return nil, apperr.Provider(err)
	}
	if err := s.ledgerSvc.SetAutoRenew(ctx, sub, autoRenew); err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("auto_renew_changed",
		"subscription_id", sub.ID, "auto_renew", autoRenew)
	return sub, nil
}
