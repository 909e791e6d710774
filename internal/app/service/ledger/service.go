package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/perkflow/perkflow/internal/models"
	"github.com/perkflow/perkflow/pkg/apperr"
	"github.com/perkflow/perkflow/pkg/logctx"
	"github.com/perkflow/perkflow/pkg/tool"
	"github.com/perkflow/perkflow/pkg/types"
)

// Service owns subscription ledger rows. Rows are created as pending by the
// checkout orchestrator; every later lifecycle change comes from
// provider-reported state via the webhook reconciler.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// GetActive returns the user's single active-or-trialing subscription, or
// nil when there is none.
func (s *Service) GetActive(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ? AND status IN ?", userID, types.QualifyingStatuses).
		Order("created_at desc").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active subscription: %w", err)
	}
	return &sub, nil
}

// CreatePending inserts a pending ledger row for user and plan. The
// provisional current_period_end is computed from the plan interval so the
// column is populated before the provider confirms. Fails with a conflict
// when the user already holds a qualifying subscription.
func (s *Service) CreatePending(ctx context.Context, userID string, plan *models.Plan, customerID string) (*models.Subscription, error) {
	existing, err := s.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ConflictFor(existing, time.Now())
	}

	now := time.Now()
	periodEnd := plan.PeriodEnd(now)
	sub := &models.Subscription{
		ID:               tool.GenerateUUIDV7(),
		UserID:           userID,
		PlanID:           &plan.ID,
		StripeCustomerID: &customerID,
		Status:           types.SubscriptionStatusPending,
		CurrentPeriodEnd: &periodEnd,
		AutoRenew:        true,
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("create pending subscription: %w", err)
	}
	return sub, nil
}

// ApplyProviderState persists the provider-reported lifecycle fields onto
// sub. Idempotent; a no-op when the row is already canceled. The terminal
// guard is repeated in the WHERE clause: the in-memory check alone would
// miss a cancellation committed between loading the row and writing it.
func (s *Service) ApplyProviderState(ctx context.Context, sub *models.Subscription, st models.ProviderState) error {
	if !sub.ApplyProviderState(st) {
		if sub.Status.Terminal() {
			logctx.FromCtx(ctx, s.log).Infow("provider_state_skipped_terminal",
				"subscription_id", sub.ID, "reported_status", st.Status)
		}
		return nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status <> ?", sub.ID, types.SubscriptionStatusCanceled).
		Updates(map[string]any{
			"stripe_subscription_id": sub.StripeSubscriptionID,
			"status":                 sub.Status,
			"trial_end":              sub.TrialEnd,
			"current_period_end":     sub.CurrentPeriodEnd,
		})
	if res.Error != nil {
		return fmt.Errorf("save subscription %s: %w", sub.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		// The row reached the terminal state underneath us; reload so the
		// caller sees the state that actually stuck.
		logctx.FromCtx(ctx, s.log).Infow("provider_state_skipped_terminal",
			"subscription_id", sub.ID, "reported_status", st.Status)
		if err := s.db.WithContext(ctx).Where("id = ?", sub.ID).First(sub).Error; err != nil {
			return fmt.Errorf("reload subscription %s: %w", sub.ID, err)
		}
	}
	return nil
}

// FindPending locates the pending row created during checkout by its owner
// and provider customer reference. Returns nil when no row matches.
func (s *Service) FindPending(ctx context.Context, userID, customerID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ? AND stripe_customer_id = ? AND status = ?",
			userID, customerID, types.SubscriptionStatusPending).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pending subscription: %w", err)
	}
	return &sub, nil
}

// FindByProviderSubscriptionID returns the row carrying the external
// subscription reference, or nil.
func (s *Service) FindByProviderSubscriptionID(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Where("stripe_subscription_id = ?", subscriptionID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find subscription by provider id: %w", err)
	}
	return &sub, nil
}

// FindPendingByCustomer returns the pending row for a provider customer,
// used when a subscription event arrives before the external id is linked.
func (s *Service) FindPendingByCustomer(ctx context.Context, customerID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Where("stripe_customer_id = ? AND status = ?", customerID, types.SubscriptionStatusPending).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pending by customer: %w", err)
	}
	return &sub, nil
}

// UpdateByProviderSubscriptionID applies provider lifecycle fields to every
// non-terminal row referencing subscriptionID. Bulk-update semantics: zero
// matched rows is a silent no-op, the caller gets the affected count. The
// terminal guard lives in SQL so a canceled row can never regress no matter
// in which order events are delivered.
func (s *Service) UpdateByProviderSubscriptionID(ctx context.Context, subscriptionID string, status types.SubscriptionStatus, trialEnd, currentPeriodEnd *time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("stripe_subscription_id = ? AND status <> ?",
			subscriptionID, types.SubscriptionStatusCanceled).
		Updates(map[string]any{
			"status":             status,
			"trial_end":          trialEnd,
			"current_period_end": currentPeriodEnd,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("bulk update subscription %s: %w", subscriptionID, res.Error)
	}
	return res.RowsAffected, nil
}

// CancelByProviderSubscriptionID forces rows referencing subscriptionID into
// the terminal canceled state.
func (s *Service) CancelByProviderSubscriptionID(ctx context.Context, subscriptionID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("stripe_subscription_id = ? AND status <> ?",
			subscriptionID, types.SubscriptionStatusCanceled).
		Update("status", types.SubscriptionStatusCanceled)
	if res.Error != nil {
		return 0, fmt.Errorf("cancel subscription %s: %w", subscriptionID, res.Error)
	}
	return res.RowsAffected, nil
}

// SetAutoRenew mirrors the provider's cancel_at_period_end flag locally.
func (s *Service) SetAutoRenew(ctx context.Context, sub *models.Subscription, autoRenew bool) error {
	sub.AutoRenew = autoRenew
	if err := s.db.WithContext(ctx).Model(sub).Update("auto_renew", autoRenew).Error; err != nil {
		return fmt.Errorf("set auto_renew: %w", err)
	}
	return nil
}

// AnyCustomerID returns a previously assigned provider customer reference
// for the user from any historical ledger row, or "" when none exists.
func (s *Service) AnyCustomerID(ctx context.Context, userID string) (string, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND stripe_customer_id IS NOT NULL", userID).
		Order("created_at desc").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup customer id: %w", err)
	}
	if sub.StripeCustomerID == nil {
		return "", nil
	}
	return *sub.StripeCustomerID, nil
}

// ConflictFor builds the structured conflict error for an existing
// qualifying subscription, distinguishing a trial block from an
// active-plan block.
func ConflictFor(existing *models.Subscription, now time.Time) *apperr.Error {
	details := map[string]any{
		"subscription_id": existing.ID,
		"status":          existing.Status,
	}
	if existing.Plan != nil {
		details["current_plan"] = existing.Plan.Name
	} else {
		details["current_plan"] = "unknown"
	}
	if existing.IsTrial(now) {
		details["trial_end"] = existing.TrialEnd
		return apperr.Conflict("you already have an active trial period", details)
	}
	details["current_period_end"] = existing.CurrentPeriodEnd
	return apperr.Conflict("you already have an active subscription", details)
}
