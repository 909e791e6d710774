package plan

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/perkflow/perkflow/internal/models"
	"github.com/perkflow/perkflow/internal/platform/stripeapi"
	"github.com/perkflow/perkflow/pkg/apperr"
	"github.com/perkflow/perkflow/pkg/logctx"
	"github.com/perkflow/perkflow/pkg/tool"
	"github.com/perkflow/perkflow/pkg/types"
)

// Service owns the plan catalog. Plans live locally and are mirrored to the
// payment provider as a product plus a price; the provider references are
// kept on the row so checkout can hand the price id straight to the session.
type Service struct {
	db       *gorm.DB
	provider stripeapi.Provider
	log      *zap.SugaredLogger
}

func NewService(db *gorm.DB, provider stripeapi.Provider, log *zap.SugaredLogger) *Service {
	return &Service{db: db, provider: provider, log: log}
}

// CreateInput is the validated shape for a new plan. Amount is in minor
// currency units.
type CreateInput struct {
	Name          string
	Amount        int64
	Interval      types.PlanInterval
	IntervalCount int
	Description   string
	TrialDays     int
}

// UpdateInput carries the mutable plan fields. Nil means "leave unchanged".
type UpdateInput struct {
	Name        *string
	Amount      *int64
	Description *string
	TrialDays   *int
	Active      *bool
}

// List returns the purchasable catalog, cheapest first.
func (s *Service) List(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("amount asc").
		Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// Get returns one plan by id regardless of its active flag.
func (s *Service) Get(ctx context.Context, id string) (*models.Plan, error) {
	var plan models.Plan
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("plan")
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &plan, nil
}

// GetActive returns one purchasable plan by id.
func (s *Service) GetActive(ctx context.Context, id string) (*models.Plan, error) {
	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, apperr.NotFound("plan")
	}
	return plan, nil
}

// Create stores the plan and mirrors it to the provider. Provider failures
// are logged but do not block the local row; the references stay empty and
// checkout for the plan fails until they are backfilled.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Plan, error) {
	if in.Name == "" {
		return nil, apperr.Validation("plan name is required")
	}
	if in.Amount <= 0 {
		return nil, apperr.Validation("plan amount must be positive")
	}
	if !in.Interval.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unsupported interval %q", in.Interval))
	}
	if in.IntervalCount <= 0 {
		in.IntervalCount = 1
	}

	plan := &models.Plan{
		ID:            tool.GenerateUUIDV7(),
		Name:          in.Name,
		Amount:        in.Amount,
		Interval:      in.Interval,
		IntervalCount: in.IntervalCount,
		Description:   in.Description,
		TrialDays:     in.TrialDays,
		Active:        true,
	}

	log := logctx.FromCtx(ctx, s.log)
	productID, err := s.provider.CreateProduct(ctx, plan.Name, plan.Description)
	if err != nil {
		log.Errorw("plan_provider_product_failed", "plan", plan.Name, "err", err)
	} else {
		plan.StripeProductID = &productID
		priceID, err := s.provider.CreatePrice(ctx, productID, plan.Amount, plan.Interval, plan.IntervalCount)
		if err != nil {
			log.Errorw("plan_provider_price_failed", "plan", plan.Name, "err", err)
		} else {
			plan.StripePriceID = &priceID
		}
	}

	if err := s.db.WithContext(ctx).Create(plan).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("a plan with this name already exists", nil)
		}
		return nil, fmt.Errorf("create plan: %w", err)
	}
	log.Infow("plan_created", "plan_id", plan.ID, "name", plan.Name)
	return plan, nil
}

// Update mutates local fields and pushes the relevant changes to the
// provider. A price change mints a new provider price (prices are immutable
// there) and repoints the row; existing subscriptions keep their old price.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*models.Plan, error) {
	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	log := logctx.FromCtx(ctx, s.log)

	if in.Name != nil && *in.Name != plan.Name {
		plan.Name = *in.Name
		if plan.StripeProductID != nil {
			if err := s.provider.UpdateProductName(ctx, *plan.StripeProductID, plan.Name); err != nil {
				log.Errorw("plan_provider_rename_failed", "plan_id", plan.ID, "err", err)
			}
		}
	}
	if in.Amount != nil && *in.Amount != plan.Amount {
		if *in.Amount <= 0 {
			return nil, apperr.Validation("plan amount must be positive")
		}
		plan.Amount = *in.Amount
		if plan.StripeProductID != nil {
			priceID, err := s.provider.CreatePrice(ctx, *plan.StripeProductID, plan.Amount, plan.Interval, plan.IntervalCount)
			if err != nil {
				log.Errorw("plan_provider_reprice_failed", "plan_id", plan.ID, "err", err)
			} else {
				plan.StripePriceID = &priceID
			}
		}
	}
	if in.Description != nil {
		plan.Description = *in.Description
	}
	if in.TrialDays != nil {
		plan.TrialDays = *in.TrialDays
	}
	if in.Active != nil {
		plan.Active = *in.Active
	}

	if err := s.db.WithContext(ctx).Save(plan).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("a plan with this name already exists", nil)
		}
		return nil, fmt.Errorf("update plan: %w", err)
	}
	log.Infow("plan_updated", "plan_id", plan.ID)
	return plan, nil
}
