package referral

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
)

const (
	// ReferrerBonus is the unlimited-access window granted to the user
	// whose code was used.
	ReferrerBonus = 30 * 24 * time.Hour
	// RefereeBonus is the smaller window granted to the purchaser.
	RefereeBonus = 7 * 24 * time.Hour
)

// UserStore abstracts the user rows the benefit engine reads and writes.
type UserStore interface {
	ByID(ctx context.Context, id string) (*models.User, error)
	ByReferralCode(ctx context.Context, code string) (*models.User, error)
	ByReferredBy(ctx context.Context, code string) ([]*models.User, error)
	Save(ctx context.Context, u *models.User) error
}

// Service grants temporary unlimited-access windows when a referred user
// completes their first paid checkout.
type Service struct {
	users UserStore
	log   *zap.SugaredLogger
}

func NewService(users UserStore, log *zap.SugaredLogger) *Service {
	return &Service{users: users, log: log}
}

// BenefitWindows returns the expiry timestamps for referrer and referee
// anchored at base (the subscription's current_period_end, or now).
func BenefitWindows(base time.Time) (referrerExpiry, refereeExpiry time.Time) {
	return base.Add(ReferrerBonus), base.Add(RefereeBonus)
}

// GrantBenefits applies referral perks for a completed checkout. It never
// returns an error: a purchaser without a referral code, a dangling code,
// or a storage failure all end here with a log line, keeping the webhook
// acknowledgement contract intact.
func (s *Service) GrantBenefits(ctx context.Context, userID string, sub *models.Subscription) {
	log := logctx.FromCtx(ctx, s.log)

	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		log.Errorw("referral_load_purchaser_failed", "user_id", userID, "err", err)
		return
	}
	if user.ReferredBy == nil || *user.ReferredBy == "" {
		log.Infow("referral_skipped_no_referrer", "user_id", userID)
		return
	}

	referrer, err := s.users.ByReferralCode(ctx, *user.ReferredBy)
	if err != nil {
		if apperr.IsNotFound(err) {
			// Weak reference by code value: missing target is normal.
			log.Warnw("referral_code_unresolved", "user_id", userID, "code", *user.ReferredBy)
			return
		}
		log.Errorw("referral_resolve_failed", "user_id", userID, "code", *user.ReferredBy, "err", err)
		return
	}

	base := time.Now()
	if sub.CurrentPeriodEnd != nil {
		base = *sub.CurrentPeriodEnd
	}
	referrerExpiry, refereeExpiry := BenefitWindows(base)

	referrer.IsUnlimited = true
	referrer.PackageExpiry = &referrerExpiry
	if err := s.users.Save(ctx, referrer); err != nil {
		log.Errorw("referral_grant_referrer_failed", "referrer_id", referrer.ID, "err", err)
		return
	}
	log.Infow("referral_granted_referrer",
		"referrer_id", referrer.ID, "package_expiry", referrerExpiry)

	user.IsUnlimited = true
	user.PackageExpiry = &refereeExpiry
	if err := s.users.Save(ctx, user); err != nil {
		log.Errorw("referral_grant_referee_failed", "user_id", user.ID, "err", err)
		return
	}
	log.Infow("referral_granted_referee",
		"user_id", user.ID, "package_expiry", refereeExpiry)
}

// Status summarizes a user's referral standing for the status endpoint.
type Status struct {
	User          *models.User   `json:"user"`
	Referrer      *models.User   `json:"referrer,omitempty"`
	ReferredUsers []*models.User `json:"referred_users"`
	ReferralCount int            `json:"referral_count"`
}

// GetStatus returns the user's referral code, resolved referrer (when the
// code resolves) and the users they referred.
func (s *Service) GetStatus(ctx context.Context, userID string) (*Status, error) {
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	st := &Status{User: user, ReferredUsers: []*models.User{}}
	if user.ReferredBy != nil && *user.ReferredBy != "" {
		referrer, err := s.users.ByReferralCode(ctx, *user.ReferredBy)
		if err == nil {
			st.Referrer = referrer
		} else if !apperr.IsNotFound(err) {
			return nil, err
		}
	}
	referred, err := s.users.ByReferredBy(ctx, user.ReferralCode)
	if err != nil {
		return nil, err
	}
	st.ReferredUsers = referred
	st.ReferralCount = len(referred)
	return st, nil
}

// gormUserStore is the production UserStore.
type gormUserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) UserStore {
	return &gormUserStore{db: db}
}

func (s *gormUserStore) ByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	return &u, nil
}

func (s *gormUserStore) ByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("referral_code = ?", code).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("referrer")
		}
		return nil, fmt.Errorf("load user by referral code: %w", err)
	}
	return &u, nil
}

func (s *gormUserStore) ByReferredBy(ctx context.Context, code string) ([]*models.User, error) {
	var users []*models.User
	if err := s.db.WithContext(ctx).Where("referred_by = ?", code).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list referred users: %w", err)
	}
	return users, nil
}

func (s *gormUserStore) Save(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}
