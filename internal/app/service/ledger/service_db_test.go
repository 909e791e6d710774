package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/perkflow/perkflow/internal/models"
	"github.com/perkflow/perkflow/pkg/apperr"
	"github.com/perkflow/perkflow/pkg/tool"
	"github.com/perkflow/perkflow/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)
	// An in-memory sqlite database exists per connection; pin the pool to one.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Plan{}, &models.Subscription{}))
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewService(db, zap.NewNop().Sugar()), db
}

func seedPlan(t *testing.T, db *gorm.DB) *models.Plan {
	t.Helper()
	plan := &models.Plan{
		ID:            tool.GenerateUUIDV7(),
		Name:          "basic",
		Amount:        999,
		Interval:      types.PlanIntervalMonth,
		IntervalCount: 1,
		Active:        true,
	}
	require.NoError(t, db.Create(plan).Error)
	return plan
}

func seedSubscription(t *testing.T, db *gorm.DB, userID, providerSubID string, status types.SubscriptionStatus) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		ID:                   tool.GenerateUUIDV7(),
		UserID:               userID,
		StripeCustomerID:     lo.ToPtr("cus_" + userID),
		StripeSubscriptionID: &providerSubID,
		Status:               status,
		AutoRenew:            true,
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

func reload(t *testing.T, db *gorm.DB, id string) *models.Subscription {
	t.Helper()
	var sub models.Subscription
	require.NoError(t, db.Where("id = ?", id).First(&sub).Error)
	return &sub
}

func TestUpdateByProviderSubscriptionID_NoMatchingRowIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)

	count, err := svc.UpdateByProviderSubscriptionID(context.Background(),
		"sub_unknown", types.SubscriptionStatusActive, nil, nil)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestUpdateByProviderSubscriptionID_CanceledRowNeverRegresses(t *testing.T) {
	svc, db := newTestService(t)
	sub := seedSubscription(t, db, "user-1", "sub_123", types.SubscriptionStatusCanceled)

	periodEnd := time.Now().AddDate(0, 0, 30)
	count, err := svc.UpdateByProviderSubscriptionID(context.Background(),
		"sub_123", types.SubscriptionStatusActive, nil, &periodEnd)
	require.NoError(t, err)
	require.Zero(t, count)

	got := reload(t, db, sub.ID)
	require.Equal(t, types.SubscriptionStatusCanceled, got.Status)
	require.Nil(t, got.CurrentPeriodEnd)
}

func TestCancelByProviderSubscriptionID_IsIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	sub := seedSubscription(t, db, "user-1", "sub_123", types.SubscriptionStatusActive)

	count, err := svc.CancelByProviderSubscriptionID(context.Background(), "sub_123")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, types.SubscriptionStatusCanceled, reload(t, db, sub.ID).Status)

	// Redelivered deletion finds nothing left to cancel.
	count, err = svc.CancelByProviderSubscriptionID(context.Background(), "sub_123")
	require.NoError(t, err)
	require.Zero(t, count)
}

// A deletion committed between loading a row and writing provider state must
// win: the WHERE-clause guard catches what the in-memory check cannot.
func TestApplyProviderState_CancellationBetweenReadAndWriteWins(t *testing.T) {
	svc, db := newTestService(t)
	seedSubscription(t, db, "user-1", "sub_123", types.SubscriptionStatusPending)

	stale, err := svc.FindByProviderSubscriptionID(context.Background(), "sub_123")
	require.NoError(t, err)
	require.NotNil(t, stale)

	count, err := svc.CancelByProviderSubscriptionID(context.Background(), "sub_123")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	periodEnd := time.Now().AddDate(0, 0, 30)
	err = svc.ApplyProviderState(context.Background(), stale, models.ProviderState{
		SubscriptionID:   "sub_123",
		Status:           types.SubscriptionStatusActive,
		CurrentPeriodEnd: &periodEnd,
	})
	require.NoError(t, err)

	require.Equal(t, types.SubscriptionStatusCanceled, stale.Status)
	got := reload(t, db, stale.ID)
	require.Equal(t, types.SubscriptionStatusCanceled, got.Status)
	require.Nil(t, got.CurrentPeriodEnd)
}

func TestWebhookSequenceKeepsAtMostOneQualifyingRow(t *testing.T) {
	svc, db := newTestService(t)
	plan := seedPlan(t, db)

	sub, err := svc.CreatePending(context.Background(), "user-1", plan, "cus_1")
	require.NoError(t, err)

	periodEnd := time.Now().AddDate(0, 0, 30)
	require.NoError(t, svc.ApplyProviderState(context.Background(), sub, models.ProviderState{
		SubscriptionID:   "sub_123",
		Status:           types.SubscriptionStatusActive,
		CurrentPeriodEnd: &periodEnd,
	}))

	// A second purchase attempt while the first is active is blocked.
	_, err = svc.CreatePending(context.Background(), "user-1", plan, "cus_1")
	require.Error(t, err)
	require.True(t, apperr.IsConflict(err))

	var qualifying int64
	require.NoError(t, db.Model(&models.Subscription{}).
		Where("user_id = ? AND status IN ?", "user-1", types.QualifyingStatuses).
		Count(&qualifying).Error)
	require.EqualValues(t, 1, qualifying)

	// Cancellation reopens the path to a new pending row.
	_, err = svc.CancelByProviderSubscriptionID(context.Background(), "sub_123")
	require.NoError(t, err)
	_, err = svc.CreatePending(context.Background(), "user-1", plan, "cus_1")
	require.NoError(t, err)
}
