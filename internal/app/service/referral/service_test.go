package referral

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/perkflow/perkflow/internal/models"
	"github.com/perkflow/perkflow/pkg/apperr"
)

type fakeUserStore struct {
	users    map[string]*models.User // by id
	saveErr  error
	saveList []string
}

func (f *fakeUserStore) ByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user")
}

func (f *fakeUserStore) ByReferralCode(_ context.Context, code string) (*models.User, error) {
	for _, u := range f.users {
		if u.ReferralCode == code {
			return u, nil
		}
	}
	return nil, apperr.NotFound("referrer")
}

func (f *fakeUserStore) ByReferredBy(_ context.Context, code string) ([]*models.User, error) {
	var out []*models.User
	for _, u := range f.users {
		if u.ReferredBy != nil && *u.ReferredBy == code {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserStore) Save(_ context.Context, u *models.User) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saveList = append(f.saveList, u.ID)
	f.users[u.ID] = u
	return nil
}

func newService(store UserStore) *Service {
	return NewService(store, zap.NewNop().Sugar())
}

func TestBenefitWindows(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	referrer, referee := BenefitWindows(base)
	require.Equal(t, base.AddDate(0, 0, 30), referrer)
	require.Equal(t, base.AddDate(0, 0, 7), referee)
}

func TestGrantBenefits_ReferrerAndReferee(t *testing.T) {
	periodEnd := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeUserStore{users: map[string]*models.User{
		"user-a": {ID: "user-a", ReferralCode: "ABC123"},
		"user-b": {ID: "user-b", ReferralCode: "XYZ789", ReferredBy: lo.ToPtr("ABC123")},
	}}

	sub := &models.Subscription{UserID: "user-b", CurrentPeriodEnd: &periodEnd}
	newService(store).GrantBenefits(context.Background(), "user-b", sub)

	a := store.users["user-a"]
	require.True(t, a.IsUnlimited)
	require.Equal(t, periodEnd.AddDate(0, 0, 30), *a.PackageExpiry)

	b := store.users["user-b"]
	require.True(t, b.IsUnlimited)
	require.Equal(t, periodEnd.AddDate(0, 0, 7), *b.PackageExpiry)
}

func TestGrantBenefits_NoReferrerCode(t *testing.T) {
	store := &fakeUserStore{users: map[string]*models.User{
		"user-b": {ID: "user-b", ReferralCode: "XYZ789"},
	}}

	newService(store).GrantBenefits(context.Background(), "user-b", &models.Subscription{})

	require.Empty(t, store.saveList)
	require.False(t, store.users["user-b"].IsUnlimited)
}

func TestGrantBenefits_DanglingCodeTolerated(t *testing.T) {
	store := &fakeUserStore{users: map[string]*models.User{
		"user-b": {ID: "user-b", ReferralCode: "XYZ789", ReferredBy: lo.ToPtr("GONE42")},
	}}

	newService(store).GrantBenefits(context.Background(), "user-b", &models.Subscription{})

	require.Empty(t, store.saveList)
	require.False(t, store.users["user-b"].IsUnlimited)
}

func TestGrantBenefits_MissingPeriodEndFallsBackToNow(t *testing.T) {
	store := &fakeUserStore{users: map[string]*models.User{
		"user-a": {ID: "user-a", ReferralCode: "ABC123"},
		"user-b": {ID: "user-b", ReferralCode: "XYZ789", ReferredBy: lo.ToPtr("ABC123")},
	}}

	before := time.Now()
	newService(store).GrantBenefits(context.Background(), "user-b", &models.Subscription{UserID: "user-b"})
	after := time.Now()

	a := store.users["user-a"]
	require.True(t, a.IsUnlimited)
	require.False(t, a.PackageExpiry.Before(before.Add(ReferrerBonus)))
	require.False(t, a.PackageExpiry.After(after.Add(ReferrerBonus)))
}

func TestGrantBenefits_StoreFailureSwallowed(t *testing.T) {
	store := &fakeUserStore{
		users: map[string]*models.User{
			"user-a": {ID: "user-a", ReferralCode: "ABC123"},
			"user-b": {ID: "user-b", ReferralCode: "XYZ789", ReferredBy: lo.ToPtr("ABC123")},
		},
		saveErr: context.DeadlineExceeded,
	}

	require.NotPanics(t, func() {
		newService(store).GrantBenefits(context.Background(), "user-b", &models.Subscription{})
	})
}

func TestGetStatus(t *testing.T) {
	store := &fakeUserStore{users: map[string]*models.User{
		"user-a": {ID: "user-a", ReferralCode: "ABC123"},
		"user-b": {ID: "user-b", ReferralCode: "XYZ789", ReferredBy: lo.ToPtr("ABC123")},
		"user-c": {ID: "user-c", ReferralCode: "QQQ111", ReferredBy: lo.ToPtr("ABC123")},
	}}

	st, err := newService(store).GetStatus(context.Background(), "user-a")
	require.NoError(t, err)
	require.Nil(t, st.Referrer)
	require.Equal(t, 2, st.ReferralCount)

	st, err = newService(store).GetStatus(context.Background(), "user-b")
	require.NoError(t, err)
	require.NotNil(t, st.Referrer)
	require.Equal(t, "user-a", st.Referrer.ID)
	require.Equal(t, 0, st.ReferralCount)
}
