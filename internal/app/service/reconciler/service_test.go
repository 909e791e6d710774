package reconciler

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/perkflow/perkflow/pkg/apperr"
	"github.com/perkflow/perkflow/pkg/config"
	"github.com/perkflow/perkflow/pkg/types"
)

const testSecret = "whsec_test_secret"

func testService() *Service {
	cfg := &config.Config{}
	cfg.Stripe.WebhookSecret = testSecret
	return NewService(cfg, nil, nil, nil, nil, nil, zap.NewNop().Sugar())
}

// signedHeader builds a valid Stripe-Signature header for payload.
func signedHeader(t *testing.T, payload []byte, secret string, at time.Time) string {
	t.Helper()
	sig := webhook.ComputeSignature(at, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}

func TestHandle_RejectsBadSignature(t *testing.T) {
	s := testService()
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)

	err := s.Handle(context.Background(), payload, "t=1,v1=deadbeef")
	require.Error(t, err)
	require.True(t, apperr.IsVerification(err))
}

func TestHandle_RejectsWrongSecret(t *testing.T) {
	s := testService()
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)
	header := signedHeader(t, payload, "whsec_other_secret", time.Now())

	err := s.Handle(context.Background(), payload, header)
	require.True(t, apperr.IsVerification(err))
}

func TestHandle_RejectsMalformedPayload(t *testing.T) {
	s := testService()
	payload := []byte(`not json at all`)
	header := signedHeader(t, payload, testSecret, time.Now())

	err := s.Handle(context.Background(), payload, header)
	require.True(t, apperr.IsVerification(err))
}

func TestHandle_RejectsStaleTimestamp(t *testing.T) {
	s := testService()
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)
	header := signedHeader(t, payload, testSecret, time.Now().Add(-time.Hour))

	err := s.Handle(context.Background(), payload, header)
	require.True(t, apperr.IsVerification(err))
}

func TestDispatchTable_CoversExactlyTheLifecycleEvents(t *testing.T) {
	s := testService()

	want := []string{
		"checkout.session.completed",
		"customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted",
	}
	require.Len(t, s.handlers, len(want))
	for _, typ := range want {
		require.Contains(t, s.handlers, typ)
	}
}

func TestProviderStateFrom(t *testing.T) {
	trialEnd := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	obj := &stripe.Subscription{
		ID:               "sub_123",
		Status:           stripe.SubscriptionStatusTrialing,
		TrialEnd:         trialEnd.Unix(),
		CurrentPeriodEnd: periodEnd.Unix(),
	}

	st := providerStateFrom(obj)
	require.Equal(t, "sub_123", st.SubscriptionID)
	require.Equal(t, types.SubscriptionStatusTrialing, st.Status)
	require.Equal(t, trialEnd, *st.TrialEnd)
	require.Equal(t, periodEnd, *st.CurrentPeriodEnd)
}

func TestProviderStateFrom_ZeroTimestampsStayNil(t *testing.T) {
	st := providerStateFrom(&stripe.Subscription{
		ID:     "sub_123",
		Status: stripe.SubscriptionStatusActive,
	})
	require.Nil(t, st.TrialEnd)
	require.Nil(t, st.CurrentPeriodEnd)
}
