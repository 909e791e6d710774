package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/perkflow/perkflow/internal/platform/stripeapi"
	"github.com/perkflow/perkflow/pkg/apperr"
)

// stubProvider satisfies the provider boundary with canned responses.
type stubProvider struct {
	stripeapi.Provider
	session *stripeapi.CheckoutSessionState
	err     error
}

func (p *stubProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*stripeapi.CheckoutSessionState, error) {
	return p.session, p.err
}

func TestSessionStatus_RejectsForeignSession(t *testing.T) {
	s := &Service{
		provider: &stubProvider{session: &stripeapi.CheckoutSessionState{
			ID:       "cs_123",
			Metadata: map[string]string{"user_id": "someone-else"},
		}},
		log: zap.NewNop().Sugar(),
	}

	_, err := s.SessionStatus(context.Background(), "user-1", "cs_123")
	require.Error(t, err)
	require.True(t, apperr.IsNotFound(err))
}

func TestSessionStatus_UnpaidReturnsWithoutTouchingLedger(t *testing.T) {
	// ledgerSvc is nil; reaching it would panic the test.
	s := &Service{
		provider: &stubProvider{session: &stripeapi.CheckoutSessionState{
			ID:            "cs_123",
			Status:        "open",
			PaymentStatus: "unpaid",
			Metadata:      map[string]string{"user_id": "user-1"},
		}},
		log: zap.NewNop().Sugar(),
	}

	res, err := s.SessionStatus(context.Background(), "user-1", "cs_123")
	require.NoError(t, err)
	require.False(t, res.Paid)
	require.Nil(t, res.Subscription)
	require.Equal(t, "unpaid", res.PaymentStatus)
}
