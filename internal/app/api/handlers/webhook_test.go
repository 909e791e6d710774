package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/perkflow/perkflow/internal/app/service/reconciler"
	"github.com/perkflow/perkflow/pkg/config"
)

func TestStripeWebhook_UnverifiableDeliveryGets400(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Stripe.WebhookSecret = "whsec_test"
	svc := reconciler.NewService(cfg, nil, nil, nil, nil, nil, zap.NewNop().Sugar())

	r := gin.New()
	RegisterWebhookRoutes(r, svc)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe",
		strings.NewReader(`{"id":"evt_1","type":"customer.subscription.updated"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
