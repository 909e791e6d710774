package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/perkflow/perkflow/internal/app/service/reconciler"
	"github.com/perkflow/perkflow/pkg/response"
)

// maxWebhookBody caps the raw payload read; Stripe events are far smaller.
const maxWebhookBody = 1 << 20

// @Summary      Stripe webhook
// @Description  Receives provider lifecycle events. Unverifiable deliveries get 400, everything else is acknowledged with 200.
// @Tags         Webhooks
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "Signature header"
// @Success      200  {object}  response.APIResponse[map[string]bool]
// @Failure      400  {object}  response.APIResponse[any]
// @Router       /webhooks/stripe [post]
func StripeWebhook(svc *reconciler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorMsg[any](response.APIResponseCodeBadRequest, "cannot read payload", nil))
			return
		}

		if err := svc.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]bool{"received": true}))
	}
}

func RegisterWebhookRoutes(r gin.IRouter, svc *reconciler.Service) {
	r.POST("/webhooks/stripe", StripeWebhook(svc))
}
