package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/perkflow/perkflow/internal/app/api/middleware"
	"github.com/perkflow/perkflow/internal/app/service/checkout"
	"github.com/perkflow/perkflow/pkg/response"
)

type startCheckoutReq struct {
	PlanID     string `json:"plan_id" binding:"required"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

type autoRenewReq struct {
	AutoRenew *bool `json:"auto_renew" binding:"required"`
}

// @Summary      Start checkout
// @Description  Opens a provider checkout session for a plan and records the pending subscription.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        request body startCheckoutReq true "Checkout request"
// @Success      200  {object}  response.APIResponse[checkout.StartResult]
// @Failure      409  {object}  response.APIResponse[any]
// @Router       /api/v1/subscriptions/checkout [post]
func StartCheckout(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startCheckoutReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorMsg[any](response.APIResponseCodeBadRequest, err.Error(), nil))
			return
		}
		res, err := svc.StartCheckout(c.Request.Context(), middleware.UserID(c), req.PlanID, req.SuccessURL, req.CancelURL)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Checkout session status
// @Description  Polls the provider session and resolves the pending subscription when paid.
// @Tags         Subscriptions
// @Produce      json
// @Param        id   path      string  true  "Checkout session ID"
// @Success      200  {object}  response.APIResponse[checkout.SessionResult]
// @Router       /api/v1/subscriptions/checkout/session/{id} [get]
func CheckoutSessionStatus(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.SessionStatus(c.Request.Context(), middleware.UserID(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Set auto-renew
// @Description  Enables or disables renewal at the end of the current period.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        request body autoRenewReq true "Auto-renew flag"
// @Success      200  {object}  response.APIResponse[models.Subscription]
// @Router       /api/v1/subscriptions/auto-renew [put]
func SetAutoRenew(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req autoRenewReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorMsg[any](response.APIResponseCodeBadRequest, err.Error(), nil))
			return
		}
		sub, err := svc.SetAutoRenew(c.Request.Context(), middleware.UserID(c), *req.AutoRenew)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// PaymentSuccess is the default landing target after a completed provider
// checkout; clients normally poll the session status instead.
func PaymentSuccess(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(map[string]string{
		"status":     "success",
		"session_id": c.Query("session_id"),
	}))
}

func PaymentCancel(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "canceled"}))
}

func RegisterCheckoutRoutes(r gin.IRouter, svc *checkout.Service) {
	r.POST("/subscriptions/checkout", StartCheckout(svc))
	r.GET("/subscriptions/checkout/session/:id", CheckoutSessionStatus(svc))
	r.PUT("/subscriptions/auto-renew", SetAutoRenew(svc))
}

func RegisterPaymentLandingRoutes(r gin.IRouter) {
	r.GET("/payment/success", PaymentSuccess)
	r.GET("/payment/cancel", PaymentCancel)
}
