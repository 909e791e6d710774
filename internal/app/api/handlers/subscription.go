package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/perkflow/perkflow/internal/app/api/middleware"
	"github.com/perkflow/perkflow/internal/app/service/ledger"
	"github.com/perkflow/perkflow/internal/models"
	"github.com/perkflow/perkflow/pkg/response"
)

// subscriptionStatusResp always answers 200; absence of a subscription is
// data, not an error.
type subscriptionStatusResp struct {
	HasSubscription  bool                 `json:"has_subscription"`
	Subscription     *models.Subscription `json:"subscription,omitempty"`
	PlanName         string               `json:"plan_name,omitempty"`
	IsTrial          bool                 `json:"is_trial"`
	TrialEnd         *time.Time           `json:"trial_end,omitempty"`
	CurrentPeriodEnd *time.Time           `json:"current_period_end,omitempty"`
	AutoRenew        bool                 `json:"auto_renew"`
}

// @Summary      Current subscription
// @Description  Returns the caller's active or trialing subscription, if any.
// @Tags         Subscriptions
// @Produce      json
// @Success      200  {object}  response.APIResponse[subscriptionStatusResp]
// @Router       /api/v1/subscriptions/me [get]
func SubscriptionStatus(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := svc.GetActive(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		if sub == nil {
			c.JSON(http.StatusOK, response.OKT(subscriptionStatusResp{}))
			return
		}
		resp := subscriptionStatusResp{
			HasSubscription:  true,
			Subscription:     sub,
			IsTrial:          sub.IsTrial(time.Now()),
			TrialEnd:         sub.TrialEnd,
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
			AutoRenew:        sub.AutoRenew,
		}
		if sub.Plan != nil {
			resp.PlanName = sub.Plan.Name
		}
		c.JSON(http.StatusOK, response.OKT(resp))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, svc *ledger.Service) {
	r.GET("/subscriptions/me", SubscriptionStatus(svc))
}
