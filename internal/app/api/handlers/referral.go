package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/perkflow/perkflow/internal/app/api/middleware"
	"github.com/perkflow/perkflow/internal/app/service/referral"
	"github.com/perkflow/perkflow/pkg/response"
)

// @Summary      Referral status
// @Description  Returns the caller's referral code, referrer and referred users.
// @Tags         Referrals
// @Produce      json
// @Success      200  {object}  response.APIResponse[referral.Status]
// @Router       /api/v1/referrals/me [get]
func ReferralStatus(svc *referral.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.GetStatus(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(st))
	}
}

func RegisterReferralRoutes(r gin.IRouter, svc *referral.Service) {
	r.GET("/referrals/me", ReferralStatus(svc))
}
