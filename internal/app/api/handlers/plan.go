package handlers

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	plansvc "github.com/perkflow/perkflow/internal/app/service/plan"
	"github.com/perkflow/perkflow/pkg/response"
	"github.com/perkflow/perkflow/pkg/types"
)

// createPlanReq takes the amount in major currency units; conversion to
// cents happens here, at the edge.
type createPlanReq struct {
	Name          string  `json:"name" binding:"required"`
	Amount        float64 `json:"amount" binding:"required"`
	Interval      string  `json:"interval" binding:"required"`
	IntervalCount int     `json:"interval_count"`
	Description   string  `json:"description"`
	TrialDays     int     `json:"trial_days"`
}

type updatePlanReq struct {
	Name        *string  `json:"name"`
	Amount      *float64 `json:"amount"`
	Description *string  `json:"description"`
	TrialDays   *int     `json:"trial_days"`
	Active      *bool    `json:"active"`
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// @Summary      List plans
// @Description  Returns the purchasable plan catalog.
// @Tags         Plans
// @Produce      json
// @Success      200  {object}  response.APIResponse[[]models.Plan]
// @Router       /api/v1/plans [get]
func ListPlans(svc *plansvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		plans, err := svc.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(plans))
	}
}

// @Summary      Get plan
// @Tags         Plans
// @Produce      json
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  response.APIResponse[models.Plan]
// @Router       /api/v1/plans/{id} [get]
func GetPlan(svc *plansvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		plan, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(plan))
	}
}

// @Summary      Create plan
// @Description  Creates a plan and mirrors it to the payment provider.
// @Tags         Plans
// @Accept       json
// @Produce      json
// @Param        request body createPlanReq true "Plan definition"
// @Success      200  {object}  response.APIResponse[models.Plan]
// @Router       /api/v1/admin/plans [post]
func CreatePlan(svc *plansvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createPlanReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorMsg[any](response.APIResponseCodeBadRequest, err.Error(), nil))
			return
		}
		plan, err := svc.Create(c.Request.Context(), plansvc.CreateInput{
			Name:          req.Name,
			Amount:        toCents(req.Amount),
			Interval:      types.PlanInterval(req.Interval),
			IntervalCount: req.IntervalCount,
			Description:   req.Description,
			TrialDays:     req.TrialDays,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(plan))
	}
}

// @Summary      Update plan
// @Tags         Plans
// @Accept       json
// @Produce      json
// @Param        id      path  string        true  "Plan ID"
// @Param        request body  updatePlanReq true  "Fields to change"
// @Success      200  {object}  response.APIResponse[models.Plan]
// @Router       /api/v1/admin/plans/{id} [put]
func UpdatePlan(svc *plansvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updatePlanReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorMsg[any](response.APIResponseCodeBadRequest, err.Error(), nil))
			return
		}
		in := plansvc.UpdateInput{
			Name:        req.Name,
			Description: req.Description,
			TrialDays:   req.TrialDays,
			Active:      req.Active,
		}
		if req.Amount != nil {
			cents := toCents(*req.Amount)
			in.Amount = &cents
		}
		plan, err := svc.Update(c.Request.Context(), c.Param("id"), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(plan))
	}
}

func RegisterPlanRoutes(r gin.IRouter, svc *plansvc.Service) {
	r.GET("/plans", ListPlans(svc))
	r.GET("/plans/:id", GetPlan(svc))
}

func RegisterAdminPlanRoutes(r gin.IRouter, svc *plansvc.Service) {
	r.POST("/plans", CreatePlan(svc))
	r.PUT("/plans/:id", UpdatePlan(svc))
}
