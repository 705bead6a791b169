// Package plans exposes the plan catalog and the per-user billing summary
// the account screen renders from.
package plans

import (
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/matchharper/harper-beta-sub001/models"
	"github.com/matchharper/harper-beta-sub001/repository"
	"github.com/matchharper/harper-beta-sub001/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	plans    *repository.PlanRepository
	payments *repository.PaymentRepository
	credits  *repository.CreditRepository
	now      func() time.Time
}

func NewHandler(plans *repository.PlanRepository, payments *repository.PaymentRepository, credits *repository.CreditRepository) *Handler {
	return &Handler{
		plans:    plans,
		payments: payments,
		credits:  credits,
		now:      time.Now,
	}
}

// List returns the plan catalog.
// @Summary List plans
// @Tags plans
// @Produce json
// @Success 200 {object} utils.Response{data=[]models.Plan}
// @Failure 500 {object} utils.Response
// @Router /plans [get]
func (h *Handler) List(c *gin.Context) {
	plans, err := h.plans.List()
	if err != nil {
		utils.LogError(err, "Failed to list plans")
		utils.SendError(c, http.StatusInternalServerError, "Failed to list plans")
		return
	}
	utils.SendSuccess(c, http.StatusOK, "Plans retrieved", plans)
}

type summaryRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// Summary returns the user's current tier, billing interval and credit
// balance in one read.
// @Summary Billing summary for a user
// @Tags plans
// @Accept json
// @Produce json
// @Param request body summaryRequest true "User to summarize"
// @Success 200 {object} map[string]interface{} "planKey, billing, credits and subscription"
// @Failure 400 {object} map[string]string "error: missing userId"
// @Failure 500 {object} map[string]string "error: database failure"
// @Router /billing/summary [post]
func (h *Handler) Summary(c *gin.Context) {
	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing userId"})
		return
	}
	now := h.now()

	payment, err := h.payments.ActiveSubscriptionWithPlan(req.UserID, now)
	if err != nil {
		utils.LogError(err, "Failed to look up active subscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up subscription"})
		return
	}

	credit, err := h.credits.ByUserID(req.UserID)
	if err != nil {
		utils.LogError(err, "Failed to look up credits")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up credits"})
		return
	}

	out := gin.H{
		"planKey": "free",
		"billing": "monthly",
	}
	if credit != nil {
		out["credits"] = gin.H{
			"remain":        credit.RemainCredit,
			"charged":       credit.ChargedCredit,
			"lastUpdatedAt": credit.LastGrantAt(),
		}
	}
	if payment != nil && payment.Plan != nil {
		out["planKey"] = inferPlanKey(payment.Plan)
		if payment.Plan.Cycle == models.CycleYearly {
			out["billing"] = "yearly"
		}
		out["subscription"] = gin.H{
			"planId":             payment.PlanID,
			"planName":           payment.Plan.DisplayName,
			"currentPeriodStart": payment.CurrentPeriodStart,
			"currentPeriodEnd":   payment.CurrentPeriodEnd,
			"cancelAtPeriodEnd":  payment.CancelAtPeriodEnd,
		}
	}

	c.JSON(http.StatusOK, out)
}

// inferPlanKey maps a plan's name to the tier key the client uses. "max" is
// checked before "pro" because some display names carry both words.
func inferPlanKey(plan *models.Plan) string {
	name := normalize(plan.Name + " " + plan.DisplayName)
	switch {
	case strings.Contains(name, "free"):
		return "free"
	case strings.Contains(name, "max"):
		return "max"
	case strings.Contains(name, "pro"):
		return "pro"
	case strings.Contains(name, "enterprise"):
		return "enterprise"
	}
	return "free"
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
