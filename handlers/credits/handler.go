// Package credits implements the scheduled credit refills. The endpoints are
// idempotent check-and-grant operations: the platform scheduler (or the app
// on login) calls them as often as it likes and a refill happens at most once
// per due date.
package credits

import (
	"net/http"
	"time"

	"github.com/matchharper/harper-beta-sub001/models"
	"github.com/matchharper/harper-beta-sub001/repository"
	"github.com/matchharper/harper-beta-sub001/utils"

	"github.com/gin-gonic/gin"
)

// freeTierDefaultCredits applies when the free plan row has no credit amount.
const freeTierDefaultCredits = int64(10)

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

type refreshRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// AnnualRefresh drips the monthly credit allotment to an annual subscriber.
//
// Yearly plans are paid once but refill monthly: the grant replaces the
// balance (drips never stack) and is anchored at the computed due date, so a
// scheduler running late does not shift every later refill.
// @Summary Monthly credit refill for annual subscribers
// @Tags credits
// @Accept json
// @Produce json
// @Param request body refreshRequest true "User to refill"
// @Success 200 {object} map[string]interface{} "status: refilled | not_due | not_annual | period_ended | no_active_subscription"
// @Failure 400 {object} map[string]string "error: missing userId"
// @Failure 500 {object} map[string]string "error: database failure"
// @Router /credits/annual-refresh [post]
func (h *Handler) AnnualRefresh(c *gin.Context) {
	var req refreshRequest
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
	if payment == nil {
		c.JSON(http.StatusOK, gin.H{"status": "no_active_subscription"})
		return
	}
	if payment.Plan == nil || payment.Plan.Cycle != models.CycleYearly {
		c.JSON(http.StatusOK, gin.H{"status": "not_annual"})
		return
	}

	credit, err := h.credits.ByUserID(req.UserID)
	if err != nil {
		utils.LogError(err, "Failed to look up credits")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up credits"})
		return
	}

	// The yearly purchase itself granted the first month (recorded as the
	// last grant); each drip is due one month after the previous one. With
	// no grant on record the period start anchors the schedule.
	var anchor time.Time
	switch {
	case credit != nil:
		anchor = credit.LastGrantAt()
	case payment.CurrentPeriodStart != nil:
		anchor = *payment.CurrentPeriodStart
	default:
		anchor = payment.CreatedAt
	}
	due := utils.AddMonths(anchor, 1)

	if now.Before(due) {
		c.JSON(http.StatusOK, gin.H{"status": "not_due", "nextRefreshAt": due})
		return
	}
	// Never grant past the paid term.
	if payment.CurrentPeriodEnd != nil && !now.Before(*payment.CurrentPeriodEnd) {
		c.JSON(http.StatusOK, gin.H{"status": "period_ended"})
		return
	}

	amount := payment.Plan.CreditAmount(0)
	if err := h.credits.ApplyGrant(req.UserID, amount, repository.GrantReplace, due, models.GrantTypeAnnual, payment.Plan.Name+"_monthly_refill"); err != nil {
		utils.LogError(err, "Failed to apply annual refill")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply refill"})
		return
	}

	utils.LogSuccess("Annual refill applied for user " + req.UserID)
	c.JSON(http.StatusOK, gin.H{"status": "refilled", "credits": amount})
}

// FreeRefresh drips the free-tier allotment to users without a paid
// subscription.
//
// The drip is suspended while a paid subscription is active and resumes from
// the period end once it lapses, so a returning free user is refilled at the
// boundary instead of a month after their last paid grant.
// @Summary Monthly credit refill for free-tier users
// @Tags credits
// @Accept json
// @Produce json
// @Param request body refreshRequest true "User to refill"
// @Success 200 {object} map[string]interface{} "status: refilled | not_due | active_subscription"
// @Failure 400 {object} map[string]string "error: missing userId"
// @Failure 500 {object} map[string]string "error: free plan missing or database failure"
// @Router /credits/free-refresh [post]
func (h *Handler) FreeRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing userId"})
		return
	}
	now := h.now()

	payment, err := h.payments.ActiveSubscription(req.UserID, now)
	if err != nil {
		utils.LogError(err, "Failed to look up active subscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up subscription"})
		return
	}
	if payment != nil {
		c.JSON(http.StatusOK, gin.H{"status": "active_subscription"})
		return
	}

	freePlan, err := h.plans.FreePlan()
	if err != nil {
		utils.LogError(err, "Failed to look up free plan")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up free plan"})
		return
	}
	if freePlan == nil {
		utils.LogError(nil, "Free plan is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Free plan is not configured"})
		return
	}
	amount := freePlan.CreditAmount(freeTierDefaultCredits)

	credit, err := h.credits.ByUserID(req.UserID)
	if err != nil {
		utils.LogError(err, "Failed to look up credits")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up credits"})
		return
	}
	latestEnd, err := h.payments.LatestPeriodEnd(req.UserID)
	if err != nil {
		utils.LogError(err, "Failed to look up latest period end")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up subscription"})
		return
	}

	// A lapsed paid period resumes the drip at its boundary; otherwise the
	// drip follows one month after the last grant. A user with neither (no
	// grant history, no paid history) is seeded elsewhere and has nothing
	// due here.
	var due *time.Time
	switch {
	case latestEnd != nil && !now.Before(*latestEnd) &&
		(credit == nil || credit.LastGrantAt().Before(*latestEnd)):
		due = latestEnd
	case credit != nil:
		d := utils.AddMonths(credit.LastGrantAt(), 1)
		due = &d
	}

	if due == nil || now.Before(*due) {
		out := gin.H{"status": "not_due"}
		if due != nil {
			out["nextRefreshAt"] = due
		}
		c.JSON(http.StatusOK, out)
		return
	}

	if err := h.credits.ApplyGrant(req.UserID, amount, repository.GrantReplace, *due, models.GrantTypeFree, freePlan.Name+"_subscription"); err != nil {
		utils.LogError(err, "Failed to apply free refill")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply refill"})
		return
	}

	utils.LogSuccess("Free refill applied for user " + req.UserID)
	c.JSON(http.StatusOK, gin.H{"status": "refilled", "credits": amount})
}
