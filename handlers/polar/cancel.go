package polar

import (
	"net/http"
	"time"

	"github.com/matchharper/harper-beta-sub001/billing"
	"github.com/matchharper/harper-beta-sub001/repository"
	"github.com/matchharper/harper-beta-sub001/utils"

	"github.com/gin-gonic/gin"
)

// CancelHandler schedules the user's Polar subscription to lapse at period
// end. The ledger row is updated by the subscription.canceled webhook that
// follows.
type CancelHandler struct {
	payments *repository.PaymentRepository
	gateway  billing.SubscriptionGateway
	now      func() time.Time
}

func NewCancelHandler(payments *repository.PaymentRepository, gateway billing.SubscriptionGateway) *CancelHandler {
	return &CancelHandler{
		payments: payments,
		gateway:  gateway,
		now:      time.Now,
	}
}

type polarCancelRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// Handle requests a period-end cancellation.
// @Summary Cancel a Polar subscription
// @Tags billing
// @Accept json
// @Produce json
// @Param request body polarCancelRequest true "User whose subscription to cancel"
// @Success 200 {object} map[string]interface{} "status: cancel_requested"
// @Failure 400 {object} map[string]string "error: missing userId"
// @Failure 404 {object} map[string]string "error: no active subscription"
// @Failure 500 {object} map[string]string "error: missing access token"
// @Failure 502 {object} map[string]string "error: provider failure"
// @Router /polar/cancel [post]
func (h *CancelHandler) Handle(c *gin.Context) {
	if h.gateway == nil {
		utils.LogError(nil, "Polar access token is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Missing Polar access token"})
		return
	}

	var req polarCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing userId"})
		return
	}

	payment, err := h.payments.ActiveExternalSubscription(req.UserID, h.now())
	if err != nil {
		utils.LogError(err, "Failed to look up active subscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up subscription"})
		return
	}
	if payment == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active subscription found"})
		return
	}

	sub, err := h.gateway.CancelAtPeriodEnd(c.Request.Context(), payment.LsSubscriptionID)
	if err != nil {
		utils.LogError(err, "Polar cancellation failed")
		c.JSON(billing.HTTPStatus(err), gin.H{"error": billing.Message(err)})
		return
	}

	utils.LogSuccess("Subscription cancellation requested for user " + req.UserID)
	c.JSON(http.StatusOK, gin.H{
		"status": "cancel_requested",
		"data": gin.H{
			"subscriptionId":    sub.ID,
			"cancelAtPeriodEnd": sub.CancelAtPeriodEnd,
			"currentPeriodEnd":  sub.CurrentPeriodEnd,
		},
	})
}
