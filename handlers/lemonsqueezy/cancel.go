package lemonsqueezy

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/matchharper/harper-beta-sub001/billing"
	"github.com/matchharper/harper-beta-sub001/repository"
	"github.com/matchharper/harper-beta-sub001/utils"

	"github.com/gin-gonic/gin"
)

// subscriptionCanceller is the one Lemon Squeezy API call the cancel
// endpoint needs.
type subscriptionCanceller interface {
	CancelSubscription(ctx context.Context, subscriptionID string) (json.RawMessage, error)
}

type CancelHandler struct {
	payments *repository.PaymentRepository
	client   subscriptionCanceller
	now      func() time.Time
}

// NewCancelHandler accepts a nil client when no API key is configured; the
// endpoint then reports the misconfiguration instead of panicking.
func NewCancelHandler(payments *repository.PaymentRepository, client subscriptionCanceller) *CancelHandler {
	return &CancelHandler{
		payments: payments,
		client:   client,
		now:      time.Now,
	}
}

type cancelRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// Handle requests a period-end cancellation of the user's active
// Lemon Squeezy subscription.
// @Summary Cancel a Lemon Squeezy subscription
// @Tags billing
// @Accept json
// @Produce json
// @Param request body cancelRequest true "User whose subscription to cancel"
// @Success 200 {object} map[string]interface{} "status: cancel_requested"
// @Failure 400 {object} map[string]string "error: missing userId"
// @Failure 404 {object} map[string]string "error: no active subscription"
// @Failure 500 {object} map[string]string "error: missing API key"
// @Failure 502 {object} map[string]string "error: provider failure"
// @Router /lemonsqueezy/cancel [post]
func (h *CancelHandler) Handle(c *gin.Context) {
	if h.client == nil {
		utils.LogError(nil, "Lemon Squeezy API key is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Missing Lemon Squeezy API key"})
		return
	}

	var req cancelRequest
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

	data, err := h.client.CancelSubscription(c.Request.Context(), payment.LsSubscriptionID)
	if err != nil {
		utils.LogError(err, "Lemon Squeezy cancellation failed")
		c.JSON(billing.HTTPStatus(err), gin.H{"error": billing.Message(err)})
		return
	}

	utils.LogSuccess("Subscription cancellation requested for user " + req.UserID)
	c.JSON(http.StatusOK, gin.H{"status": "cancel_requested", "data": data})
}
