package polar

import (
	"net/http"
	"time"

	"github.com/matchharper/harper-beta-sub001/billing"
	"github.com/matchharper/harper-beta-sub001/config"
	"github.com/matchharper/harper-beta-sub001/repository"
	"github.com/matchharper/harper-beta-sub001/utils"

	"github.com/gin-gonic/gin"
)

// ChangePlanHandler switches the user's live Polar subscription to another
// product in place, with invoice proration. A subscription already pending
// cancellation cannot be switched; the user has to uncancel (or re-checkout)
// first.
type ChangePlanHandler struct {
	payments *repository.PaymentRepository
	gateway  billing.SubscriptionGateway
	catalog  config.ProductCatalog
	now      func() time.Time
}

func NewChangePlanHandler(payments *repository.PaymentRepository, gateway billing.SubscriptionGateway, catalog config.ProductCatalog) *ChangePlanHandler {
	return &ChangePlanHandler{
		payments: payments,
		gateway:  gateway,
		catalog:  catalog,
		now:      time.Now,
	}
}

type changePlanRequest struct {
	UserID  string `json:"userId" binding:"required"`
	PlanKey string `json:"planKey" binding:"required"`
	Billing string `json:"billing" binding:"required"`
}

// Handle switches the active subscription to the requested plan.
// @Summary Change the plan of an active Polar subscription
// @Tags billing
// @Accept json
// @Produce json
// @Param request body changePlanRequest true "User, target plan tier and billing interval"
// @Success 200 {object} map[string]interface{} "status: plan_change_requested or no_change"
// @Failure 400 {object} map[string]string "error: bad body or unconfigured plan"
// @Failure 404 {object} map[string]string "error: no active subscription"
// @Failure 409 {object} map[string]string "error: subscription pending cancellation"
// @Failure 500 {object} map[string]string "error: missing access token"
// @Failure 502 {object} map[string]string "error: provider failure"
// @Router /polar/change-plan [post]
func (h *ChangePlanHandler) Handle(c *gin.Context) {
	if h.gateway == nil {
		utils.LogError(nil, "Polar access token is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Missing Polar access token"})
		return
	}

	var req changePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing userId, planKey or billing"})
		return
	}

	productID := h.catalog.ProductID(req.PlanKey, req.Billing)
	if productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan or billing interval"})
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
	if payment.CancelAtPeriodEnd {
		c.JSON(http.StatusConflict, gin.H{"error": "Subscription is pending cancellation"})
		return
	}

	current, err := h.gateway.Subscription(c.Request.Context(), payment.LsSubscriptionID)
	if err != nil {
		utils.LogError(err, "Polar subscription fetch failed")
		c.JSON(billing.HTTPStatus(err), gin.H{"error": billing.Message(err)})
		return
	}

	if current.ProductID == productID {
		c.JSON(http.StatusOK, gin.H{"status": "no_change", "data": gin.H{"subscriptionId": current.ID}})
		return
	}

	updated, err := h.gateway.UpdateProduct(c.Request.Context(), payment.LsSubscriptionID, productID)
	if err != nil {
		utils.LogError(err, "Polar plan change failed")
		c.JSON(billing.HTTPStatus(err), gin.H{"error": billing.Message(err)})
		return
	}

	utils.LogSuccess("Plan change requested for user " + req.UserID)
	c.JSON(http.StatusOK, gin.H{
		"status": "plan_change_requested",
		"data": gin.H{
			"subscriptionId":   updated.ID,
			"productId":        updated.ProductID,
			"currentPeriodEnd": updated.CurrentPeriodEnd,
		},
	})
}
