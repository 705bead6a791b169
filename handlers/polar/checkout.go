package polar

import (
	"net/http"
	"strconv"
	"time"

	"github.com/matchharper/harper-beta-sub001/billing"
	"github.com/matchharper/harper-beta-sub001/config"
	"github.com/matchharper/harper-beta-sub001/repository"
	"github.com/matchharper/harper-beta-sub001/utils"

	"github.com/gin-gonic/gin"
)

// CheckoutHandler opens Polar checkout sessions for the paid tiers.
type CheckoutHandler struct {
	payments   *repository.PaymentRepository
	gateway    billing.SubscriptionGateway
	catalog    config.ProductCatalog
	successURL string
	now        func() time.Time
}

func NewCheckoutHandler(payments *repository.PaymentRepository, gateway billing.SubscriptionGateway, catalog config.ProductCatalog, successURL string) *CheckoutHandler {
	return &CheckoutHandler{
		payments:   payments,
		gateway:    gateway,
		catalog:    catalog,
		successURL: successURL,
		now:        time.Now,
	}
}

type checkoutRequest struct {
	UserID string `json:"userId" binding:"required"`
	// PlanKey is the tier ("pro", "max"); Billing the interval
	// ("monthly", "yearly").
	PlanKey string `json:"planKey" binding:"required"`
	Billing string `json:"billing" binding:"required"`
	// AllowSubscriptionSwitch lets a user with a live subscription open a
	// checkout anyway; the activation webhook then revokes the old one.
	AllowSubscriptionSwitch bool `json:"allowSubscriptionSwitch"`
}

// Handle creates a checkout session.
// @Summary Create a Polar checkout session
// @Tags billing
// @Accept json
// @Produce json
// @Param request body checkoutRequest true "User, plan tier and billing interval"
// @Success 200 {object} map[string]string "url and checkoutId of the hosted session"
// @Failure 400 {object} map[string]string "error: bad body or unconfigured plan"
// @Failure 409 {object} map[string]string "error: active subscription already exists"
// @Failure 500 {object} map[string]string "error: missing access token"
// @Failure 502 {object} map[string]string "error: provider failure"
// @Router /polar/checkout [post]
func (h *CheckoutHandler) Handle(c *gin.Context) {
	if h.gateway == nil {
		utils.LogError(nil, "Polar access token is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Missing Polar access token"})
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing userId, planKey or billing"})
		return
	}

	productID := h.catalog.ProductID(req.PlanKey, req.Billing)
	if productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan or billing interval"})
		return
	}

	active, err := h.payments.ActiveSubscription(req.UserID, h.now())
	if err != nil {
		utils.LogError(err, "Failed to look up active subscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up subscription"})
		return
	}
	if active != nil && !req.AllowSubscriptionSwitch {
		c.JSON(http.StatusConflict, gin.H{"error": "User already has an active subscription"})
		return
	}

	checkout, err := h.gateway.CreateCheckout(c.Request.Context(), billing.CheckoutParams{
		ProductID:          productID,
		SuccessURL:         h.successURL,
		ExternalCustomerID: req.UserID,
		Metadata: map[string]string{
			"user_id":                   req.UserID,
			"plan_key":                  req.PlanKey,
			"billing":                   req.Billing,
			"allow_subscription_switch": strconv.FormatBool(req.AllowSubscriptionSwitch),
		},
	})
	if err != nil {
		utils.LogError(err, "Polar checkout creation failed")
		c.JSON(billing.HTTPStatus(err), gin.H{"error": billing.Message(err)})
		return
	}

	utils.LogSuccess("Checkout session created for user " + req.UserID)
	c.JSON(http.StatusOK, gin.H{"url": checkout.URL, "checkoutId": checkout.ID})
}
