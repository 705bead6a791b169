package lemonsqueezy

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/matchharper/harper-beta-sub001/models"
	"github.com/matchharper/harper-beta-sub001/repository"
	"github.com/matchharper/harper-beta-sub001/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type logEntry = *logrus.Entry

const providerName = "lemonsqueezy"

// Webhook bodies are small JSON documents; anything bigger is not ours.
const maxBodyBytes = int64(65536)

// WebhookHandler reconciles Lemon Squeezy events into the payments and
// credits ledgers. Credits are granted on payment events only, never on
// subscription_created, so a subscription that never clears payment never
// receives credits.
type WebhookHandler struct {
	plans         *repository.PlanRepository
	payments      *repository.PaymentRepository
	credits       *repository.CreditRepository
	events        *repository.WebhookEventRepository
	signingSecret string
	now           func() time.Time
}

func NewWebhookHandler(
	plans *repository.PlanRepository,
	payments *repository.PaymentRepository,
	credits *repository.CreditRepository,
	events *repository.WebhookEventRepository,
	signingSecret string,
) *WebhookHandler {
	return &WebhookHandler{
		plans:         plans,
		payments:      payments,
		credits:       credits,
		events:        events,
		signingSecret: signingSecret,
		now:           time.Now,
	}
}

// Handle processes one webhook delivery.
// @Summary Lemon Squeezy webhook
// @Description Verifies the event signature and reconciles the subscription and credit ledgers.
// @Tags billing
// @Accept json
// @Produce json
// @Param X-Signature header string true "HMAC-SHA256 hex signature of the raw body"
// @Param X-Event-Name header string false "Event name (falls back to meta.event_name)"
// @Success 200 {object} map[string]interface{} "ok: true, ignored?: true"
// @Failure 400 {object} map[string]string "error: bad payload or unknown plan"
// @Failure 401 {object} map[string]string "error: invalid signature"
// @Failure 500 {object} map[string]string "error: unconfigured secret or database failure"
// @Router /lemonsqueezy/webhook [post]
func (h *WebhookHandler) Handle(c *gin.Context) {
	requestID := uuid.NewString()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	if h.signingSecret == "" {
		utils.WebhookLog(requestID, "").Error("lemonsqueezy signing secret is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Missing Lemon Squeezy signing secret"})
		return
	}

	if !verifySignature(h.signingSecret, c.GetHeader("X-Signature"), rawBody) {
		utils.WebhookLog(requestID, "").Warn("invalid webhook signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	event, err := parsePayload(rawBody)
	if err != nil {
		utils.WebhookLog(requestID, "").WithField("error", err.Error()).Warn("invalid webhook JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	// Header wins over the payload copy of the event name.
	eventName := c.GetHeader("X-Event-Name")
	if eventName == "" {
		eventName = event.Meta.EventName
	}
	if eventName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing event name"})
		return
	}

	eventKey := c.GetHeader("X-Event-Id")
	if eventKey == "" {
		// Lemon Squeezy does not send a delivery id; the body hash is
		// stable across redeliveries of the same event.
		sum := sha256.Sum256(rawBody)
		eventKey = hex.EncodeToString(sum[:])
	}

	log := utils.WebhookLog(requestID, event.userID()).WithField("event", eventName)
	log.Info("webhook received")

	switch eventName {
	case "subscription_created":
		h.handleSubscriptionCreated(c, log, event)
	case "order_created":
		h.handleOrderCreated(c, log, event, eventKey)
	case "subscription_payment_success":
		h.handlePaymentSuccess(c, log, event, eventKey)
	case "subscription_cancelled", "subscription_expired":
		h.handleSubscriptionEnded(c, log, event)
	default:
		log.Info("event ignored")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
	}
}

func (h *WebhookHandler) handleSubscriptionCreated(c *gin.Context, log logEntry, event *payload) {
	subscriptionID := event.subscriptionID()
	variantID := string(event.Data.Attributes.VariantID)
	userID := event.userID()

	if subscriptionID == "" || variantID == "" || userID == "" {
		log.Info("subscription_created ignored: missing required fields")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
		return
	}

	plan, err := h.plans.ByVariantID(variantID)
	if err != nil {
		log.WithField("error", err.Error()).Error("plan lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}
	if plan == nil {
		log.WithField("variant_id", variantID).Warn("unknown plan variant")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan variant"})
		return
	}

	err = h.payments.Upsert(repository.PaymentUpsert{
		SubscriptionID:     subscriptionID,
		UserID:             userID,
		PlanID:             plan.PlanID,
		CustomerID:         string(event.Data.Attributes.CustomerID),
		CurrentPeriodStart: event.periodStart(),
		CurrentPeriodEnd:   event.periodEnd(),
		CancelAtPeriodEnd:  event.cancelAtPeriodEnd(),
	})
	if err != nil {
		log.WithField("error", err.Error()).Error("payment upsert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}

	// No credits here: they follow on subscription_payment_success once the
	// charge clears.
	log.Info("subscription_created processed")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *WebhookHandler) handleOrderCreated(c *gin.Context, log logEntry, event *payload, eventKey string) {
	item := event.Data.Attributes.FirstOrderItem
	var variantID, orderSubscriptionID string
	if item != nil {
		variantID = string(item.VariantID)
		orderSubscriptionID = string(item.SubscriptionID)
	}
	if orderSubscriptionID == "" {
		orderSubscriptionID = string(event.Data.Attributes.SubscriptionID)
	}

	// Subscription orders are credited by subscription_payment_success.
	if orderSubscriptionID != "" {
		log.Info("order_created ignored: subscription order")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
		return
	}

	userID := event.userID()
	if variantID == "" || userID == "" {
		log.Info("order_created ignored: missing required fields")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
		return
	}

	plan, err := h.plans.ByVariantID(variantID)
	if err != nil {
		log.WithField("error", err.Error()).Error("plan lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}
	if plan == nil {
		log.WithField("variant_id", variantID).Warn("unknown plan variant")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan variant"})
		return
	}

	h.grantCredits(c, log, userID, plan, eventKey, "order_created")
}

func (h *WebhookHandler) handlePaymentSuccess(c *gin.Context, log logEntry, event *payload, eventKey string) {
	subscriptionID := event.subscriptionID()
	if subscriptionID == "" {
		log.Info("subscription_payment_success ignored: missing subscription id")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
		return
	}

	payment, err := h.payments.BySubscriptionID(subscriptionID)
	if err != nil {
		log.WithField("error", err.Error()).Error("payment lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}
	// Events are not ordered: the payment event can beat subscription_created.
	// A later delivery (or the next refresh call) will catch this up.
	if payment == nil || payment.PlanID == "" || payment.UserID == "" {
		log.Info("subscription_payment_success ignored: no plan/user linkage yet")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
		return
	}

	customerID := string(event.Data.Attributes.CustomerID)
	if customerID == "" {
		customerID = payment.LsCustomerID
	}

	err = h.payments.Upsert(repository.PaymentUpsert{
		SubscriptionID:     subscriptionID,
		UserID:             payment.UserID,
		PlanID:             payment.PlanID,
		CustomerID:         customerID,
		CurrentPeriodStart: event.periodStart(),
		CurrentPeriodEnd:   event.periodEnd(),
		CancelAtPeriodEnd:  event.cancelAtPeriodEnd(),
	})
	if err != nil {
		log.WithField("error", err.Error()).Error("payment upsert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}

	plan, err := h.plans.ByPlanID(payment.PlanID)
	if err != nil {
		log.WithField("error", err.Error()).Error("plan lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}
	if plan == nil {
		log.WithField("plan_id", payment.PlanID).Warn("unknown plan")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan"})
		return
	}

	h.grantCredits(c, log, payment.UserID, plan, eventKey, "subscription_payment_success")
}

func (h *WebhookHandler) handleSubscriptionEnded(c *gin.Context, log logEntry, event *payload) {
	subscriptionID := event.subscriptionID()
	if subscriptionID == "" {
		log.Info("ignored: missing subscription id")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
		return
	}

	payment, err := h.payments.BySubscriptionID(subscriptionID)
	if err != nil {
		log.WithField("error", err.Error()).Error("payment lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}
	if payment == nil || payment.UserID == "" || payment.PlanID == "" {
		log.Info("ignored: no ledger row for subscription")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
		return
	}

	// Freeze the period boundary the schedulers will stop granting from.
	finalEnd := event.periodEnd()
	if finalEnd == nil {
		finalEnd = event.Data.Attributes.CancelledAt
	}
	if finalEnd == nil {
		now := h.now()
		finalEnd = &now
	}

	customerID := string(event.Data.Attributes.CustomerID)
	if customerID == "" {
		customerID = payment.LsCustomerID
	}
	periodStart := event.periodStart()
	if periodStart == nil {
		periodStart = payment.CurrentPeriodStart
	}

	err = h.payments.Upsert(repository.PaymentUpsert{
		SubscriptionID:     subscriptionID,
		UserID:             payment.UserID,
		PlanID:             payment.PlanID,
		CustomerID:         customerID,
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   finalEnd,
		CancelAtPeriodEnd:  true,
	})
	if err != nil {
		log.WithField("error", err.Error()).Error("payment upsert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}

	log.Info("subscription end processed")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// grantCredits performs the additive grant for a paid event, at most once
// per delivery key.
func (h *WebhookHandler) grantCredits(c *gin.Context, log logEntry, userID string, plan *models.Plan, eventKey, eventName string) {
	fresh, err := h.events.MarkProcessed(providerName, eventKey, eventName)
	if err != nil {
		log.WithField("error", err.Error()).Error("event dedup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}
	if !fresh {
		log.Info("duplicate delivery, credits already granted")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
		return
	}

	amount := plan.CreditAmount(0)
	historyEvent := plan.Name + "_subscription"
	if err := h.credits.ApplyGrant(userID, amount, repository.GrantAdditive, h.now(), "", historyEvent); err != nil {
		log.WithField("error", err.Error()).Error("credit grant failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}

	log.WithField("credits", amount).Info("credits granted")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
