package polar

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/matchharper/harper-beta-sub001/billing"
	"github.com/matchharper/harper-beta-sub001/models"
	"github.com/matchharper/harper-beta-sub001/repository"
	"github.com/matchharper/harper-beta-sub001/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const providerName = "polar"

const maxBodyBytes = int64(65536)

// WebhookHandler reconciles Polar events into the payments and credits
// ledgers. As with Lemon Squeezy, credits move on paid orders only; state
// events merely rewrite the subscription row.
type WebhookHandler struct {
	plans    *repository.PlanRepository
	payments *repository.PaymentRepository
	credits  *repository.CreditRepository
	events   *repository.WebhookEventRepository
	gateway  billing.SubscriptionGateway
	secret   string
	planMap  map[string]string
	now      func() time.Time
}

// NewWebhookHandler accepts a nil gateway; supersede-revokes and embedded
// subscription fetches are then skipped with a log line.
func NewWebhookHandler(
	plans *repository.PlanRepository,
	payments *repository.PaymentRepository,
	credits *repository.CreditRepository,
	events *repository.WebhookEventRepository,
	gateway billing.SubscriptionGateway,
	secret string,
	planMap map[string]string,
) *WebhookHandler {
	return &WebhookHandler{
		plans:    plans,
		payments: payments,
		credits:  credits,
		events:   events,
		gateway:  gateway,
		secret:   secret,
		planMap:  planMap,
		now:      time.Now,
	}
}

// Handle processes one webhook delivery.
// @Summary Polar webhook
// @Description Verifies the Standard Webhooks signature and reconciles the subscription and credit ledgers.
// @Tags billing
// @Accept json
// @Produce json
// @Param webhook-id header string true "Delivery id"
// @Param webhook-timestamp header string true "Unix timestamp the delivery was signed at"
// @Param webhook-signature header string true "Space-separated v1,<base64> signatures"
// @Success 200 {object} map[string]interface{} "ok: true, ignored?: true"
// @Failure 400 {object} map[string]string "error: bad payload or unknown product"
// @Failure 401 {object} map[string]string "error: invalid signature"
// @Failure 500 {object} map[string]string "error: unconfigured secret or database failure"
// @Router /polar/webhook [post]
func (h *WebhookHandler) Handle(c *gin.Context) {
	requestID := uuid.NewString()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	if h.secret == "" {
		utils.WebhookLog(requestID, "").Error("polar webhook secret is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Missing Polar webhook secret"})
		return
	}

	msgID := c.GetHeader("webhook-id")
	timestamp := c.GetHeader("webhook-timestamp")
	signature := c.GetHeader("webhook-signature")
	if !verifyStandardWebhook(h.secret, msgID, timestamp, signature, rawBody, h.now()) {
		utils.WebhookLog(requestID, "").Warn("invalid webhook signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	event, err := parseEvent(rawBody)
	if err != nil {
		utils.WebhookLog(requestID, "").WithField("error", err.Error()).Warn("invalid webhook JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	if event.Type == "" || event.Data == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing event type"})
		return
	}

	eventKey := msgID
	if eventKey == "" {
		sum := sha256.Sum256(rawBody)
		eventKey = hex.EncodeToString(sum[:])
	}

	log := utils.WebhookLog(requestID, event.Data.userID()).WithField("event", event.Type)
	log.Info("webhook received")

	switch event.Type {
	case "subscription.created", "subscription.active":
		h.handleSubscriptionActive(c, log, event.Data, true)
	case "subscription.updated", "subscription.uncanceled":
		h.handleSubscriptionActive(c, log, event.Data, false)
	case "order.paid":
		h.handleOrderPaid(c, log, event.Data, eventKey)
	case "subscription.canceled", "subscription.revoked":
		h.handleSubscriptionEnded(c, log, event.Data)
	default:
		log.Info("event ignored")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
	}
}

// handleSubscriptionActive rewrites the ledger row from a subscription state
// event. supersede additionally revokes any other live subscription of the
// user, so a plan switch through a fresh checkout does not double-bill.
func (h *WebhookHandler) handleSubscriptionActive(c *gin.Context, log *logrus.Entry, data *eventData, supersede bool) {
	sub := data.subscription()
	if sub.ID == "" {
		log.Info("ignored: missing subscription id")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
		return
	}

	// Renewal updates carry no checkout metadata; the existing ledger row is
	// the fallback for both the user and the plan.
	existing, err := h.payments.BySubscriptionID(sub.ID)
	if err != nil {
		log.WithField("error", err.Error()).Error("payment lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}

	userID := data.userID()
	if userID == "" && existing != nil {
		userID = existing.UserID
	}
	if userID == "" {
		log.Info("ignored: no user linkage")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
		return
	}

	plan, err := h.resolvePlanFor(data, sub.productCandidates(), existing)
	if err != nil {
		log.WithField("error", err.Error()).Error("plan lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}
	if plan == nil {
		log.WithField("product_id", sub.ProductID).Warn("unknown product")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown product"})
		return
	}

	if err := h.upsertSubscription(userID, plan, sub, nil); err != nil {
		log.WithField("error", err.Error()).Error("payment upsert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}

	if supersede {
		h.revokeSuperseded(c, log, userID, sub.ID)
	}

	log.Info("subscription state processed")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// revokeSuperseded ends the user's other live, non-lapsing subscriptions at
// the provider. Failures are logged and swallowed: the new subscription is
// already recorded and a stuck old one is recoverable by hand.
func (h *WebhookHandler) revokeSuperseded(c *gin.Context, log *logrus.Entry, userID, keepSubscriptionID string) {
	others, err := h.payments.OtherActiveSubscriptions(userID, keepSubscriptionID, h.now())
	if err != nil {
		log.WithField("error", err.Error()).Error("superseded subscription lookup failed")
		return
	}

	for _, other := range others {
		if other.CancelAtPeriodEnd {
			continue
		}
		if h.gateway == nil {
			log.WithField("subscription_id", other.LsSubscriptionID).
				Warn("no Polar access token, superseded subscription left running")
			continue
		}
		if err := h.gateway.Revoke(c.Request.Context(), other.LsSubscriptionID); err != nil {
			log.WithFields(logrus.Fields{
				"subscription_id": other.LsSubscriptionID,
				"error":           err.Error(),
			}).Error("failed to revoke superseded subscription")
			continue
		}
		log.WithField("subscription_id", other.LsSubscriptionID).Info("superseded subscription revoked")
	}
}

func (h *WebhookHandler) handleOrderPaid(c *gin.Context, log *logrus.Entry, data *eventData, eventKey string) {
	sub := data.Subscription
	if sub == nil && data.SubscriptionID != "" && h.gateway != nil {
		fetched, err := h.gateway.Subscription(c.Request.Context(), data.SubscriptionID)
		if err != nil {
			log.WithField("error", err.Error()).Error("subscription fetch failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
			return
		}
		sub = &eventData{
			ID:                 fetched.ID,
			Status:             fetched.Status,
			ProductID:          fetched.ProductID,
			CancelAtPeriodEnd:  &fetched.CancelAtPeriodEnd,
			CurrentPeriodStart: fetched.CurrentPeriodStart,
			CurrentPeriodEnd:   fetched.CurrentPeriodEnd,
		}
	}

	// Renewal orders may carry no metadata; the row written at creation time
	// knows the user and the plan.
	var existing *models.Payment
	if sub != nil && sub.ID != "" {
		var err error
		existing, err = h.payments.BySubscriptionID(sub.ID)
		if err != nil {
			log.WithField("error", err.Error()).Error("payment lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
			return
		}
	}

	userID := data.userID()
	if userID == "" && existing != nil {
		userID = existing.UserID
	}
	if userID == "" {
		log.Info("order.paid ignored: no user linkage")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
		return
	}

	candidates := data.productCandidates()
	if sub != nil {
		candidates = append(sub.productCandidates(), candidates...)
	}
	plan, err := h.resolvePlanFor(data, candidates, existing)
	if err != nil {
		log.WithField("error", err.Error()).Error("plan lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}
	if plan == nil {
		log.WithField("product_id", data.ProductID).Warn("unknown product")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown product"})
		return
	}

	if sub != nil && sub.ID != "" {
		if err := h.upsertSubscription(userID, plan, sub, data); err != nil {
			log.WithField("error", err.Error()).Error("payment upsert failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
			return
		}
	}

	fresh, err := h.events.MarkProcessed(providerName, eventKey, "order.paid")
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
	if err := h.credits.ApplyGrant(userID, amount, repository.GrantAdditive, h.now(), "", plan.Name+"_subscription"); err != nil {
		log.WithField("error", err.Error()).Error("credit grant failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}

	log.WithField("credits", amount).Info("credits granted")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *WebhookHandler) handleSubscriptionEnded(c *gin.Context, log *logrus.Entry, data *eventData) {
	sub := data.subscription()
	if sub.ID == "" {
		log.Info("ignored: missing subscription id")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
		return
	}

	payment, err := h.payments.BySubscriptionID(sub.ID)
	if err != nil {
		log.WithField("error", err.Error()).Error("payment lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler error"})
		return
	}
	if payment == nil {
		log.Info("ignored: no ledger row for subscription")
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": true})
		return
	}

	finalEnd := sub.finalPeriodEnd(h.now())
	periodStart := sub.periodStart()
	if periodStart == nil {
		periodStart = payment.CurrentPeriodStart
	}

	err = h.payments.Upsert(repository.PaymentUpsert{
		SubscriptionID:     sub.ID,
		UserID:             payment.UserID,
		PlanID:             payment.PlanID,
		CustomerID:         h.customerID(sub, payment.LsCustomerID),
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

// upsertSubscription writes the ledger row for one subscription view. order
// carries the order-level customer fields when the subscription came embedded
// in an order event.
func (h *WebhookHandler) upsertSubscription(userID string, plan *models.Plan, sub, order *eventData) error {
	cancelAtPeriodEnd := false
	if sub.CancelAtPeriodEnd != nil {
		cancelAtPeriodEnd = *sub.CancelAtPeriodEnd
	}

	fallbackCustomer := ""
	if order != nil {
		fallbackCustomer = order.CustomerID
	}

	return h.payments.Upsert(repository.PaymentUpsert{
		SubscriptionID:     sub.ID,
		UserID:             userID,
		PlanID:             plan.PlanID,
		CustomerID:         h.customerID(sub, fallbackCustomer),
		CurrentPeriodStart: sub.periodStart(),
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  cancelAtPeriodEnd,
	})
}

// resolvePlanFor maps the event to a plan: an explicit plan_id hint planted
// in the checkout metadata wins, then the product/price ids, then the
// existing ledger row. The row comes last so a provider-side product switch
// beats stale ledger data.
func (h *WebhookHandler) resolvePlanFor(data *eventData, candidates []string, existing *models.Payment) (*models.Plan, error) {
	if hint := data.planIDHint(); hint != "" {
		plan, err := h.plans.ByPlanID(hint)
		if err != nil || plan != nil {
			return plan, err
		}
	}
	plan, err := resolvePlan(h.plans, h.planMap, candidates)
	if err != nil || plan != nil {
		return plan, err
	}
	if existing != nil {
		return h.plans.ByPlanID(existing.PlanID)
	}
	return nil, nil
}

func (h *WebhookHandler) customerID(sub *eventData, fallback string) string {
	if sub.CustomerID != "" {
		return sub.CustomerID
	}
	if sub.Customer != nil && sub.Customer.ID != "" {
		return sub.Customer.ID
	}
	return fallback
}
