package polar

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/matchharper/harper-beta-sub001/models"
	"github.com/matchharper/harper-beta-sub001/repository"
)

// Polar signs deliveries per the Standard Webhooks convention: HMAC-SHA256
// over "<id>.<timestamp>.<body>" keyed with the base64 payload of the
// whsec_-prefixed secret, carried base64-encoded in "v1,<sig>" entries of
// the webhook-signature header.
const signatureTolerance = 5 * time.Minute

func verifyStandardWebhook(secret, msgID, timestamp, signatureHeader string, rawBody []byte, now time.Time) bool {
	if secret == "" || msgID == "" || timestamp == "" || signatureHeader == "" {
		return false
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	sent := time.Unix(unix, 0)
	if sent.Before(now.Add(-signatureTolerance)) || sent.After(now.Add(signatureTolerance)) {
		return false
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	for _, entry := range strings.Fields(signatureHeader) {
		version, sig, found := strings.Cut(entry, ",")
		if !found || version != "v1" {
			continue
		}
		provided, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if len(provided) == len(expected) && hmac.Equal(expected, provided) {
			return true
		}
	}
	return false
}

// event is the typed form of a Polar webhook body. Order events embed the
// subscription object; subscription events carry the fields at the top of
// data.
type event struct {
	Type string     `json:"type"`
	Data *eventData `json:"data"`
}

type eventData struct {
	ID                 string                 `json:"id"`
	Status             string                 `json:"status"`
	ProductID          string                 `json:"product_id"`
	PriceID            string                 `json:"price_id"`
	CancelAtPeriodEnd  *bool                  `json:"cancel_at_period_end"`
	StartedAt          *time.Time             `json:"started_at"`
	EndedAt            *time.Time             `json:"ended_at"`
	EndsAt             *time.Time             `json:"ends_at"`
	CurrentPeriodStart *time.Time             `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time             `json:"current_period_end"`
	Metadata           map[string]interface{} `json:"metadata"`
	CustomerID         string                 `json:"customer_id"`
	ExternalCustomerID string                 `json:"external_customer_id"`
	Customer           *struct {
		ID         string `json:"id"`
		ExternalID string `json:"external_id"`
	} `json:"customer"`
	SubscriptionID string     `json:"subscription_id"`
	Subscription   *eventData `json:"subscription"`
	Checkout       *struct {
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"checkout"`
}

func parseEvent(rawBody []byte) (*event, error) {
	var e event
	if err := json.Unmarshal(rawBody, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// metadataString reads the first non-empty string under any of the keys.
func metadataString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// userID resolves the application user the event belongs to. Checkout
// metadata is the authoritative source; the customer's external id is how
// Polar echoes the user back on later renewals.
func (d *eventData) userID() string {
	if d == nil {
		return ""
	}
	if id := metadataString(d.Metadata, "user_id", "userId"); id != "" {
		return id
	}
	if d.Checkout != nil {
		if id := metadataString(d.Checkout.Metadata, "user_id", "userId"); id != "" {
			return id
		}
	}
	if d.Subscription != nil {
		if id := d.Subscription.userID(); id != "" {
			return id
		}
	}
	if d.Customer != nil && d.Customer.ExternalID != "" {
		return d.Customer.ExternalID
	}
	return d.ExternalCustomerID
}

// planIDHint reads an explicit plan id planted in checkout metadata.
func (d *eventData) planIDHint() string {
	if d == nil {
		return ""
	}
	if id := metadataString(d.Metadata, "plan_id", "planId"); id != "" {
		return id
	}
	if d.Checkout != nil {
		if id := metadataString(d.Checkout.Metadata, "plan_id", "planId"); id != "" {
			return id
		}
	}
	if d.Subscription != nil {
		return d.Subscription.planIDHint()
	}
	return ""
}

// subscription returns the subscription object the event describes: the data
// itself for subscription.* events, the embedded subscription for orders.
func (d *eventData) subscription() *eventData {
	if d == nil {
		return nil
	}
	if d.Subscription != nil {
		return d.Subscription
	}
	return d
}

func (d *eventData) periodStart() *time.Time {
	if d.CurrentPeriodStart != nil {
		return d.CurrentPeriodStart
	}
	return d.StartedAt
}

// finalPeriodEnd is the boundary a canceled or revoked subscription stops
// being active at.
func (d *eventData) finalPeriodEnd(now time.Time) *time.Time {
	if d.EndedAt != nil {
		return d.EndedAt
	}
	if d.EndsAt != nil {
		return d.EndsAt
	}
	if d.CurrentPeriodEnd != nil {
		return d.CurrentPeriodEnd
	}
	return &now
}

// productCandidates lists every product/price id the event carries, in
// resolution order.
func (d *eventData) productCandidates() []string {
	if d == nil {
		return nil
	}
	var out []string
	for _, id := range []string{d.ProductID, d.PriceID} {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// resolvePlan maps a Polar product or price id to a plan: explicit overrides
// from configuration first, then the plans table's variant column.
func resolvePlan(plans *repository.PlanRepository, planMap map[string]string, candidates []string) (*models.Plan, error) {
	for _, candidate := range candidates {
		if planID, ok := planMap[candidate]; ok {
			plan, err := plans.ByPlanID(planID)
			if err != nil {
				return nil, err
			}
			if plan != nil {
				return plan, nil
			}
		}
		plan, err := plans.ByVariantID(candidate)
		if err != nil {
			return nil, err
		}
		if plan != nil {
			return plan, nil
		}
	}
	return nil, nil
}
