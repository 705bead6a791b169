package lemonsqueezy

import (
	"encoding/json"
	"strings"
	"time"
)

// flexID tolerates Lemon Squeezy's habit of sending ids as either JSON
// numbers or strings depending on the event.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// payload is the typed form of a Lemon Squeezy webhook body. The external
// JSON is parsed once into this and the handlers only ever look at the
// typed fields; a payload that does not parse is rejected up front.
type payload struct {
	Meta struct {
		EventName  string `json:"event_name"`
		CustomData struct {
			UserID    string `json:"user_id"`
			UserIDAlt string `json:"userId"`
		} `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			SubscriptionID     flexID     `json:"subscription_id"`
			VariantID          flexID     `json:"variant_id"`
			CustomerID         flexID     `json:"customer_id"`
			CreatedAt          *time.Time `json:"created_at"`
			RenewsAt           *time.Time `json:"renews_at"`
			EndsAt             *time.Time `json:"ends_at"`
			CancelledAt        *time.Time `json:"cancelled_at"`
			CurrentPeriodStart *time.Time `json:"current_period_start"`
			CurrentPeriodEnd   *time.Time `json:"current_period_end"`
			CancelAtPeriodEnd  *bool      `json:"cancel_at_period_end"`
			Cancelled          *bool      `json:"cancelled"`
			FirstOrderItem     *struct {
				VariantID      flexID `json:"variant_id"`
				SubscriptionID flexID `json:"subscription_id"`
			} `json:"first_order_item"`
		} `json:"attributes"`
		Relationships struct {
			Subscription struct {
				Data *struct {
					ID string `json:"id"`
				} `json:"data"`
			} `json:"subscription"`
		} `json:"relationships"`
	} `json:"data"`
}

func parsePayload(rawBody []byte) (*payload, error) {
	var p payload
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// userID is the user reference planted in checkout custom data.
func (p *payload) userID() string {
	if p.Meta.CustomData.UserID != "" {
		return p.Meta.CustomData.UserID
	}
	return p.Meta.CustomData.UserIDAlt
}

// subscriptionID resolves the external subscription id across the places
// different event types carry it.
func (p *payload) subscriptionID() string {
	if p.Data.Attributes.SubscriptionID != "" {
		return string(p.Data.Attributes.SubscriptionID)
	}
	if rel := p.Data.Relationships.Subscription.Data; rel != nil && rel.ID != "" {
		return rel.ID
	}
	return p.Data.ID
}

func (p *payload) periodStart() *time.Time {
	if p.Data.Attributes.CurrentPeriodStart != nil {
		return p.Data.Attributes.CurrentPeriodStart
	}
	return p.Data.Attributes.CreatedAt
}

func (p *payload) periodEnd() *time.Time {
	attrs := p.Data.Attributes
	if attrs.CurrentPeriodEnd != nil {
		return attrs.CurrentPeriodEnd
	}
	if attrs.RenewsAt != nil {
		return attrs.RenewsAt
	}
	return attrs.EndsAt
}

func (p *payload) cancelAtPeriodEnd() bool {
	attrs := p.Data.Attributes
	if attrs.CancelAtPeriodEnd != nil {
		return *attrs.CancelAtPeriodEnd
	}
	if attrs.Cancelled != nil {
		return *attrs.Cancelled
	}
	return false
}
