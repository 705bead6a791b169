// Package polar is a typed HTTP client for the parts of the Polar REST API
// this service calls. Polar has no Go SDK; the client follows the same
// shape as the other external API wrappers in this codebase.
package polar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matchharper/harper-beta-sub001/billing"
)

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// New builds a client against the given API root
// (https://api.polar.sh or https://sandbox-api.polar.sh).
func New(baseURL, accessToken string) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

var _ billing.SubscriptionGateway = (*Client)(nil)

type subscriptionResponse struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	ProductID          string     `json:"product_id"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
}

func (s *subscriptionResponse) toSubscription() *billing.Subscription {
	return &billing.Subscription{
		ID:                 s.ID,
		ProductID:          s.ProductID,
		Status:             s.Status,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
	}
}

func (c *Client) Subscription(ctx context.Context, id string) (*billing.Subscription, error) {
	var sub subscriptionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/subscriptions/"+id, nil, &sub); err != nil {
		return nil, err
	}
	return sub.toSubscription(), nil
}

func (c *Client) UpdateProduct(ctx context.Context, id, productID string) (*billing.Subscription, error) {
	body := map[string]interface{}{
		"product_id":         productID,
		"proration_behavior": "invoice",
	}
	var sub subscriptionResponse
	if err := c.do(ctx, http.MethodPatch, "/v1/subscriptions/"+id, body, &sub); err != nil {
		return nil, err
	}
	return sub.toSubscription(), nil
}

func (c *Client) CancelAtPeriodEnd(ctx context.Context, id string) (*billing.Subscription, error) {
	body := map[string]interface{}{
		"cancel_at_period_end": true,
	}
	var sub subscriptionResponse
	if err := c.do(ctx, http.MethodPatch, "/v1/subscriptions/"+id, body, &sub); err != nil {
		return nil, err
	}
	return sub.toSubscription(), nil
}

func (c *Client) Revoke(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/subscriptions/"+id, nil, nil)
}

func (c *Client) CreateCheckout(ctx context.Context, params billing.CheckoutParams) (*billing.Checkout, error) {
	body := map[string]interface{}{
		"products":    []string{params.ProductID},
		"success_url": params.SuccessURL,
		"metadata":    params.Metadata,
	}
	if params.ExternalCustomerID != "" {
		body["external_customer_id"] = params.ExternalCustomerID
	}

	var checkout struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/checkouts", body, &checkout); err != nil {
		return nil, err
	}
	return &billing.Checkout{ID: checkout.ID, URL: checkout.URL}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling Polar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &billing.ProviderError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// readErrorMessage pulls the "detail" field Polar puts on error bodies,
// falling back to the raw body.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return "unknown error"
	}

	var parsed struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return string(raw)
}
