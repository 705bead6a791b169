// Package billing defines the outbound gateway to the subscription
// providers. Handlers depend on the interfaces here so tests can substitute
// fakes; the concrete HTTP clients live in the lemonsqueezy and polar
// subpackages.
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Subscription is the provider-neutral view of an external subscription,
// reduced to the fields the gateway handlers act on.
type Subscription struct {
	ID                 string
	ProductID          string
	Status             string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
}

// Checkout is a provider-hosted checkout session.
type Checkout struct {
	ID  string
	URL string
}

// CheckoutParams scopes a checkout session to a user and plan. Metadata is
// echoed back on webhook events and is how the reconciler learns the user id.
type CheckoutParams struct {
	ProductID          string
	SuccessURL         string
	ExternalCustomerID string
	Metadata           map[string]string
}

// SubscriptionGateway is the outbound surface against a provider that
// manages recurring subscriptions.
type SubscriptionGateway interface {
	Subscription(ctx context.Context, id string) (*Subscription, error)
	// UpdateProduct switches the subscription to another product with
	// invoice-based proration.
	UpdateProduct(ctx context.Context, id, productID string) (*Subscription, error)
	// CancelAtPeriodEnd schedules the subscription to lapse when the paid
	// period runs out.
	CancelAtPeriodEnd(ctx context.Context, id string) (*Subscription, error)
	// Revoke ends the subscription immediately.
	Revoke(ctx context.Context, id string) error
	CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error)
}

// ProviderError is a non-2xx answer from a provider API. The message is
// surfaced to the caller for diagnosability.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus maps a gateway error to the status the handler should answer
// with: the provider's own status when it is a real HTTP error, 502
// otherwise (network failure, timeout, malformed answer).
func HTTPStatus(err error) int {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.StatusCode >= http.StatusBadRequest {
		return providerErr.StatusCode
	}
	return http.StatusBadGateway
}

// Message extracts the provider-supplied message when there is one.
func Message(err error) string {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.Message != "" {
		return providerErr.Message
	}
	return err.Error()
}
