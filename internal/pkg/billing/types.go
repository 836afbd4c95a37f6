package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

// Event types that change local state. Provider-specific names are mapped
// onto them by the parsers; everything else is recorded and ignored.
const (
	EventCheckoutCompleted = "checkout.completed"
	EventCheckoutFailed    = "checkout.failed"
)

// CheckoutRequest is what a processor needs to open a hosted checkout.
type CheckoutRequest struct {
	UserID      uint
	PlanID      uint
	PlanName    string
	AmountMinor int64
	AmountUSD   decimal.Decimal
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
	CustomerRef string
}

// CheckoutSession is the processor's answer: the id webhooks will refer to
// and the URL the user is sent to.
type CheckoutSession struct {
	ID  string
	URL string
}

// Processor opens hosted checkouts with a payment provider.
type Processor interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// Event is a provider webhook reduced to what the reconciler needs.
type Event struct {
	Provider   string
	ID         string
	Type       string
	CheckoutID string
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
