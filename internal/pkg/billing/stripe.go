package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/videogen-ai/videogen/app/models"
	"github.com/videogen-ai/videogen/internal/pkg/config"
)

const (
	stripeCheckoutSessionCompleted   = "checkout.session.completed"
	stripeCheckoutSessionExpired     = "checkout.session.expired"
	stripeCheckoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
)

// StripeProcessor opens one-off Stripe Checkout sessions priced inline.
type StripeProcessor struct {
	sessions      *session.Client
	webhookSecret string
}

func NewStripeProcessor(cfg config.Stripe) *StripeProcessor {
	return NewStripeProcessorWithBackend(cfg, stripe.GetBackend(stripe.APIBackend))
}

// NewStripeProcessorWithBackend lets tests point the client at a fake API.
func NewStripeProcessorWithBackend(cfg config.Stripe, backend stripe.Backend) *StripeProcessor {
	return &StripeProcessor{
		sessions:      &session.Client{B: backend, Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
	}
}

func (p *StripeProcessor) Name() string {
	return models.WebhookProviderStripe
}

func (p *StripeProcessor) CreateCheckout(ctx context.Context, in CheckoutRequest) (*CheckoutSession, error) {
	if p.sessions.Key == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}
	userID := strconv.FormatUint(uint64(in.UserID), 10)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(in.Currency)),
					UnitAmount: stripe.Int64(in.AmountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(in.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(userID),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	params.AddMetadata("plan_id", strconv.FormatUint(uint64(in.PlanID), 10))

	sess, err := p.sessions.New(params)
	if err != nil {
		return nil, err
	}
	if sess.ID == "" || sess.URL == "" {
		return nil, errors.New("stripe checkout returned empty id or url")
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ParseWebhook verifies Stripe-Signature and maps the event onto the
// provider-neutral Event. The boolean reports signature validity; an invalid
// signature is not an error so the caller can still record the delivery.
func (p *StripeProcessor) ParseWebhook(payload []byte, signatureHeader string) (*Event, bool, error) {
	if p.webhookSecret == "" {
		return nil, false, errors.New("STRIPE_WEBHOOK_SECRET is not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, false, nil
	}

	out := &Event{
		Provider: models.WebhookProviderStripe,
		ID:       event.ID,
		Type:     string(event.Type),
	}
	switch out.Type {
	case stripeCheckoutSessionCompleted:
		out.Type = EventCheckoutCompleted
	case stripeCheckoutSessionExpired, stripeCheckoutAsyncPaymentFailed:
		out.Type = EventCheckoutFailed
	default:
		return out, true, nil
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, true, err
	}
	out.CheckoutID = sess.ID
	return out, true, nil
}
