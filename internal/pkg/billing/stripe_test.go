package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/videogen-ai/videogen/internal/pkg/config"
)

const stripeTestSecret = "whsec_test_secret"

func signedStripePayload(payload string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    stripeTestSecret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestStripeParseWebhookCheckoutCompleted(t *testing.T) {
	p := NewStripeProcessor(config.Stripe{SecretKey: "sk_test", WebhookSecret: stripeTestSecret})
	payload := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","object":"checkout.session"}}}`

	ev, valid, err := p.ParseWebhook([]byte(payload), signedStripePayload(payload))
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "cs_test_1", ev.CheckoutID)
	assert.Equal(t, "evt_1", ev.ID)
}

func TestStripeParseWebhookExpiredSession(t *testing.T) {
	p := NewStripeProcessor(config.Stripe{SecretKey: "sk_test", WebhookSecret: stripeTestSecret})
	payload := `{"id":"evt_3","object":"event","type":"checkout.session.expired","data":{"object":{"id":"cs_test_2","object":"checkout.session"}}}`

	ev, valid, err := p.ParseWebhook([]byte(payload), signedStripePayload(payload))
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, EventCheckoutFailed, ev.Type)
	assert.Equal(t, "cs_test_2", ev.CheckoutID)
}

func TestStripeParseWebhookOtherTypeAndBadSignature(t *testing.T) {
	p := NewStripeProcessor(config.Stripe{SecretKey: "sk_test", WebhookSecret: stripeTestSecret})
	payload := `{"id":"evt_2","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`

	ev, valid, err := p.ParseWebhook([]byte(payload), signedStripePayload(payload))
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, "invoice.paid", ev.Type)

	_, valid, err = p.ParseWebhook([]byte(payload), "t=1,v1=deadbeef")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestStripeCreateCheckout(t *testing.T) {
	var gotPath, gotMode, gotAmount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseForm()
		gotMode = r.PostForm.Get("mode")
		gotAmount = r.PostForm.Get("line_items[0][price_data][unit_amount]")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_9","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_9"}`))
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	p := NewStripeProcessorWithBackend(config.Stripe{SecretKey: "sk_test"}, backend)

	session, err := p.CreateCheckout(context.Background(), CheckoutRequest{
		UserID: 1, PlanID: 2, AmountMinor: 7999, Currency: "USD",
		Description: "Plan Pro - VideoGenerator AI",
		SuccessURL:  "https://app.example.com/payment/success",
		CancelURL:   "https://app.example.com/payment/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_9", session.ID)
	assert.Equal(t, "/v1/checkout/sessions", gotPath)
	assert.Equal(t, "payment", gotMode)
	assert.Equal(t, "7999", gotAmount)
}
