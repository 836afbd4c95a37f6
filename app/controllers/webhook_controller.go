package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/videogen-ai/videogen/app/models"
	"github.com/videogen-ai/videogen/internal/pkg/apperr"
	"github.com/videogen-ai/videogen/internal/pkg/billing"
)

const (
	LinkSignatureHeader   = "X-Link-Signature"
	StripeSignatureHeader = "Stripe-Signature"
	webhookTimeout        = 15 * time.Second
)

type WebhookController struct {
	billing    *billing.Service
	stripe     *billing.StripeProcessor
	linkSecret string
}

func NewWebhookController(svc *billing.Service, stripe *billing.StripeProcessor, linkSecret string) *WebhookController {
	return &WebhookController{billing: svc, stripe: stripe, linkSecret: strings.TrimSpace(linkSecret)}
}

// HandleLinkWebhook - POST /api/webhooks/link
// Unauthenticated. The signature is only enforced when a secret is configured.
func (wc *WebhookController) HandleLinkWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	signatureValid := true
	if wc.linkSecret != "" {
		signatureValid = billing.VerifyLinkWebhookSignature(rawBody, c.Get(LinkSignatureHeader), wc.linkSecret)
	}
	event, parseErr := billing.ParseLinkWebhookEvent(rawBody)

	return wc.process(c, billing.WebhookDelivery{
		Provider:       models.WebhookProviderLink,
		Payload:        rawBody,
		SignatureValid: signatureValid,
		Event:          event,
		ParseErr:       parseErr,
	})
}

// HandleStripeWebhook - POST /api/webhooks/stripe
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	if wc.stripe == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Stripe webhooks are not configured"})
	}
	rawBody := append([]byte(nil), c.BodyRaw()...)

	event, signatureValid, parseErr := wc.stripe.ParseWebhook(rawBody, c.Get(StripeSignatureHeader))
	return wc.process(c, billing.WebhookDelivery{
		Provider:       models.WebhookProviderStripe,
		Payload:        rawBody,
		SignatureValid: signatureValid,
		Event:          event,
		ParseErr:       parseErr,
	})
}

func (wc *WebhookController) process(c *fiber.Ctx, delivery billing.WebhookDelivery) error {
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	outcome, err := wc.billing.ProcessWebhook(ctx, delivery)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidSignature):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid webhook signature"})
		case apperr.Is(err, apperr.KindValidation):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": apperr.PublicMessage(err)})
		default:
			log.Errorf("[Webhook] %s delivery failed: %v", delivery.Provider, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error processing webhook"})
		}
	}

	resp := fiber.Map{"received": true}
	switch outcome {
	case billing.WebhookDuplicate:
		resp["duplicate"] = true
	case billing.WebhookIgnored:
		resp["ignored"] = true
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
