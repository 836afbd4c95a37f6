package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/videogen-ai/videogen/internal/pkg/billing"
	"github.com/videogen-ai/videogen/internal/pkg/usercontext"
)

type PaymentController struct {
	billing *billing.Service
}

func NewPaymentController(svc *billing.Service) *PaymentController {
	return &PaymentController{billing: svc}
}

type createCheckoutRequest struct {
	PlanID uint `json:"planId"`
}

// HandleCreateCheckout - POST /api/payments/create-checkout
func (pc *PaymentController) HandleCreateCheckout(c *fiber.Ctx) error {
	var req createCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.PlanID == 0 {
		return badRequest(c, "Plan ID is required")
	}
	url, err := pc.billing.CreateCheckout(c.UserContext(), usercontext.GetUserID(c), req.PlanID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"checkoutUrl": url})
}

// HandleListPlans - GET /api/payments/plans
func (pc *PaymentController) HandleListPlans(c *fiber.Ctx) error {
	plans, err := pc.billing.ListActivePlans(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"plans": plans})
}

// HandleListSubscriptions - GET /api/payments/subscriptions and /api/user/subscriptions
func (pc *PaymentController) HandleListSubscriptions(c *fiber.Ctx) error {
	subs, err := pc.billing.ListSubscriptions(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"subscriptions": subs})
}
