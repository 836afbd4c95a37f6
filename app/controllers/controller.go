package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/videogen-ai/videogen/internal/pkg/apperr"
	"github.com/videogen-ai/videogen/internal/pkg/auth"
	"github.com/videogen-ai/videogen/internal/pkg/billing"
	"github.com/videogen-ai/videogen/internal/pkg/credits"
	"github.com/videogen-ai/videogen/internal/pkg/jobqueue"
	"github.com/videogen-ai/videogen/internal/pkg/projects"
	"github.com/videogen-ai/videogen/internal/pkg/statistics"
)

// Services are the dependencies the HTTP handlers are built from.
type Services struct {
	DB                *gorm.DB
	Cache             *redis.Client
	Auth              *auth.Service
	Billing           *billing.Service
	Ledger            *credits.Ledger
	Projects          *projects.Service
	Statistics        *statistics.Service
	Jobs              *jobqueue.Queue
	Stripe            *billing.StripeProcessor
	LinkWebhookSecret string
}

// Global controller instances
var (
	authController    *AuthController
	paymentController *PaymentController
	webhookController *WebhookController
	projectController *ProjectController
	userController    *UserController
	healthController  *HealthController
)

// InitializeControllers builds every controller from svcs. It must run
// before the router is installed.
func InitializeControllers(svcs Services) {
	authController = NewAuthController(svcs.Auth)
	paymentController = NewPaymentController(svcs.Billing)
	webhookController = NewWebhookController(svcs.Billing, svcs.Stripe, svcs.LinkWebhookSecret)
	projectController = NewProjectController(svcs.Projects)
	stats := svcs.Statistics
	if stats == nil {
		stats = statistics.NewService(svcs.DB, svcs.Ledger, nil)
	}
	userController = NewUserController(svcs.Auth, svcs.Ledger, stats)
	healthController = NewHealthController(svcs.DB, svcs.Cache, svcs.Jobs)
}

// respondError writes the {"error": ...} body every failure uses. Internal
// and upstream causes are logged and never shown.
func respondError(c *fiber.Ctx, err error) error {
	status := apperr.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": apperr.PublicMessage(err)})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}
