package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/videogen-ai/videogen/app/controllers"
	"github.com/videogen-ai/videogen/internal/pkg/middleware"
	"github.com/videogen-ai/videogen/internal/pkg/ratelimit"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", middleware.UserContextMiddleware(h.deps.Authenticator))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	authGroup := api.Group("/auth", ratelimit.New(h.deps.LimiterStorage, ratelimit.DefaultMax, ratelimit.DefaultExpiration))
	authGroup.Post("/register", controllers.HandleRegister)
	authGroup.Post("/login", controllers.HandleLogin)
	authGroup.Post("/verify-email", controllers.HandleVerifyEmail)
	authGroup.Post("/forgot-password", controllers.HandleForgotPassword)
	authGroup.Post("/reset-password", controllers.HandleResetPassword)

	payments := api.Group("/payments")
	payments.Get("/plans", controllers.HandleListPlans)
	payments.Post("/create-checkout", middleware.RequireAuth, controllers.HandleCreateCheckout)
	payments.Get("/subscriptions", middleware.RequireAuth, controllers.HandleListSubscriptions)

	webhooks := api.Group("/webhooks")
	webhooks.Post("/link", controllers.HandleLinkWebhook)
	webhooks.Post("/stripe", controllers.HandleStripeWebhook)

	callbackSecret := ""
	if h.deps.Config != nil {
		callbackSecret = h.deps.Config.Workflow.CallbackSecret
	}
	projects := api.Group("/projects")
	projects.Patch("/:id/progress", middleware.RequireWorkflowCaller(callbackSecret), controllers.HandleUpdateProgress)
	projects.Post("/create", middleware.RequireAuth, controllers.HandleCreateFullVideo)
	projects.Get("/", middleware.RequireAuth, controllers.HandleListProjects)
	projects.Get("/:id", middleware.RequireAuth, controllers.HandleGetProject)
	registerModuleRoutes(projects.Group("/modules", middleware.RequireAuth))
	registerModuleRoutes(api.Group("/modules", middleware.RequireAuth))

	user := api.Group("/user", middleware.RequireAuth)
	user.Get("/me", controllers.HandleMe)
	user.Get("/credits", controllers.HandleCredits)
	user.Get("/transactions", controllers.HandleTransactions)
	user.Get("/subscriptions", controllers.HandleListSubscriptions)
	user.Get("/stats", controllers.HandleUserStats)
}

func registerModuleRoutes(r fiber.Router) {
	r.Post("/images", controllers.HandleCreateImages)
	r.Post("/script", controllers.HandleCreateScript)
	r.Post("/voice", controllers.HandleCreateVoice)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
