package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/videogen-ai/videogen/app/controllers"
	"github.com/videogen-ai/videogen/internal/pkg/realtime"
)

type HttpRouter struct {
	deps Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", controllers.HandleHealth)

	// fiber metrics, only exposed with credentials configured
	if h.deps.Config != nil && h.deps.Config.MetricsEnabled() {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				h.deps.Config.Metrics.User: h.deps.Config.Metrics.Password,
			},
		}), monitor.New(monitor.Config{Title: h.deps.Config.App.Name + " Metrics"}))
	}

	if h.deps.Hub != nil && h.deps.Tokens != nil {
		app.Get("/ws", realtime.Upgrade(h.deps.Tokens), h.deps.Hub.Handler())
	}
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}
