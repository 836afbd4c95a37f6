package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/videogen-ai/videogen/internal/pkg/config"
	"github.com/videogen-ai/videogen/internal/pkg/middleware"
	"github.com/videogen-ai/videogen/internal/pkg/realtime"
	"github.com/videogen-ai/videogen/internal/pkg/security"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are what the routers need beyond the controllers, which are
// initialized separately.
type Dependencies struct {
	Config         *config.Config
	Authenticator  middleware.TokenAuthenticator
	Tokens         *security.TokenService
	Hub            *realtime.Hub
	LimiterStorage fiber.Storage
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// HttpRouter first: it owns /health, /metrics and /ws which must not pass
	// through the API's user context middleware.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
