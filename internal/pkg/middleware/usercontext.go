package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/videogen-ai/videogen/internal/pkg/security"
	"github.com/videogen-ai/videogen/internal/pkg/usercontext"
)

// TokenAuthenticator resolves a session token.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*security.Claims, error)
}

// UserContextMiddleware resolves an "Authorization: Bearer" session token into
// the request's user context. Requests without a valid token continue as
// anonymous; RequireAuth decides whether that is acceptable.
func UserContextMiddleware(auth TokenAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			usercontext.SetUserContext(c, usercontext.UserContext{IsLoggedIn: false})
			return c.Next()
		}

		claims, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			usercontext.SetUserContext(c, usercontext.UserContext{IsLoggedIn: false})
			c.Locals(keyTokenRejected, true)
			return c.Next()
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     claims.UserID,
			Email:      claims.Email,
			IsLoggedIn: true,
		})
		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
