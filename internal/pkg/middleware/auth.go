package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/videogen-ai/videogen/internal/pkg/usercontext"
)

const (
	keyTokenRejected     = "token_rejected"
	WorkflowSecretHeader = "X-Workflow-Secret"
)

// RequireAuth ensures a valid session token and returns JSON 401 otherwise.
func RequireAuth(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Next()
	}
	if rejected, _ := c.Locals(keyTokenRejected).(bool); rejected {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token not provided"})
}

// RequireWorkflowCaller guards the progress callback. With a secret
// configured the X-Workflow-Secret header must match it; otherwise the
// owner's session token is required.
func RequireWorkflowCaller(secret string) fiber.Handler {
	secret = strings.TrimSpace(secret)
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return RequireAuth(c)
		}
		got := c.Get(WorkflowSecretHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid workflow secret"})
		}
		c.Locals(usercontext.KeyWorkflowCaller, true)
		return c.Next()
	}
}
