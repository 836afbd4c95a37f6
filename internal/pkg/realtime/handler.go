package realtime

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/videogen-ai/videogen/internal/pkg/security"
)

const localsUserID = "realtime_user_id"

// Upgrade authenticates the ?token= session token and only lets websocket
// upgrades through.
func Upgrade(tokens *security.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "Websocket upgrade required"})
		}
		claims, err := tokens.Verify(c.Query("token"), security.PurposeSession)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}
		c.Locals(localsUserID, claims.UserID)
		return c.Next()
	}
}

// Handler serves an upgraded socket. Inbound frames are read only to detect
// the close.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(localsUserID).(uint)
		unregister := h.Register(userID, conn)
		defer unregister()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
