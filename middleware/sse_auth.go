package middleware

import (
	"strings"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/utils"
	"github.com/gofiber/fiber/v2"
)

// SSEActorMiddleware is ActorContextMiddleware for EventSource clients,
// which cannot set custom headers: the actor id may come from the
// `actor_id` query parameter instead.
//
// Usage:
//
//	app.Get("/gamification/stream", middleware.SSEActorMiddleware(), ledger.StreamLedgerSSE)
func SSEActorMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actorID := strings.TrimSpace(c.Get("X-User-ID"))
		if actorID == "" {
			actorID = strings.TrimSpace(c.Get("X-Actor-ID"))
		}
		if actorID == "" {
			actorID = strings.TrimSpace(c.Query("actor_id"))
		}
		if actorID == "" || len(actorID) > 128 {
			utils.LogWarn("[SSEAuth] ❌ Missing actor id for %s", c.Path())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing actor_id",
			})
		}

		c.Locals("actor_id", actorID)
		c.Locals("user_roles", parseRoles(c.Get("X-User-Roles")))
		return c.Next()
	}
}
