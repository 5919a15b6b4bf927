package middleware

import (
	"strings"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/utils"
	"github.com/gofiber/fiber/v2"
)

// ActorContextMiddleware extracts the actor identity and roles set by the Gateway.
// Signed-in users arrive with X-User-ID; anonymous visitors with the opaque
// X-Actor-ID their client persisted. X-User-ID wins when both are present.
func ActorContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actorID := strings.TrimSpace(c.Get("X-User-ID"))
		if actorID == "" {
			actorID = strings.TrimSpace(c.Get("X-Actor-ID"))
		}
		if actorID == "" || len(actorID) > 128 {
			utils.LogWarn("❌ [ACTOR_CTX] actor id missing or malformed on %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID or X-Actor-ID — request must come through gateway with actor context",
			})
		}

		c.Locals("actor_id", actorID)
		c.Locals("user_roles", parseRoles(c.Get("X-User-Roles")))

		utils.LogDebug("👤 [ACTOR_CTX] ActorID=%s | Path: %s", actorID, c.Path())
		return c.Next()
	}
}

// RequireAdmin rejects callers whose X-User-Roles lacks "admin".
// It expects ActorContextMiddleware to have run first.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals("user_roles").([]string)
		for _, r := range roles {
			if r == "admin" {
				return c.Next()
			}
		}
		utils.LogWarn("🚫 [ADMIN] %v denied on %s", c.Locals("actor_id"), c.Path())
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin role required"})
	}
}

func parseRoles(rolesStr string) []string {
	var roles []string
	for _, r := range strings.Split(rolesStr, ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
