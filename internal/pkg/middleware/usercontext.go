package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayFox/internal/pkg/security"
	"github.com/ManuelReschke/PayFox/internal/pkg/usercontext"
)

// UserContextMiddleware sets up an anonymous caller for every request and
// records the acting user from X-Actor-ID. A malformed header is rejected.
func UserContextMiddleware(c *fiber.Ctx) error {
	caller := usercontext.Caller{Capabilities: security.NewCapabilitySet()}

	if raw := strings.TrimSpace(c.Get(usercontext.HeaderActorID)); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "validation_error",
				"message": "invalid " + usercontext.HeaderActorID + " header",
			})
		}
		actor := uint(id)
		caller.ActorID = &actor
	}

	usercontext.SetCaller(c, caller)
	return c.Next()
}
