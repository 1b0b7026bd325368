package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayFox/internal/pkg/security"
	"github.com/ManuelReschke/PayFox/internal/pkg/usercontext"
)

// RequireCapability lets the request through only when the caller holds all
// of caps. It must run after APIKeyAuthMiddleware.
func RequireCapability(caps ...security.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := usercontext.GetCaller(c)
		if !caller.Authenticated {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "authentication required",
			})
		}
		if !security.Allowed(caps, caller.Capabilities) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "missing capability " + string(firstMissing(caps, caller.Capabilities)),
			})
		}
		return c.Next()
	}
}

func firstMissing(caps []security.Capability, have security.CapabilitySet) security.Capability {
	for _, c := range caps {
		if !have.Has(c) {
			return c
		}
	}
	return ""
}
