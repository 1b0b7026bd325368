package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayFox/internal/pkg/security"
)

// Caller is the authenticated client of a request. ActorID is the internal
// user the client acts for, when it says so.
type Caller struct {
	KeyID         string                 `json:"key_id"`
	Role          security.Role          `json:"role"`
	Capabilities  security.CapabilitySet `json:"-"`
	ActorID       *uint                  `json:"actor_id,omitempty"`
	Authenticated bool                   `json:"authenticated"`
}

// GetCaller retrieves the caller from the fiber context.
// Returns an anonymous caller if none is set.
func GetCaller(c *fiber.Ctx) Caller {
	if v, ok := c.Locals(KeyCaller).(Caller); ok {
		return v
	}
	return Caller{Capabilities: security.NewCapabilitySet()}
}

func SetCaller(c *fiber.Ctx, caller Caller) {
	c.Locals(KeyCaller, caller)
}

func IsAuthenticated(c *fiber.Ctx) bool {
	return GetCaller(c).Authenticated
}

// Can reports whether the caller holds every capability in caps.
func Can(c *fiber.Ctx, caps ...security.Capability) bool {
	caller := GetCaller(c)
	return caller.Authenticated && security.Allowed(caps, caller.Capabilities)
}

// GetActorID returns the acting user's ID, or nil if the caller gave none.
func GetActorID(c *fiber.Ctx) *uint {
	return GetCaller(c).ActorID
}
