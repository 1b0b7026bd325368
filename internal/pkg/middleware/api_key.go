package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/internal/pkg/security"
	"github.com/ManuelReschke/PayFox/internal/pkg/usercontext"
)

type apiKey struct {
	digest [sha256.Size]byte
	id     string
	role   security.Role
}

// APIKeyAuthMiddleware authenticates requests carrying a configured API key
// and stores the caller with the capabilities of the key's role. keys maps
// the raw key to a role name; unknown roles are skipped.
func APIKeyAuthMiddleware(keys map[string]string) fiber.Handler {
	known := make([]apiKey, 0, len(keys))
	for key, roleName := range keys {
		role, ok := security.ParseRole(roleName)
		if !ok {
			log.Warnf("[Auth] Ignoring API key %s with unknown role %q", keyID(key), roleName)
			continue
		}
		known = append(known, apiKey{digest: sha256.Sum256([]byte(key)), id: keyID(key), role: role})
	}

	return func(c *fiber.Ctx) error {
		raw := extractAPIKeyFromHeader(c)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		digest := sha256.Sum256([]byte(raw))
		var match *apiKey
		for i := range known {
			if subtle.ConstantTimeCompare(digest[:], known[i].digest[:]) == 1 {
				match = &known[i]
			}
		}
		if match == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
		}

		caller := usercontext.GetCaller(c)
		caller.KeyID = match.id
		caller.Role = match.role
		caller.Capabilities = security.CapabilitiesFor(match.role)
		caller.Authenticated = true
		usercontext.SetCaller(c, caller)

		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get(usercontext.HeaderAPIKey))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// keyID is a short stable fingerprint safe for logs.
func keyID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:4])
}
