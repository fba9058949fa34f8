// middleware/auth.go
package middleware

import (
	"slices"
	"strings"

	"badge-progress-system/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Locals keys set by the middleware in this package.
const (
	LocalUserID    = "user_id"
	LocalUserRoles = "user_roles"
	LocalRequestID = "request_id"
)

// RequestIDMiddleware reuses the caller's X-Request-ID or mints one.
func RequestIDMiddleware() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		Generator:  logging.NewRequestID,
		ContextKey: LocalRequestID,
	})
}

// UserContextMiddleware extracts user identity and roles set by Gateway.
// Requests without X-User-ID are rejected.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			logging.Warn().Str("path", c.Path()).Msg("❌ X-User-ID required but missing on secured route")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRoles, roles)
		return c.Next()
	}
}

// RequireRole rejects users that do not carry role. It must run after
// UserContextMiddleware.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals(LocalUserRoles).([]string)
		if !slices.Contains(roles, role) {
			logging.Warn().
				Str("user_id", UserID(c)).
				Str("required_role", role).
				Str("path", c.Path()).
				Msg("🚫 role check failed")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient role",
			})
		}
		return c.Next()
	}
}

// UserID returns the caller set by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

// RequestID returns the id set by RequestIDMiddleware.
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalRequestID).(string)
	return id
}
