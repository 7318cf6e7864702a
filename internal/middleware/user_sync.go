package middleware

import (
	"github.com/gofiber/fiber/v2"

	"productapi/internal/services"
)

// UserSync upserts the authenticated principal into the users table before
// the request reaches a handler, so audited writes always reference a known
// user. Requests without a principal pass through.
func UserSync(userService *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFrom(c)
		if !ok {
			return c.Next()
		}
		if _, err := userService.SyncUser(c.UserContext(), principal); err != nil {
			return err
		}
		return c.Next()
	}
}
