package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"productapi/internal/logger"
	"productapi/internal/models"
	"productapi/internal/services"
)

const localsPrincipal = "principal"

// AuthRequired is a Fiber middleware to check for a valid JWT token. The
// validated principal is stored in the request locals.
func AuthRequired(authService *services.AuthService, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header is required")
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "") {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header format must be 'Bearer <token>'")
		}

		principal, err := authService.ValidateToken(parts[1])
		if err != nil {
			log.Debug("JWT validation failed", "error", err, "path", c.Path())
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}

		log.Debug("authenticated request", "subject", principal.Subject, "email", principal.Email, "path", c.Path())
		c.Locals(localsPrincipal, principal)
		return c.Next()
	}
}

// PrincipalFrom returns the principal stored by AuthRequired.
func PrincipalFrom(c *fiber.Ctx) (models.Principal, bool) {
	p, ok := c.Locals(localsPrincipal).(models.Principal)
	return p, ok
}

// ActorFrom returns the authenticated principal, or the system actor when the
// request carries none.
func ActorFrom(c *fiber.Ctx) models.Actor {
	if p, ok := PrincipalFrom(c); ok {
		return p
	}
	return models.SystemActor
}

// RequirePermission rejects requests whose principal lacks perm.
func RequirePermission(perm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := PrincipalFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication is required")
		}
		if !p.HasPermission(perm) {
			return fiber.NewError(fiber.StatusForbidden, "Missing permission '"+perm+"'")
		}
		return c.Next()
	}
}
