package handlers

import (
	"github.com/gofiber/fiber/v2"

	"productapi/internal/middleware"
	"productapi/internal/models"
	"productapi/internal/services"
	"productapi/internal/validation"
)

// AuthHandler handles HTTP requests about the calling identity.
type AuthHandler struct {
	authService *services.AuthService
	userService *services.UserService
	validate    *validation.Validator
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, userService *services.UserService, v *validation.Validator) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		validate:    v,
	}
}

// RegisterRoutes registers the identity routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/me", h.HandleMe)
}

// RegisterDevRoutes registers the token minting endpoint. It signs whatever
// claims it is given, so it is only mounted when explicitly enabled outside
// production; real tokens come from the identity provider.
func (h *AuthHandler) RegisterDevRoutes(router fiber.Router) {
	router.Post("/token", h.HandleIssueToken)
}

// HandleMe returns the stored user behind the bearer token.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "Authentication is required")
	}
	user, err := h.userService.GetUser(c.UserContext(), principal.Subject)
	if err != nil {
		return err
	}
	return c.JSON(models.NewUserResponse(user))
}

// TokenRequest represents the request body for minting a development token.
type TokenRequest struct {
	Subject     string   `json:"sub" validate:"required,max=128"`
	Email       string   `json:"email" validate:"omitempty,email,max=256"`
	Name        string   `json:"name" validate:"max=256"`
	Permissions []string `json:"permissions"`
}

// HandleIssueToken signs a token for the requested identity.
func (h *AuthHandler) HandleIssueToken(c *fiber.Ctx) error {
	var req TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	token, err := h.authService.IssueToken(models.Principal{
		Subject:     req.Subject,
		Email:       req.Email,
		Name:        req.Name,
		Permissions: req.Permissions,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"token":      token,
		"token_type": "Bearer",
	})
}
