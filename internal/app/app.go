// Package app assembles the HTTP application from its collaborators.
package app

import (
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"productapi/internal/config"
	"productapi/internal/handlers"
	"productapi/internal/logger"
	"productapi/internal/middleware"
	"productapi/internal/repositories"
	"productapi/internal/services"
	"productapi/internal/validation"
)

// PermissionReadProduct guards the product read endpoints.
const PermissionReadProduct = "read:product"

// Dependencies are the collaborators New wires together. Cache and Publisher
// are optional.
type Dependencies struct {
	Config       *config.Config
	Logger       *logger.Logger
	Store        *repositories.Store
	Cache        services.ProductCache
	Publisher    services.EventPublisher
	HealthChecks map[string]handlers.HealthCheck
	// AccessLog enables fiber's request logger.
	AccessLog bool
}

// New builds the fiber application with every route registered.
func New(deps Dependencies) *fiber.App {
	cfg := deps.Config
	log := deps.Logger
	v := validation.New()

	opts := []services.ProductServiceOption{services.WithProductLogger(log.With("component", "product_service"))}
	if deps.Cache != nil {
		opts = append(opts, services.WithProductCache(deps.Cache))
	}
	if deps.Publisher != nil {
		opts = append(opts, services.WithEventPublisher(deps.Publisher))
	}
	productService := services.NewProductService(deps.Store, v, opts...)
	userService := services.NewUserService(deps.Store, v)
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.Audience, cfg.Auth.Issuer)

	productHandler := handlers.NewProductHandler(productService, v)
	authHandler := handlers.NewAuthHandler(authService, userService, v)
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)

	app := fiber.New(fiber.Config{
		AppName:      "productapi",
		ErrorHandler: handlers.ErrorHandler(log),
	})

	app.Use(recover.New())
	if deps.AccessLog {
		app.Use(fiberlogger.New())
	}

	app.Get("/health", healthHandler.HandleHealth)

	if cfg.Auth.DevTokens && !cfg.IsProduction() && !cfg.Auth.Disabled {
		authHandler.RegisterDevRoutes(app.Group("/dev"))
	}

	apiV1 := app.Group("/api/v1")
	var readGuards []fiber.Handler
	if cfg.Auth.Disabled {
		log.Warn("authentication is disabled, writes are attributed to the system identity")
	} else {
		apiV1.Use(middleware.AuthRequired(authService, log), middleware.UserSync(userService))
		readGuards = append(readGuards, middleware.RequirePermission(PermissionReadProduct))
	}

	productHandler.RegisterRoutes(apiV1, readGuards...)
	authHandler.RegisterRoutes(apiV1)

	return app
}
