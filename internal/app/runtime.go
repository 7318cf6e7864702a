package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"productapi/internal/audit"
	"productapi/internal/cache"
	"productapi/internal/config"
	"productapi/internal/database"
	"productapi/internal/handlers"
	"productapi/internal/logger"
	"productapi/internal/repositories"
	"productapi/pkg/rabbitmq"
)

type closer struct {
	name  string
	close func() error
}

// Runtime is a fully wired application plus the resources it owns.
type Runtime struct {
	App     *fiber.App
	log     *logger.Logger
	closers []closer
}

// Build opens every configured backend, prepares the store and returns the
// wired application. Redis and RabbitMQ are optional: when unreachable they
// are logged and left out.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Runtime, error) {
	rt := &Runtime{log: log}
	checks := make(map[string]handlers.HealthCheck)
	stamper := audit.New()

	var store *repositories.Store
	switch cfg.Database.Driver {
	case config.DriverMemory:
		store = repositories.NewMemoryBackedStore(repositories.NewMemoryStore(), stamper.Hook())
	default:
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		rt.closers = append(rt.closers, closer{"database", sqlDB.Close})
		checks["database"] = sqlDB.PingContext

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				rt.close()
				return nil, err
			}
		}
		store = repositories.NewStore(
			repositories.NewGORMProductRepository(db),
			repositories.NewGORMUserRepository(db),
			repositories.NewGORMCommitter(db),
			stamper.Hook(),
		)
	}

	if err := database.EnsureSystemUser(ctx, store); err != nil {
		rt.close()
		return nil, err
	}
	if cfg.Database.Seed {
		n, err := database.Seed(ctx, store)
		if err != nil {
			rt.close()
			return nil, err
		}
		if n > 0 {
			log.Info("seeded products", "count", n)
		}
	}

	deps := Dependencies{
		Config:       cfg,
		Logger:       log,
		Store:        store,
		HealthChecks: checks,
		AccessLog:    true,
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, product cache disabled", "addr", cfg.Redis.Addr, "error", err)
			_ = client.Close()
		} else {
			productCache := cache.New(client, cache.DefaultPrefix, cfg.Redis.TTL)
			deps.Cache = productCache
			checks["redis"] = productCache.Ping
			rt.closers = append(rt.closers, closer{"redis", productCache.Close})
		}
	}

	if cfg.RabbitMQ.URL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Exchange: cfg.RabbitMQ.Exchange})
		if err != nil {
			log.Warn("rabbitmq unavailable, product events disabled", "error", err)
		} else {
			deps.Publisher = mqClient
			rt.closers = append(rt.closers, closer{"rabbitmq", mqClient.Close})
		}
	}

	rt.App = New(deps)
	return rt, nil
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// releases the backends in reverse order of acquisition.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error
	if r.App != nil {
		if err := r.App.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}
	if err := r.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Runtime) close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.close(); err != nil {
			r.log.Error("failed to close resource", "resource", c.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
