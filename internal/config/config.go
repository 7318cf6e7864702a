// Package config loads runtime settings from defaults, an optional config
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	AppPort         string
	AppEnv          string
	LogMode         string
	ShutdownTimeout time.Duration

	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
}

type DatabaseConfig struct {
	Driver      string
	DSN         string
	LogLevel    string
	AutoMigrate bool
	Seed        bool
}

type AuthConfig struct {
	JWTSecret string
	Audience  string
	Issuer    string
	// Disabled skips bearer validation. Writes are then stamped with the
	// system identity. Never enable outside development.
	Disabled bool
	// DevTokens exposes POST /dev/token, which signs a token for any subject
	// without credentials. Rejected in production.
	DevTokens bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_DSN", "file:productapi.db?_foreign_keys=on")
	v.SetDefault("DB_LOG_LEVEL", "warn")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("SEED_DATABASE", true)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("AUTH_DISABLED", false)
	v.SetDefault("DEV_TOKENS_ENABLED", false)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "5m")

	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "product.events")
}

// Load reads configuration from the environment, and from CONFIG_FILE when set.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}
	return FromViper(v)
}

// FromViper builds and validates a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:         v.GetString("APP_PORT"),
		AppEnv:          v.GetString("APP_ENV"),
		LogMode:         v.GetString("LOG_MODE"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		Database: DatabaseConfig{
			Driver:      strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:         v.GetString("DATABASE_DSN"),
			LogLevel:    v.GetString("DB_LOG_LEVEL"),
			AutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
			Seed:        v.GetBool("SEED_DATABASE"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
			Audience:  v.GetString("JWT_AUDIENCE"),
			Issuer:    v.GetString("JWT_ISSUER"),
			Disabled:  v.GetBool("AUTH_DISABLED"),
			DevTokens: v.GetBool("DEV_TOKENS_ENABLED"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("CACHE_TTL"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("RABBITMQ_URL"),
			Exchange: v.GetString("RABBITMQ_EXCHANGE"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("DATABASE_DSN is required for driver %q", c.Database.Driver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver))
	}
	if !c.Auth.Disabled && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required unless AUTH_DISABLED is set"))
	}
	if c.Auth.Disabled && c.IsProduction() {
		errs = append(errs, errors.New("AUTH_DISABLED is not allowed in production"))
	}
	if c.Auth.DevTokens && c.IsProduction() {
		errs = append(errs, errors.New("DEV_TOKENS_ENABLED is not allowed in production"))
	}
	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.AppEnv)
	return env == "prod" || env == "production"
}
