package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const (
	defaultDSN  = "host=localhost user=postgres password=postgres dbname=miyan port=5432 sslmode=disable"
	defaultCORS = "http://localhost:5173"
)

type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	HTTPPort        string        `envconfig:"HTTP_PORT" default:"8080"`
	DatabaseDSN     string        `envconfig:"DATABASE_DSN" default:"host=localhost user=postgres password=postgres dbname=miyan port=5432 sslmode=disable"`
	JWTSecret       string        `envconfig:"JWT_SECRET"`
	TokenTTL        time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	CORSOrigins     string        `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	LockTimeout     time.Duration `envconfig:"LOCK_TIMEOUT" default:"5s"` // stock row lock wait
	BotSharedSecret string        `envconfig:"BOT_SHARED_SECRET"`
	SeedBranches    bool          `envconfig:"SEED_BRANCHES" default:"true"`
}

// Load reads .env (if present) and the process environment.
func Load(log *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug(".env not loaded", zap.Error(err))
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.DatabaseDSN == defaultDSN {
		log.Warn("DATABASE_DSN is the default value, set your own Postgres connection for production")
	}
	if cfg.CORSOrigins == defaultCORS {
		log.Warn("CORS_ALLOWED_ORIGINS is the default value, set your own domain for production")
	}
	if cfg.BotSharedSecret == "" {
		log.Warn("BOT_SHARED_SECRET is empty, telegram token exchange is disabled")
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("config: JWT_SECRET must be at least 32 characters")
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: TOKEN_TTL must be positive")
	}
	if c.LockTimeout <= 0 {
		return errors.New("config: LOCK_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
