// Package config holds the process-wide settings of the identity service.
// Values are read once at startup and never mutated afterwards.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is parsed from the environment (a .env file is loaded by main first).
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8431"`
	// BaseURL prefixes the links placed in verification and reset emails.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8431"`

	JWTSecret     string        `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"feed-identity"`
	JWTExpiration time.Duration `env:"JWT_EXPIRATION" envDefault:"1h"`

	BcryptCost    int           `env:"BCRYPT_COST" envDefault:"12"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
	MailLinkTTL   time.Duration `env:"MAIL_LINK_TTL" envDefault:"24h"`
	SnowflakeNode int64         `env:"SNOWFLAKE_NODE" envDefault:"1"`
	EnsureSchema  bool          `env:"ENSURE_SCHEMA" envDefault:"true"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTExpiration <= 0 {
		return Config{}, fmt.Errorf("JWT_EXPIRATION must be positive, got %s", cfg.JWTExpiration)
	}
	return cfg, nil
}
