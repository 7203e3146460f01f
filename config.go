package authflow

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime options, read from AUTHFLOW_* environment variables.
type Config struct {
	Address         string        `env:"ADDRESS" envDefault:":8080"`
	DatabaseDSN     string        `env:"DATABASE_DSN" envDefault:"file:authflow.db?cache=shared"`
	RedisURL        string        `env:"REDIS_URL"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	SignupEndpoint  string        `env:"SIGNUP_ENDPOINT" envDefault:"http://localhost:8080/api/auth/sign-up"`
	SignupTimeout   time.Duration `env:"SIGNUP_TIMEOUT" envDefault:"10s"`
	AuditQueueSize  int           `env:"AUDIT_QUEUE_SIZE" envDefault:"256"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE" envDefault:"true"`
	SigningKey      string        `env:"SIGNING_KEY"`
	TokenIssuer     string        `env:"TOKEN_ISSUER" envDefault:"authflow"`
	TokenExpiration time.Duration `env:"TOKEN_EXPIRATION" envDefault:"24h"`
	Auth0           Auth0Config   `envPrefix:"AUTH0_"`
}

// Auth0Config holds the management API credentials used by the privileged
// account step. These never leave the server.
type Auth0Config struct {
	Domain       string `env:"DOMAIN"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Connection   string `env:"CONNECTION" envDefault:"Username-Password-Authentication"`
}

// Enabled reports whether the Auth0 admin client should be used.
func (c Auth0Config) Enabled() bool {
	return c.Domain != "" && c.ClientID != "" && c.ClientSecret != ""
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "AUTHFLOW_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("AUTHFLOW_DATABASE_DSN must be set")
	}
	if c.SignupTimeout < 0 {
		return fmt.Errorf("AUTHFLOW_SIGNUP_TIMEOUT must not be negative")
	}
	if c.AuditQueueSize <= 0 {
		return fmt.Errorf("AUTHFLOW_AUDIT_QUEUE_SIZE must be positive")
	}
	return nil
}
