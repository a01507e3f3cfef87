package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// JWTConfig holds configuration for signing API bearer tokens and the
// short-lived OAuth state cookie.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
	Issuer          string
	StateTTL        time.Duration
}

// NewJWTConfig creates a new JWT configuration from environment variables.
// It reads JWT_SECRET (required), JWT_EXPIRATION_HOURS (default: 24),
// JWT_ISSUER (default: recruit-engine) and OAUTH_STATE_TTL (default: 10m).
func NewJWTConfig() (*JWTConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}

	expirationStr := os.Getenv("JWT_EXPIRATION_HOURS")
	if expirationStr == "" {
		expirationStr = "24"
	}

	expirationHours, err := strconv.Atoi(expirationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %v", err)
	}

	cfg := &JWTConfig{
		Secret:          secret,
		ExpirationHours: expirationHours,
		Issuer:          getEnvString("JWT_ISSUER", "recruit-engine"),
		StateTTL:        getEnvDuration("OAUTH_STATE_TTL", 10*time.Minute),
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if len(c.Secret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	if c.StateTTL < time.Minute || c.StateTTL > time.Hour {
		return fmt.Errorf("OAUTH_STATE_TTL must be between 1m and 1h, got: %s", c.StateTTL)
	}
	return nil
}
