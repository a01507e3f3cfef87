// Package config loads service configuration from environment variables.
// Each concern has its own constructor so a missing optional integration never
// prevents the server from starting.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string
}

// NewDatabaseConfig reads DATABASE_URL (required).
func NewDatabaseConfig() (*DatabaseConfig, error) {
	cfg := &DatabaseConfig{URL: getEnvString("DATABASE_URL", "")}
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	return cfg, nil
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int
	// ConnectedRedirectURL is where the browser lands after the LinkedIn
	// callback succeeds. Empty means the callback answers with JSON.
	ConnectedRedirectURL string
	// CookieSecure marks the OAuth state cookie Secure. Disable only for
	// plain-http local development.
	CookieSecure bool
}

// NewServerConfig reads PORT (default: 8080), FRONTEND_CONNECTED_URL and
// COOKIE_SECURE (default: true).
func NewServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port:                 getEnvInt("PORT", 8080),
		ConnectedRedirectURL: getEnvString("FRONTEND_CONNECTED_URL", ""),
		CookieSecure:         getEnvBool("COOKIE_SECURE", true),
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535, got: %d", cfg.Port)
	}
	if cfg.ConnectedRedirectURL != "" {
		if u, err := url.Parse(cfg.ConnectedRedirectURL); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("FRONTEND_CONNECTED_URL must be an absolute URL: %q", cfg.ConnectedRedirectURL)
		}
	}
	return cfg, nil
}

// LinkedIn OAuth scopes: sign-in profile, email, and posting on the member's behalf.
var LinkedInScopes = []string{"openid", "profile", "email", "w_member_social"}

// LinkedInConfig holds the OAuth client registration for LinkedIn.
// Values may be missing; callers check Validate before each operation.
type LinkedInConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	// TokenKey encrypts stored access tokens. Empty stores them as issued.
	TokenKey string
}

// NewLinkedInConfig reads LINKEDIN_CLIENT_ID, LINKEDIN_CLIENT_SECRET and
// LINKEDIN_REDIRECT_URI, plus the optional LINKEDIN_TOKEN_KEY. It never
// fails; see Validate.
func NewLinkedInConfig() *LinkedInConfig {
	return &LinkedInConfig{
		ClientID:     getEnvString("LINKEDIN_CLIENT_ID", ""),
		ClientSecret: getEnvString("LINKEDIN_CLIENT_SECRET", ""),
		RedirectURI:  getEnvString("LINKEDIN_REDIRECT_URI", ""),
		Scopes:       LinkedInScopes,
		TokenKey:     getEnvString("LINKEDIN_TOKEN_KEY", ""),
	}
}

// Missing returns the names of unset required settings.
func (c *LinkedInConfig) Missing() []string {
	if c == nil {
		return []string{"LINKEDIN_CLIENT_ID", "LINKEDIN_CLIENT_SECRET", "LINKEDIN_REDIRECT_URI"}
	}
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "LINKEDIN_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "LINKEDIN_CLIENT_SECRET")
	}
	if c.RedirectURI == "" {
		missing = append(missing, "LINKEDIN_REDIRECT_URI")
	}
	return missing
}

// Validate checks that the client is registered and the redirect target is
// an https URL (plain http is accepted for localhost only).
func (c *LinkedInConfig) Validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	u, err := url.Parse(c.RedirectURI)
	if err != nil || u.Host == "" {
		return fmt.Errorf("LINKEDIN_REDIRECT_URI is not a valid URL: %q", c.RedirectURI)
	}
	if u.Scheme != "https" && !(u.Scheme == "http" && u.Hostname() == "localhost") {
		return fmt.Errorf("LINKEDIN_REDIRECT_URI must use https, got %q", u.Scheme)
	}
	return nil
}

// WebhookConfig holds the application intake egress targets. Both are optional.
type WebhookConfig struct {
	URL       string
	AMQPURL   string
	AMQPQueue string
	Timeout   time.Duration
}

// NewWebhookConfig reads WEBHOOK_URL, WEBHOOK_AMQP_URL, WEBHOOK_AMQP_QUEUE and WEBHOOK_TIMEOUT.
func NewWebhookConfig() *WebhookConfig {
	return &WebhookConfig{
		URL:       getEnvString("WEBHOOK_URL", ""),
		AMQPURL:   getEnvString("WEBHOOK_AMQP_URL", ""),
		AMQPQueue: getEnvString("WEBHOOK_AMQP_QUEUE", "application_intake"),
		Timeout:   getEnvDuration("WEBHOOK_TIMEOUT", 5*time.Second),
	}
}

// ContentConfig holds post generation settings.
type ContentConfig struct {
	GeminiAPIKey     string
	MaxRegenerations int
}

// NewContentConfig reads GEMINI_API_KEY and CONTENT_MAX_REGENERATIONS (default: 3).
func NewContentConfig() (*ContentConfig, error) {
	cfg := &ContentConfig{
		GeminiAPIKey:     getEnvString("GEMINI_API_KEY", ""),
		MaxRegenerations: getEnvInt("CONTENT_MAX_REGENERATIONS", 3),
	}
	if cfg.MaxRegenerations < 0 {
		return nil, fmt.Errorf("CONTENT_MAX_REGENERATIONS must be non-negative, got: %d", cfg.MaxRegenerations)
	}
	return cfg, nil
}

// LogConfig selects the logger encoding and level.
type LogConfig struct {
	Level  string
	Format string
}

// NewLogConfig reads LOG_LEVEL (default: info) and LOG_FORMAT (json or console, default: json).
func NewLogConfig() *LogConfig {
	return &LogConfig{
		Level:  strings.ToLower(getEnvString("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnvString("LOG_FORMAT", "json")),
	}
}

// getEnvString gets an environment variable as a string with a default value.
func getEnvString(key string, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
