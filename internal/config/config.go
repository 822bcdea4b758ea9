package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Application API settings
	BaseURL         string        `mapstructure:"base_url"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	StatusInterval  time.Duration `mapstructure:"status_interval"`
	AccountRedirect string        `mapstructure:"account_redirect"`

	// Checkpoint storage
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"` // 0 keeps OAuth tokens until they are revoked

	// Identity provider
	Google      GoogleConfig `mapstructure:"google"`
	StateSecret string       `mapstructure:"state_secret"`
	UserID      string       `mapstructure:"user_id"`

	// Local settings
	DataDir  string `mapstructure:"data_dir"`
	LogDir   string `mapstructure:"log_dir"`
	LogLevel string `mapstructure:"log_level"`
}

// GoogleConfig carries the OAuth2 client registration used by the account tools.
type GoogleConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

const (
	DefaultBaseURL         = "https://application.rocketmortgage.com"
	DefaultAccountRedirect = "https://dashboard.rocketmortgage.com/?RocketAccountIntent=rmapplication"
	ContactsReadonlyScope  = "https://www.googleapis.com/auth/contacts.readonly"
)

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		BaseURL:         DefaultBaseURL,
		RequestTimeout:  30 * time.Second,
		MaxRetries:      3,
		RetryDelay:      time.Second,
		RateLimit:       5,
		RateBurst:       5,
		StatusInterval:  10 * time.Second,
		AccountRedirect: DefaultAccountRedirect,
		SessionTTL:      72 * time.Hour,
		Google: GoogleConfig{
			RedirectURL: "http://localhost:8765/oauth/callback",
			Scopes:      []string{ContactsReadonlyScope},
		},
		DataDir:  "~/.mortgage-agent",
		LogDir:   "logs",
		LogLevel: "info",
	}
}

// GoogleEnabled reports whether an OAuth2 client has been registered.
func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute URL, got: %q", c.BaseURL)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got: %s", c.RequestTimeout)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got: %d", c.MaxRetries)
	}

	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must be non-negative, got: %s", c.RetryDelay)
	}

	if c.RateLimit <= 0 || c.RateBurst < 1 {
		return fmt.Errorf("rate_limit and rate_burst must be positive, got: %v/%d", c.RateLimit, c.RateBurst)
	}

	if c.StatusInterval < time.Second {
		return fmt.Errorf("status_interval must be at least 1s, got: %s", c.StatusInterval)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive, got: %s", c.SessionTTL)
	}

	if c.TokenTTL < 0 {
		return fmt.Errorf("token_ttl must be non-negative, got: %s", c.TokenTTL)
	}

	if len(c.Google.Scopes) != 1 {
		return fmt.Errorf("exactly one google scope is required, got: %d", len(c.Google.Scopes))
	}

	if c.Google.RedirectURL != "" {
		if _, err := url.Parse(c.Google.RedirectURL); err != nil {
			return fmt.Errorf("invalid google.redirect_url: %w", err)
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}
