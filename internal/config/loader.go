package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v    *viper.Viper
	file string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile makes Load read path instead of searching for mortgage-agent.yaml.
func (l *Loader) SetConfigFile(path string) {
	l.file = path
}

// Load reads defaults, then an optional mortgage-agent.yaml, then the environment.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()
	l.setupEnvVars()

	if l.file != "" {
		l.v.SetConfigFile(l.file)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", l.file, err)
		}
		return l.build()
	}

	l.setupConfigPaths()
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.build()
}

// LoadWithPath loads configuration from a specific file path.
func LoadWithPath(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// Set overrides a single key, used for command-line flags.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

func (l *Loader) build() (*Config, error) {
	cfg := NewConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.DataDir = expandPath(cfg.DataDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (l *Loader) setDefaults() {
	d := NewConfig()
	l.v.SetDefault("base_url", d.BaseURL)
	l.v.SetDefault("request_timeout", d.RequestTimeout)
	l.v.SetDefault("max_retries", d.MaxRetries)
	l.v.SetDefault("retry_delay", d.RetryDelay)
	l.v.SetDefault("rate_limit", d.RateLimit)
	l.v.SetDefault("rate_burst", d.RateBurst)
	l.v.SetDefault("status_interval", d.StatusInterval)
	l.v.SetDefault("account_redirect", d.AccountRedirect)
	l.v.SetDefault("redis_addr", "")
	l.v.SetDefault("redis_password", "")
	l.v.SetDefault("redis_db", 0)
	l.v.SetDefault("session_ttl", d.SessionTTL)
	l.v.SetDefault("token_ttl", d.TokenTTL)
	l.v.SetDefault("google.client_id", "")
	l.v.SetDefault("google.client_secret", "")
	l.v.SetDefault("google.redirect_url", d.Google.RedirectURL)
	l.v.SetDefault("google.scopes", d.Google.Scopes)
	l.v.SetDefault("state_secret", "")
	l.v.SetDefault("user_id", "")
	l.v.SetDefault("data_dir", d.DataDir)
	l.v.SetDefault("log_dir", d.LogDir)
	l.v.SetDefault("log_level", d.LogLevel)
}

func (l *Loader) setupConfigPaths() {
	l.v.SetConfigName("mortgage-agent")
	l.v.SetConfigType("yaml")

	l.v.AddConfigPath("/etc/mortgage-agent")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}
	l.v.AddConfigPath(".")
}

func (l *Loader) setupEnvVars() {
	l.v.SetEnvPrefix("MORTGAGE_AGENT")
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// Conventional names used by .env files
	_ = l.v.BindEnv("google.client_id", "MORTGAGE_AGENT_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID")
	_ = l.v.BindEnv("google.client_secret", "MORTGAGE_AGENT_GOOGLE_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET")
	_ = l.v.BindEnv("google.redirect_url", "MORTGAGE_AGENT_GOOGLE_REDIRECT_URL", "GOOGLE_REDIRECT_URL")
	_ = l.v.BindEnv("redis_addr", "MORTGAGE_AGENT_REDIS_ADDR", "REDIS_ADDR")
}

// expandPath expands ~ to home directory in file paths.
func expandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if len(path) == 1 {
		return home
	}

	return filepath.Join(home, path[1:])
}
