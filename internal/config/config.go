// Package config loads tracker configuration from environment variables,
// .env files, and an optional config file, in that order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/fundatrack/fundatrack/pkg/errors"
	"github.com/fundatrack/fundatrack/pkg/sources"
)

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Defaults applied when neither environment nor config file set a value.
const (
	DefaultStoreBackend = StoreSQLite
	DefaultSQLitePath   = "fundatrack.db"
	DefaultMinInterval  = 2 * time.Second
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultUserAgent    = "fundatrack/1.0"
)

// Config holds the application configuration loaded from all sources.
type Config struct {
	// Store selection.
	StoreBackend string
	SQLitePath   string
	PostgresDSN  string

	// Extraction behaviour.
	MinInterval      time.Duration
	MaxRetryAttempts int
	BackoffBase      time.Duration
	BackoffCap       time.Duration
	FallbackEnabled  bool
	UserAgent        string
	HTTPTimeout      time.Duration

	// Endpoint overrides, normally left empty.
	APIBaseURL  string
	HTMLBaseURL string

	// Logging configuration.
	LogLevel  string
	LogFormat string
}

// Load loads configuration in order of precedence: environment variables,
// .env files, config file, defaults. The returned config is validated.
func Load(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix("FUNDATRACK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("store", DefaultStoreBackend)
	v.SetDefault("sqlite_path", DefaultSQLitePath)
	v.SetDefault("min_interval", DefaultMinInterval)
	v.SetDefault("max_retry_attempts", sources.DefaultMaxAttempts)
	v.SetDefault("retry_backoff_base", sources.DefaultBackoffBase)
	v.SetDefault("retry_backoff_cap", sources.DefaultBackoffCap)
	v.SetDefault("fallback_enabled", true)
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("http_timeout", DefaultHTTPTimeout)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "auto")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "reading config file", err)
		}
	} else {
		v.SetConfigType("yaml")
		v.SetConfigName(".fundatrack")
		v.AddConfigPath(".")
		_ = v.ReadInConfig()
	}

	cfg := &Config{
		StoreBackend:     v.GetString("store"),
		SQLitePath:       v.GetString("sqlite_path"),
		PostgresDSN:      v.GetString("postgres_dsn"),
		MinInterval:      v.GetDuration("min_interval"),
		MaxRetryAttempts: v.GetInt("max_retry_attempts"),
		BackoffBase:      v.GetDuration("retry_backoff_base"),
		BackoffCap:       v.GetDuration("retry_backoff_cap"),
		FallbackEnabled:  v.GetBool("fallback_enabled"),
		UserAgent:        v.GetString("user_agent"),
		HTTPTimeout:      v.GetDuration("http_timeout"),
		APIBaseURL:       v.GetString("api_base_url"),
		HTMLBaseURL:      v.GetString("html_base_url"),
		LogLevel:         v.GetString("log_level"),
		LogFormat:        v.GetString("log_format"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration before any run starts. Invalid rate or
// retry parameters fail fast and are never retried.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.NewConfigError("config", "sqlite_path must not be empty", nil)
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return errors.NewConfigError("config", "postgres_dsn is required for the postgres store", nil)
		}
	default:
		return errors.NewConfigError("config", "store must be sqlite or postgres, got "+c.StoreBackend, nil)
	}

	if c.MinInterval < 0 {
		return errors.NewConfigError("config", "min_interval must not be negative", nil)
	}
	return c.RetryPolicy().Validate()
}

// RetryPolicy builds the retry policy both source adapters run under.
func (c *Config) RetryPolicy() sources.RetryPolicy {
	return sources.RetryPolicy{
		MaxAttempts: c.MaxRetryAttempts,
		BackoffBase: c.BackoffBase,
		BackoffCap:  c.BackoffCap,
	}
}

// APIConfig builds the primary source configuration.
func (c *Config) APIConfig() sources.APIConfig {
	return sources.APIConfig{
		BaseURL:     c.APIBaseURL,
		MinInterval: c.MinInterval,
		UserAgent:   c.UserAgent,
		Timeout:     c.HTTPTimeout,
	}
}

// HTMLConfig builds the fallback source configuration.
func (c *Config) HTMLConfig() sources.HTMLConfig {
	return sources.HTMLConfig{
		BaseURL:     c.HTMLBaseURL,
		MinInterval: c.MinInterval,
		UserAgent:   c.UserAgent,
		Timeout:     c.HTTPTimeout,
	}
}

// loadEnvFiles loads environment variables from .env files. Variables
// already set in the environment win.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}
