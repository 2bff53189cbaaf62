package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers
const (
	DriverSupabase = "supabase"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Supabase  SupabaseConfig  `mapstructure:"supabase"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
	// CORSAllowedOrigins restricts cross-origin callers; empty allows all
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// SupabaseConfig holds Supabase-specific configuration
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Backend string `mapstructure:"backend"`
}

// AnalyticsConfig tunes the engine defaults
type AnalyticsConfig struct {
	WindowDays    int                `mapstructure:"window_days"`
	MinConfidence float64            `mapstructure:"min_confidence"`
	Forecast      ForecastConfidence `mapstructure:"forecast"`
}

// ForecastConfidence is the per-day forecast confidence schedule
type ForecastConfidence struct {
	Start float64 `mapstructure:"start"`
	Decay float64 `mapstructure:"decay"`
	Floor float64 `mapstructure:"floor"`
}

// CacheConfig controls the verified-token cache
type CacheConfig struct {
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// RateLimitConfig controls the per-user request limiter
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// Load reads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	// a missing .env is fine; real environment variables win
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Also bind to non-prefixed environment variables used by the Supabase tooling
	v.BindEnv("server.port", "PULSE_SERVER_PORT", "PORT")
	v.BindEnv("supabase.url", "PULSE_SUPABASE_URL", "SUPABASE_URL")
	v.BindEnv("supabase.service_key", "PULSE_SUPABASE_SERVICE_KEY", "SUPABASE_SERVICE_KEY")

	// Read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("storage.driver", DriverSupabase)
	v.SetDefault("storage.sqlite_path", "data/pulse.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.backend", "slog")
	v.SetDefault("analytics.window_days", 90)
	v.SetDefault("analytics.min_confidence", 40)
	v.SetDefault("analytics.forecast.start", 90)
	v.SetDefault("analytics.forecast.decay", 2)
	v.SetDefault("analytics.forecast.floor", 40)
	v.SetDefault("cache.token_ttl", "5m")
	v.SetDefault("rate_limit.requests_per_minute", 120)
	v.SetDefault("rate_limit.burst", 20)
}

// Validate checks that all required configuration values are present
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSupabase:
		if c.Supabase.URL == "" {
			return fmt.Errorf("SUPABASE_URL is required")
		}
		if c.Supabase.ServiceKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Analytics.WindowDays < 1 {
		return fmt.Errorf("analytics.window_days must be positive")
	}
	if c.Analytics.MinConfidence < 0 || c.Analytics.MinConfidence > 100 {
		return fmt.Errorf("analytics.min_confidence must be within [0, 100]")
	}
	f := c.Analytics.Forecast
	if f.Floor < 0 || f.Start < f.Floor || f.Start > 100 || f.Decay < 0 {
		return fmt.Errorf("analytics.forecast requires 0 <= floor <= start <= 100 and decay >= 0")
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	return nil
}
