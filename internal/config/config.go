package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Constants for default values
const (
	defaultBaseURL        = "https://pixeldrain.com"
	defaultSchedule       = "0 0 * * *" // Every day at midnight UTC
	defaultStaleAfterDays = 30
	defaultMaxDelay       = 5 * time.Second
	defaultHTTPTimeout    = 30 * time.Second

	// MaxWorkers bounds the number of concurrent refreshes against the host.
	MaxWorkers = 10
)

// dotEnvPath is merged into the configuration when present
var dotEnvPath = ".env"

// envMappings binds configuration keys to environment variables
var envMappings = map[string]string{
	"api_key":          "API_KEY",
	"base_url":         "BASE_URL",
	"workers":          "WORKERS",
	"stale_after_days": "STALE_AFTER_DAYS",
	"schedule":         "SCHEDULE",
	"max_delay":        "MAX_DELAY",
	"http_timeout":     "HTTP_TIMEOUT",
	"log_level":        "LOG_LEVEL",
	"log_format":       "LOG_FORMAT",
}

// Config represents the daemon configuration
type Config struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`         // Root of the file host API
	Workers        int           `mapstructure:"workers"`          // Concurrent refresh workers
	StaleAfterDays int           `mapstructure:"stale_after_days"` // Days without a view before a refresh
	Schedule       string        `mapstructure:"schedule"`         // Cron spec of the discovery cycle (UTC)
	MaxDelay       time.Duration `mapstructure:"max_delay"`        // Upper bound of the pause after each refresh
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"` // console or json
}

// LoadConfig loads the configuration from defaults, an optional YAML file,
// an optional .env file and the environment, in increasing precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envMappings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if _, err := os.Stat(dotEnvPath); err == nil {
		v.SetConfigFile(dotEnvPath)
		v.SetConfigType("env")
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", dotEnvPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.LogLevel = NormalizeLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NormalizeLevel lowercases a log level and maps "warning" to zerolog's "warn"
func NormalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return "warn"
	}
	return level
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", defaultBaseURL)
	v.SetDefault("workers", MaxWorkers)
	v.SetDefault("stale_after_days", defaultStaleAfterDays)
	v.SetDefault("schedule", defaultSchedule)
	v.SetDefault("max_delay", defaultMaxDelay)
	v.SetDefault("http_timeout", defaultHTTPTimeout)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// Validate reports every invalid field at once
func (c *Config) Validate() error {
	var errs []error

	if c.APIKey == "" {
		errs = append(errs, errors.New("missing required environment variable: API_KEY"))
	}
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url must not be empty"))
	}
	if c.Workers <= 0 || c.Workers > MaxWorkers {
		errs = append(errs, fmt.Errorf("workers must be between 1 and %d", MaxWorkers))
	}
	if c.StaleAfterDays <= 0 {
		errs = append(errs, errors.New("stale_after_days must be greater than 0"))
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid schedule %q: %w", c.Schedule, err))
	}
	if c.MaxDelay <= 0 {
		errs = append(errs, errors.New("max_delay must be greater than 0"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("http_timeout must be greater than 0"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log_level %q", c.LogLevel))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid log_format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// StaleAfter is the staleness threshold as a duration
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterDays) * 24 * time.Hour
}

// MarshalZerologObject logs the configuration without the API key
func (c *Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("base_url", c.BaseURL).
		Int("workers", c.Workers).
		Int("stale_after_days", c.StaleAfterDays).
		Str("schedule", c.Schedule).
		Dur("max_delay", c.MaxDelay).
		Dur("http_timeout", c.HTTPTimeout).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Bool("api_key_set", c.APIKey != "")
}
