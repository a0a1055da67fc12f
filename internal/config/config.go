// Package config provides configuration loading and validation for the discovery worker.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the worker configuration that can be loaded from a YAML or JSON file.
// All fields are optional; missing values use defaults, environment variables or CLI flags.
type Config struct {
	DatabaseURL string `yaml:"database_url" json:"database_url"`

	Serp      SerpConfig      `yaml:"serp" json:"serp"`
	CSE       CSEConfig       `yaml:"cse" json:"cse"`
	Provider  ProviderConfig  `yaml:"provider" json:"provider"`
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`
	Worker    WorkerConfig    `yaml:"worker" json:"worker"`
	Log       LogConfig       `yaml:"log" json:"log"`
}

// SerpConfig configures the SerpAPI-style HTTP search provider.
type SerpConfig struct {
	APIKey  string  `yaml:"api_key" json:"api_key"`
	BaseURL string  `yaml:"base_url" json:"base_url" validate:"omitempty,url"`
	RPS     float64 `yaml:"rps" json:"rps" validate:"gte=0"`
}

// CSEConfig configures the Google Custom Search provider.
type CSEConfig struct {
	APIKey   string  `yaml:"api_key" json:"api_key"`
	CX       string  `yaml:"cx" json:"cx"`
	Endpoint string  `yaml:"endpoint" json:"endpoint" validate:"omitempty,url"`
	RPS      float64 `yaml:"rps" json:"rps" validate:"gte=0"`
}

// ProviderConfig controls per-call timeout and transient-error retries.
type ProviderConfig struct {
	Timeout     time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts" validate:"gte=0,lte=20"`
	RetryBase   time.Duration `yaml:"retry_base" json:"retry_base" validate:"gte=0"`
}

// SchedulerConfig controls task rescheduling.
type SchedulerConfig struct {
	BackoffBase           time.Duration `yaml:"backoff_base" json:"backoff_base" validate:"gte=0"`
	MaxAttempts           int           `yaml:"max_attempts" json:"max_attempts" validate:"gte=0"`
	RefreshInterval       time.Duration `yaml:"refresh_interval" json:"refresh_interval" validate:"gte=0"`
	WeeklyRefreshInterval time.Duration `yaml:"weekly_refresh_interval" json:"weekly_refresh_interval" validate:"gte=0"`
	StaleAfter            time.Duration `yaml:"stale_after" json:"stale_after" validate:"gte=0"`
}

// WorkerConfig controls the background worker.
type WorkerConfig struct {
	Concurrency  int           `yaml:"concurrency" json:"concurrency" validate:"gte=0,lte=64"`
	EmptyDelay   time.Duration `yaml:"empty_delay" json:"empty_delay" validate:"gte=0"`
	SkippedDelay time.Duration `yaml:"skipped_delay" json:"skipped_delay" validate:"gte=0"`
	BusyDelay    time.Duration `yaml:"busy_delay" json:"busy_delay" validate:"gte=0"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" validate:"gte=0"`
	MetricsAddr  string        `yaml:"metrics_addr" json:"metrics_addr"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=text json"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Serp: SerpConfig{
			BaseURL: "https://serpapi.com/search.json",
			RPS:     1,
		},
		CSE: CSEConfig{
			RPS: 1,
		},
		Provider: ProviderConfig{
			Timeout:     30 * time.Second,
			MaxAttempts: 4,
			RetryBase:   500 * time.Millisecond,
		},
		Scheduler: SchedulerConfig{
			BackoffBase:           5 * time.Minute,
			MaxAttempts:           8,
			RefreshInterval:       24 * time.Hour,
			WeeklyRefreshInterval: 7 * 24 * time.Hour,
			StaleAfter:            30 * time.Minute,
		},
		Worker: WorkerConfig{
			Concurrency:  2,
			EmptyDelay:   30 * time.Second,
			SkippedDelay: 15 * time.Second,
			BusyDelay:    time.Second,
			PollInterval: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file. JSON files are accepted as well.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// Load resolves the effective configuration: file (optional), then environment, then defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.ApplyEnv()
	merged := cfg.MergeWithDefaults(Default())

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// ApplyEnv overlays values from environment variables on top of the current values.
func (c *Config) ApplyEnv() {
	c.DatabaseURL = getEnvString("DATABASE_URL", c.DatabaseURL)

	c.Serp.APIKey = getEnvString("SERP_API_KEY", c.Serp.APIKey)
	c.Serp.BaseURL = getEnvString("SERP_BASE_URL", c.Serp.BaseURL)
	c.Serp.RPS = getEnvFloat("SERP_RPS", c.Serp.RPS)

	c.CSE.APIKey = getEnvString("CSE_API_KEY", c.CSE.APIKey)
	c.CSE.CX = getEnvString("CSE_CX", c.CSE.CX)
	c.CSE.Endpoint = getEnvString("CSE_ENDPOINT", c.CSE.Endpoint)
	c.CSE.RPS = getEnvFloat("CSE_RPS", c.CSE.RPS)

	c.Provider.Timeout = getEnvDuration("PROVIDER_TIMEOUT", c.Provider.Timeout)
	c.Provider.MaxAttempts = getEnvInt("PROVIDER_MAX_ATTEMPTS", c.Provider.MaxAttempts)
	c.Provider.RetryBase = getEnvDuration("PROVIDER_RETRY_BASE", c.Provider.RetryBase)

	c.Scheduler.BackoffBase = getEnvDuration("TASK_BACKOFF_BASE", c.Scheduler.BackoffBase)
	c.Scheduler.MaxAttempts = getEnvInt("TASK_MAX_ATTEMPTS", c.Scheduler.MaxAttempts)
	c.Scheduler.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", c.Scheduler.RefreshInterval)
	c.Scheduler.WeeklyRefreshInterval = getEnvDuration("WEEKLY_REFRESH_INTERVAL", c.Scheduler.WeeklyRefreshInterval)
	c.Scheduler.StaleAfter = getEnvDuration("TASK_STALE_AFTER", c.Scheduler.StaleAfter)

	c.Worker.Concurrency = getEnvInt("WORKER_CONCURRENCY", c.Worker.Concurrency)
	c.Worker.MetricsAddr = getEnvString("METRICS_ADDR", c.Worker.MetricsAddr)

	c.Log.Level = getEnvString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvString("LOG_FORMAT", c.Log.Format)
}

var validate = validator.New()

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those depend on the command being run;
// see RequireDatabase.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// RequireDatabase returns an error if no database URL is configured.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("config error: 'database_url' is required (set DATABASE_URL)")
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	result.Serp.APIKey = stringOr(result.Serp.APIKey, defaults.Serp.APIKey)
	result.Serp.BaseURL = stringOr(result.Serp.BaseURL, defaults.Serp.BaseURL)
	if result.Serp.RPS == 0 {
		result.Serp.RPS = defaults.Serp.RPS
	}

	result.CSE.APIKey = stringOr(result.CSE.APIKey, defaults.CSE.APIKey)
	result.CSE.CX = stringOr(result.CSE.CX, defaults.CSE.CX)
	result.CSE.Endpoint = stringOr(result.CSE.Endpoint, defaults.CSE.Endpoint)
	if result.CSE.RPS == 0 {
		result.CSE.RPS = defaults.CSE.RPS
	}

	result.Provider.Timeout = durationOr(result.Provider.Timeout, defaults.Provider.Timeout)
	result.Provider.RetryBase = durationOr(result.Provider.RetryBase, defaults.Provider.RetryBase)
	if result.Provider.MaxAttempts == 0 {
		result.Provider.MaxAttempts = defaults.Provider.MaxAttempts
	}

	result.Scheduler.BackoffBase = durationOr(result.Scheduler.BackoffBase, defaults.Scheduler.BackoffBase)
	result.Scheduler.RefreshInterval = durationOr(result.Scheduler.RefreshInterval, defaults.Scheduler.RefreshInterval)
	result.Scheduler.WeeklyRefreshInterval = durationOr(result.Scheduler.WeeklyRefreshInterval, defaults.Scheduler.WeeklyRefreshInterval)
	result.Scheduler.StaleAfter = durationOr(result.Scheduler.StaleAfter, defaults.Scheduler.StaleAfter)
	if result.Scheduler.MaxAttempts == 0 {
		result.Scheduler.MaxAttempts = defaults.Scheduler.MaxAttempts
	}

	if result.Worker.Concurrency == 0 {
		result.Worker.Concurrency = defaults.Worker.Concurrency
	}
	result.Worker.EmptyDelay = durationOr(result.Worker.EmptyDelay, defaults.Worker.EmptyDelay)
	result.Worker.SkippedDelay = durationOr(result.Worker.SkippedDelay, defaults.Worker.SkippedDelay)
	result.Worker.BusyDelay = durationOr(result.Worker.BusyDelay, defaults.Worker.BusyDelay)
	result.Worker.PollInterval = durationOr(result.Worker.PollInterval, defaults.Worker.PollInterval)
	result.Worker.MetricsAddr = stringOr(result.Worker.MetricsAddr, defaults.Worker.MetricsAddr)

	result.Log.Level = stringOr(result.Log.Level, defaults.Log.Level)
	result.Log.Format = stringOr(result.Log.Format, defaults.Log.Format)

	return result
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v == 0 {
		return fallback
	}
	return v
}
