// Package config provides configuration management for tabbench using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BotBlake/tabbench/pkg/bytesize"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultCatalogTimeout         = 30 * time.Second
	defaultCatalogRetryAttempts   = 3
	defaultCatalogRetryDelay      = 2 * time.Second
	defaultCircuitBreakerThresh   = 5
	defaultCircuitBreakerTimeout  = 30 * time.Second
	defaultCircuitBreakerHalfOpen = 1
	defaultRunTimeout             = 120 * time.Second
	defaultStagingConcurrency     = 4
	defaultStagingMaxAssetSize    = 8 * 1024 * 1024 * 1024 // 8GB
)

// Config holds all configuration for the application.
type Config struct {
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Staging    StagingConfig    `mapstructure:"staging"`
	Transcoder TranscoderConfig `mapstructure:"transcoder"`
	Hardware   HardwareConfig   `mapstructure:"hardware"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Report     ReportConfig     `mapstructure:"report"`
}

// CatalogConfig holds HTTP catalog client configuration.
type CatalogConfig struct {
	BaseURL                 string        `mapstructure:"base_url"`
	Token                   string        `mapstructure:"token"`
	Timeout                 time.Duration `mapstructure:"timeout"`
	RetryAttempts           int           `mapstructure:"retry_attempts"`
	RetryDelay              time.Duration `mapstructure:"retry_delay"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
	CircuitBreakerHalfOpen  int           `mapstructure:"circuit_breaker_half_open"`
	SubmitReport            bool          `mapstructure:"submit_report"`
}

// StagingConfig holds archive/asset staging configuration.
type StagingConfig struct {
	CacheDir      string        `mapstructure:"cache_dir"`
	Concurrency   int           `mapstructure:"concurrency"`
	MaxAssetSize  bytesize.Size `mapstructure:"max_asset_size"`
	AllowOverride bool          `mapstructure:"allow_override"`
}

// TranscoderConfig holds transcoder binary and execution configuration.
type TranscoderConfig struct {
	BinaryPath string        `mapstructure:"binary_path"` // empty = use staged binary
	RunTimeout time.Duration `mapstructure:"run_timeout"` // per-run deadline, default 120s
	GPUIndex   int           `mapstructure:"gpu_index"`
}

// HardwareConfig holds hardware detection overrides.
type HardwareConfig struct {
	ForceAccelerators []string `mapstructure:"force_accelerators"` // when non-empty, run with this set instead of the detected one
	SkipDetection     bool     `mapstructure:"skip_detection"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// ReportConfig holds report-writing configuration.
type ReportConfig struct {
	OutputPath string `mapstructure:"output_path"` // empty = ./tabbench-report.json
	Pretty     bool   `mapstructure:"pretty"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with TABBENCH_ and use underscores for nesting.
// Example: TABBENCH_CATALOG_BASE_URL=https://catalog.example.com.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/tabbench")
		v.AddConfigPath("$HOME/.tabbench")
	}

	v.SetEnvPrefix("TABBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Catalog defaults
	v.SetDefault("catalog.base_url", "")
	v.SetDefault("catalog.token", "")
	v.SetDefault("catalog.timeout", defaultCatalogTimeout)
	v.SetDefault("catalog.retry_attempts", defaultCatalogRetryAttempts)
	v.SetDefault("catalog.retry_delay", defaultCatalogRetryDelay)
	v.SetDefault("catalog.circuit_breaker_threshold", defaultCircuitBreakerThresh)
	v.SetDefault("catalog.circuit_breaker_timeout", defaultCircuitBreakerTimeout)
	v.SetDefault("catalog.circuit_breaker_half_open", defaultCircuitBreakerHalfOpen)
	v.SetDefault("catalog.submit_report", false)

	// Staging defaults
	v.SetDefault("staging.cache_dir", "./.tabbench-cache")
	v.SetDefault("staging.concurrency", defaultStagingConcurrency)
	v.SetDefault("staging.max_asset_size", defaultStagingMaxAssetSize)
	v.SetDefault("staging.allow_override", true)

	// Transcoder defaults
	v.SetDefault("transcoder.binary_path", "")
	v.SetDefault("transcoder.run_timeout", defaultRunTimeout)
	v.SetDefault("transcoder.gpu_index", 0)

	// Hardware defaults
	v.SetDefault("hardware.force_accelerators", []string{})
	v.SetDefault("hardware.skip_detection", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Report defaults
	v.SetDefault("report.output_path", "")
	v.SetDefault("report.pretty", false)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Staging.Concurrency < 1 {
		return fmt.Errorf("staging.concurrency must be at least 1")
	}

	if c.Transcoder.RunTimeout <= 0 {
		return fmt.Errorf("transcoder.run_timeout must be positive")
	}

	if c.Catalog.CircuitBreakerThreshold < 1 {
		return fmt.Errorf("catalog.circuit_breaker_threshold must be at least 1")
	}

	return nil
}
