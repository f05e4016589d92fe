package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Minimal logger for the config loading phase, before the real logger exists.
var configLogger = logrus.New()

func init() {
	configLogger.SetOutput(os.Stderr)
	configLogger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	configLogger.SetLevel(logrus.InfoLevel)
}

// Dispatch modes supported by the pipeline.
const (
	DispatchModeSync  = "sync"
	DispatchModeAsync = "async"
)

// SamplingConfig controls which finalized records are retained.
type SamplingConfig struct {
	// Ratio is the probability in [0,1] that a non-excluded record is admitted.
	// Out-of-range values are clamped, not rejected.
	Ratio float64 `mapstructure:"ratio"`

	// ExcludeNames lists substrings; a record whose name contains any of them
	// is always dropped (health checks, readiness probes, ...).
	ExcludeNames []string `mapstructure:"exclude_names"`
}

// RetryConfig is a per-destination redelivery policy, applied by the
// destination adapter itself, never by the dispatcher.
type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Backoff  time.Duration `mapstructure:"backoff"`
}

// DestinationConfig describes one configured export target.
type DestinationConfig struct {
	Name     string `mapstructure:"name"`
	Provider string `mapstructure:"provider"`
	Enabled  bool   `mapstructure:"enabled"`

	// Provider-specific settings. Adapters ignore fields they do not need.
	Endpoint         string            `mapstructure:"endpoint"`
	Insecure         bool              `mapstructure:"insecure"`
	Headers          map[string]string `mapstructure:"headers"`
	ConnectionString string            `mapstructure:"connection_string"`

	Retry RetryConfig `mapstructure:"retry"`
}

// SelfTelemetryConfig configures the pipeline's own OTel signals
// (dispatch counters, log bridge, host/runtime metrics).
type SelfTelemetryConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Endpoint       string        `mapstructure:"endpoint"`
	Insecure       bool          `mapstructure:"insecure"`
	MetricInterval time.Duration `mapstructure:"metric_interval"`
}

// Config holds all configuration settings for the pipeline and the demo service.
type Config struct {
	// Service information
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`

	// Logging configuration
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Pipeline configuration
	Sampling        SamplingConfig      `mapstructure:"sampling"`
	Destinations    []DestinationConfig `mapstructure:"destinations"`
	DispatchMode    string              `mapstructure:"dispatch_mode"`
	DispatchTimeout time.Duration       `mapstructure:"dispatch_timeout"`

	SelfTelemetry SelfTelemetryConfig `mapstructure:"self_telemetry"`

	// Demo service settings
	DemoServicePort string `mapstructure:"demo_service_port"`

	// Shutdown timeouts
	ShutdownTotalTimeout  time.Duration `mapstructure:"shutdown_total_timeout"`
	ShutdownServerTimeout time.Duration `mapstructure:"shutdown_server_timeout"`
	ShutdownFlushTimeout  time.Duration `mapstructure:"shutdown_flush_timeout"`
}

// LoadConfig reads configuration from an optional YAML file (CONFIG_FILE env
// var, falling back to ./config.yaml) merged with PIPELINE_* environment
// variables. Functional options are applied last and win over both.
func LoadConfig(opts ...Option) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			configLogger.WithField("path", path).Info("No config file found, using defaults and environment")
		} else {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.normalize()

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			configLogger.WithError(e).Error("Invalid configuration value")
		}
		return nil, fmt.Errorf("configuration validation failed with %d error(s)", len(errs))
	}

	return cfg, nil
}

// normalize repairs values that are recoverable rather than fatal: the
// sampling ratio is clamped into [0,1] and malformed destination entries are
// dropped with a warning.
func (c *Config) normalize() {
	if c.Sampling.Ratio < 0 {
		configLogger.WithField("ratio", c.Sampling.Ratio).Warn("Sampling ratio below 0, clamping to 0")
		c.Sampling.Ratio = 0
	}
	if c.Sampling.Ratio > 1 {
		configLogger.WithField("ratio", c.Sampling.Ratio).Warn("Sampling ratio above 1, clamping to 1")
		c.Sampling.Ratio = 1
	}

	valid := c.Destinations[:0]
	for _, d := range c.Destinations {
		if d.Name == "" || d.Provider == "" {
			configLogger.WithFields(logrus.Fields{
				"name":     d.Name,
				"provider": d.Provider,
			}).Warn("Skipping malformed destination entry (name and provider are required)")
			continue
		}
		valid = append(valid, d)
	}
	c.Destinations = valid

	if c.DispatchMode != DispatchModeSync && c.DispatchMode != DispatchModeAsync {
		configLogger.WithField("dispatch_mode", c.DispatchMode).Warn("Unknown dispatch mode, falling back to sync")
		c.DispatchMode = DispatchModeSync
	}
}

// Validate validates the configuration.
func (c *Config) Validate() []error {
	validator := NewValidator()

	validator.RequireNonEmpty("ServiceName", c.ServiceName)
	validator.RequireNonEmpty("ServiceVersion", c.ServiceVersion)
	validator.RequireNonEmpty("LogLevel", c.LogLevel)
	validator.RequireNonEmpty("LogFormat", c.LogFormat)

	validator.RequireOneOf("LogLevel", c.LogLevel, []string{"debug", "info", "warn", "error", "fatal", "panic"})
	validator.RequireOneOf("LogFormat", c.LogFormat, []string{"text", "json"})
	validator.RequireOneOf("DispatchMode", c.DispatchMode, []string{DispatchModeSync, DispatchModeAsync})

	RequireInRange(validator, "Sampling.Ratio", c.Sampling.Ratio, 0.0, 1.0)

	if c.DispatchTimeout <= 0 {
		validator.AddError("DispatchTimeout", "must be positive")
	}

	if c.DemoServicePort != "" {
		if port, err := strconv.Atoi(c.DemoServicePort); err == nil {
			RequireInRange(validator, "DemoServicePort", port, 1, 65535)
		} else {
			validator.AddError("DemoServicePort", "must be a valid integer")
		}
	}

	return validator.Errors()
}

// Log logs the current configuration.
func (c *Config) Log() {
	logrus.WithFields(logrus.Fields{
		"service_name":      c.ServiceName,
		"service_version":   c.ServiceVersion,
		"environment":       c.Environment,
		"log_level":         c.LogLevel,
		"log_format":        c.LogFormat,
		"sampling_ratio":    c.Sampling.Ratio,
		"exclude_names":     c.Sampling.ExcludeNames,
		"destination_count": len(c.Destinations),
		"dispatch_mode":     c.DispatchMode,
		"dispatch_timeout":  c.DispatchTimeout,
		"port":              c.DemoServicePort,
	}).Info("Configuration loaded")
}
