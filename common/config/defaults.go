package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults registers sensible defaults for every setting so the pipeline
// can start with no config file at all (console destination, sample everything
// except health checks).
func setDefaults(v *viper.Viper) {
	// Service information
	v.SetDefault("service_name", "telemetry-pipeline")
	v.SetDefault("service_version", "dev")
	v.SetDefault("environment", "development")

	// Logging
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	// Sampling
	v.SetDefault("sampling.ratio", 1.0)
	v.SetDefault("sampling.exclude_names", []string{"/health"})

	// Dispatch
	v.SetDefault("dispatch_mode", DispatchModeSync)
	v.SetDefault("dispatch_timeout", 5*time.Second)

	// Self telemetry
	v.SetDefault("self_telemetry.enabled", false)
	v.SetDefault("self_telemetry.endpoint", "localhost:4317")
	v.SetDefault("self_telemetry.insecure", true)
	v.SetDefault("self_telemetry.metric_interval", 15*time.Second)

	// Demo service
	v.SetDefault("demo_service_port", "8080")

	// Shutdown timeouts
	v.SetDefault("shutdown_total_timeout", 30*time.Second)
	v.SetDefault("shutdown_server_timeout", 10*time.Second)
	v.SetDefault("shutdown_flush_timeout", 5*time.Second)
}

// NewDefaultConfig provides a configuration with the same defaults used by
// LoadConfig, without touching files or the environment. Intended for tests
// and for embedding the pipeline as a library.
func NewDefaultConfig() *Config {
	return &Config{
		ServiceName:    "telemetry-pipeline",
		ServiceVersion: "dev",
		Environment:    "development",

		LogLevel:  "info",
		LogFormat: "text",

		Sampling: SamplingConfig{
			Ratio:        1.0,
			ExcludeNames: []string{"/health"},
		},

		DispatchMode:    DispatchModeSync,
		DispatchTimeout: 5 * time.Second,

		SelfTelemetry: SelfTelemetryConfig{
			Enabled:        false,
			Endpoint:       "localhost:4317",
			Insecure:       true,
			MetricInterval: 15 * time.Second,
		},

		DemoServicePort: "8080",

		ShutdownTotalTimeout:  30 * time.Second,
		ShutdownServerTimeout: 10 * time.Second,
		ShutdownFlushTimeout:  5 * time.Second,
	}
}
