// Package exporter provides the destination adapters the dispatcher fans
// records out to, behind a single delivery capability. Providers are selected
// at configuration-load time through a registry; unknown providers fail the
// entry, malformed entries are skipped with a warning, and neither is fatal
// to the destinations that did construct.
package exporter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/narender/telemetry-pipeline/common/config"
	"github.com/narender/telemetry-pipeline/pipeline"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Providers supported by the registry.
const (
	ProviderConsole      = "console"
	ProviderOTLP         = "otlp"
	ProviderAzureMonitor = "azure_monitor"
)

// Factory constructs a destination from its configuration entry.
type Factory func(ctx context.Context, cfg config.DestinationConfig, res *resource.Resource, logger *logrus.Logger) (pipeline.Destination, error)

// registry maps provider name to its factory. Future providers (jaeger,
// zipkin, datadog, ...) register here.
var registry = map[string]Factory{
	ProviderConsole:      newConsoleDestination,
	ProviderOTLP:         newOTLPDestination,
	ProviderAzureMonitor: newAzureMonitorDestination,
}

// Providers returns the sorted list of known provider names.
func Providers() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds a single destination from its config entry, applying the
// per-destination retry policy when one is configured.
func New(ctx context.Context, cfg config.DestinationConfig, res *resource.Resource, logger *logrus.Logger) (pipeline.Destination, error) {
	factory, ok := registry[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown telemetry provider %q (available: %s)", cfg.Provider, strings.Join(Providers(), ", "))
	}

	dest, err := factory(ctx, cfg, res, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s destination %q: %w", cfg.Provider, cfg.Name, err)
	}

	if cfg.Retry.Attempts > 1 {
		dest = withRetry(dest, cfg.Retry, logger)
	}
	return dest, nil
}

// BuildAll constructs every configured destination. An entry that fails to
// construct is logged and skipped; the remaining destinations still run.
func BuildAll(ctx context.Context, cfgs []config.DestinationConfig, res *resource.Resource, logger *logrus.Logger) []pipeline.Destination {
	destinations := make([]pipeline.Destination, 0, len(cfgs))
	for _, cfg := range cfgs {
		dest, err := New(ctx, cfg, res, logger)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"name":     cfg.Name,
				"provider": cfg.Provider,
			}).WithError(err).Warn("Skipping destination that failed to initialize")
			continue
		}
		logger.WithFields(logrus.Fields{
			"name":     cfg.Name,
			"provider": cfg.Provider,
			"enabled":  cfg.Enabled,
		}).Info("Destination configured")
		destinations = append(destinations, dest)
	}
	return destinations
}

// HealthReporter is implemented by destinations that can report delivery
// health, surfaced by the demo service's status endpoint.
type HealthReporter interface {
	Healthy() bool
}

// Shutdowner is implemented by destinations holding connections or buffers
// that need flushing at process exit.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// destination is the common adapter shape shared by all providers: a name,
// an enabled flag fixed at configuration time, and a span emitter bound to
// the provider's exporter.
type destination struct {
	name     string
	provider string
	enabled  bool
	emitter  *spanEmitter
	logger   *logrus.Entry

	// unhealthy holds whether the most recent delivery failed.
	unhealthy atomic.Bool
}

func newDestination(cfg config.DestinationConfig, emitter *spanEmitter, logger *logrus.Logger) *destination {
	return &destination{
		name:     cfg.Name,
		provider: cfg.Provider,
		enabled:  cfg.Enabled,
		emitter:  emitter,
		logger: logger.WithFields(logrus.Fields{
			"destination": cfg.Name,
			"provider":    cfg.Provider,
		}),
	}
}

// Name identifies the destination in reports and logs.
func (d *destination) Name() string { return d.name }

// Enabled reports whether the destination receives records.
func (d *destination) Enabled() bool { return d.enabled }

// Deliver exports one complete record, or nothing.
func (d *destination) Deliver(ctx context.Context, rec *pipeline.Record) error {
	err := d.emitter.emit(ctx, rec)
	d.unhealthy.Store(err != nil)
	if err != nil {
		return fmt.Errorf("%s delivery failed: %w", d.provider, err)
	}
	if d.logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		d.logger.WithField("record_id", rec.ID).Debug("Record delivered")
	}
	return nil
}

// Healthy reports whether the most recent delivery attempt succeeded.
// A destination that has not delivered anything yet counts as healthy.
func (d *destination) Healthy() bool { return !d.unhealthy.Load() }

// Shutdown flushes and closes the underlying exporter.
func (d *destination) Shutdown(ctx context.Context) error {
	d.logger.Debug("Shutting down destination")
	return d.emitter.shutdown(ctx)
}
