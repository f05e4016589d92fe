// Package selftelemetry wires up the pipeline's own observability: OTel
// metric counters for dispatch outcomes, the log bridge target, and process
// host/runtime metrics. The telemetry pipeline proper (records, sampling,
// fan-out) does not depend on any of this being enabled.
package selftelemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/narender/telemetry-pipeline/common/config"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// shutdownFunc is the signature shared by all component shutdowns.
type shutdownFunc func(context.Context) error

// NewResource describes this process for every OTel signal and for the
// destination adapters' span emitters.
func NewResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentName(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// Init initializes the self-telemetry providers (metrics and logs) and starts
// host/runtime instrumentation. It returns a master shutdown function that
// flushes every component in reverse initialization order. When self
// telemetry is disabled it returns a no-op shutdown.
func Init(ctx context.Context, cfg *config.Config, res *resource.Resource, logger *logrus.Logger) (func(context.Context) error, error) {
	if !cfg.SelfTelemetry.Enabled {
		logger.Info("Self telemetry disabled")
		return func(context.Context) error { return nil }, nil
	}

	logger.WithFields(logrus.Fields{
		"endpoint": cfg.SelfTelemetry.Endpoint,
		"insecure": cfg.SelfTelemetry.Insecure,
	}).Info("Initializing self telemetry")

	var shutdownFuncs []shutdownFunc
	shutdown := func(shutdownCtx context.Context) error {
		var err error
		for i := len(shutdownFuncs) - 1; i >= 0; i-- {
			err = errors.Join(err, shutdownFuncs[i](shutdownCtx))
		}
		shutdownFuncs = nil
		return err
	}

	meterShutdown, err := initMeterProvider(ctx, cfg, res)
	if err != nil {
		return shutdown, fmt.Errorf("meter init failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, meterShutdown)
	logger.Debug("MeterProvider initialized and set globally")

	loggerShutdown, err := initLoggerProvider(ctx, cfg, res)
	if err != nil {
		// Metrics already work; surface the partial failure but keep going
		// with whatever initialized.
		logger.WithError(err).Error("LoggerProvider initialization failed, log bridge unavailable")
	} else {
		shutdownFuncs = append(shutdownFuncs, loggerShutdown)
		logger.Debug("LoggerProvider initialized and set globally")
	}

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		logger.WithError(err).Warn("Failed to start runtime instrumentation")
	}
	if err := host.Start(); err != nil {
		logger.WithError(err).Warn("Failed to start host instrumentation")
	}

	logger.Info("Self telemetry initialized")
	return shutdown, nil
}

func initMeterProvider(ctx context.Context, cfg *config.Config, res *resource.Resource) (shutdownFunc, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.SelfTelemetry.Endpoint),
		otlpmetricgrpc.WithTimeout(5 * time.Second),
	}
	if cfg.SelfTelemetry.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(cfg.SelfTelemetry.MetricInterval),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

func initLoggerProvider(ctx context.Context, cfg *config.Config, res *resource.Resource) (shutdownFunc, error) {
	opts := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(cfg.SelfTelemetry.Endpoint),
	}
	if cfg.SelfTelemetry.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp)
	return lp.Shutdown, nil
}
