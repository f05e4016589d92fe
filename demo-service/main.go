package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/narender/telemetry-pipeline/common/config"
	"github.com/narender/telemetry-pipeline/common/lifecycle"
	"github.com/narender/telemetry-pipeline/common/logx"
	"github.com/narender/telemetry-pipeline/pipeline"
	"github.com/narender/telemetry-pipeline/pipeline/exporter"
	"github.com/narender/telemetry-pipeline/pipeline/selftelemetry"
)

func main() {
	ctx := context.Background()

	// --- Configuration Loading ---
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logging ---
	logger, err := logx.Init(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	cfg.Log()

	// --- Self Telemetry (metrics for the pipeline itself, log bridge) ---
	res, err := selftelemetry.NewResource(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to build telemetry resource")
		os.Exit(1)
	}
	selfShutdown, err := selftelemetry.Init(ctx, cfg, res, logger)
	if err != nil {
		// Telemetry about telemetry is best-effort too.
		logger.WithError(err).Error("Self telemetry initialization failed, continuing without it")
	}
	if cfg.SelfTelemetry.Enabled {
		logx.EnableOTelBridge(logger)
	}

	// --- Pipeline Assembly ---
	logger.Debug("Building destinations")
	destinations := exporter.BuildAll(ctx, cfg.Destinations, res, logger)
	if len(destinations) == 0 {
		logger.Warn("No destinations configured; sampled records will be dropped on dispatch")
	}

	dispatcherOpts := []pipeline.DispatcherOption{
		pipeline.WithDeliveryTimeout(cfg.DispatchTimeout),
		pipeline.WithDispatchLogger(logger),
	}
	if cfg.DispatchMode == config.DispatchModeAsync {
		dispatcherOpts = append(dispatcherOpts, pipeline.WithFireAndForget())
	}
	if cfg.SelfTelemetry.Enabled {
		if metrics, err := selftelemetry.NewDispatchMetrics(); err != nil {
			logger.WithError(err).Warn("Failed to create dispatch metrics")
		} else {
			dispatcherOpts = append(dispatcherOpts, pipeline.WithMetrics(metrics))
		}
	}

	dispatcher := pipeline.NewDispatcher(destinations, dispatcherOpts...)
	sampler := pipeline.NewSampler(cfg.Sampling)
	boundary := pipeline.NewBoundary(sampler, dispatcher, logger)
	logger.Info("Telemetry pipeline assembled")

	// --- Fiber App Setup ---
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(logger),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(recover.New())
	app.Use(TrackRequests(boundary))

	// --- Route Definitions ---
	handler := NewDemoHandler(boundary, logger)
	app.Get("/health", handler.Health)
	app.Get("/status", StatusHandler(dispatcher))
	app.Get("/demo/work", handler.Work)
	app.Get("/demo/fail", handler.Fail)
	logger.Info("All routes registered successfully")

	// --- Server Startup ---
	addr := fmt.Sprintf(":%s", cfg.DemoServicePort)
	go func() {
		logger.WithField("address", addr).Info("Server starting to listen")
		if err := app.Listen(addr); err != nil {
			logger.WithError(err).Error("Server listener failed")
			os.Exit(1)
		}
	}()

	pipelineShutdown := func(shutdownCtx context.Context) error {
		err := dispatcher.Flush(shutdownCtx)
		for _, dest := range dispatcher.Destinations() {
			if s, ok := dest.(exporter.Shutdowner); ok {
				err = errors.Join(err, s.Shutdown(shutdownCtx))
			}
		}
		if selfShutdown != nil {
			err = errors.Join(err, selfShutdown(shutdownCtx))
		}
		return err
	}

	lifecycle.WaitForGracefulShutdown(ctx, cfg, &lifecycle.FiberShutdownAdapter{App: app}, pipelineShutdown)
}
