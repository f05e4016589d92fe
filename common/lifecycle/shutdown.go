package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/narender/telemetry-pipeline/common/config"
	"github.com/sirupsen/logrus"
)

// WaitForGracefulShutdown blocks until a SIGINT or SIGTERM signal is received,
// then coordinates the graceful shutdown of the provided server and the
// telemetry pipeline. The server stops first so no new units of work start,
// then the pipeline flushes whatever is still in flight.
func WaitForGracefulShutdown(ctx context.Context, cfg *config.Config, server Shutdowner, pipelineShutdown func(context.Context) error) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger := logrus.StandardLogger()
	logger.WithField("signal", sig.String()).Info("Received shutdown signal, initiating graceful shutdown...")

	// Shutdown runs on a fresh context, independent of the server's context.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTotalTimeout)
	defer cancel()

	var shutdownErrs error
	shutdownTasks := []struct {
		name     string
		timeout  time.Duration
		shutdown func(context.Context) error
	}{
		{"server", cfg.ShutdownServerTimeout, serverShutdown(server)},
		{"pipeline", cfg.ShutdownFlushTimeout, pipelineShutdown},
	}

	for _, task := range shutdownTasks {
		if task.shutdown == nil {
			logger.Debugf("Skipping shutdown for %s (nil function)", task.name)
			continue
		}

		taskCtx, taskCancel := context.WithTimeout(shutdownCtx, task.timeout)

		logger.Infof("Attempting to shut down %s (timeout: %s)...", task.name, task.timeout)
		if err := task.shutdown(taskCtx); err != nil {
			logger.WithError(err).Errorf("Error during %s shutdown", task.name)
			shutdownErrs = errors.Join(shutdownErrs, fmt.Errorf("%s shutdown error: %w", task.name, err))
			if errors.Is(err, context.DeadlineExceeded) {
				logger.Warnf("%s shutdown timed out after %s", task.name, task.timeout)
			}
		} else {
			logger.Infof("%s shutdown complete", task.name)
		}
		taskCancel()

		if shutdownCtx.Err() != nil {
			logger.Warnf("Overall shutdown timeout (%s) exceeded during %s shutdown. Aborting further steps.", cfg.ShutdownTotalTimeout, task.name)
			if !errors.Is(shutdownErrs, context.DeadlineExceeded) {
				shutdownErrs = errors.Join(shutdownErrs, fmt.Errorf("overall shutdown timeout exceeded: %w", shutdownCtx.Err()))
			}
			break
		}
	}

	if shutdownErrs != nil {
		logger.WithError(shutdownErrs).Error("Application shutdown completed with errors")
		os.Exit(1)
	}
	logger.Info("Application shutdown completed successfully")
	os.Exit(0)
}

func serverShutdown(server Shutdowner) func(context.Context) error {
	if server == nil {
		return nil
	}
	return server.Shutdown
}
