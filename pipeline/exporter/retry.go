package exporter

import (
	"context"
	"fmt"
	"time"

	"github.com/narender/telemetry-pipeline/common/config"
	"github.com/narender/telemetry-pipeline/pipeline"
	"github.com/sirupsen/logrus"
)

// retryDestination wraps a destination with a fixed-backoff redelivery
// policy. Retry lives here, at the adapter, so each destination can carry its
// own policy; the dispatcher never retries.
type retryDestination struct {
	pipeline.Destination
	attempts int
	backoff  time.Duration
	logger   *logrus.Logger
}

func withRetry(dest pipeline.Destination, cfg config.RetryConfig, logger *logrus.Logger) pipeline.Destination {
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &retryDestination{
		Destination: dest,
		attempts:    cfg.Attempts,
		backoff:     backoff,
		logger:      logger,
	}
}

// Deliver tries the wrapped destination up to the configured number of
// attempts, waiting the backoff between tries. The per-attempt timeout
// context set by the dispatcher still bounds the whole sequence.
func (r *retryDestination) Deliver(ctx context.Context, rec *pipeline.Record) error {
	var err error
	for i := 0; i < r.attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(r.backoff):
			case <-ctx.Done():
				return fmt.Errorf("retry of delivery to %s interrupted: %w", r.Name(), ctx.Err())
			}
		}

		if err = r.Destination.Deliver(ctx, rec); err == nil {
			return nil
		}
		r.logger.WithFields(logrus.Fields{
			"destination": r.Name(),
			"record_id":   rec.ID,
			"attempt":     i + 1,
		}).WithError(err).Warn("Delivery attempt failed")
	}
	return fmt.Errorf("delivery to %s failed after %d attempts: %w", r.Name(), r.attempts, err)
}

// Healthy defers to the wrapped destination's health.
func (r *retryDestination) Healthy() bool {
	if h, ok := r.Destination.(HealthReporter); ok {
		return h.Healthy()
	}
	return true
}

// Shutdown defers to the wrapped destination.
func (r *retryDestination) Shutdown(ctx context.Context) error {
	if s, ok := r.Destination.(Shutdowner); ok {
		return s.Shutdown(ctx)
	}
	return nil
}
