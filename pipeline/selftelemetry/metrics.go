package selftelemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/narender/telemetry-pipeline/pipeline"

// DispatchMetrics implements the dispatcher's Metrics interface with OTel
// counters, so the pipeline's delivery behavior is observable through the
// same collector its records flow to.
type DispatchMetrics struct {
	attempted metric.Int64Counter
	delivered metric.Int64Counter
	failed    metric.Int64Counter
}

// NewDispatchMetrics creates the dispatch outcome counters on the global
// meter provider.
func NewDispatchMetrics() (*DispatchMetrics, error) {
	meter := otel.Meter(meterName)

	attempted, err := meter.Int64Counter("pipeline.dispatch.attempted",
		metric.WithDescription("Delivery attempts per destination"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attempted counter: %w", err)
	}
	delivered, err := meter.Int64Counter("pipeline.dispatch.delivered",
		metric.WithDescription("Successful deliveries per destination"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivered counter: %w", err)
	}
	failed, err := meter.Int64Counter("pipeline.dispatch.failed",
		metric.WithDescription("Failed deliveries per destination"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create failed counter: %w", err)
	}

	return &DispatchMetrics{attempted: attempted, delivered: delivered, failed: failed}, nil
}

// RecordDelivery counts one delivery attempt and its outcome.
func (m *DispatchMetrics) RecordDelivery(ctx context.Context, destination string, success bool) {
	attrs := metric.WithAttributes(attribute.String("destination", destination))
	m.attempted.Add(ctx, 1, attrs)
	if success {
		m.delivered.Add(ctx, 1, attrs)
	} else {
		m.failed.Add(ctx, 1, attrs)
	}
}
