package exporter

import (
	"context"
	"fmt"
	"os"

	"github.com/narender/telemetry-pipeline/common/config"
	"github.com/narender/telemetry-pipeline/pipeline"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
)

// newConsoleDestination builds the console printer destination. Useful during
// development and as a second sink alongside a network exporter when
// debugging what actually leaves the pipeline.
func newConsoleDestination(_ context.Context, cfg config.DestinationConfig, res *resource.Resource, logger *logrus.Logger) (pipeline.Destination, error) {
	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(os.Stdout),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
	}

	emitter := newSpanEmitter(exp, res, "github.com/narender/telemetry-pipeline/pipeline/exporter/console")
	return newDestination(cfg, emitter, logger), nil
}
