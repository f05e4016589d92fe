package exporter

import (
	"context"
	"errors"
	"fmt"

	"github.com/narender/telemetry-pipeline/common/config"
	"github.com/narender/telemetry-pipeline/pipeline"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc/credentials"
)

// newOTLPDestination builds the OTLP/gRPC network destination
// (collector, Jaeger, Tempo, any OTLP-speaking backend).
func newOTLPDestination(ctx context.Context, cfg config.DestinationConfig, res *resource.Resource, logger *logrus.Logger) (pipeline.Destination, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("otlp destination requires an endpoint")
	}

	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	} else {
		clientOpts = append(clientOpts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	exp, err := otlptracegrpc.New(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	emitter := newSpanEmitter(exp, res, "github.com/narender/telemetry-pipeline/pipeline/exporter/otlp")
	return newDestination(cfg, emitter, logger), nil
}
