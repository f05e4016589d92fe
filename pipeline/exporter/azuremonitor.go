package exporter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/narender/telemetry-pipeline/common/config"
	"github.com/narender/telemetry-pipeline/pipeline"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc/credentials"
)

// azureConnection is the parsed form of an Application Insights style
// connection string ("InstrumentationKey=...;IngestionEndpoint=...").
type azureConnection struct {
	instrumentationKey string
	ingestionEndpoint  string
}

// newAzureMonitorDestination builds the Azure Monitor vendor destination.
// Transport is OTLP/gRPC against the ingestion endpoint, authenticated with
// the instrumentation key from the connection string.
func newAzureMonitorDestination(ctx context.Context, cfg config.DestinationConfig, res *resource.Resource, logger *logrus.Logger) (pipeline.Destination, error) {
	conn, err := parseAzureConnectionString(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"x-instrumentation-key": conn.instrumentationKey,
	}
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(conn.ingestionEndpoint),
		otlptracegrpc.WithHeaders(headers),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	} else {
		clientOpts = append(clientOpts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	exp, err := otlptracegrpc.New(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Monitor exporter: %w", err)
	}

	emitter := newSpanEmitter(exp, res, "github.com/narender/telemetry-pipeline/pipeline/exporter/azuremonitor")
	return newDestination(cfg, emitter, logger), nil
}

// parseAzureConnectionString extracts the instrumentation key and ingestion
// endpoint from a semicolon-delimited connection string. Both parts are
// required; the endpoint scheme is stripped for the gRPC dial target.
func parseAzureConnectionString(raw string) (azureConnection, error) {
	if raw == "" {
		return azureConnection{}, errors.New("azure_monitor destination requires a connection_string")
	}

	var conn azureConnection
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return azureConnection{}, fmt.Errorf("malformed connection string segment %q", part)
		}
		switch strings.ToLower(key) {
		case "instrumentationkey":
			conn.instrumentationKey = value
		case "ingestionendpoint":
			value = strings.TrimPrefix(value, "https://")
			value = strings.TrimPrefix(value, "http://")
			conn.ingestionEndpoint = strings.TrimSuffix(value, "/")
		}
	}

	if conn.instrumentationKey == "" {
		return azureConnection{}, errors.New("connection string is missing InstrumentationKey")
	}
	if conn.ingestionEndpoint == "" {
		return azureConnection{}, errors.New("connection string is missing IngestionEndpoint")
	}
	return conn, nil
}
