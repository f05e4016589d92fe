package exporter

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/narender/telemetry-pipeline/common/config"
	"github.com/narender/telemetry-pipeline/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// fakeSpanExporter records exported spans and can be told to fail.
type fakeSpanExporter struct {
	mu    sync.Mutex
	spans []sdktrace.ReadOnlySpan
	fail  bool
}

func (f *fakeSpanExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	if f.fail {
		return errors.New("export refused")
	}
	f.mu.Lock()
	f.spans = append(f.spans, spans...)
	f.mu.Unlock()
	return nil
}

func (f *fakeSpanExporter) Shutdown(context.Context) error { return nil }

func (f *fakeSpanExporter) exported() []sdktrace.ReadOnlySpan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sdktrace.ReadOnlySpan(nil), f.spans...)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func finalizedRecord(name string, err error) *pipeline.Record {
	rec := pipeline.NewRecord(context.Background(), name)
	rec.SetAttribute("app.step", "final")
	rec.SetAttribute("app.count", 3)
	rec.Finalize(err)
	return rec
}

func TestSpanEmitterReproducesRecord(t *testing.T) {
	fake := &fakeSpanExporter{}
	emitter := newSpanEmitter(fake, nil, "test")

	rec := finalizedRecord("GET /orders", nil)
	require.NoError(t, emitter.emit(context.Background(), rec))

	spans := fake.exported()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "GET /orders", span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)
	assert.Equal(t, rec.StartTime.Unix(), span.StartTime().Unix())
	assert.Equal(t, rec.StartTime.Add(rec.Duration).Unix(), span.EndTime().Unix())

	attrs := make(map[string]any, len(span.Attributes()))
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, rec.ID, attrs["record.id"])
	assert.Equal(t, "final", attrs["app.step"])
	assert.EqualValues(t, 3, attrs["app.count"])
}

func TestSpanEmitterMarksErrorStatus(t *testing.T) {
	fake := &fakeSpanExporter{}
	emitter := newSpanEmitter(fake, nil, "test")

	require.NoError(t, emitter.emit(context.Background(), finalizedRecord("op", errors.New("boom"))))

	spans := fake.exported()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
}

func TestSpanEmitterSurfacesExportFailure(t *testing.T) {
	fake := &fakeSpanExporter{fail: true}
	emitter := newSpanEmitter(fake, nil, "test")

	err := emitter.emit(context.Background(), finalizedRecord("op", nil))
	assert.ErrorContains(t, err, "export refused")
}

func TestDestinationTracksHealth(t *testing.T) {
	fake := &fakeSpanExporter{}
	emitter := newSpanEmitter(fake, nil, "test")
	dest := newDestination(config.DestinationConfig{Name: "d", Provider: ProviderConsole, Enabled: true}, emitter, testLogger())

	assert.True(t, dest.Healthy())
	require.NoError(t, dest.Deliver(context.Background(), finalizedRecord("op", nil)))
	assert.True(t, dest.Healthy())

	fake.fail = true
	require.Error(t, dest.Deliver(context.Background(), finalizedRecord("op", nil)))
	assert.False(t, dest.Healthy())
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.DestinationConfig{
		Name:     "mystery",
		Provider: "jaeger",
	}, nil, testLogger())

	require.Error(t, err)
	assert.ErrorContains(t, err, `unknown telemetry provider "jaeger"`)
	assert.ErrorContains(t, err, "console")
}

func TestNewConsoleDestination(t *testing.T) {
	dest, err := New(context.Background(), config.DestinationConfig{
		Name:     "stdout",
		Provider: ProviderConsole,
		Enabled:  true,
	}, nil, testLogger())

	require.NoError(t, err)
	assert.Equal(t, "stdout", dest.Name())
	assert.True(t, dest.Enabled())
}

func TestBuildAllSkipsFailingEntries(t *testing.T) {
	destinations := BuildAll(context.Background(), []config.DestinationConfig{
		{Name: "ok", Provider: ProviderConsole, Enabled: true},
		{Name: "broken", Provider: "nope", Enabled: true},
		{Name: "no-endpoint", Provider: ProviderAzureMonitor, Enabled: true},
	}, nil, testLogger())

	require.Len(t, destinations, 1)
	assert.Equal(t, "ok", destinations[0].Name())
}

func TestWithRetryRetriesUntilSuccess(t *testing.T) {
	inner := &flakyDestination{failures: 2}
	dest := withRetry(inner, config.RetryConfig{Attempts: 3, Backoff: time.Millisecond}, testLogger())

	err := dest.Deliver(context.Background(), finalizedRecord("op", nil))
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetryGivesUpAfterAttempts(t *testing.T) {
	inner := &flakyDestination{failures: 10}
	dest := withRetry(inner, config.RetryConfig{Attempts: 2, Backoff: time.Millisecond}, testLogger())

	err := dest.Deliver(context.Background(), finalizedRecord("op", nil))
	require.Error(t, err)
	assert.ErrorContains(t, err, "after 2 attempts")
	assert.Equal(t, 2, inner.calls)
}

// flakyDestination fails its first N deliveries.
type flakyDestination struct {
	failures int
	calls    int
}

func (f *flakyDestination) Name() string  { return "flaky" }
func (f *flakyDestination) Enabled() bool { return true }

func (f *flakyDestination) Deliver(context.Context, *pipeline.Record) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient")
	}
	return nil
}
