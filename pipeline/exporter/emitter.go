package exporter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/narender/telemetry-pipeline/pipeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// spanEmitter converts finalized pipeline records into OTel spans and pushes
// them through an sdktrace.SpanExporter. Console, OTLP and vendor adapters
// all share this core and differ only in the exporter they plug in.
//
// Emission captures the ended span from a private TracerProvider before
// exporting it, and that capture step needs exclusive access. This is the
// per-destination serialization point; the dispatcher itself stays free of
// cross-destination ordering.
type spanEmitter struct {
	mu       sync.Mutex
	exporter sdktrace.SpanExporter
	provider *sdktrace.TracerProvider
	tracer   oteltrace.Tracer
	capture  *captureProcessor
}

func newSpanEmitter(exp sdktrace.SpanExporter, res *resource.Resource, scope string) *spanEmitter {
	capture := &captureProcessor{}
	opts := []sdktrace.TracerProviderOption{
		// Sampling already happened upstream in the pipeline.
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(capture),
	}
	if res != nil {
		opts = append(opts, sdktrace.WithResource(res))
	}
	provider := sdktrace.NewTracerProvider(opts...)
	return &spanEmitter{
		exporter: exp,
		provider: provider,
		tracer:   provider.Tracer(scope),
		capture:  capture,
	}
}

// emit re-creates the record as a span with its original timestamps and
// attributes, then exports the snapshot synchronously so delivery failures
// surface to the dispatcher.
func (e *spanEmitter) emit(ctx context.Context, rec *pipeline.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, span := e.tracer.Start(context.Background(), rec.Name,
		oteltrace.WithTimestamp(rec.StartTime),
		oteltrace.WithAttributes(recordAttributes(rec)...),
	)
	if rec.Status == pipeline.StatusError {
		span.SetStatus(codes.Error, rec.ErrorDetail)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(oteltrace.WithTimestamp(rec.StartTime.Add(rec.Duration)))

	snapshot := e.capture.take()
	if snapshot == nil {
		return errors.New("span capture produced no span")
	}
	return e.exporter.ExportSpans(ctx, []sdktrace.ReadOnlySpan{snapshot})
}

func (e *spanEmitter) shutdown(ctx context.Context) error {
	return errors.Join(e.provider.Shutdown(ctx), e.exporter.Shutdown(ctx))
}

// captureProcessor is a SpanProcessor that stashes the most recently ended
// span so emit can export it itself instead of handing it to a background
// batcher (which would hide export errors from the delivery attempt).
type captureProcessor struct {
	mu   sync.Mutex
	last sdktrace.ReadOnlySpan
}

func (p *captureProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *captureProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	p.mu.Lock()
	p.last = s
	p.mu.Unlock()
}

func (p *captureProcessor) Shutdown(context.Context) error   { return nil }
func (p *captureProcessor) ForceFlush(context.Context) error { return nil }

func (p *captureProcessor) take() sdktrace.ReadOnlySpan {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.last
	p.last = nil
	return s
}

// recordAttributes converts the record's identity and attribute map into OTel
// attributes. Scalar types map directly; anything else falls back to its
// string representation.
func recordAttributes(rec *pipeline.Record) []attribute.KeyValue {
	attrs := rec.Attributes()
	out := make([]attribute.KeyValue, 0, len(attrs)+2)
	out = append(out, attribute.String("record.id", rec.ID))
	if rec.ParentID != "" {
		out = append(out, attribute.String("record.parent_id", rec.ParentID))
	}
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			out = append(out, attribute.String(k, val))
		case int:
			out = append(out, attribute.Int(k, val))
		case int64:
			out = append(out, attribute.Int64(k, val))
		case float64:
			out = append(out, attribute.Float64(k, val))
		case bool:
			out = append(out, attribute.Bool(k, val))
		default:
			out = append(out, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return out
}
