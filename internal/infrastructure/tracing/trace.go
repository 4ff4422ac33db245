package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Tracer records spans for HTTP requests and preview rebuilds and writes
// finished spans to the log
type Tracer struct {
	provider   *sdktrace.TracerProvider
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// New creates a tracer for service. Finished spans are batched and logged
// at debug level unless opts replace the exporter.
func New(service string, logger *zap.Logger, opts ...sdktrace.TracerProviderOption) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", service))),
		sdktrace.WithBatcher(&logExporter{log: logger}, sdktrace.WithBatchTimeout(time.Second)),
	}
	provider := sdktrace.NewTracerProvider(append(base, opts...)...)

	return &Tracer{
		provider:   provider,
		tracer:     provider.Tracer(service),
		propagator: propagation.TraceContext{},
	}
}

// Start begins a span as a child of any span in ctx
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Finish ends span, marking it failed when err is non-nil
func Finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Flush exports every finished span
func (t *Tracer) Flush(ctx context.Context) error {
	return t.provider.ForceFlush(ctx)
}

// Close flushes and stops the tracer
func (t *Tracer) Close(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// TraceID returns the trace id carried by ctx, or "" outside a span
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// logExporter writes spans through zap
type logExporter struct {
	log *zap.Logger
}

func (e *logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		fields := []zap.Field{
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.String("span_id", span.SpanContext().SpanID().String()),
			zap.String("operation", span.Name()),
			zap.Duration("duration", span.EndTime().Sub(span.StartTime())),
		}
		if parent := span.Parent(); parent.IsValid() {
			fields = append(fields, zap.String("parent_id", parent.SpanID().String()))
		}
		for _, kv := range span.Attributes() {
			fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
		}

		if status := span.Status(); status.Code == codes.Error {
			e.log.Warn("span failed", append(fields, zap.String("error", status.Description))...)
		} else {
			e.log.Debug("span completed", fields...)
		}
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error {
	return nil
}
