/*
Package tracing records OpenTelemetry spans for HTTP requests and preview
rebuilds.

Finished spans are batched and written through zap at debug level; failed
spans are logged as warnings. Callers may pass extra TracerProvider options
to add processors or exporters.

# Usage

	tracer := tracing.New("livepen", logger.Logger)
	defer tracer.Close(ctx)

	router.Use(tracing.HTTPMiddleware(tracer))

	ctx, span := tracer.Start(ctx, "preview.render",
		attribute.Int("composite.bytes", size))
	frame, err := renderer.Render(ctx, composite)
	tracing.Finish(span, err)

# Propagation

Incoming requests are joined to the caller's trace through the W3C
traceparent header. Every response carries X-Trace-ID.
*/
package tracing
