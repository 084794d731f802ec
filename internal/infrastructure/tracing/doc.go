/*
Package tracing provides lightweight request tracing for the application
manager's API surface.

It follows OpenTelemetry concepts with a minimal implementation: trace
context propagates via the X-Trace-ID and X-Span-ID HTTP headers, spans are
collected through a buffered channel and emitted as structured log lines.
Lifecycle operations triggered by an API request carry its trace id, so a
launch can be followed from the HTTP edge through the pipeline stages.

# Usage

	tracer := tracing.New("appmanager", logger)
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "launch")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
*/
package tracing
