package observability

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// SamplesRootSpan reports whether a root span is sampled under cfg.
func SamplesRootSpan(cfg Config) bool {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(selectSampler(cfg)),
	)

	_, span := tp.Tracer("test").Start(context.Background(), "root")
	span.End()

	spans := exporter.GetSpans()

	if tp.Shutdown(context.Background()) != nil {
		return false
	}

	return len(spans) > 0
}
