package observability

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// httpStatusServerError is the threshold for HTTP server errors.
const httpStatusServerError = 500

// unmatchedRoute names spans for requests no mux pattern serves.
const unmatchedRoute = "unmatched"

// scrapeWriter records the status and body size of a scrape response.
type scrapeWriter struct {
	http.ResponseWriter

	status      int
	bodyBytes   int
	wroteHeader bool
}

func (sw *scrapeWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}

	sw.ResponseWriter.WriteHeader(code)
}

func (sw *scrapeWriter) Write(buf []byte) (int, error) {
	sw.wroteHeader = true

	n, err := sw.ResponseWriter.Write(buf)
	sw.bodyBytes += n

	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}

	return n, nil
}

// route returns the pattern mux would serve r with, or the raw path when
// next is not a mux.
func route(next http.Handler, r *http.Request) string {
	mux, ok := next.(*http.ServeMux)
	if !ok {
		return r.URL.Path
	}

	_, pattern := mux.Handler(r)
	if pattern == "" {
		return unmatchedRoute
	}

	return pattern
}

// HTTPMiddleware wraps the metrics endpoint handler in one server span per
// scrape. Spans are named "METHOD route" where route is the matched
// [http.ServeMux] pattern, so stray paths collapse into "unmatched" instead
// of one span name per URL.
func HTTPMiddleware(tracer trace.Tracer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		parentCtx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))
		pattern := route(next, hr)

		ctx, span := tracer.Start(parentCtx, hr.Method+" "+pattern,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(hr.Method),
				semconv.HTTPRoute(pattern),
				attribute.String("http.target", hr.URL.Path),
			),
		)
		defer span.End()

		sw := &scrapeWriter{ResponseWriter: rw, status: http.StatusOK}
		next.ServeHTTP(sw, hr.WithContext(ctx))

		span.SetAttributes(
			semconv.HTTPResponseStatusCode(sw.status),
			semconv.HTTPResponseBodySize(sw.bodyBytes),
		)

		if sw.status >= httpStatusServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.status))
		}
	})
}
