package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// attrErrorKind names the error class on a failed span.
const attrErrorKind = "error.kind"

// RecordSpanError marks span as failed with err. kind is a short class such
// as "input" or "internal". A nil err is ignored.
func RecordSpanError(span trace.Span, err error, kind string) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(attrErrorKind, kind))
}
