package tracer

import (
	"context"
)

// Tracer provides span creation and trace context propagation on top of
// OpenTelemetry. When a Chrome trace layer is attached, every span also
// appears in the Chrome trace.
//
// This interface is implemented by the concrete *TracerClient type.
type Tracer interface {
	// StartSpan creates a new span with the given name, a child of any span
	// in ctx. Always call span.End() when the operation completes.
	StartSpan(ctx context.Context, name string) (context.Context, Span)

	// GetCarrier extracts trace context from ctx as W3C headers.
	GetCarrier(ctx context.Context) map[string]string

	// SetCarrierOnContext injects trace context from headers into ctx.
	SetCarrierOnContext(ctx context.Context, carrier map[string]string) context.Context
}

// Span represents one traced operation.
//
// To use a span effectively:
// 1. Always call End() when the operation completes (typically with defer)
// 2. Add attributes that provide context about the operation
// 3. Record any errors that occur during the operation
type Span interface {
	// End completes the span. Its Chrome trace End record is written with
	// the next flush.
	End()

	// SetAttributes adds key-value pairs to the span.
	//
	// Attributes set after the span started are exported to OTLP but do
	// not reach the Chrome trace, whose Begin record is already written.
	SetAttributes(attrs map[string]interface{})

	// AddEvent records a point-in-time event. It becomes an instant event
	// in the Chrome trace.
	//
	// Example:
	//   span.AddEvent("checkpoint", map[string]interface{}{"progress": 50})
	AddEvent(name string, attrs map[string]interface{})

	// RecordError records err as an exception event and marks the span
	// failed.
	RecordError(err error)
}
