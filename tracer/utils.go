package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	traceSpan "go.opentelemetry.io/otel/trace"
)

// spanImpl adapts an OpenTelemetry span to the Span interface. Every call
// lands on the OpenTelemetry SDK span, so the registered SpanProcessor sees
// it when the span ends and turns it into Chrome trace records.
type spanImpl struct {
	span traceSpan.Span
}

// End implements Span by ending the underlying OpenTelemetry span.
//
// Ending a span started through a client with a Chrome layer attached makes
// the layer:
//   - write the span's events as instant records on the span's row
//   - write an "error" instant when RecordError was called
//   - close the span's Begin with its End on the row the Begin was drawn on
//
// Nothing may be done with the span after End. Call it with defer right
// after StartSpan.
//
// Example:
//
//	ctx, span := tracer.StartSpan(ctx, "flush-segment")
//	defer span.End()
func (s *spanImpl) End() {
	s.span.End()
}

// SetAttributes implements Span by adding attributes to the span.
//
// Values are converted as follows:
//   - string, int, int64, float64 and bool keep their type
//   - anything else is stored as a string made with fmt.Sprint
//
// An empty map is ignored.
//
// The Chrome layer takes a span's args from the attributes it had at start,
// so attributes set here reach OpenTelemetry exporters only. Spans started
// on an OpenTelemetry tracer with trace.WithAttributes get those as Begin
// args, and event="async" among them selects an async b/e pair.
//
// Example:
//
//	span.SetAttributes(map[string]interface{}{
//	    "segment.id":    seg.ID,
//	    "segment.docs":  len(seg.Docs),
//	    "segment.bytes": seg.Size,
//	    "compacted":     true,
//	})
func (s *spanImpl) SetAttributes(attrs map[string]interface{}) {
	if len(attrs) == 0 {
		return
	}
	s.span.SetAttributes(toAttributes(attrs)...)
}

// AddEvent implements Span by recording a named event on the span. attrs
// follows the same conversion rules as SetAttributes and may be nil.
//
// The Chrome layer writes each event as a thread-scoped instant record when
// the span ends, stamped with the time AddEvent was called.
//
// Example:
//
//	span.AddEvent("checkpoint", map[string]interface{}{"progress": 50})
func (s *spanImpl) AddEvent(name string, attrs map[string]interface{}) {
	s.span.AddEvent(name, traceSpan.WithAttributes(toAttributes(attrs)...))
}

// RecordError implements Span. It records err as an exception event and
// sets the span's status to Error with err's message as the description.
//
// The Chrome layer renders an errored span with an extra "error" instant at
// the span's end time carrying the span name and the description.
//
// Example:
//
//	if err := seg.Flush(ctx); err != nil {
//	    span.RecordError(err)
//	    return fmt.Errorf("failed to flush segment: %w", err)
//	}
func (s *spanImpl) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func toAttributes(attrs map[string]interface{}) []attribute.KeyValue {
	attributes := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			attributes = append(attributes, attribute.String(k, val))
		case int:
			attributes = append(attributes, attribute.Int(k, val))
		case int64:
			attributes = append(attributes, attribute.Int64(k, val))
		case float64:
			attributes = append(attributes, attribute.Float64(k, val))
		case bool:
			attributes = append(attributes, attribute.Bool(k, val))
		default:
			attributes = append(attributes, attribute.String(k, fmt.Sprint(val)))
		}
	}
	return attributes
}

// StartSpan creates a span named name and returns a context carrying it.
//
// The span is a child of any span already in ctx, otherwise it starts a new
// trace. With a Chrome layer attached, the span's Begin is written when it
// starts. Its row is the thread pinned on ctx with
// chrometrace.WithThreadID. On an unpinned ctx the layer picks the row,
// keeping children on their parent's row while they nest.
//
// Parameters:
//   - ctx: the parent context, optionally carrying a span and a thread id
//   - name: the operation name shown on the span's bar in the viewer
//
// Returns:
//   - context.Context: ctx with the new span, to pass to child operations
//   - Span: the handle that must be ended when the operation completes
//
// Example:
//
//	ctx, span := tracer.StartSpan(ctx, "load-index")
//	defer span.End()
//	if err := load(ctx); err != nil {
//	    span.RecordError(err)
//	    return err
//	}
func (t *TracerClient) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, otSpan := t.tracer.Tracer("").Start(ctx, name)
	return ctx, &spanImpl{span: otSpan}
}

// GetCarrier returns the W3C trace context and baggage of ctx as a header
// map, to attach to outbound requests and messages so the receiving service
// continues the same trace.
//
// The map holds "traceparent", "tracestate" when set, and "baggage" when
// ctx carries baggage. It is empty when ctx has no span.
//
// Example:
//
//	for k, v := range tracer.GetCarrier(ctx) {
//	    req.Header.Set(k, v)
//	}
func (t *TracerClient) GetCarrier(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	propagator().Inject(ctx, carrier)
	return carrier
}

// SetCarrierOnContext returns ctx with the remote span context and baggage
// described by carrier, as produced by GetCarrier on the sending side. Spans
// started from the returned context are children of the remote span.
//
// A carrier without a valid "traceparent" leaves ctx's trace unchanged.
//
// Example:
//
//	carrier := map[string]string{}
//	for k := range msg.Headers {
//	    carrier[k] = msg.Headers.Get(k)
//	}
//	ctx = tracer.SetCarrierOnContext(ctx, carrier)
//	ctx, span := tracer.StartSpan(ctx, "consume")
//	defer span.End()
func (t *TracerClient) SetCarrierOnContext(ctx context.Context, carrier map[string]string) context.Context {
	return propagator().Extract(ctx, propagation.MapCarrier(carrier))
}

func propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}
