package tracer

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/aalemi-dev/chrometrace/chrometrace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	traceSpan "go.opentelemetry.io/otel/trace"
)

// SpanProcessor drives a Chrome trace layer from OpenTelemetry span
// lifecycles. A span is created and entered when it starts; its events are
// written as instants and it is exited and closed when it ends.
//
// A span carrying the attribute event="async" at start is written as an
// async b/e pair instead of Begin and End.
type SpanProcessor struct {
	layer    chrometrace.Layer
	category string

	// threads remembers the thread pinned on a span's start context so its
	// events land on the same row. OnEnd gets no context. Unpinned spans
	// are placed by the layer, and their events follow via Event.Span.
	threads sync.Map
}

var _ sdktrace.SpanProcessor = (*SpanProcessor)(nil)

// NewSpanProcessor creates a processor feeding layer. category labels spans
// whose tracer has no instrumentation scope name.
func NewSpanProcessor(layer chrometrace.Layer, category string) *SpanProcessor {
	if category == "" {
		category = DefaultCategory
	}
	return &SpanProcessor{layer: layer, category: category}
}

// OnStart registers and enters the span.
func (p *SpanProcessor) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	id := spanID(s.SpanContext().SpanID())
	if id == 0 {
		return
	}
	p.layer.OnNewSpan(parent, id, chrometrace.SpanAttributes{
		Name:     s.Name(),
		Category: p.categoryOf(s.InstrumentationScope().Name),
		Parent:   spanID(s.Parent().SpanID()),
		Fields:   toFields(s.Attributes()),
	})
	p.layer.OnEnter(parent, id)
	if tid, ok := chrometrace.ThreadIDFromContext(parent); ok {
		p.threads.Store(id, tid)
	}
}

// OnEnd writes the span's events, then exits and closes it.
func (p *SpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	id := spanID(s.SpanContext().SpanID())
	if id == 0 {
		return
	}
	ctx := context.Background()
	if tid, ok := p.threads.LoadAndDelete(id); ok {
		ctx = chrometrace.WithThreadID(ctx, tid.(chrometrace.ThreadID))
	}
	category := p.categoryOf(s.InstrumentationScope().Name)

	for _, ev := range s.Events() {
		p.layer.OnEvent(ctx, chrometrace.Event{
			Name:     ev.Name,
			Category: category,
			Fields:   toFields(ev.Attributes),
			Time:     ev.Time,
			Span:     id,
		})
	}
	if status := s.Status(); status.Code == codes.Error {
		p.layer.OnEvent(ctx, chrometrace.Event{
			Name:     "error",
			Category: category,
			Fields:   []chrometrace.Field{chrometrace.F("span", s.Name()), chrometrace.F("description", status.Description)},
			Time:     s.EndTime(),
			Span:     id,
		})
	}
	p.layer.OnExit(ctx, id)
	p.layer.OnClose(ctx, id)
}

// Shutdown is a no-op. The layer outlives the tracer provider.
func (p *SpanProcessor) Shutdown(context.Context) error { return nil }

// ForceFlush flushes the layer's queue to its sink.
func (p *SpanProcessor) ForceFlush(ctx context.Context) error {
	return p.layer.Flush(ctx)
}

func (p *SpanProcessor) categoryOf(scope string) string {
	if scope == "" {
		return p.category
	}
	return scope
}

func spanID(id traceSpan.SpanID) chrometrace.SpanID {
	return chrometrace.SpanID(binary.BigEndian.Uint64(id[:]))
}

// toFields converts attributes in their recorded order.
func toFields(attrs []attribute.KeyValue) []chrometrace.Field {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]chrometrace.Field, 0, len(attrs))
	for _, kv := range attrs {
		var v chrometrace.Value
		switch kv.Value.Type() {
		case attribute.BOOL:
			v = chrometrace.Bool(kv.Value.AsBool())
		case attribute.INT64:
			v = chrometrace.Int64(kv.Value.AsInt64())
		case attribute.FLOAT64:
			v = chrometrace.Float64(kv.Value.AsFloat64())
		case attribute.STRING:
			v = chrometrace.String(kv.Value.AsString())
		default:
			v = chrometrace.String(kv.Value.Emit())
		}
		out = append(out, chrometrace.Field{Key: string(kv.Key), Value: v})
	}
	return out
}
