package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func newTestClient(t *testing.T) *TracerClient {
	t.Helper()
	client, err := NewClient(Config{ServiceName: "test", AppEnv: "test"})
	require.NoError(t, err)
	return client
}

func TestStartSpan_ChildInheritsParent(t *testing.T) {
	t.Parallel()
	client := newTestClient(t)

	parentCtx, parentSpan := client.StartSpan(context.Background(), "parent")
	defer parentSpan.End()
	childCtx, childSpan := client.StartSpan(parentCtx, "child")
	defer childSpan.End()

	parentOT := trace.SpanFromContext(parentCtx)
	childOT := trace.SpanFromContext(childCtx)
	assert.True(t, childOT.IsRecording())
	assert.Equal(t, parentOT.SpanContext().TraceID(), childOT.SpanContext().TraceID())
}

func TestSpan_MethodsDoNotPanic(t *testing.T) {
	t.Parallel()
	client := newTestClient(t)
	_, span := client.StartSpan(context.Background(), "attrs-op")

	assert.NotPanics(t, func() {
		span.SetAttributes(map[string]interface{}{})
		span.SetAttributes(map[string]interface{}{"str": "hello", "other": []string{"a"}})
		span.AddEvent("checkpoint", nil)
		span.RecordError(errors.New("something went wrong"))
		span.End()
	})
}

func TestToAttributes_Types(t *testing.T) {
	t.Parallel()
	attrs := toAttributes(map[string]interface{}{
		"str":     "hello",
		"int":     42,
		"int64":   int64(100),
		"float64": 3.14,
		"bool":    true,
		"other":   []string{"a", "b"},
	})

	byKey := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		byKey[string(kv.Key)] = kv.Value
	}
	assert.Equal(t, attribute.STRING, byKey["str"].Type())
	assert.Equal(t, attribute.INT64, byKey["int"].Type())
	assert.Equal(t, attribute.INT64, byKey["int64"].Type())
	assert.Equal(t, attribute.FLOAT64, byKey["float64"].Type())
	assert.Equal(t, attribute.BOOL, byKey["bool"].Type())
	assert.Equal(t, "[a b]", byKey["other"].AsString())
}

func TestGetAndSetCarrier_RoundTrip(t *testing.T) {
	t.Parallel()
	client := newTestClient(t)

	ctx, span := client.StartSpan(context.Background(), "roundtrip-op")
	defer span.End()

	carrier := client.GetCarrier(ctx)
	assert.Contains(t, carrier, "traceparent")

	restoredCtx := client.SetCarrierOnContext(context.Background(), carrier)
	original := trace.SpanFromContext(ctx).SpanContext()
	restored := trace.SpanFromContext(restoredCtx).SpanContext()
	assert.Equal(t, original.TraceID(), restored.TraceID())
	assert.True(t, restored.IsValid())
}

func TestGetCarrier_NoActiveSpan(t *testing.T) {
	t.Parallel()
	carrier := newTestClient(t).GetCarrier(context.Background())
	assert.NotContains(t, carrier, "traceparent")
}
