// Package tracer provides OpenTelemetry tracing whose spans can be recorded
// into a Chrome trace.
//
// # Architecture
//
// The package follows the "accept interfaces, return structs" Go idiom:
//   - Tracer interface: span creation and context propagation
//   - TracerClient struct: concrete implementation over an sdk TracerProvider
//   - SpanProcessor: an sdktrace.SpanProcessor that drives a chrometrace.Layer
//   - FX module provides both *TracerClient and Tracer interface
//
// Span start maps to OnNewSpan and OnEnter. Span end maps to one OnEvent
// per span event, then OnExit and OnClose. Spans whose status is an error
// get an extra "error" instant.
//
// # Basic Usage
//
//	layer, err := chrometrace.NewLayer(chrometrace.Config{OutputPath: "trace.json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer layer.Shutdown(context.Background())
//
//	tracerClient, err := tracer.NewClientWithLayer(tracer.Config{ServiceName: "indexer"}, layer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracerClient.Shutdown(context.Background())
//
//	ctx, span := tracerClient.StartSpan(ctx, "build-index")
//	defer span.End()
//	span.AddEvent("segment-written", map[string]interface{}{"docs": 1200})
//
// # Thread Rows
//
// Spans land on the row of the OS thread that started them unless the
// context passed to StartSpan carries chrometrace.WithThreadID.
//
// # FX Module Integration
//
//	app := fx.New(
//	    chrometrace.FXModule,
//	    tracer.FXModule,
//	    fx.Supply(chrometrace.Config{OutputPath: "trace.json"}),
//	    fx.Supply(tracer.Config{ServiceName: "indexer"}),
//	)
//
// # Distributed Tracing
//
// GetCarrier and SetCarrierOnContext move W3C trace context across service
// boundaries in HTTP headers or message properties.
package tracer
