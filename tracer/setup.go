package tracer

import (
	"context"
	"fmt"

	"github.com/aalemi-dev/chrometrace/chrometrace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// TracerClient wraps an OpenTelemetry TracerProvider. With a layer
// attached, a SpanProcessor feeds every span's lifecycle into it.
//
// The TracerClient is safe for concurrent use. It implements the Tracer
// interface.
type TracerClient struct {
	tracer *trace.TracerProvider
}

// NewClient creates a TracerClient that only exports over OTLP, if enabled.
func NewClient(cfg Config) (*TracerClient, error) {
	return newClientWithContext(context.Background(), cfg, nil)
}

// NewClientWithLayer creates a TracerClient whose spans are recorded by
// layer.
//
// Example:
//
//	layer, err := chrometrace.NewLayer(chrometrace.Config{OutputPath: "trace.json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tracerClient, err := tracer.NewClientWithLayer(tracer.Config{ServiceName: "indexer"}, layer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, span := tracerClient.StartSpan(context.Background(), "process-request")
//	defer span.End()
func NewClientWithLayer(cfg Config, layer chrometrace.Layer) (*TracerClient, error) {
	return newClientWithContext(context.Background(), cfg, layer)
}

func newClientWithContext(ctx context.Context, cfg Config, layer chrometrace.Layer) (*TracerClient, error) {
	var options []trace.TracerProviderOption

	if cfg.EnableExport {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("failed to initialize OTLP exporter: %w", err)
		}
		exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OTLP exporter: %w", err)
		}
		options = append(options, trace.WithBatcher(exporter))
	}

	if layer != nil {
		options = append(options, trace.WithSpanProcessor(NewSpanProcessor(layer, cfg.Category)))
	}

	options = append(options, trace.WithResource(resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.AppEnv),
		attribute.String("environment", cfg.AppEnv),
	)))

	tp := trace.NewTracerProvider(options...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return &TracerClient{tracer: tp}, nil
}

// Shutdown ends span processing. It does not shut the layer down; the
// layer's owner does that after the tracer is gone.
func (t *TracerClient) Shutdown(ctx context.Context) error {
	if t.tracer == nil {
		return nil
	}
	return t.tracer.Shutdown(ctx)
}
