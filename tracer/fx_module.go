package tracer

import (
	"context"

	"github.com/aalemi-dev/chrometrace/chrometrace"
	"go.uber.org/fx"
)

// FXModule provides a TracerClient wired to the Chrome trace layer when
// one is in the graph.
//
// The module provides:
// 1. *TracerClient (concrete type) for direct use
// 2. Tracer interface for dependency injection
// 3. Shutdown hooks to cleanly close tracer resources
//
// Usage:
//
//	app := fx.New(
//	    chrometrace.FXModule,
//	    tracer.FXModule,
//	    // other modules...
//	)
var FXModule = fx.Module("tracer",
	fx.Provide(
		NewClientWithDI,
		fx.Annotate(
			func(t *TracerClient) Tracer { return t },
			fx.As(new(Tracer)),
		),
	),
	fx.Invoke(RegisterTracerLifecycle),
)

// TracerParams groups the dependencies NewClientWithDI accepts.
type TracerParams struct {
	fx.In

	Config Config
	Layer  chrometrace.Layer `optional:"true"`
}

// NewClientWithDI creates a TracerClient from injected dependencies.
func NewClientWithDI(params TracerParams) (*TracerClient, error) {
	if params.Layer == nil {
		return NewClient(params.Config)
	}
	return NewClientWithLayer(params.Config, params.Layer)
}

// TracerLifecycleParams groups the dependencies for lifecycle registration.
type TracerLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Tracer    *TracerClient
	Logger    Logger `optional:"true"`
}

// RegisterTracerLifecycle shuts the tracer provider down on stop, ending
// span processing. fx runs stop hooks in reverse order, so the provider
// stops before the layer it was built on drains.
func RegisterTracerLifecycle(params TracerLifecycleParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if params.Logger != nil {
				params.Logger.InfoWithContext(ctx, "shutting down tracer", nil)
			}
			return params.Tracer.Shutdown(ctx)
		},
	})
}

// Logger is the subset of the logger package used for lifecycle messages.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}
