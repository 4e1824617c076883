package chrometrace

import (
	"context"
	"errors"

	"github.com/aalemi-dev/chrometrace/observability"
	"github.com/zoobzio/clockz"
	"go.uber.org/fx"
)

// FXModule is an fx.Module that provides the Chrome trace layer.
//
// The module provides:
// 1. *ChromeLayer (concrete type) for direct use
// 2. Layer interface for dependency injection
// 3. Lifecycle management that drains the queue on application stop
//
// A Config must be supplied. Logger, observability.Observer, Sink and
// clockz.Clock are picked up when present.
//
// Usage:
//
//	app := fx.New(
//	    chrometrace.FXModule,
//	    fx.Supply(chrometrace.Config{OutputPath: "trace.json"}),
//	    // other modules...
//	)
var FXModule = fx.Module("chrometrace",
	fx.Provide(
		NewLayerWithDI,
		fx.Annotate(
			func(l *ChromeLayer) Layer { return l },
			fx.As(new(Layer)),
		),
	),
	fx.Invoke(RegisterLayerLifecycle),
)

// LayerParams groups the dependencies NewLayerWithDI accepts.
type LayerParams struct {
	fx.In

	Config   Config
	Logger   Logger                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
	Sink     Sink                   `optional:"true"`
	Clock    clockz.Clock           `optional:"true"`
}

// NewLayerWithDI creates a layer from injected dependencies.
func NewLayerWithDI(params LayerParams) (*ChromeLayer, error) {
	var opts []Option
	if params.Logger != nil {
		opts = append(opts, WithLogger(params.Logger))
	}
	if params.Observer != nil {
		opts = append(opts, WithObserver(params.Observer))
	}
	if params.Sink != nil {
		opts = append(opts, WithSink(params.Sink))
	}
	if params.Clock != nil {
		opts = append(opts, WithClock(params.Clock))
	}
	return NewLayer(params.Config, opts...)
}

// LayerLifecycleParams groups the dependencies for lifecycle registration.
type LayerLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Layer     *ChromeLayer
}

// RegisterLayerLifecycle shuts the layer down when the application stops.
// If the stop deadline expires mid-drain the sink is force-closed, leaving
// the document unterminated rather than holding the process open.
func RegisterLayerLifecycle(params LayerLifecycleParams) {
	if params.Layer == nil {
		return
	}

	params.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			err := params.Layer.Shutdown(ctx)
			if errors.Is(err, ErrShutdownTimeout) {
				return errors.Join(err, params.Layer.ForceClose())
			}
			return err
		},
	})
}
