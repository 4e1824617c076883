package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/aalemi-dev/chrometrace/observability"
	"go.uber.org/fx"
)

// FXModule provides the metrics servers and the trace observer.
//
// The module provides:
// 1. *Metrics (concrete type) for direct use
// 2. MetricsCollector interface for dependency injection
// 3. observability.Observer backed by TraceObserver when the application
//    endpoint is enabled
// 4. Lifecycle management for both HTTP servers
//
// A metrics.Config must be supplied. A Logger is used when present.
//
// Usage:
//
//	app := fx.New(
//	    metrics.FXModule,
//	    chrometrace.FXModule,
//	    fx.Supply(metrics.Config{ServiceName: "indexer"}),
//	    fx.Supply(chrometrace.Config{OutputPath: "trace.json"}),
//	)
var FXModule = fx.Module("metrics",
	fx.Provide(
		NewMetrics,
		fx.Annotate(
			func(m *Metrics) MetricsCollector { return m },
			fx.As(new(MetricsCollector)),
		),
		NewObserverWithDI,
	),
	fx.Invoke(RegisterMetricsLifecycle),
)

// NewObserverWithDI provides the trace observer for dependency injection.
// When the application endpoint is disabled there is no registry to write
// to, and it provides a no-op observer so the layer still starts.
func NewObserverWithDI(m *Metrics) observability.Observer {
	o, err := NewObserver(m)
	if err != nil {
		return observability.NewNoOpObserver()
	}
	return o
}

// Logger is the subset of the logger client this package needs.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// MetricsLifecycleParams groups the dependencies for lifecycle registration.
type MetricsLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Metrics   *Metrics
	Logger    Logger `optional:"true"`
}

// RegisterMetricsLifecycle registers start and stop hooks for the metrics
// servers with the fx lifecycle.
//
// On start, each enabled server listens in its own goroutine. A server that
// fails for a reason other than being shut down is logged at error level.
//
// On stop, each server is shut down gracefully within the stop context's
// deadline. Shutdown errors are logged and never fail the fx stop.
//
// This function is called automatically by FXModule and normally doesn't
// need to be called directly.
func RegisterMetricsLifecycle(params MetricsLifecycleParams) {
	m, log := params.Metrics, params.Logger
	servers := []struct {
		name   string
		server *http.Server
	}{
		{"system", m.SystemServer},
		{"application", m.ApplicationServer},
	}

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for _, s := range servers {
				if s.server == nil {
					continue
				}
				logInfo(log, ctx, "starting "+s.name+" metrics server", map[string]interface{}{
					"address": s.server.Addr,
				})
				go func(name string, srv *http.Server) {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logError(log, context.Background(), "error serving "+name+" metrics", err)
					}
				}(s.name, s.server)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			for _, s := range servers {
				if s.server == nil {
					continue
				}
				logInfo(log, ctx, "shutting down "+s.name+" metrics server", nil)
				if err := s.server.Shutdown(ctx); err != nil {
					logError(log, ctx, "error shutting down "+s.name+" metrics server", err)
				}
			}
			return nil
		},
	})
}

func logInfo(log Logger, ctx context.Context, msg string, fields map[string]interface{}) {
	if log != nil {
		log.InfoWithContext(ctx, msg, nil, fields)
	}
}

func logError(log Logger, ctx context.Context, msg string, err error) {
	if log != nil {
		log.ErrorWithContext(ctx, msg, err)
	}
}
