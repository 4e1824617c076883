package metrics

import (
	"errors"

	"github.com/aalemi-dev/chrometrace/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrApplicationMetricsDisabled is returned by NewObserver when the
// application endpoint is disabled and there is no registry to write to.
var ErrApplicationMetricsDisabled = errors.New("application metrics endpoint is disabled")

// Operations whose Size is a count of anomalies rather than bytes.
var anomalyOperations = map[string]bool{
	"lookup_miss": true,
	"misnest":     true,
}

// TraceObserver turns operation reports into Prometheus series:
//
//   - <ns>_operations_total{component,operation,status}
//   - <ns>_operation_duration_seconds{component,operation}
//   - <ns>_written_bytes_total{component}
//   - <ns>_anomalies_total{component,kind}
//   - <ns>_queue_depth{component}
//
// It implements observability.Observer.
type TraceObserver struct {
	operations Counter
	duration   Histogram
	written    Counter
	anomalies  Counter
	queueDepth Gauge
}

var _ observability.Observer = (*TraceObserver)(nil)

// NewObserver registers the observer's series on m's application registry,
// named under the namespace from Config.Namespace.
//
// It returns ErrApplicationMetricsDisabled when m is nil or its application
// endpoint is disabled. Under fx, NewObserverWithDI handles that case with a
// no-op observer.
//
// Example:
//
//	m := metrics.NewMetrics(cfg)
//	obs, err := metrics.NewObserver(m)
//	if err != nil {
//	    return err
//	}
//	layer, err := chrometrace.NewLayer(traceCfg, chrometrace.WithObserver(obs))
func NewObserver(m *Metrics) (*TraceObserver, error) {
	if m == nil || m.ApplicationRegistry == nil {
		return nil, ErrApplicationMetricsDisabled
	}
	return NewObserverWithCollector(m, m.namespace), nil
}

// NewObserverWithCollector registers the observer's series through c, each
// name prefixed with namespace. Any MetricsCollector works, which lets tests
// pass a fake and lets several layers share one registry under different
// namespaces.
//
// Like the Create methods of Metrics, it panics when a series name is
// already registered on c's registry.
func NewObserverWithCollector(c MetricsCollector, namespace string) *TraceObserver {
	name := func(s string) string { return prometheus.BuildFQName(namespace, "", s) }
	return &TraceObserver{
		operations: c.CreateCounter(name("operations_total"),
			"Operations reported by trace components.",
			[]string{"component", "operation", "status"}),
		duration: c.CreateHistogram(name("operation_duration_seconds"),
			"Duration of reported operations.",
			[]string{"component", "operation"},
			[]float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5}),
		written: c.CreateCounter(name("written_bytes_total"),
			"Bytes accepted by the trace sink.",
			[]string{"component"}),
		anomalies: c.CreateCounter(name("anomalies_total"),
			"Lookup misses and misnested exits seen by the trace layer.",
			[]string{"component", "kind"}),
		queueDepth: c.CreateGauge(name("queue_depth"),
			"Records waiting in the trace queue at the last write.",
			[]string{"component"}),
	}
}

// ObserveOperation implements observability.Observer. Every report counts
// one operation by status, "success" or "error".
//
// Anomaly reports (lookup misses, misnested exits) add their Size to the
// anomaly counter of that kind and stop there. Any other report observes
// its duration; a successful one adds its Size to the written bytes, and a
// "queue_depth" int in its Metadata sets the queue depth gauge.
func (o *TraceObserver) ObserveOperation(ctx observability.OperationContext) {
	status := "success"
	if ctx.Error != nil {
		status = "error"
	}
	o.operations.WithLabelValues(ctx.Component, ctx.Operation, status).Inc()

	if anomalyOperations[ctx.Operation] {
		o.anomalies.WithLabelValues(ctx.Component, ctx.Operation).Add(float64(ctx.Size))
		return
	}

	o.duration.WithLabelValues(ctx.Component, ctx.Operation).Observe(ctx.Duration.Seconds())
	if ctx.Error == nil && ctx.Size > 0 {
		o.written.WithLabelValues(ctx.Component).Add(float64(ctx.Size))
	}
	if depth, ok := ctx.Metadata["queue_depth"].(int); ok {
		o.queueDepth.WithLabelValues(ctx.Component).Set(float64(depth))
	}
}
