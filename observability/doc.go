// Package observability defines the hook through which background work
// reports what it did, without the reporting package depending on metrics,
// tracing or logging.
//
// The chrometrace flush task reports each sink write and the anomaly
// counters it noticed since the previous report. The metrics package turns
// those reports into Prometheus series.
//
// # Implementing an Observer
//
//	type logObserver struct{ log *logger.LoggerClient }
//
//	func (o *logObserver) ObserveOperation(ctx observability.OperationContext) {
//	    if ctx.Error != nil {
//	        o.log.Warn("operation failed", ctx.Error, map[string]interface{}{
//	            "component": ctx.Component,
//	            "operation": ctx.Operation,
//	        })
//	    }
//	}
//
// Several observers can be combined:
//
//	obs := observability.Observers{metricsObserver, &logObserver{log}}
//	layer, err := chrometrace.NewLayer(cfg, chrometrace.WithObserver(obs))
package observability
