// Package metrics exposes Prometheus endpoints for a process writing Chrome
// traces and converts the trace layer's operation reports into series.
//
// # Dual Endpoint Design
//
// Two registries are served on separate addresses:
//
//  1. System metrics (default :9090): Go runtime, process and build info
//     collectors, registered automatically
//  2. Application metrics (default :9091): series created through
//     MetricsCollector, including those of TraceObserver
//
// Every series carries a constant service label from Config.ServiceName.
// Either endpoint is disabled by setting its address to Ptr("").
//
// # Trace Observer
//
// TraceObserver implements observability.Observer. Wired into a
// chrometrace layer it records, per component and operation:
//
//	chrometrace_operations_total{operation="write",status="success"}
//	chrometrace_operation_duration_seconds{operation="write"}
//	chrometrace_written_bytes_total
//	chrometrace_anomalies_total{kind="lookup_miss"}
//	chrometrace_queue_depth
//
// # Direct Usage (Without FX)
//
//	m := metrics.NewMetrics(metrics.Config{ServiceName: "indexer"})
//	obs, err := metrics.NewObserver(m)
//	if err != nil {
//	    return err
//	}
//	go m.ApplicationServer.ListenAndServe()
//	layer, err := chrometrace.NewLayer(cfg, chrometrace.WithObserver(obs))
//
// # FX Module Integration
//
//	app := fx.New(
//	    logger.FXModule,
//	    metrics.FXModule,
//	    chrometrace.FXModule,
//	    fx.Supply(metrics.Config{ServiceName: "indexer"}),
//	    fx.Supply(chrometrace.Config{OutputPath: "trace.json"}),
//	)
//
// The module provides *Metrics, MetricsCollector and observability.Observer,
// and starts and stops both servers with the application.
package metrics
