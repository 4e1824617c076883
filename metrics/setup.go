package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds two Prometheus registries, each behind its own HTTP server:
// one for runtime and process collectors, one for the application series
// created through MetricsCollector.
type Metrics struct {
	// SystemServer serves SystemRegistry on /metrics. nil when disabled.
	SystemServer *http.Server

	// ApplicationServer serves ApplicationRegistry on /metrics. nil when
	// disabled.
	ApplicationServer *http.Server

	SystemRegistry      *prometheus.Registry
	ApplicationRegistry *prometheus.Registry

	namespace string

	// wrappedApplicationRegisterer adds the service label to every
	// application series.
	wrappedApplicationRegisterer prometheus.Registerer
}

// NewMetrics builds both registries and their servers. Servers are not
// started; RegisterMetricsLifecycle does that under fx.
//
// Example:
//
//	m := metrics.NewMetrics(metrics.Config{ServiceName: "indexer"})
//	go m.SystemServer.ListenAndServe()
//	go m.ApplicationServer.ListenAndServe()
func NewMetrics(cfg Config) *Metrics {
	m := &Metrics{namespace: cfg.Namespace}
	if m.namespace == "" {
		m.namespace = DefaultNamespace
	}

	if addr := addressOrDefault(cfg.SystemMetricsAddress, DefaultSystemMetricsAddress); addr != "" {
		systemRegistry := prometheus.NewRegistry()
		prometheus.WrapRegistererWith(
			prometheus.Labels{"service": cfg.ServiceName},
			systemRegistry,
		).MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)

		m.SystemRegistry = systemRegistry
		m.SystemServer = &http.Server{
			Addr:    addr,
			Handler: promhttp.HandlerFor(systemRegistry, promhttp.HandlerOpts{}),
		}
	}

	if addr := addressOrDefault(cfg.ApplicationMetricsAddress, DefaultApplicationMetricsAddress); addr != "" {
		applicationRegistry := prometheus.NewRegistry()

		m.ApplicationRegistry = applicationRegistry
		m.wrappedApplicationRegisterer = prometheus.WrapRegistererWith(
			prometheus.Labels{"service": cfg.ServiceName},
			applicationRegistry,
		)
		m.ApplicationServer = &http.Server{
			Addr:    addr,
			Handler: promhttp.HandlerFor(applicationRegistry, promhttp.HandlerOpts{}),
		}
	}

	return m
}
