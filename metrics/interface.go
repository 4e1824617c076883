package metrics

// MetricsCollector creates series on the application registry. It hides
// the Prometheus types so callers and tests can substitute their own.
//
// Every series created here is exposed on the application endpoint and
// carries the service label.
type MetricsCollector interface {
	// CreateCounter registers a counter that only increases.
	//
	// Example:
	//   c := m.CreateCounter("sink_writes_total", "Sink writes", []string{"status"})
	//   c.WithLabelValues("success").Inc()
	CreateCounter(name, help string, labels []string) Counter

	// CreateHistogram registers a histogram with the given buckets.
	//
	// Example:
	//   h := m.CreateHistogram("write_seconds", "Write latency", []string{"sink"}, prometheus.DefBuckets)
	//   h.WithLabelValues("file").Observe(0.002)
	CreateHistogram(name, help string, labels []string, buckets []float64) Histogram

	// CreateGauge registers a value that can go up and down.
	//
	// Example:
	//   g := m.CreateGauge("queue_depth", "Records waiting", nil)
	//   g.Set(42)
	CreateGauge(name, help string, labels []string) Gauge
}
