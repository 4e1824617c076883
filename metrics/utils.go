package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CreateCounter registers a counter on the application registry and returns
// it. Every series carries the service label set in Config.ServiceName in
// addition to labels.
//
// Parameters:
//   - name: the full series name, conventionally ending in _total
//   - help: the description shown on the /metrics page
//   - labels: label names, in the order WithLabelValues takes their values
//
// It panics when the application endpoint is disabled or name is already
// registered, like prometheus.MustRegister. Create series once at startup.
//
// Example:
//
//	batches := m.CreateCounter("chrometrace_batches_total",
//	    "Batches written to the trace sink.", []string{"sink"})
//	batches.WithLabelValues("file").Inc()
func (m *Metrics) CreateCounter(name, help string, labels []string) Counter {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	m.wrappedApplicationRegisterer.MustRegister(vec)
	return &counterVec{vec: vec}
}

// CreateHistogram registers a histogram on the application registry and
// returns it. buckets are upper bounds in ascending order; nil selects
// prometheus.DefBuckets, which suits request latencies in seconds.
//
// It panics under the same conditions as CreateCounter.
//
// Example:
//
//	flushes := m.CreateHistogram("chrometrace_flush_seconds",
//	    "Time spent writing one batch.", []string{"sink"},
//	    []float64{.001, .01, .1, 1})
//	flushes.WithLabelValues("minio").Observe(elapsed.Seconds())
func (m *Metrics) CreateHistogram(name, help string, labels []string, buckets []float64) Histogram {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
	m.wrappedApplicationRegisterer.MustRegister(vec)
	return &histogramVec{vec: vec}
}

// CreateGauge registers a gauge on the application registry and returns it.
// Use a gauge for values that go down as well as up, such as the number of
// open spans.
//
// It panics under the same conditions as CreateCounter.
//
// Example:
//
//	open := m.CreateGauge("chrometrace_open_spans",
//	    "Spans registered and not yet closed.", nil)
//	open.Set(float64(layer.Diagnostics().OpenSpans))
func (m *Metrics) CreateGauge(name, help string, labels []string) Gauge {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
	m.wrappedApplicationRegisterer.MustRegister(vec)
	return &gaugeVec{vec: vec}
}
