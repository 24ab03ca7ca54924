package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the service metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	// Probe metrics
	probesTotal   *prometheus.CounterVec
	probeDuration prometheus.Histogram
	batchDuration prometheus.Histogram

	// Known-good list
	workingProxies prometheus.Gauge

	// Input sources
	sourceLines *prometheus.CounterVec

	// API metrics
	apiRequests *prometheus.CounterVec
	apiDuration *prometheus.HistogramVec
}

// NewCollector registers the metrics on reg. Pass prometheus.DefaultRegisterer
// to expose them through promhttp.Handler.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		probesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probes_total",
				Help:      "Total number of proxy probes by outcome",
			},
			[]string{"status"},
		),
		probeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "probe_duration_seconds",
				Help:      "Wall-clock duration of successful probes in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		batchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Duration of a full probe batch in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
		),
		workingProxies: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "working_proxies",
				Help:      "Number of proxies in the current known-good list",
			},
		),
		sourceLines: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_lines_total",
				Help:      "Total number of proxy lines read from remote sources",
			},
			[]string{"source"},
		),
		apiRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		apiDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
	}
}

func (c *Collector) RecordProbe(status string) {
	if c == nil {
		return
	}
	c.probesTotal.WithLabelValues(status).Inc()
}

func (c *Collector) RecordProbeDuration(seconds float64) {
	if c == nil {
		return
	}
	c.probeDuration.Observe(seconds)
}

func (c *Collector) RecordBatchDuration(seconds float64) {
	if c == nil {
		return
	}
	c.batchDuration.Observe(seconds)
}

func (c *Collector) SetWorkingProxies(count int) {
	if c == nil {
		return
	}
	c.workingProxies.Set(float64(count))
}

func (c *Collector) RecordSourceLines(source string, count int) {
	if c == nil {
		return
	}
	c.sourceLines.WithLabelValues(source).Add(float64(count))
}

func (c *Collector) RecordAPIRequest(method, endpoint, status string) {
	if c == nil {
		return
	}
	c.apiRequests.WithLabelValues(method, endpoint, status).Inc()
}

func (c *Collector) RecordAPIDuration(method, endpoint string, seconds float64) {
	if c == nil {
		return
	}
	c.apiDuration.WithLabelValues(method, endpoint).Observe(seconds)
}
