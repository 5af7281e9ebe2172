package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// APIMetrics tracks domain-level outcomes of the risk and backtest endpoints,
// separate from the transport metrics recorded by the HTTP middleware.
type APIMetrics struct {
	latency   *prometheus.HistogramVec
	errors    *prometheus.CounterVec
	throttled *prometheus.CounterVec
}

func NewAPIMetrics(reg prometheus.Registerer) *APIMetrics {
	m := &APIMetrics{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "riskdesk",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of API operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskdesk",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by API endpoint and kind",
		}, []string{"endpoint", "kind"}),
		throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskdesk",
			Subsystem: "api",
			Name:      "throttled_total",
			Help:      "Requests rejected by the rate limiter",
		}, []string{"endpoint"}),
	}
	reg.MustRegister(m.latency, m.errors, m.throttled)
	return m
}

// Observe returns a func that records the elapsed time for endpoint when called.
func (m *APIMetrics) Observe(endpoint string) func() {
	start := time.Now()
	return func() { m.latency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }
}

func (m *APIMetrics) Error(endpoint, kind string) {
	m.errors.WithLabelValues(endpoint, kind).Inc()
}

func (m *APIMetrics) Throttled(endpoint string) {
	m.throttled.WithLabelValues(endpoint).Inc()
}
