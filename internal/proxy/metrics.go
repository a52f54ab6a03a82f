package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// proxyMetrics holds the proxy's upstream-facing Prometheus collectors.
type proxyMetrics struct {
	errorsTotal      *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

// newProxyMetrics registers the proxy collectors with registerer.
func newProxyMetrics(registerer prometheus.Registerer) *proxyMetrics {
	factory := promauto.With(registerer)
	return &proxyMetrics{
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "avaproxy",
				Subsystem: "proxy",
				Name:      "errors_total",
				Help:      "Total number of proxy errors by route and error type",
			},
			[]string{"route", "error_type"},
		),
		upstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "avaproxy",
				Subsystem: "proxy",
				Name:      "upstream_duration_seconds",
				Help:      "Time until upstream response headers arrive, by cluster",
				Buckets: []float64{
					.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
				},
			},
			[]string{"cluster"},
		),
	}
}

func (m *proxyMetrics) recordError(route, errorType string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(route, errorType).Inc()
}

func (m *proxyMetrics) observeUpstream(cluster string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(cluster).Observe(seconds)
}
