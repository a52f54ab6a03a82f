package middleware

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// middlewareMetrics holds Prometheus metrics for middleware operations.
type middlewareMetrics struct {
	panicsRecovered prometheus.Counter
	requestIDs      *prometheus.CounterVec
}

var (
	middlewareMetricsInstance *middlewareMetrics
	middlewareMetricsOnce     sync.Once
)

// getMiddlewareMetrics returns the singleton middleware metrics. The
// collectors are created unregistered; RegisterMetrics exposes them.
func getMiddlewareMetrics() *middlewareMetrics {
	middlewareMetricsOnce.Do(func() {
		factory := promauto.With(nil)
		middlewareMetricsInstance = &middlewareMetrics{
			panicsRecovered: factory.NewCounter(prometheus.CounterOpts{
				Namespace: "avaproxy",
				Subsystem: "middleware",
				Name:      "panics_recovered_total",
				Help:      "Total number of recovered handler panics",
			}),
			requestIDs: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: "avaproxy",
				Subsystem: "middleware",
				Name:      "request_ids_total",
				Help:      "Request IDs by source (inbound or generated)",
			}, []string{"source"}),
		}
	})
	return middlewareMetricsInstance
}

// RegisterMetrics registers the middleware collectors with reg. Registering
// twice with the same registry is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	m := getMiddlewareMetrics()
	for _, c := range []prometheus.Collector{m.panicsRecovered, m.requestIDs} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
