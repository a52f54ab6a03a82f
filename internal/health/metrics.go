package health

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// healthMetrics holds Prometheus metrics for health checks.
type healthMetrics struct {
	checksTotal *prometheus.CounterVec
	checkStatus *prometheus.GaugeVec
}

var (
	healthMetricsInstance *healthMetrics
	healthMetricsOnce     sync.Once
)

// getHealthMetrics returns the singleton health metrics. The collectors are
// created unregistered; RegisterMetrics exposes them.
func getHealthMetrics() *healthMetrics {
	healthMetricsOnce.Do(func() {
		factory := promauto.With(nil)
		healthMetricsInstance = &healthMetrics{
			checksTotal: factory.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avaproxy",
					Subsystem: "health",
					Name:      "checks_total",
					Help:      "Total number of health checks performed",
				},
				[]string{"type"},
			),
			checkStatus: factory.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "avaproxy",
					Subsystem: "health",
					Name:      "check_status",
					Help:      "Current health check status (1=healthy, 0=unhealthy)",
				},
				[]string{"check"},
			),
		}
		for _, checkType := range []string{"liveness", "readiness"} {
			healthMetricsInstance.checksTotal.WithLabelValues(checkType)
		}
	})
	return healthMetricsInstance
}

func (m *healthMetrics) setStatus(check string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	m.checkStatus.WithLabelValues(check).Set(v)
}

// RegisterMetrics registers the health collectors with reg. Registering
// twice with the same registry is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	m := getHealthMetrics()
	for _, c := range []prometheus.Collector{m.checksTotal, m.checkStatus} {
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
