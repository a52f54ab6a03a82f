package tls

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type certMetrics struct {
	reloads *prometheus.CounterVec
	expiry  *prometheus.GaugeVec
}

var (
	certMetricsInstance *certMetrics
	certMetricsOnce     sync.Once
)

func getCertMetrics() *certMetrics {
	certMetricsOnce.Do(func() {
		factory := promauto.With(nil)
		certMetricsInstance = &certMetrics{
			reloads: factory.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avaproxy",
					Subsystem: "tls",
					Name:      "certificate_reloads_total",
					Help:      "Listener certificate reloads by result",
				},
				[]string{"result"},
			),
			expiry: factory.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "avaproxy",
					Subsystem: "tls",
					Name:      "certificate_expiry_timestamp_seconds",
					Help:      "NotAfter of the loaded certificate as a Unix timestamp",
				},
				[]string{"subject"},
			),
		}
	})
	return certMetricsInstance
}

// RegisterMetrics registers the certificate collectors with reg. Collectors
// that are already registered are ignored.
func RegisterMetrics(reg prometheus.Registerer) error {
	m := getCertMetrics()
	for _, c := range []prometheus.Collector{m.reloads, m.expiry} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
