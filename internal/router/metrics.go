package router

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// regexCacheMetrics contains Prometheus metrics for the header regex cache.
type regexCacheMetrics struct {
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter
	cacheSize      prometheus.Gauge
}

var (
	regexCacheMetricsInstance *regexCacheMetrics
	regexCacheMetricsOnce     sync.Once
)

// getRegexCacheMetrics returns the singleton regex cache metrics. The
// collectors are created unregistered; RegisterMetrics exposes them.
func getRegexCacheMetrics() *regexCacheMetrics {
	regexCacheMetricsOnce.Do(func() {
		factory := promauto.With(nil)
		regexCacheMetricsInstance = &regexCacheMetrics{
			cacheHits: factory.NewCounter(prometheus.CounterOpts{
				Namespace: "avaproxy",
				Subsystem: "router",
				Name:      "regex_cache_hits_total",
				Help:      "Total number of header regex cache hits",
			}),
			cacheMisses: factory.NewCounter(prometheus.CounterOpts{
				Namespace: "avaproxy",
				Subsystem: "router",
				Name:      "regex_cache_misses_total",
				Help:      "Total number of header regex cache misses",
			}),
			cacheEvictions: factory.NewCounter(prometheus.CounterOpts{
				Namespace: "avaproxy",
				Subsystem: "router",
				Name:      "regex_cache_evictions_total",
				Help:      "Total number of header regex cache evictions",
			}),
			cacheSize: factory.NewGauge(prometheus.GaugeOpts{
				Namespace: "avaproxy",
				Subsystem: "router",
				Name:      "regex_cache_size",
				Help:      "Current number of entries in the header regex cache",
			}),
		}
	})
	return regexCacheMetricsInstance
}

// RegisterMetrics registers the router's collectors with reg. Registering
// twice with the same registry is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	m := getRegexCacheMetrics()
	for _, c := range []prometheus.Collector{m.cacheHits, m.cacheMisses, m.cacheEvictions, m.cacheSize} {
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
