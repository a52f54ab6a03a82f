package transforms

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the transform engine's collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	buildsTotal       *prometheus.CounterVec
	buildErrorsTotal  *prometheus.CounterVec
	applicationsTotal *prometheus.CounterVec
	noopsTotal        *prometheus.CounterVec
	applyDuration     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		buildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "avaproxy",
				Subsystem: "transforms",
				Name:      "builds_total",
				Help:      "Total number of route transform builds",
			},
			[]string{"result"},
		),
		buildErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "avaproxy",
				Subsystem: "transforms",
				Name:      "build_errors_total",
				Help:      "Total number of route transform build failures by reason",
			},
			[]string{"reason"},
		),
		applicationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "avaproxy",
				Subsystem: "transforms",
				Name:      "applications_total",
				Help:      "Total number of transform pipeline applications",
			},
			[]string{"direction"},
		),
		noopsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "avaproxy",
				Subsystem: "transforms",
				Name:      "noops_total",
				Help:      "Total number of transforms skipped at runtime",
			},
			[]string{"kind", "reason"},
		),
		applyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "avaproxy",
				Subsystem: "transforms",
				Name:      "apply_duration_seconds",
				Help:      "Duration of transform pipeline applications in seconds",
				Buckets: []float64{
					.00001, .00005, .0001, .0005,
					.001, .005, .01, .05,
				},
			},
			[]string{"direction"},
		),
	}
}

// Init pre-creates the common label combinations so the series are
// exported before the first request.
func (m *Metrics) Init() {
	if m == nil {
		return
	}
	for _, result := range []string{"success", "error"} {
		m.buildsTotal.WithLabelValues(result)
	}
	for _, dir := range []string{directionRequest, directionResponse, directionTrailers} {
		m.applicationsTotal.WithLabelValues(dir)
		m.applyDuration.WithLabelValues(dir)
	}
}

func (m *Metrics) recordBuild(ok bool, reason string) {
	if m == nil {
		return
	}
	if ok {
		m.buildsTotal.WithLabelValues("success").Inc()
		return
	}
	m.buildsTotal.WithLabelValues("error").Inc()
	m.buildErrorsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordApply(direction string, d time.Duration) {
	if m == nil {
		return
	}
	m.applicationsTotal.WithLabelValues(direction).Inc()
	m.applyDuration.WithLabelValues(direction).Observe(d.Seconds())
}

func (m *Metrics) recordNoop(kind, reason string) {
	if m == nil {
		return
	}
	m.noopsTotal.WithLabelValues(kind, reason).Inc()
}
