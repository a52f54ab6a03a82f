package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vyrodovalexey/avaproxy/internal/config"
	"github.com/vyrodovalexey/avaproxy/internal/health"
	"github.com/vyrodovalexey/avaproxy/internal/middleware"
	"github.com/vyrodovalexey/avaproxy/internal/observability"
	"github.com/vyrodovalexey/avaproxy/internal/proxy"
	"github.com/vyrodovalexey/avaproxy/internal/router"
	tlspkg "github.com/vyrodovalexey/avaproxy/internal/tls"
	"github.com/vyrodovalexey/avaproxy/internal/transforms"
)

// application holds all application components.
type application struct {
	config        *config.ProxyConfig
	logger        observability.Logger
	proxy         *proxy.ReverseProxy
	handler       http.Handler
	healthChecker *health.Checker
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	server        *http.Server
	certificates  *tlspkg.Reloader
	metricsServer *http.Server
}

// newApplication wires every component and loads the initial route table.
func newApplication(cfg *config.ProxyConfig, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("avaproxy")
	metrics.SetBuildInfo(version, gitCommit)
	if err := registerCollectors(metrics); err != nil {
		return nil, err
	}

	tracer, err := initTracer(cfg)
	if err != nil {
		return nil, err
	}

	transformMetrics := transforms.NewMetrics(metrics.Registry())
	transformMetrics.Init()

	builder := transforms.NewBuilder(
		transforms.WithBuilderLogger(logger.Named("transforms")),
		transforms.WithMetrics(transformMetrics),
	)

	p := proxy.New(
		proxy.WithProxyLogger(logger.Named("proxy")),
		proxy.WithBuilder(builder),
		proxy.WithPathBase(cfg.Spec.Listener.PathBase),
		proxy.WithMetricsRegisterer(metrics.Registry()),
	)

	healthChecker := health.NewChecker(version)
	healthChecker.RegisterCheck("route_table", health.RouteTableCheck(func() (int, bool) {
		table := p.Table()
		if table == nil {
			return 0, false
		}
		return table.Len(), true
	}))

	app := &application{
		config:        cfg,
		logger:        logger,
		proxy:         p,
		healthChecker: healthChecker,
		metrics:       metrics,
		tracer:        tracer,
	}
	app.handler = buildMiddlewareChain(p, logger, metrics, tracer)

	if err := app.reload(context.Background(), cfg); err != nil {
		return nil, err
	}

	server, certificates, err := newServer(cfg.Spec.Listener, app.handler, logger.Named("listener"))
	if err != nil {
		return nil, err
	}
	app.server = server
	app.certificates = certificates

	if cfg.MetricsEnabled() {
		app.metricsServer = newMetricsServer(cfg.Spec.Observability.Metrics, metrics, healthChecker)
	}

	return app, nil
}

// registerCollectors exposes the package-level collectors on the metrics
// registry.
func registerCollectors(metrics *observability.Metrics) error {
	reg := metrics.Registry()
	for _, register := range []func(prometheus.Registerer) error{
		router.RegisterMetrics,
		middleware.RegisterMetrics,
		health.RegisterMetrics,
		tlspkg.RegisterMetrics,
	} {
		if err := register(reg); err != nil {
			return err
		}
	}
	return nil
}

// initTracer initializes the tracer.
func initTracer(cfg *config.ProxyConfig) (*observability.Tracer, error) {
	tracerCfg := observability.TracerConfig{
		ServiceName:  config.DefaultServiceName,
		SamplingRate: config.DefaultSamplingRate,
	}

	if cfg.TracingEnabled() {
		tr := cfg.Spec.Observability.Tracing
		tracerCfg.Enabled = true
		tracerCfg.SamplingRate = tr.SamplingRate
		tracerCfg.OTLPEndpoint = tr.OTLPEndpoint
		if tr.ServiceName != "" {
			tracerCfg.ServiceName = tr.ServiceName
		}
	}

	return observability.NewTracer(tracerCfg)
}

// buildMiddlewareChain wraps the proxy with the ambient middleware. Tracing
// runs outside logging so access logs carry trace IDs.
func buildMiddlewareChain(
	handler http.Handler,
	logger observability.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
) http.Handler {
	return middleware.Chain(handler,
		middleware.Recovery(logger),
		middleware.RequestID(),
		observability.TracingMiddleware(tracer),
		middleware.Logging(logger),
		observability.MetricsMiddleware(metrics),
	)
}
