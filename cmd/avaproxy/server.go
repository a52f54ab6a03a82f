package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/vyrodovalexey/avaproxy/internal/config"
	"github.com/vyrodovalexey/avaproxy/internal/health"
	"github.com/vyrodovalexey/avaproxy/internal/observability"
	tlspkg "github.com/vyrodovalexey/avaproxy/internal/tls"
)

// newServer creates the proxy listener's HTTP server. With TLS configured it
// also returns the certificate provider backing the listener.
func newServer(
	listener config.ListenerConfig,
	handler http.Handler,
	logger observability.Logger,
) (*http.Server, *tlspkg.Reloader, error) {
	timeouts := listener.Timeouts.Effective()

	server := &http.Server{
		Addr:              listener.Address,
		Handler:           handler,
		ReadTimeout:       timeouts.ReadTimeout.Duration(),
		ReadHeaderTimeout: timeouts.ReadHeaderTimeout.Duration(),
		WriteTimeout:      timeouts.WriteTimeout.Duration(),
		IdleTimeout:       timeouts.IdleTimeout.Duration(),
		ErrorLog:          observability.NewStdLog(logger),
	}

	if listener.TLS == nil {
		return server, nil, nil
	}

	certs, err := tlspkg.NewReloader(tlspkg.Files{
		Cert:     listener.TLS.CertFile,
		Key:      listener.TLS.KeyFile,
		ClientCA: listener.TLS.ClientCAFile,
	}, tlspkg.WithReloaderLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load listener certificate: %w", err)
	}

	tlsConfig, err := tlspkg.ServerConfig(certs, listener.TLS.ClientAuth)
	if err != nil {
		_ = certs.Close()
		return nil, nil, err
	}
	server.TLSConfig = tlsConfig

	return server, certs, nil
}

// newMetricsServer creates the metrics and health HTTP server.
func newMetricsServer(
	cfg *config.MetricsConfig,
	metrics *observability.Metrics,
	healthChecker *health.Checker,
) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, metrics.Handler())
	healthChecker.RegisterRoutes(mux)

	return &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}
