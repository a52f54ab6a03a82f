package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avaproxy/internal/config"
	"github.com/vyrodovalexey/avaproxy/internal/observability"
)

// run serves until SIGINT or SIGTERM and then shuts down gracefully.
func run(app *application, configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, app, configPath)
}

// serve starts the listeners and the config watcher and blocks until ctx is
// done or a listener fails.
func serve(ctx context.Context, app *application, configPath string) error {
	logger := app.logger
	errCh := make(chan error, 2)

	go func() {
		logger.Info("starting proxy listener",
			observability.String("address", app.server.Addr),
			observability.Bool("tls", app.server.TLSConfig != nil),
		)
		var err error
		if app.server.TLSConfig != nil {
			err = app.server.ListenAndServeTLS("", "")
		} else {
			err = app.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if app.metricsServer != nil {
		go func() {
			logger.Info("starting metrics server", observability.String("address", app.metricsServer.Addr))
			if err := app.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", observability.Error(err))
			}
		}()
	}

	if app.certificates != nil {
		if err := app.certificates.Start(ctx); err != nil {
			logger.Warn("listener certificate reload disabled", observability.Error(err))
		}
	}

	watcher := startConfigWatcher(ctx, app, configPath)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case serveErr = <-errCh:
		logger.Error("proxy listener failed", observability.Error(serveErr))
	}

	shutdown(app, watcher)
	return serveErr
}

// shutdown stops accepting traffic and drains in-flight requests within the
// configured timeout.
func shutdown(app *application, watcher *config.Watcher) {
	logger := app.logger
	app.healthChecker.SetDraining(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Spec.ShutdownTimeout.Duration())
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to stop proxy listener gracefully", observability.Error(err))
	}

	if app.certificates != nil {
		_ = app.certificates.Close()
	}

	if app.metricsServer != nil {
		logger.Info("stopping metrics server")
		if err := app.metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to stop metrics server gracefully", observability.Error(err))
		}
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("proxy stopped")
}
