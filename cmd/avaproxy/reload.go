package main

import (
	"context"
	"strings"

	"github.com/vyrodovalexey/avaproxy/internal/config"
	"github.com/vyrodovalexey/avaproxy/internal/observability"
)

// reload activates a new route table built from cfg. The listener is bound
// once at startup, so listener changes only take effect after a restart.
func (a *application) reload(ctx context.Context, cfg *config.ProxyConfig) error {
	if err := a.proxy.Load(ctx, cfg); err != nil {
		a.metrics.RecordReload(false)
		return err
	}

	a.metrics.RecordReload(true)
	a.metrics.SetRoutesActive(len(cfg.Spec.Routes))

	if a.config != cfg {
		warnListenerChanges(a.config.Spec.Listener, cfg.Spec.Listener, a.logger)
	}
	return nil
}

func warnListenerChanges(active, next config.ListenerConfig, logger observability.Logger) {
	if active.Address != next.Address ||
		!strings.EqualFold(strings.TrimSuffix(active.PathBase, "/"), strings.TrimSuffix(next.PathBase, "/")) ||
		(active.TLS == nil) != (next.TLS == nil) {
		logger.Warn("listener changes require a restart",
			observability.String("active_address", active.Address),
			observability.String("configured_address", next.Address),
		)
	}
}

// startConfigWatcher starts watching the configuration file. Invalid
// configurations are rejected by the watcher or by the route table build
// and leave the active table in place.
func startConfigWatcher(ctx context.Context, app *application, configPath string) *config.Watcher {
	logger := app.logger

	watcher, err := config.NewWatcher(configPath, func(newCfg *config.ProxyConfig) {
		logger.Info("configuration changed, reloading")
		if reloadErr := app.reload(ctx, newCfg); reloadErr != nil {
			logger.Error("failed to reload configuration", observability.Error(reloadErr))
		}
	},
		config.WithLogger(logger.Named("config")),
		config.WithErrorCallback(func(err error) {
			app.metrics.RecordReload(false)
		}),
	)
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
		return nil
	}

	return watcher
}
