// Package config provides the proxy configuration model and its loading.
//
// A configuration document describes one listener, the routes matched on it,
// the clusters those routes forward to, and observability settings. Each
// route carries its transform descriptor: an ordered list of string maps that
// the transforms package compiles into a per-route transformer.
//
// # Loading
//
//	cfg, err := config.LoadConfig("avaproxy.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// Values of the form ${VAR} and ${VAR:-default} are substituted from the
// environment before parsing; $$ produces a literal dollar sign.
//
// # Transform descriptors
//
// Descriptors may be written directly in YAML or built with the fluent
// helpers on Route:
//
//	route := config.Route{RouteID: "users", ClusterID: "backend"}.
//	    WithTransformPathRemovePrefix("/api").
//	    WithTransformXForwarded(config.DefaultXForwardedPrefix, true, true, true, false, true)
//
// # File Watching
//
//	watcher, err := config.NewWatcher(path, func(cfg *config.ProxyConfig) {
//	    // rebuild the route table
//	}, config.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := watcher.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package config
