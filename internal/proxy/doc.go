// Package proxy forwards matched requests to cluster destinations and runs
// each route's compiled transforms on the way through.
//
// A Table holds the routes of one configuration generation: the router,
// the compiled transformer of every route and the clusters they point at.
// Tables are built all-or-nothing and swapped atomically, so a request
// always sees one consistent generation.
//
//	p := proxy.New(
//	    proxy.WithProxyLogger(logger),
//	    proxy.WithPathBase(cfg.Spec.Listener.PathBase),
//	    proxy.WithMetricsRegisterer(metrics.Registry()),
//	)
//	if err := p.Load(ctx, cfg); err != nil {
//	    return err
//	}
//	http.Handle("/", p)
package proxy
