package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vyrodovalexey/avaproxy/internal/config"
	"github.com/vyrodovalexey/avaproxy/internal/router"
	"github.com/vyrodovalexey/avaproxy/internal/transforms"
	"github.com/vyrodovalexey/avaproxy/internal/util"
)

// Route is one active route: its descriptor, compiled transformer and the
// cluster it forwards to.
type Route struct {
	ID          string
	Config      config.Route
	Transformer *transforms.Transformer
	Cluster     *Cluster
}

// Table is an immutable generation of routes and clusters.
type Table struct {
	router   *router.Router
	routes   map[string]*Route
	clusters map[string]*Cluster
}

// BuildTable compiles every route and cluster in cfg. Transformers of routes
// equal to a route in previous are reused. Any failure rejects the whole
// table; the returned error joins every failure found.
func BuildTable(
	ctx context.Context,
	cfg *config.ProxyConfig,
	builder *transforms.Builder,
	previous *Table,
) (*Table, error) {
	t := &Table{
		router:   router.New(),
		routes:   make(map[string]*Route, len(cfg.Spec.Routes)),
		clusters: make(map[string]*Cluster, len(cfg.Spec.Clusters)),
	}

	var errs []error
	for _, c := range cfg.Spec.Clusters {
		cluster, err := NewCluster(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		t.clusters[strings.ToLower(c.ClusterID)] = cluster
	}

	for i := range cfg.Spec.Routes {
		rc := cfg.Spec.Routes[i]

		cluster, ok := t.clusters[strings.ToLower(rc.ClusterID)]
		if !ok {
			errs = append(errs, util.NewClusterError(rc.RouteID, rc.ClusterID, util.ErrClusterNotFound))
			continue
		}

		tr, err := transformerFor(ctx, builder, previous, &rc)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		t.routes[strings.ToLower(rc.RouteID)] = &Route{
			ID:          rc.RouteID,
			Config:      rc,
			Transformer: tr,
			Cluster:     cluster,
		}
	}

	if err := t.router.LoadRoutes(cfg.Spec.Routes); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", util.ErrConfigInvalid, errors.Join(errs...))
	}
	return t, nil
}

func transformerFor(
	ctx context.Context,
	builder *transforms.Builder,
	previous *Table,
	rc *config.Route,
) (*transforms.Transformer, error) {
	if previous != nil {
		if old, ok := previous.Route(rc.RouteID); ok && old.Config.Equal(*rc) {
			return old.Transformer, nil
		}
	}
	return builder.BuildRoute(ctx, rc)
}

// Match finds the route for req using path, the request path with the
// listener's path base removed.
func (t *Table) Match(req *http.Request, path string) (*Route, map[string]string, error) {
	result, err := t.router.MatchPath(req, path)
	if err != nil {
		return nil, nil, err
	}
	route, ok := t.routes[strings.ToLower(result.Route.ID)]
	if !ok {
		return nil, nil, util.NewRouteNotFoundError(req.Method, req.Host, path)
	}
	return route, result.RouteValues, nil
}

// Route returns the route with the given ID.
func (t *Table) Route(id string) (*Route, bool) {
	r, ok := t.routes[strings.ToLower(id)]
	return r, ok
}

// Cluster returns the cluster with the given ID.
func (t *Table) Cluster(id string) (*Cluster, bool) {
	c, ok := t.clusters[strings.ToLower(id)]
	return c, ok
}

// MatchOrder returns the route IDs in the order requests are matched
// against them.
func (t *Table) MatchOrder() []string {
	compiled := t.router.GetRoutes()
	ids := make([]string, 0, len(compiled))
	for _, c := range compiled {
		ids = append(ids, c.ID)
	}
	return ids
}

// Len returns the number of routes.
func (t *Table) Len() int {
	return len(t.routes)
}
