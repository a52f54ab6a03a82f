package router

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/vyrodovalexey/avaproxy/internal/config"
	"github.com/vyrodovalexey/avaproxy/internal/pathtemplate"
	"github.com/vyrodovalexey/avaproxy/internal/util"
)

// Specificity weights used to rank routes that share an Order.
const (
	priorityLiteralSegment    = 100
	priorityParamSegment      = 10
	priorityCatchAllPenalty   = 5
	priorityExactHost         = 50
	priorityWildcardHost      = 25
	priorityMethodRestriction = 50
	priorityHeaderRestriction = 10
)

// Router is the routing engine.
type Router struct {
	routes    []*CompiledRoute
	routeMap  map[string]*CompiledRoute
	nextIndex int
	mu        sync.RWMutex
}

// CompiledRoute is a pre-compiled route for efficient matching.
type CompiledRoute struct {
	ID             string
	Config         config.Route
	Template       *pathtemplate.Template
	HostMatchers   []*HostMatcher
	MethodMatcher  *MethodMatcher
	HeaderMatchers []*HeaderMatcher
	Priority       int
	index          int
}

// MatchResult contains the result of a route match.
type MatchResult struct {
	Route       *CompiledRoute
	RouteValues map[string]string
}

// New creates a new router.
func New() *Router {
	return &Router{
		routes:   make([]*CompiledRoute, 0),
		routeMap: make(map[string]*CompiledRoute),
	}
}

// AddRoute compiles and adds a route. Route IDs are unique
// case-insensitively.
func (r *Router) AddRoute(route config.Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(route.RouteID)
	if _, exists := r.routeMap[key]; exists {
		return fmt.Errorf("duplicate route ID: %s", route.RouteID)
	}

	compiled, err := compileRoute(route)
	if err != nil {
		return fmt.Errorf("failed to compile route %s: %w", route.RouteID, err)
	}
	compiled.index = r.nextIndex
	r.nextIndex++

	r.routes = append(r.routes, compiled)
	r.routeMap[key] = compiled
	sortRoutes(r.routes)

	return nil
}

// Match finds the route for a request using its URL path.
func (r *Router) Match(req *http.Request) (*MatchResult, error) {
	return r.MatchPath(req, req.URL.Path)
}

// MatchPath finds the route for a request using path in place of the
// request's own path. The proxy passes the path with the listener's path
// base removed.
func (r *Router) MatchPath(req *http.Request, path string) (*MatchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, route := range r.routes {
		if values, ok := route.match(req, path); ok {
			return &MatchResult{Route: route, RouteValues: values}, nil
		}
	}

	return nil, util.NewRouteNotFoundError(req.Method, req.Host, path)
}

// match checks the cheap criteria first and the path template last.
func (c *CompiledRoute) match(req *http.Request, path string) (map[string]string, bool) {
	if c.MethodMatcher != nil && !c.MethodMatcher.Match(req.Method) {
		return nil, false
	}

	if len(c.HostMatchers) > 0 {
		matched := false
		for _, h := range c.HostMatchers {
			if h.Match(req.Host) {
				matched = true
				break
			}
		}
		if !matched {
			return nil, false
		}
	}

	for _, h := range c.HeaderMatchers {
		if !h.Match(req.Header) {
			return nil, false
		}
	}

	if c.Template == nil {
		return map[string]string{}, true
	}
	return c.Template.Match(path)
}

func compileRoute(route config.Route) (*CompiledRoute, error) {
	compiled := &CompiledRoute{
		ID:     route.RouteID,
		Config: route,
	}

	if route.Match.Path != "" {
		tmpl, err := pathtemplate.Parse(route.Match.Path)
		if err != nil {
			return nil, err
		}
		compiled.Template = tmpl
	}

	for _, host := range route.Match.Hosts {
		compiled.HostMatchers = append(compiled.HostMatchers, NewHostMatcher(host))
	}

	if len(route.Match.Methods) > 0 {
		compiled.MethodMatcher = NewMethodMatcher(route.Match.Methods)
	}

	for _, headerCfg := range route.Match.Headers {
		m, err := NewHeaderMatcher(headerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create header matcher: %w", err)
		}
		compiled.HeaderMatchers = append(compiled.HeaderMatchers, m)
	}

	compiled.Priority = calculatePriority(compiled)
	return compiled, nil
}

// calculatePriority scores how specific a route's match is. Higher scores
// are tried first among routes with the same Order.
func calculatePriority(c *CompiledRoute) int {
	priority := 0

	if c.Template != nil {
		params := len(c.Template.Parameters())
		priority += c.Template.LiteralSegments()*priorityLiteralSegment + params*priorityParamSegment
		if c.Template.HasCatchAll() {
			priority -= priorityCatchAllPenalty
		}
	}

	if len(c.HostMatchers) > 0 {
		best := priorityWildcardHost
		for _, h := range c.HostMatchers {
			if !h.wildcard {
				best = priorityExactHost
			}
		}
		priority += best
	}

	if c.MethodMatcher != nil && !c.MethodMatcher.methods["*"] {
		priority += priorityMethodRestriction
	}

	priority += len(c.HeaderMatchers) * priorityHeaderRestriction

	return priority
}

func sortRoutes(routes []*CompiledRoute) {
	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		ao, bo := a.Config.Order, b.Config.Order
		switch {
		case ao != nil && bo == nil:
			return true
		case ao == nil && bo != nil:
			return false
		case ao != nil && *ao != *bo:
			return *ao < *bo
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.index < b.index
	})
}

// GetRoutes returns all routes in match order.
func (r *Router) GetRoutes() []*CompiledRoute {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]*CompiledRoute, len(r.routes))
	copy(routes, r.routes)
	return routes
}

// Clear removes all routes.
func (r *Router) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes = make([]*CompiledRoute, 0)
	r.routeMap = make(map[string]*CompiledRoute)
	r.nextIndex = 0
}

// LoadRoutes replaces the router's routes with routes.
func (r *Router) LoadRoutes(routes []config.Route) error {
	r.Clear()

	for _, route := range routes {
		if err := r.AddRoute(route); err != nil {
			return err
		}
	}

	return nil
}
