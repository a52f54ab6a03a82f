// Package router selects the route for an inbound request.
//
// Routes match on host, path template, method and headers. Path templates
// come from the pathtemplate package and capture route values that the
// transform engine later consumes.
//
// Precedence among overlapping routes:
//
//   - lower Order first; routes without an Order after all ordered routes
//   - then the more specific match (literal path segments, host, method
//     and header restrictions)
//   - then declaration order
//
// # Usage
//
//	r := router.New()
//	if err := r.LoadRoutes(cfg.Spec.Routes); err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := r.Match(req)
//	if err != nil {
//	    // errors.Is(err, util.ErrRouteNotFound)
//	}
//	_ = result.RouteValues["id"]
package router
