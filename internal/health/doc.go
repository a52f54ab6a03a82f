// Package health provides liveness and readiness endpoints.
//
// Liveness only reports that the process serves HTTP. Readiness runs the
// registered checks; the proxy registers one that fails until a route
// table is active, and shutdown marks the checker as draining so load
// balancers stop sending traffic before the listener closes.
//
//	checker := health.NewChecker(version)
//	checker.RegisterCheck("route_table", health.RouteTableCheck(func() (int, bool) {
//		table := p.Table()
//		if table == nil {
//			return 0, false
//		}
//		return table.Len(), true
//	}))
//	checker.RegisterRoutes(mux)
package health
