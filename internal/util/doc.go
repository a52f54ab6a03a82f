// Package util holds the pieces shared by the proxy packages: error
// conventions, request context helpers and the validation functions used by
// the configuration layer.
//
// Errors come in three forms. Stable conditions are sentinels such as
// ErrRouteNotFound and are checked with errors.Is. Errors that carry request
// details are structured types (RouteNotFoundError, ClusterError) that
// unwrap to, or match, their sentinel. Anything else is wrapped with
// fmt.Errorf and %w.
//
// Per-request state travels in the context. The proxy records the matched
// route, cluster and destination on the RequestInfo created by the outermost
// middleware, so access logs, metrics and spans written after the handler
// returns can read them.
package util
