// Package middleware provides the HTTP middleware wrapped around the proxy
// handler.
//
//   - RequestID: assigns or propagates X-Request-ID
//   - Recovery: turns handler panics into a 500 response
//   - Logging: one structured access log entry per request
//
// Middleware functions follow the standard Go pattern and compose with Chain:
//
//	handler := middleware.Chain(proxyHandler,
//	    middleware.Recovery(logger),
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	)
package middleware

import "net/http"

// Chain wraps h so the first middleware is the outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
