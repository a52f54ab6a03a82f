// Package transforms compiles per-route transform descriptors into an
// immutable Transformer and applies it to proxied requests and responses.
//
// A descriptor is an ordered list of string maps. Each map carries exactly
// one kind key (for example "PathPrefix" or "RequestHeader") whose value is
// the kind's primary argument, plus kind-specific parameters:
//
//	transforms:
//	  - PathRemovePrefix: /api
//	  - RequestHeader: X-Tenant
//	    Set: acme
//	  - X-Forwarded: For,Proto
//	    Append: "false"
//
// The Builder resolves each kind through a Registry of factories and
// returns a *BuildError naming the route, entry index and kind when an
// entry is unknown, malformed or conflicts with an earlier entry. A built
// Transformer is never mutated and may be shared by any number of
// concurrent requests.
//
// At request time the proxy hands the Transformer a RequestContext holding
// the inbound request, the outgoing request and the matched route values.
// ApplyRequest rebuilds the outgoing headers, runs the request pipeline in
// declaration order and commits the resulting method, path and query.
// ApplyResponse and ApplyTrailers rewrite the upstream response before it
// is written downstream.
package transforms
