package transforms

import (
	"net/http"
	"net/url"
	"strings"
)

// RequestContext is the per-request working state of the request pipeline.
// The proxy creates one per proxied request; it is never shared.
type RequestContext struct {
	// Inbound is the request as received from the client.
	Inbound *http.Request
	// Outgoing is the request that will be sent upstream.
	Outgoing *http.Request
	// Path is the outgoing path, relative to the destination's base path.
	Path string
	// Method is the outgoing method.
	Method string
	// RouteValues are the values captured by the route match.
	RouteValues map[string]string
	// PathBase is the listener prefix removed before routing.
	PathBase string

	inboundPath   string
	rawPath       string
	query         url.Values
	queryModified bool
	noop          func(kind, reason string)
}

// NewRequestContext returns a context for in and out. path is the inbound
// path with the listener's path base already removed.
func NewRequestContext(in, out *http.Request, path, pathBase string, routeValues map[string]string) *RequestContext {
	if routeValues == nil {
		routeValues = map[string]string{}
	}
	return &RequestContext{
		Inbound:     in,
		Outgoing:    out,
		Path:        path,
		Method:      in.Method,
		RouteValues: routeValues,
		PathBase:    pathBase,
		inboundPath: path,
	}
}

// SetEscapedPath records the inbound escaped form of Path, such as
// "/files/a%2Fb". It is kept on the outgoing request as long as no
// transform changes the path. A value that does not decode to Path is
// ignored.
func (rc *RequestContext) SetEscapedPath(escaped string) {
	if unescaped, err := url.PathUnescape(escaped); err == nil && unescaped == rc.inboundPath {
		rc.rawPath = escaped
	}
}

// outgoingRawPath returns the RawPath for the outgoing URL, empty when the
// path must be re-escaped from Path.
func (rc *RequestContext) outgoingRawPath() string {
	if rc.Path != rc.inboundPath || rc.rawPath == rc.Path {
		return ""
	}
	return rc.rawPath
}

// RouteValue returns a route value by name, matching case-insensitively
// when no exact key exists.
func (rc *RequestContext) RouteValue(name string) (string, bool) {
	if v, ok := rc.RouteValues[name]; ok {
		return v, true
	}
	for k, v := range rc.RouteValues {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Query returns the parsed outgoing query. Mutations through the helpers
// below mark it for re-encoding.
func (rc *RequestContext) Query() url.Values {
	if rc.query == nil {
		raw := ""
		if rc.Outgoing != nil && rc.Outgoing.URL != nil {
			raw = rc.Outgoing.URL.RawQuery
		} else if rc.Inbound.URL != nil {
			raw = rc.Inbound.URL.RawQuery
		}
		// A malformed pair is skipped; the rest of the query still applies.
		rc.query, _ = url.ParseQuery(raw)
	}
	return rc.query
}

// QueryModified reports whether a transform changed the query.
func (rc *RequestContext) QueryModified() bool {
	return rc.queryModified
}

// queryKey returns the existing key equal to key ignoring case.
func (rc *RequestContext) queryKey(key string) (string, bool) {
	q := rc.Query()
	if _, ok := q[key]; ok {
		return key, true
	}
	for k := range q {
		if strings.EqualFold(k, key) {
			return k, true
		}
	}
	return "", false
}

func (rc *RequestContext) setQuery(key, value string) {
	rc.deleteQuery(key)
	rc.query[key] = []string{value}
	rc.queryModified = true
}

func (rc *RequestContext) appendQuery(key, value string) {
	if existing, ok := rc.queryKey(key); ok {
		key = existing
	}
	rc.query[key] = append(rc.query[key], value)
	rc.queryModified = true
}

func (rc *RequestContext) deleteQuery(key string) bool {
	removed := false
	for {
		existing, ok := rc.queryKey(key)
		if !ok {
			break
		}
		delete(rc.query, existing)
		removed = true
	}
	if removed {
		rc.queryModified = true
	}
	return removed
}

func (rc *RequestContext) observeNoop(kind, reason string) {
	if rc.noop != nil {
		rc.noop(kind, reason)
	}
}

// ResponseContext is the per-request working state of the response
// pipeline.
type ResponseContext struct {
	// Inbound is the client request the response answers.
	Inbound *http.Request
	// Response is the upstream response being returned downstream.
	Response *http.Response
}

// NewResponseContext returns a context for resp.
func NewResponseContext(in *http.Request, resp *http.Response) *ResponseContext {
	return &ResponseContext{Inbound: in, Response: resp}
}

// Success reports whether the upstream status is below 400.
func (rc *ResponseContext) Success() bool {
	return rc.Response != nil && rc.Response.StatusCode < http.StatusBadRequest
}
