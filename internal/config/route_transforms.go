package config

import (
	"strconv"
	"strings"
)

// WithTransform returns a copy of the route with entry appended to its
// transform descriptor. The receiver is not modified.
func (r Route) WithTransform(entry map[string]string) Route {
	out := r
	out.Transforms = make([]map[string]string, 0, len(r.Transforms)+1)
	out.Transforms = append(out.Transforms, r.Transforms...)
	out.Transforms = append(out.Transforms, entry)
	return out
}

// WithTransformPathSet replaces the request path.
func (r Route) WithTransformPathSet(path string) Route {
	return r.WithTransform(map[string]string{TransformPathSet: path})
}

// WithTransformPathPrefix prepends a prefix to the request path.
func (r Route) WithTransformPathPrefix(prefix string) Route {
	return r.WithTransform(map[string]string{TransformPathPrefix: prefix})
}

// WithTransformPathRemovePrefix strips a prefix from the request path.
func (r Route) WithTransformPathRemovePrefix(prefix string) Route {
	return r.WithTransform(map[string]string{TransformPathRemovePrefix: prefix})
}

// WithTransformPathRouteValues sets the path from a template filled with
// route values.
func (r Route) WithTransformPathRouteValues(template string) Route {
	return r.WithTransform(map[string]string{TransformPathRouteValues: template})
}

// WithTransformSuppressRequestHeaders stops inbound request headers from being
// copied to the upstream request. Headers that have their own transform still
// start from the inbound values; use Append false on forwarding headers to
// drop client-supplied values.
func (r Route) WithTransformSuppressRequestHeaders() Route {
	return r.WithTransform(map[string]string{TransformRequestHeadersCopy: "false"})
}

// WithTransformUseOriginalHostHeader forwards the inbound Host header instead
// of the destination's host.
func (r Route) WithTransformUseOriginalHostHeader() Route {
	return r.WithTransform(map[string]string{TransformRequestHeaderOriginalHost: "true"})
}

// WithTransformRequestHeader sets or appends a request header value.
func (r Route) WithTransformRequestHeader(name, value string, appendValue bool) Route {
	return r.WithTransform(map[string]string{
		TransformRequestHeader:   name,
		setOrAppend(appendValue): value,
	})
}

// WithTransformResponseHeader sets or appends a response header value.
// With always false the transform only runs on successful responses.
func (r Route) WithTransformResponseHeader(name, value string, appendValue, always bool) Route {
	return r.WithTransform(map[string]string{
		TransformResponseHeader:  name,
		setOrAppend(appendValue): value,
		ParamWhen:                when(always),
	})
}

// WithTransformResponseTrailer sets or appends a response trailer value.
func (r Route) WithTransformResponseTrailer(name, value string, appendValue, always bool) Route {
	return r.WithTransform(map[string]string{
		TransformResponseTrailer: name,
		setOrAppend(appendValue): value,
		ParamWhen:                when(always),
	})
}

// WithTransformClientCert forwards the client certificate in the named header.
func (r Route) WithTransformClientCert(headerName string) Route {
	return r.WithTransform(map[string]string{TransformClientCert: headerName})
}

// WithTransformForwarded adds an RFC 7239 Forwarded header.
func (r Route) WithTransformForwarded(useFor, useHost, useProto, useBy, appendValue bool,
	forFormat, byFormat string) Route {
	var dims []string
	entry := map[string]string{ParamAppend: strconv.FormatBool(appendValue)}
	if useBy {
		dims = append(dims, ForwardedBy)
		entry[ParamByFormat] = byFormat
	}
	if useFor {
		dims = append(dims, ForwardedFor)
		entry[ParamForFormat] = forFormat
	}
	if useHost {
		dims = append(dims, ForwardedHost)
	}
	if useProto {
		dims = append(dims, ForwardedProto)
	}
	entry[TransformForwarded] = strings.Join(dims, ",")
	return r.WithTransform(entry)
}

// WithTransformXForwarded adds the selected X-Forwarded-* headers using the
// given header prefix.
func (r Route) WithTransformXForwarded(prefix string, useFor, useHost, useProto, usePathBase,
	appendValue bool) Route {
	var dims []string
	if useFor {
		dims = append(dims, XForwardedFor)
	}
	if useHost {
		dims = append(dims, XForwardedHost)
	}
	if useProto {
		dims = append(dims, XForwardedProto)
	}
	if usePathBase {
		dims = append(dims, XForwardedPathBase)
	}
	return r.WithTransform(map[string]string{
		TransformXForwarded: strings.Join(dims, ","),
		ParamPrefix:         prefix,
		ParamAppend:         strconv.FormatBool(appendValue),
	})
}

// WithTransformHTTPMethod changes the request method from one value to another.
func (r Route) WithTransformHTTPMethod(from, to string) Route {
	return r.WithTransform(map[string]string{
		TransformHTTPMethodChange: from,
		ParamSet:                  to,
	})
}

// WithTransformQueryRouteParameter sets or appends a query parameter taken
// from a route value.
func (r Route) WithTransformQueryRouteParameter(key, routeValueKey string, appendValue bool) Route {
	return r.WithTransform(map[string]string{
		TransformQueryRouteParameter: key,
		setOrAppend(appendValue):     routeValueKey,
	})
}

// WithTransformQueryValueParameter sets or appends a static query parameter.
func (r Route) WithTransformQueryValueParameter(key, value string, appendValue bool) Route {
	return r.WithTransform(map[string]string{
		TransformQueryValueParameter: key,
		setOrAppend(appendValue):     value,
	})
}

// WithTransformRemoveQueryParameter removes a query parameter.
func (r Route) WithTransformRemoveQueryParameter(key string) Route {
	return r.WithTransform(map[string]string{TransformQueryRemoveParameter: key})
}

func setOrAppend(appendValue bool) string {
	if appendValue {
		return ParamAppend
	}
	return ParamSet
}

func when(always bool) string {
	if always {
		return WhenAlways
	}
	return WhenSuccess
}
