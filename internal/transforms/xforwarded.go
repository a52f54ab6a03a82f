package transforms

import (
	"strings"

	"github.com/vyrodovalexey/avaproxy/internal/config"
)

// RequestHeaderXForwardedFor reports the client IP.
type RequestHeaderXForwardedFor struct {
	Append bool
}

// Kind implements RequestHeaderTransform.
func (x *RequestHeaderXForwardedFor) Kind() string { return config.TransformXForwarded }

// Apply implements RequestHeaderTransform.
func (x *RequestHeaderXForwardedFor) Apply(rc *RequestContext, values []string) []string {
	ip, _ := splitAddr(rc.Inbound.RemoteAddr)
	return forwardValue(rc, x.Kind(), values, ip, x.Append)
}

// Entry implements RequestHeaderTransform.
func (x *RequestHeaderXForwardedFor) Entry(name string) map[string]string {
	return xForwardedEntry(name, config.XForwardedFor, x.Append)
}

// RequestHeaderXForwardedHost reports the inbound Host.
type RequestHeaderXForwardedHost struct {
	Append bool
}

// Kind implements RequestHeaderTransform.
func (x *RequestHeaderXForwardedHost) Kind() string { return config.TransformXForwarded }

// Apply implements RequestHeaderTransform.
func (x *RequestHeaderXForwardedHost) Apply(rc *RequestContext, values []string) []string {
	return forwardValue(rc, x.Kind(), values, rc.Inbound.Host, x.Append)
}

// Entry implements RequestHeaderTransform.
func (x *RequestHeaderXForwardedHost) Entry(name string) map[string]string {
	return xForwardedEntry(name, config.XForwardedHost, x.Append)
}

// RequestHeaderXForwardedProto reports the inbound scheme.
type RequestHeaderXForwardedProto struct {
	Append bool
}

// Kind implements RequestHeaderTransform.
func (x *RequestHeaderXForwardedProto) Kind() string { return config.TransformXForwarded }

// Apply implements RequestHeaderTransform.
func (x *RequestHeaderXForwardedProto) Apply(rc *RequestContext, values []string) []string {
	return forwardValue(rc, x.Kind(), values, scheme(rc.Inbound), x.Append)
}

// Entry implements RequestHeaderTransform.
func (x *RequestHeaderXForwardedProto) Entry(name string) map[string]string {
	return xForwardedEntry(name, config.XForwardedProto, x.Append)
}

// RequestHeaderXForwardedPathBase reports the listener path base.
type RequestHeaderXForwardedPathBase struct {
	Append bool
}

// Kind implements RequestHeaderTransform.
func (x *RequestHeaderXForwardedPathBase) Kind() string { return config.TransformXForwarded }

// Apply implements RequestHeaderTransform.
func (x *RequestHeaderXForwardedPathBase) Apply(rc *RequestContext, values []string) []string {
	return forwardValue(rc, x.Kind(), values, rc.PathBase, x.Append)
}

// Entry implements RequestHeaderTransform.
func (x *RequestHeaderXForwardedPathBase) Entry(name string) map[string]string {
	return xForwardedEntry(name, config.XForwardedPathBase, x.Append)
}

// forwardValue adds value to values, or replaces them. When value is
// unknown an appending transform keeps the existing values and a setting
// transform drops them.
func forwardValue(rc *RequestContext, kind string, values []string, value string, appendValue bool) []string {
	if value == "" {
		rc.observeNoop(kind, "no_value")
		if appendValue {
			return values
		}
		return nil
	}
	return applyValue(values, value, appendValue)
}

func xForwardedEntry(name, dimension string, appendValue bool) map[string]string {
	prefix := name[:len(name)-len(dimension)]
	e := map[string]string{
		config.TransformXForwarded: dimension,
		config.ParamAppend:         formatBool(appendValue),
	}
	if prefix != config.DefaultXForwardedPrefix {
		e[config.ParamPrefix] = prefix
	}
	return e
}

func buildXForwarded(bc *BuildContext, e *Entry) error {
	dims := splitList(e.Value())
	if len(dims) == 0 {
		return invalidParam("at least one of %s, %s, %s, %s is required",
			config.XForwardedFor, config.XForwardedHost, config.XForwardedProto, config.XForwardedPathBase)
	}

	prefix := config.DefaultXForwardedPrefix
	if p, ok := e.Get(config.ParamPrefix); ok {
		prefix = strings.TrimSpace(p)
	}
	appendValue, err := e.Bool(config.ParamAppend, true)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(dims))
	for _, dim := range dims {
		var (
			suffix string
			t      RequestHeaderTransform
		)
		switch {
		case strings.EqualFold(dim, config.XForwardedFor):
			suffix, t = config.XForwardedFor, &RequestHeaderXForwardedFor{Append: appendValue}
		case strings.EqualFold(dim, config.XForwardedHost):
			suffix, t = config.XForwardedHost, &RequestHeaderXForwardedHost{Append: appendValue}
		case strings.EqualFold(dim, config.XForwardedProto):
			suffix, t = config.XForwardedProto, &RequestHeaderXForwardedProto{Append: appendValue}
		case strings.EqualFold(dim, config.XForwardedPathBase):
			suffix, t = config.XForwardedPathBase, &RequestHeaderXForwardedPathBase{Append: appendValue}
		default:
			return invalidParam("unknown X-Forwarded dimension %q", dim)
		}
		if seen[suffix] {
			continue
		}
		seen[suffix] = true

		name := prefix + suffix
		if err := validHeaderName(name); err != nil {
			return err
		}
		if err := bc.AddRequestHeaderTransform(name, t); err != nil {
			return err
		}
	}
	return nil
}
