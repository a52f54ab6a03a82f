package transforms

import (
	"strings"

	"github.com/vyrodovalexey/avaproxy/internal/config"
	"github.com/vyrodovalexey/avaproxy/internal/pathtemplate"
)

// PathMode selects how PathString rewrites the path.
type PathMode int

// Path modes.
const (
	PathModeSet PathMode = iota
	PathModePrefix
	PathModeRemovePrefix
)

// String returns the descriptor kind for the mode.
func (m PathMode) String() string {
	switch m {
	case PathModePrefix:
		return config.TransformPathPrefix
	case PathModeRemovePrefix:
		return config.TransformPathRemovePrefix
	default:
		return config.TransformPathSet
	}
}

// PathString sets, prefixes or strips the outgoing path.
type PathString struct {
	Mode  PathMode
	Value string
}

// Kind implements RequestTransform.
func (p *PathString) Kind() string { return p.Mode.String() }

// Apply implements RequestTransform.
func (p *PathString) Apply(rc *RequestContext) {
	switch p.Mode {
	case PathModeSet:
		rc.Path = p.Value
	case PathModePrefix:
		rc.Path = joinPrefix(p.Value, rc.Path)
	case PathModeRemovePrefix:
		if rest, ok := trimSegmentPrefix(rc.Path, p.Value); ok {
			rc.Path = rest
		}
	}
}

// Entry implements RequestTransform.
func (p *PathString) Entry() map[string]string {
	return map[string]string{p.Mode.String(): p.Value}
}

// joinPrefix prepends prefix to path without doubling the separator.
func joinPrefix(prefix, path string) string {
	if strings.HasSuffix(prefix, "/") && strings.HasPrefix(path, "/") {
		return prefix + path[1:]
	}
	return prefix + path
}

// trimSegmentPrefix removes prefix from path when it ends on a segment
// boundary. The comparison is case-sensitive.
func trimSegmentPrefix(path, prefix string) (string, bool) {
	if prefix == "" || prefix == "/" {
		return path, false
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if !strings.HasPrefix(path, prefix) {
		return path, false
	}
	rest := path[len(prefix):]
	if rest != "" && rest[0] != '/' {
		return path, false
	}
	return rest, true
}

// PathRouteValues replaces the path with a template bound to the route
// values.
type PathRouteValues struct {
	Template *pathtemplate.Template
}

// Kind implements RequestTransform.
func (p *PathRouteValues) Kind() string { return config.TransformPathRouteValues }

// Apply implements RequestTransform. Missing values bind as empty segments.
func (p *PathRouteValues) Apply(rc *RequestContext) {
	for _, name := range p.Template.Parameters() {
		if _, ok := rc.RouteValue(name); !ok {
			rc.observeNoop(p.Kind(), "missing_route_value")
			break
		}
	}
	rc.Path = p.Template.Bind(rc.RouteValues)
}

// Entry implements RequestTransform.
func (p *PathRouteValues) Entry() map[string]string {
	return map[string]string{config.TransformPathRouteValues: p.Template.String()}
}

func buildPathString(mode PathMode) FactoryFunc {
	return func(bc *BuildContext, e *Entry) error {
		value := e.Value()
		if !strings.HasPrefix(value, "/") {
			return invalidParam("path %q must start with '/'", value)
		}
		bc.AddRequestTransform(&PathString{Mode: mode, Value: value})
		return nil
	}
}

func buildPathRouteValues(bc *BuildContext, e *Entry) error {
	tmpl, err := pathtemplate.Parse(e.Value())
	if err != nil {
		return invalidParam("%v", err)
	}
	bc.AddRequestTransform(&PathRouteValues{Template: tmpl})
	return nil
}
