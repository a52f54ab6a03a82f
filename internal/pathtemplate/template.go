// Package pathtemplate parses route path templates such as
// /api/{version}/users/{id?} or /files/{**path}. The router uses a template
// to capture route values from an inbound path; the PathRouteValues transform
// uses one to build the outgoing path from those values.
package pathtemplate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTemplate is returned for malformed templates.
var ErrInvalidTemplate = errors.New("invalid path template")

// Template is a parsed, immutable path template.
type Template struct {
	text     string
	segments []segment
}

type segment struct {
	literal      string
	param        string
	optional     bool
	catchAll     bool
	defaultValue string
	hasDefault   bool
}

func (s segment) isParam() bool {
	return s.param != ""
}

// Parse parses a template. Each segment is either a literal or a single
// parameter: {name}, {name?} (optional), {name=default}, {*name} or
// {**name} (catch-all, last segment only). Parameter constraints and
// segments mixing literals with parameters are not supported.
func Parse(text string) (*Template, error) {
	trimmed := strings.TrimPrefix(text, "/")
	parts := splitPath(trimmed)

	t := &Template{
		text:     text,
		segments: make([]segment, 0, len(parts)),
	}

	seen := make(map[string]bool, len(parts))
	for i, part := range parts {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidTemplate, text, err)
		}

		if seg.isParam() {
			key := strings.ToLower(seg.param)
			if seen[key] {
				return nil, fmt.Errorf("%w %q: duplicate parameter %q", ErrInvalidTemplate, text, seg.param)
			}
			seen[key] = true

			last := i == len(parts)-1
			if seg.catchAll && !last {
				return nil, fmt.Errorf("%w %q: catch-all parameter %q must be the last segment",
					ErrInvalidTemplate, text, seg.param)
			}
			if seg.optional && !last {
				return nil, fmt.Errorf("%w %q: optional parameter %q must be the last segment",
					ErrInvalidTemplate, text, seg.param)
			}
		}

		t.segments = append(t.segments, seg)
	}

	return t, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level templates.
func MustParse(text string) *Template {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

func parseSegment(part string) (segment, error) {
	if !strings.ContainsAny(part, "{}") {
		if strings.ContainsAny(part, "?#") {
			return segment{}, fmt.Errorf("literal %q must not contain a query or fragment", part)
		}
		return segment{literal: part}, nil
	}

	if !strings.HasPrefix(part, "{") || !strings.HasSuffix(part, "}") || strings.Count(part, "{") != 1 ||
		strings.Count(part, "}") != 1 {
		return segment{}, fmt.Errorf("segment %q must be a literal or a single parameter", part)
	}

	body := part[1 : len(part)-1]
	var seg segment

	switch {
	case strings.HasPrefix(body, "**"):
		seg.catchAll = true
		body = body[2:]
	case strings.HasPrefix(body, "*"):
		seg.catchAll = true
		body = body[1:]
	}

	if name, def, ok := strings.Cut(body, "="); ok {
		seg.defaultValue = def
		seg.hasDefault = true
		body = name
	}

	if strings.HasSuffix(body, "?") {
		if seg.catchAll {
			return segment{}, fmt.Errorf("catch-all parameter %q cannot be optional", body)
		}
		if seg.hasDefault {
			return segment{}, fmt.Errorf("parameter %q cannot be optional and have a default", body)
		}
		seg.optional = true
		body = strings.TrimSuffix(body, "?")
	}

	if body == "" {
		return segment{}, fmt.Errorf("segment %q has an empty parameter name", part)
	}
	for _, r := range body {
		if !isNameRune(r) {
			return segment{}, fmt.Errorf("parameter name %q contains unsupported character %q", body, r)
		}
	}

	seg.param = body
	return seg, nil
}

func isNameRune(r rune) bool {
	return r == '_' || r == '-' || r == '.' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// String returns the template text as parsed.
func (t *Template) String() string {
	return t.text
}

// Parameters returns the parameter names in declaration order.
func (t *Template) Parameters() []string {
	var names []string
	for _, s := range t.segments {
		if s.isParam() {
			names = append(names, s.param)
		}
	}
	return names
}

// LiteralSegments returns the number of literal segments. The router uses it
// to rank templates of equal order by specificity.
func (t *Template) LiteralSegments() int {
	n := 0
	for _, s := range t.segments {
		if !s.isParam() {
			n++
		}
	}
	return n
}

// HasCatchAll reports whether the template ends with a catch-all parameter.
func (t *Template) HasCatchAll() bool {
	return len(t.segments) > 0 && t.segments[len(t.segments)-1].catchAll
}

// Match matches a decoded request path against the template and returns the
// captured route values. Literal segments compare case-sensitively.
func (t *Template) Match(path string) (map[string]string, bool) {
	parts := splitPath(strings.TrimPrefix(path, "/"))
	values := make(map[string]string)

	i := 0
	for _, seg := range t.segments {
		switch {
		case seg.catchAll:
			rest := strings.Join(parts[min(i, len(parts)):], "/")
			if rest == "" && seg.hasDefault {
				rest = seg.defaultValue
			}
			values[seg.param] = rest
			i = len(parts)

		case seg.isParam():
			if i >= len(parts) || parts[i] == "" {
				if !seg.optional && !seg.hasDefault {
					return nil, false
				}
				if seg.hasDefault {
					values[seg.param] = seg.defaultValue
				}
				i++
				continue
			}
			values[seg.param] = parts[i]
			i++

		default:
			if i >= len(parts) || parts[i] != seg.literal {
				return nil, false
			}
			i++
		}
	}

	if i < len(parts) {
		return nil, false
	}
	return values, true
}

// Bind substitutes route values into the template and returns an absolute,
// decoded path. A missing required value yields an empty segment; a missing
// optional or catch-all value drops its segment.
func (t *Template) Bind(values map[string]string) string {
	var b strings.Builder
	for _, seg := range t.segments {
		if !seg.isParam() {
			b.WriteByte('/')
			b.WriteString(seg.literal)
			continue
		}

		v, ok := lookup(values, seg.param)
		if (!ok || v == "") && seg.hasDefault {
			v, ok = seg.defaultValue, true
		}
		if (!ok || v == "") && (seg.optional || seg.catchAll) {
			continue
		}

		b.WriteByte('/')
		b.WriteString(strings.TrimPrefix(v, "/"))
	}

	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// lookup finds a route value by exact name, then case-insensitively.
func lookup(values map[string]string, name string) (string, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	for k, v := range values {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
