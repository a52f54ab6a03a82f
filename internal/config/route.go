package config

import (
	"slices"
	"strings"
)

// Route is a route descriptor: how requests are matched, which cluster they
// go to, and the transform descriptor applied on the way.
type Route struct {
	RouteID string     `yaml:"routeId" json:"routeId"`
	Match   RouteMatch `yaml:"match" json:"match"`

	// Order ranks overlapping routes; lower values win. Routes without an
	// order rank after those with one.
	Order *int `yaml:"order,omitempty" json:"order,omitempty"`

	ClusterID           string            `yaml:"clusterId" json:"clusterId"`
	AuthorizationPolicy string            `yaml:"authorizationPolicy,omitempty" json:"authorizationPolicy,omitempty"`
	CorsPolicy          string            `yaml:"corsPolicy,omitempty" json:"corsPolicy,omitempty"`
	Metadata            map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`

	// Transforms is the ordered transform descriptor. Each entry holds one
	// kind key plus its parameters.
	Transforms []map[string]string `yaml:"transforms,omitempty" json:"transforms,omitempty"`
}

// RouteMatch holds the criteria the router evaluates.
type RouteMatch struct {
	Hosts   []string      `yaml:"hosts,omitempty" json:"hosts,omitempty"`
	Path    string        `yaml:"path,omitempty" json:"path,omitempty"`
	Methods []string      `yaml:"methods,omitempty" json:"methods,omitempty"`
	Headers []HeaderMatch `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// HeaderMatch matches one request header. At most one of Exact, Prefix and
// Regex may be set; with none set the header only has to be present. Present
// set to false requires the header to be absent.
type HeaderMatch struct {
	Name    string `yaml:"name" json:"name"`
	Exact   string `yaml:"exact,omitempty" json:"exact,omitempty"`
	Prefix  string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Regex   string `yaml:"regex,omitempty" json:"regex,omitempty"`
	Present *bool  `yaml:"present,omitempty" json:"present,omitempty"`
}

// Equal reports whether two routes describe the same behavior. IDs and
// policy names compare case-insensitively, metadata and transform entries by
// case-insensitive key with ordinal values, transforms in order.
func (r Route) Equal(other Route) bool {
	return strings.EqualFold(r.RouteID, other.RouteID) &&
		strings.EqualFold(r.ClusterID, other.ClusterID) &&
		strings.EqualFold(r.AuthorizationPolicy, other.AuthorizationPolicy) &&
		strings.EqualFold(r.CorsPolicy, other.CorsPolicy) &&
		equalOrder(r.Order, other.Order) &&
		r.Match.Equal(other.Match) &&
		equalFoldKeys(r.Metadata, other.Metadata) &&
		slices.EqualFunc(r.Transforms, other.Transforms, equalFoldKeys)
}

// Equal reports whether two match blocks are equivalent. Hosts and methods
// compare case-insensitively, the path template ordinally.
func (m RouteMatch) Equal(other RouteMatch) bool {
	return m.Path == other.Path &&
		slices.EqualFunc(m.Hosts, other.Hosts, strings.EqualFold) &&
		slices.EqualFunc(m.Methods, other.Methods, strings.EqualFold) &&
		slices.EqualFunc(m.Headers, other.Headers, func(a, b HeaderMatch) bool {
			return strings.EqualFold(a.Name, b.Name) &&
				a.Exact == b.Exact && a.Prefix == b.Prefix && a.Regex == b.Regex &&
				equalBoolPtr(a.Present, b.Present)
		})
}

func equalOrder(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalBoolPtr(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// equalFoldKeys compares two string maps by case-insensitive key and ordinal
// value. A nil map equals an empty one.
func equalFoldKeys(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	folded := make(map[string]string, len(b))
	for k, v := range b {
		folded[strings.ToLower(k)] = v
	}
	for k, v := range a {
		other, ok := folded[strings.ToLower(k)]
		if !ok || other != v {
			return false
		}
	}
	return true
}
