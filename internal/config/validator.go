package config

import (
	"fmt"
	"strings"

	"github.com/vyrodovalexey/avaproxy/internal/pathtemplate"
	"github.com/vyrodovalexey/avaproxy/internal/util"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// Is lets errors.Is(err, util.ErrConfigInvalid) match any validation failure.
func (e ValidationErrors) Is(target error) bool {
	return target == util.ErrConfigInvalid
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates proxy configuration. Transform descriptors are left to
// the transform builder.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateConfig validates a proxy configuration.
func ValidateConfig(cfg *ProxyConfig) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration and returns all problems found.
func (v *Validator) Validate(cfg *ProxyConfig) error {
	v.errors = nil

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateRoot(cfg)
	v.validateListener(&cfg.Spec.Listener, "spec.listener")
	clusters := v.validateClusters(cfg.Spec.Clusters)
	v.validateRoutes(cfg.Spec.Routes, clusters)
	if cfg.Spec.Observability != nil {
		v.validateObservability(cfg.Spec.Observability, "spec.observability")
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateRoot(cfg *ProxyConfig) {
	switch {
	case cfg.APIVersion == "":
		v.addError("apiVersion", "apiVersion is required")
	case !strings.HasPrefix(cfg.APIVersion, APIVersionPrefix):
		v.addError("apiVersion", fmt.Sprintf("apiVersion must start with '%s'", APIVersionPrefix))
	}

	switch {
	case cfg.Kind == "":
		v.addError("kind", "kind is required")
	case cfg.Kind != KindProxy:
		v.addError("kind", fmt.Sprintf("kind must be '%s'", KindProxy))
	}

	if cfg.Metadata.Name == "" {
		v.addError("metadata.name", "name is required")
	}
}

func (v *Validator) validateListener(l *ListenerConfig, path string) {
	if err := util.ValidateListenAddress(l.Address); err != nil {
		v.addError(path+".address", err.Error())
	}

	if l.PathBase != "" {
		switch {
		case !strings.HasPrefix(l.PathBase, "/"):
			v.addError(path+".pathBase", "pathBase must start with '/'")
		case strings.HasSuffix(l.PathBase, "/"):
			v.addError(path+".pathBase", "pathBase must not end with '/'")
		case strings.ContainsAny(l.PathBase, "?#"):
			v.addError(path+".pathBase", "pathBase must not contain a query or fragment")
		}
	}

	if l.TLS != nil {
		v.validateListenerTLS(l.TLS, path+".tls")
	}
}

func (v *Validator) validateListenerTLS(tls *ListenerTLSConfig, path string) {
	if tls.CertFile == "" {
		v.addError(path+".certFile", "certFile is required when tls is set")
	}
	if tls.KeyFile == "" {
		v.addError(path+".keyFile", "keyFile is required when tls is set")
	}

	switch tls.ClientAuth {
	case "", ClientAuthNone, ClientAuthRequest, ClientAuthRequire:
	case ClientAuthVerify:
		if tls.ClientCAFile == "" {
			v.addError(path+".clientCAFile", "clientCAFile is required when clientAuth is 'verify'")
		}
	default:
		v.addError(path+".clientAuth", "clientAuth must be none, request, require or verify")
	}
}

// validateClusters returns the set of valid cluster IDs, lower-cased.
func (v *Validator) validateClusters(clusters []Cluster) map[string]bool {
	ids := make(map[string]bool, len(clusters))

	for i := range clusters {
		c := &clusters[i]
		path := fmt.Sprintf("spec.clusters[%d]", i)

		key := strings.ToLower(c.ClusterID)
		switch {
		case c.ClusterID == "":
			v.addError(path+".clusterId", "clusterId is required")
		case ids[key]:
			v.addError(path+".clusterId", fmt.Sprintf("duplicate cluster ID: %s", c.ClusterID))
		default:
			ids[key] = true
		}

		if len(c.Destinations) == 0 {
			v.addError(path+".destinations", "at least one destination is required")
		}
		for j, d := range c.Destinations {
			if err := util.ValidateURL(d.Address); err != nil {
				v.addError(fmt.Sprintf("%s.destinations[%d].address", path, j), err.Error())
			}
		}
	}

	return ids
}

func (v *Validator) validateRoutes(routes []Route, clusters map[string]bool) {
	ids := make(map[string]bool, len(routes))

	for i := range routes {
		r := &routes[i]
		path := fmt.Sprintf("spec.routes[%d]", i)

		key := strings.ToLower(r.RouteID)
		switch {
		case r.RouteID == "":
			v.addError(path+".routeId", "routeId is required")
		case ids[key]:
			v.addError(path+".routeId", fmt.Sprintf("duplicate route ID: %s", r.RouteID))
		default:
			ids[key] = true
		}

		switch {
		case r.ClusterID == "":
			v.addError(path+".clusterId", "clusterId is required")
		case !clusters[strings.ToLower(r.ClusterID)]:
			v.addError(path+".clusterId", fmt.Sprintf("cluster %s not found", r.ClusterID))
		}

		v.validateMatch(&r.Match, path+".match")
	}
}

func (v *Validator) validateMatch(m *RouteMatch, path string) {
	if m.Path == "" && len(m.Hosts) == 0 {
		v.addError(path, "match must specify a path or hosts")
	}

	if m.Path != "" {
		if _, err := pathtemplate.Parse(m.Path); err != nil {
			v.addError(path+".path", err.Error())
		}
	}

	for i, host := range m.Hosts {
		if strings.TrimSpace(host) == "" {
			v.addError(fmt.Sprintf("%s.hosts[%d]", path, i), "host must not be empty")
		}
	}

	for i, method := range m.Methods {
		if err := util.ValidateHTTPMethod(method); err != nil {
			v.addError(fmt.Sprintf("%s.methods[%d]", path, i), err.Error())
		}
	}

	for i := range m.Headers {
		v.validateHeaderMatch(&m.Headers[i], fmt.Sprintf("%s.headers[%d]", path, i))
	}
}

func (v *Validator) validateHeaderMatch(h *HeaderMatch, path string) {
	if err := util.ValidateHeaderName(h.Name); err != nil {
		v.addError(path+".name", err.Error())
	}

	set := 0
	for _, s := range []string{h.Exact, h.Prefix, h.Regex} {
		if s != "" {
			set++
		}
	}
	if set > 1 {
		v.addError(path, "only one of exact, prefix or regex may be set")
	}
	if h.Present != nil && !*h.Present && set > 0 {
		v.addError(path, "present: false cannot be combined with a value match")
	}

	if h.Regex != "" {
		if err := util.ValidateRegex(h.Regex); err != nil {
			v.addError(path+".regex", err.Error())
		}
	}
}

func (v *Validator) validateObservability(obs *ObservabilityConfig, path string) {
	if m := obs.Metrics; m != nil && m.Enabled {
		if err := util.ValidateListenAddress(m.Address); err != nil {
			v.addError(path+".metrics.address", err.Error())
		}
		if !strings.HasPrefix(m.Path, "/") {
			v.addError(path+".metrics.path", "path must start with '/'")
		}
	}

	if t := obs.Tracing; t != nil {
		if t.SamplingRate < 0 || t.SamplingRate > 1 {
			v.addError(path+".tracing.samplingRate", "samplingRate must be between 0 and 1")
		}
	}
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
