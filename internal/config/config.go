package config

import (
	"strings"
	"time"
)

// Document identification.
const (
	APIVersionPrefix  = "proxy.avaproxy.io/"
	DefaultAPIVersion = APIVersionPrefix + "v1"
	KindProxy         = "Proxy"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultListenAddress   = ":8080"
	DefaultMetricsAddress  = ":9090"
	DefaultMetricsPath     = "/metrics"
	DefaultServiceName     = "avaproxy"
	DefaultSamplingRate    = 1.0
	DefaultShutdownTimeout = 30 * time.Second

	DefaultReadTimeout       = 30 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
)

// Client certificate modes for the HTTPS listener.
const (
	ClientAuthNone    = "none"
	ClientAuthRequest = "request"
	ClientAuthRequire = "require"
	ClientAuthVerify  = "verify"
)

// ProxyConfig is the root configuration document.
type ProxyConfig struct {
	APIVersion string    `yaml:"apiVersion" json:"apiVersion"`
	Kind       string    `yaml:"kind" json:"kind"`
	Metadata   Metadata  `yaml:"metadata" json:"metadata"`
	Spec       ProxySpec `yaml:"spec" json:"spec"`
}

// Metadata identifies a configuration document.
type Metadata struct {
	Name        string            `yaml:"name" json:"name"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
}

// ProxySpec holds the proxy's listener, routes and clusters.
type ProxySpec struct {
	Listener        ListenerConfig       `yaml:"listener" json:"listener"`
	Routes          []Route              `yaml:"routes,omitempty" json:"routes,omitempty"`
	Clusters        []Cluster            `yaml:"clusters,omitempty" json:"clusters,omitempty"`
	Observability   *ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty"`
	ShutdownTimeout Duration             `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// ListenerConfig configures the inbound HTTP(S) listener.
type ListenerConfig struct {
	Address string `yaml:"address" json:"address"`

	// PathBase is stripped from inbound paths before routing and reported
	// upstream through X-Forwarded-PathBase.
	PathBase string `yaml:"pathBase,omitempty" json:"pathBase,omitempty"`

	TLS      *ListenerTLSConfig `yaml:"tls,omitempty" json:"tls,omitempty"`
	Timeouts *ListenerTimeouts  `yaml:"timeouts,omitempty" json:"timeouts,omitempty"`
}

// ListenerTLSConfig enables HTTPS on the listener.
type ListenerTLSConfig struct {
	CertFile     string `yaml:"certFile" json:"certFile"`
	KeyFile      string `yaml:"keyFile" json:"keyFile"`
	ClientCAFile string `yaml:"clientCAFile,omitempty" json:"clientCAFile,omitempty"`

	// ClientAuth is one of none, request, require or verify.
	ClientAuth string `yaml:"clientAuth,omitempty" json:"clientAuth,omitempty"`
}

// ListenerTimeouts contains HTTP server timeouts.
type ListenerTimeouts struct {
	ReadTimeout       Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout,omitempty" json:"readHeaderTimeout,omitempty"`
	WriteTimeout      Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout       Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
}

// Effective returns the timeouts with zero values replaced by defaults. It is
// safe to call on a nil receiver.
func (t *ListenerTimeouts) Effective() ListenerTimeouts {
	out := ListenerTimeouts{
		ReadTimeout:       Duration(DefaultReadTimeout),
		ReadHeaderTimeout: Duration(DefaultReadHeaderTimeout),
		WriteTimeout:      Duration(DefaultWriteTimeout),
		IdleTimeout:       Duration(DefaultIdleTimeout),
	}
	if t == nil {
		return out
	}
	if t.ReadTimeout > 0 {
		out.ReadTimeout = t.ReadTimeout
	}
	if t.ReadHeaderTimeout > 0 {
		out.ReadHeaderTimeout = t.ReadHeaderTimeout
	}
	if t.WriteTimeout > 0 {
		out.WriteTimeout = t.WriteTimeout
	}
	if t.IdleTimeout > 0 {
		out.IdleTimeout = t.IdleTimeout
	}
	return out
}

// Cluster is a named group of upstream destinations.
type Cluster struct {
	ClusterID    string            `yaml:"clusterId" json:"clusterId"`
	Destinations []Destination     `yaml:"destinations" json:"destinations"`
	Metadata     map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Destination is one upstream of a cluster. Address is an absolute http or
// https URL; its path is prepended to the transformed request path.
type Destination struct {
	Name    string `yaml:"name,omitempty" json:"name,omitempty"`
	Address string `yaml:"address" json:"address"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Tracing *TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}

// DefaultConfig returns a configuration with one listener and no routes.
func DefaultConfig() *ProxyConfig {
	cfg := &ProxyConfig{
		APIVersion: DefaultAPIVersion,
		Kind:       KindProxy,
		Metadata:   Metadata{Name: "avaproxy"},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset listener and observability fields.
func (c *ProxyConfig) ApplyDefaults() {
	if c.Spec.Listener.Address == "" {
		c.Spec.Listener.Address = DefaultListenAddress
	}
	if tls := c.Spec.Listener.TLS; tls != nil && tls.ClientAuth == "" {
		tls.ClientAuth = ClientAuthNone
	}
	if c.Spec.ShutdownTimeout == 0 {
		c.Spec.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}

	obs := c.Spec.Observability
	if obs == nil {
		return
	}
	if m := obs.Metrics; m != nil {
		if m.Address == "" {
			m.Address = DefaultMetricsAddress
		}
		if m.Path == "" {
			m.Path = DefaultMetricsPath
		}
	}
	if tr := obs.Tracing; tr != nil {
		if tr.ServiceName == "" {
			tr.ServiceName = DefaultServiceName
		}
		// An enabled tracer with no rate samples everything.
		if tr.Enabled && tr.SamplingRate == 0 {
			tr.SamplingRate = DefaultSamplingRate
		}
	}
}

// FindCluster returns the cluster with the given ID, compared
// case-insensitively.
func (c *ProxyConfig) FindCluster(id string) (*Cluster, bool) {
	for i := range c.Spec.Clusters {
		if strings.EqualFold(c.Spec.Clusters[i].ClusterID, id) {
			return &c.Spec.Clusters[i], true
		}
	}
	return nil, false
}

// MetricsEnabled reports whether the metrics endpoint is configured on.
func (c *ProxyConfig) MetricsEnabled() bool {
	return c.Spec.Observability != nil && c.Spec.Observability.Metrics != nil &&
		c.Spec.Observability.Metrics.Enabled
}

// TracingEnabled reports whether tracing export is configured on.
func (c *ProxyConfig) TracingEnabled() bool {
	return c.Spec.Observability != nil && c.Spec.Observability.Tracing != nil &&
		c.Spec.Observability.Tracing.Enabled
}
