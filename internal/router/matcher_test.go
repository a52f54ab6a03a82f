package router

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaproxy/internal/config"
)

func boolPtr(v bool) *bool { return &v }

func TestHostMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		host     string
		expected bool
	}{
		{name: "exact", pattern: "api.example.com", host: "api.example.com", expected: true},
		{name: "case-insensitive", pattern: "API.example.com", host: "api.EXAMPLE.com", expected: true},
		{name: "any port", pattern: "api.example.com", host: "api.example.com:8443", expected: true},
		{name: "port must match", pattern: "api.example.com:8080", host: "api.example.com:9090", expected: false},
		{name: "port matches", pattern: "api.example.com:8080", host: "api.example.com:8080", expected: true},
		{name: "different host", pattern: "api.example.com", host: "www.example.com", expected: false},
		{name: "wildcard subdomain", pattern: "*.example.com", host: "a.example.com", expected: true},
		{name: "wildcard nested", pattern: "*.example.com", host: "a.b.example.com", expected: true},
		{name: "wildcard excludes apex", pattern: "*.example.com", host: "example.com", expected: false},
		{name: "ipv6", pattern: "[::1]", host: "[::1]:8080", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewHostMatcher(tt.pattern)
			assert.Equal(t, tt.expected, m.Match(tt.host))
			assert.Equal(t, tt.pattern, m.Pattern())
		})
	}
}

func TestMethodMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		methods  []string
		method   string
		expected bool
	}{
		{name: "match", methods: []string{"GET", "POST"}, method: "POST", expected: true},
		{name: "case-insensitive", methods: []string{"get"}, method: "GET", expected: true},
		{name: "no match", methods: []string{"GET"}, method: "DELETE", expected: false},
		{name: "head matches get", methods: []string{"GET"}, method: "HEAD", expected: true},
		{name: "wildcard", methods: []string{"*"}, method: "PATCH", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, NewMethodMatcher(tt.methods).Match(tt.method))
		})
	}
}

func TestHeaderMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      config.HeaderMatch
		headers  http.Header
		expected bool
	}{
		{
			name:     "present",
			cfg:      config.HeaderMatch{Name: "X-Tenant"},
			headers:  http.Header{"X-Tenant": {"a"}},
			expected: true,
		},
		{
			name:     "missing",
			cfg:      config.HeaderMatch{Name: "X-Tenant"},
			headers:  http.Header{},
			expected: false,
		},
		{
			name:     "absent required",
			cfg:      config.HeaderMatch{Name: "X-Debug", Present: boolPtr(false)},
			headers:  http.Header{},
			expected: true,
		},
		{
			name:     "absent required but present",
			cfg:      config.HeaderMatch{Name: "X-Debug", Present: boolPtr(false)},
			headers:  http.Header{"X-Debug": {"1"}},
			expected: false,
		},
		{
			name:     "exact",
			cfg:      config.HeaderMatch{Name: "X-Version", Exact: "2"},
			headers:  http.Header{"X-Version": {"2"}},
			expected: true,
		},
		{
			name:     "exact any value",
			cfg:      config.HeaderMatch{Name: "X-Version", Exact: "2"},
			headers:  http.Header{"X-Version": {"1", "2"}},
			expected: true,
		},
		{
			name:     "exact mismatch",
			cfg:      config.HeaderMatch{Name: "X-Version", Exact: "2"},
			headers:  http.Header{"X-Version": {"3"}},
			expected: false,
		},
		{
			name:     "prefix",
			cfg:      config.HeaderMatch{Name: "User-Agent", Prefix: "curl/"},
			headers:  http.Header{"User-Agent": {"curl/8.0"}},
			expected: true,
		},
		{
			name:     "regex",
			cfg:      config.HeaderMatch{Name: "X-Id", Regex: `^\d+$`},
			headers:  http.Header{"X-Id": {"123"}},
			expected: true,
		},
		{
			name:     "regex mismatch",
			cfg:      config.HeaderMatch{Name: "X-Id", Regex: `^\d+$`},
			headers:  http.Header{"X-Id": {"abc"}},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := NewHeaderMatcher(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m.Match(tt.headers))
		})
	}
}

func TestHeaderMatcher_InvalidRegex(t *testing.T) {
	t.Parallel()

	_, err := NewHeaderMatcher(config.HeaderMatch{Name: "X", Regex: "[invalid"})
	assert.Error(t, err)
}

func TestCompileRegex_Cache(t *testing.T) {
	t.Parallel()

	first, err := compileRegex(`^cache-test-\d+$`)
	require.NoError(t, err)
	second, err := compileRegex(`^cache-test-\d+$`)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestRegisterMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))
	require.NoError(t, RegisterMetrics(reg))

	_, err := compileRegex(`^metrics-test$`)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "avaproxy_router_regex_cache_misses_total")
	assert.Contains(t, names, "avaproxy_router_regex_cache_size")
}
