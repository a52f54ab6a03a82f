package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Checker Tests
// =============================================================================

func TestChecker_Health(t *testing.T) {
	t.Parallel()

	c := NewChecker("1.2.3")
	resp := c.Health()

	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.NotEmpty(t, resp.Uptime)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestChecker_Readiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		checks   map[string]CheckFunc
		expected Status
	}{
		{name: "no checks", expected: StatusHealthy},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"a": func() Check { return Check{Status: StatusHealthy} },
				"b": func() Check { return Check{Status: StatusHealthy} },
			},
			expected: StatusHealthy,
		},
		{
			name: "degraded",
			checks: map[string]CheckFunc{
				"a": func() Check { return Check{Status: StatusHealthy} },
				"b": func() Check { return Check{Status: StatusDegraded} },
			},
			expected: StatusDegraded,
		},
		{
			name: "unhealthy wins",
			checks: map[string]CheckFunc{
				"a": func() Check { return Check{Status: StatusUnhealthy} },
				"b": func() Check { return Check{Status: StatusDegraded} },
			},
			expected: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewChecker("test")
			for name, check := range tt.checks {
				c.RegisterCheck(name, check)
			}

			resp := c.Readiness()
			assert.Equal(t, tt.expected, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checks))
		})
	}
}

func TestRouteTableCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		routes   int
		loaded   bool
		expected Check
	}{
		{name: "not loaded", expected: Check{Status: StatusUnhealthy, Message: "no route table loaded"}},
		{name: "empty table", loaded: true, expected: Check{Status: StatusDegraded, Message: "route table is empty"}},
		{name: "active", routes: 3, loaded: true, expected: Check{Status: StatusHealthy, Message: "3 routes active"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			check := RouteTableCheck(func() (int, bool) { return tt.routes, tt.loaded })
			assert.Equal(t, tt.expected, check())
		})
	}
}

func TestStatus_Serving(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusHealthy.serving())
	assert.True(t, StatusDegraded.serving())
	assert.False(t, StatusUnhealthy.serving())
	assert.False(t, StatusDraining.serving())
	assert.False(t, Status("unknown").serving())
}

// =============================================================================
// Handler Tests
// =============================================================================

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	var routes atomic.Int32
	c := NewChecker("test")
	c.RegisterCheck("route_table", RouteTableCheck(func() (int, bool) {
		n := int(routes.Load())
		return n, n > 0
	}))

	mux := http.NewServeMux()
	c.RegisterRoutes(mux)

	probe := func() (int, ReadinessResponse) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ReadinessPath, nil))
		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		return rec.Code, resp
	}

	code, resp := probe()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "no route table loaded", resp.Checks["route_table"].Message)

	routes.Store(2)
	code, resp = probe()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "2 routes active", resp.Checks["route_table"].Message)

	c.SetDraining(true)
	code, resp = probe()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusDraining, resp.Status)
}

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	c := NewChecker("test")
	c.RegisterCheck("failing", func() Check { return Check{Status: StatusUnhealthy} })
	c.SetDraining(true)

	mux := http.NewServeMux()
	c.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, LivenessPath, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, LivenessPath, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// =============================================================================
// Metrics Tests
// =============================================================================

func TestRegisterMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))
	require.NoError(t, RegisterMetrics(reg))

	c := NewChecker("test")
	c.RegisterCheck("metrics_probe", func() Check { return Check{Status: StatusUnhealthy} })
	c.Readiness()

	assert.Equal(t, float64(0), testutil.ToFloat64(getHealthMetrics().checkStatus.WithLabelValues("metrics_probe")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(getHealthMetrics().checksTotal.WithLabelValues("readiness")), float64(1))
}
