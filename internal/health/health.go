package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Endpoint paths served by RegisterRoutes.
const (
	LivenessPath  = "/healthz"
	ReadinessPath = "/readyz"
)

// Status is the outcome of a check or of the whole probe.
type Status string

// Statuses in increasing order of severity.
const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusDraining  Status = "draining"
)

func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	case StatusUnhealthy:
		return 2
	case StatusDraining:
		return 3
	default:
		return 2
	}
}

// serving reports whether a probe with this status should receive traffic.
func (s Status) serving() bool {
	return s.severity() < StatusUnhealthy.severity()
}

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse is the readiness body.
type ReadinessResponse struct {
	Status    Status           `json:"status"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Check is the result of one readiness check.
type Check struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckFunc performs one readiness check.
type CheckFunc func() Check

// RouteTableCheck reports whether the proxy has an active route table.
// active returns the number of routes and false while no table is loaded.
func RouteTableCheck(active func() (routes int, loaded bool)) CheckFunc {
	return func() Check {
		routes, loaded := active()
		switch {
		case !loaded:
			return Check{Status: StatusUnhealthy, Message: "no route table loaded"}
		case routes == 0:
			return Check{Status: StatusDegraded, Message: "route table is empty"}
		default:
			return Check{Status: StatusHealthy, Message: fmt.Sprintf("%d routes active", routes)}
		}
	}
}

// Checker serves liveness and readiness for the proxy process.
type Checker struct {
	version   string
	startTime time.Time
	draining  atomic.Bool

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewChecker creates a checker reporting version on liveness.
func NewChecker(version string) *Checker {
	return &Checker{
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]CheckFunc),
	}
}

// RegisterCheck adds or replaces a readiness check.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// SetDraining marks the process as shutting down. A draining process is
// never ready, whatever its checks report.
func (c *Checker) SetDraining(draining bool) {
	c.draining.Store(draining)
}

// Health returns the liveness status. A running process is always live.
func (c *Checker) Health() HealthResponse {
	getHealthMetrics().checksTotal.WithLabelValues("liveness").Inc()
	return HealthResponse{
		Status:    StatusHealthy,
		Version:   c.version,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
}

// Readiness runs every check in name order and reports the most severe
// status among them.
func (c *Checker) Readiness() ReadinessResponse {
	metrics := getHealthMetrics()
	metrics.checksTotal.WithLabelValues("readiness").Inc()

	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := StatusHealthy
	results := make(map[string]Check, len(names))
	for _, name := range names {
		check := c.checks[name]()
		results[name] = check
		metrics.setStatus(name, check.Status.serving())
		if check.Status.severity() > overall.severity() {
			overall = check.Status
		}
	}
	c.mu.RUnlock()

	if c.draining.Load() {
		overall = StatusDraining
	}
	metrics.setStatus("overall", overall.serving())

	return ReadinessResponse{Status: overall, Checks: results, Timestamp: time.Now()}
}

// LivenessHandler serves Health as JSON.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, c.Health())
	}
}

// ReadinessHandler serves Readiness as JSON, with 503 when the proxy should
// not receive traffic.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response := c.Readiness()
		code := http.StatusOK
		if !response.Status.serving() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, response)
	}
}

// RegisterRoutes adds the liveness and readiness endpoints to mux.
func (c *Checker) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET "+LivenessPath, c.LivenessHandler())
	mux.Handle("GET "+ReadinessPath, c.ReadinessHandler())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
