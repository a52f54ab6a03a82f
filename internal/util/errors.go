package util

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrRouteNotFound   = errors.New("route not found")
	ErrClusterNotFound = errors.New("cluster not found")
	ErrNoDestination   = errors.New("no destination available")
	ErrConfigInvalid   = errors.New("invalid configuration")
)

// RouteNotFoundError is returned when no route matches a request.
type RouteNotFoundError struct {
	Method string
	Host   string
	Path   string
}

// Error implements the error interface.
func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route for %s %s%s", e.Method, e.Host, e.Path)
}

// Is checks if the error matches the target.
func (e *RouteNotFoundError) Is(target error) bool {
	if target == ErrRouteNotFound {
		return true
	}
	_, ok := target.(*RouteNotFoundError)
	return ok
}

// NewRouteNotFoundError creates a new RouteNotFoundError.
func NewRouteNotFoundError(method, host, path string) *RouteNotFoundError {
	return &RouteNotFoundError{Method: method, Host: host, Path: path}
}

// ClusterError describes a failure to pick an upstream destination for a route.
type ClusterError struct {
	RouteID   string
	ClusterID string
	Cause     error
}

// Error implements the error interface.
func (e *ClusterError) Error() string {
	return fmt.Sprintf("route %s: cluster %s: %v", e.RouteID, e.ClusterID, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ClusterError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ClusterError) Is(target error) bool {
	_, ok := target.(*ClusterError)
	return ok || errors.Is(e.Cause, target)
}

// NewClusterError creates a new ClusterError.
func NewClusterError(routeID, clusterID string, cause error) *ClusterError {
	return &ClusterError{RouteID: routeID, ClusterID: clusterID, Cause: cause}
}
