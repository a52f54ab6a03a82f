package util

import (
	"context"
	"time"
)

// Context keys.
type ctxKey string

const (
	ctxKeyStartTime   ctxKey = "start_time"
	ctxKeyRoute       ctxKey = "route"
	ctxKeyCluster     ctxKey = "cluster"
	ctxKeyRouteValues ctxKey = "route_values"
)

// ContextWithStartTime adds a start time to the context.
func ContextWithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyStartTime, t)
}

// StartTimeFromContext extracts the start time from context.
func StartTimeFromContext(ctx context.Context) time.Time {
	if v, ok := ctx.Value(ctxKeyStartTime).(time.Time); ok {
		return v
	}
	return time.Time{}
}

// ElapsedTime returns the elapsed time since the start time in context.
func ElapsedTime(ctx context.Context) time.Duration {
	startTime := StartTimeFromContext(ctx)
	if startTime.IsZero() {
		return 0
	}
	return time.Since(startTime)
}

// ContextWithRoute adds the matched route ID to the context.
func ContextWithRoute(ctx context.Context, routeID string) context.Context {
	return context.WithValue(ctx, ctxKeyRoute, routeID)
}

// RouteFromContext extracts the matched route ID from context.
func RouteFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRoute).(string); ok {
		return v
	}
	return ""
}

// ContextWithCluster adds the selected cluster ID to the context.
func ContextWithCluster(ctx context.Context, clusterID string) context.Context {
	return context.WithValue(ctx, ctxKeyCluster, clusterID)
}

// ClusterFromContext extracts the selected cluster ID from context.
func ClusterFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyCluster).(string); ok {
		return v
	}
	return ""
}

// ContextWithRouteValues adds the values captured by the route matcher.
func ContextWithRouteValues(ctx context.Context, values map[string]string) context.Context {
	return context.WithValue(ctx, ctxKeyRouteValues, values)
}

// RouteValuesFromContext extracts route values from context.
func RouteValuesFromContext(ctx context.Context) map[string]string {
	if v, ok := ctx.Value(ctxKeyRouteValues).(map[string]string); ok {
		return v
	}
	return nil
}

// RequestInfo is filled in by the proxy once a route is matched and read back
// by outer middleware after the handler returns.
type RequestInfo struct {
	RouteID   string
	ClusterID string

	// Destination names the cluster destination the request was sent to.
	Destination string
}

type requestInfoKey struct{}

// ContextWithRequestInfo attaches an empty RequestInfo to the context.
func ContextWithRequestInfo(ctx context.Context) (context.Context, *RequestInfo) {
	info := &RequestInfo{}
	return context.WithValue(ctx, requestInfoKey{}, info), info
}

// RequestInfoFromContext returns the RequestInfo attached to ctx, or nil.
func RequestInfoFromContext(ctx context.Context) *RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*RequestInfo)
	return info
}
