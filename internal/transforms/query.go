package transforms

import (
	"strings"

	"github.com/vyrodovalexey/avaproxy/internal/config"
)

// QueryMode selects whether a query transform replaces or adds a value.
type QueryMode int

// Query modes.
const (
	QueryModeSet QueryMode = iota
	QueryModeAppend
)

// String returns the descriptor parameter key for the mode.
func (m QueryMode) String() string {
	if m == QueryModeAppend {
		return config.ParamAppend
	}
	return config.ParamSet
}

// QueryParameterFromRoute sets or appends a query parameter from a route
// value.
type QueryParameterFromRoute struct {
	Key           string
	RouteValueKey string
	Mode          QueryMode
}

// Kind implements RequestTransform.
func (q *QueryParameterFromRoute) Kind() string { return config.TransformQueryRouteParameter }

// Apply implements RequestTransform.
func (q *QueryParameterFromRoute) Apply(rc *RequestContext) {
	value, ok := rc.RouteValue(q.RouteValueKey)
	if !ok {
		rc.observeNoop(q.Kind(), "missing_route_value")
		return
	}
	applyQueryValue(rc, q.Kind(), q.Key, value, q.Mode)
}

// Entry implements RequestTransform.
func (q *QueryParameterFromRoute) Entry() map[string]string {
	return map[string]string{
		config.TransformQueryRouteParameter: q.Key,
		q.Mode.String():                     q.RouteValueKey,
	}
}

// QueryParameterFromStatic sets or appends a literal query parameter.
type QueryParameterFromStatic struct {
	Key   string
	Value string
	Mode  QueryMode
}

// Kind implements RequestTransform.
func (q *QueryParameterFromStatic) Kind() string { return config.TransformQueryValueParameter }

// Apply implements RequestTransform.
func (q *QueryParameterFromStatic) Apply(rc *RequestContext) {
	applyQueryValue(rc, q.Kind(), q.Key, q.Value, q.Mode)
}

// Entry implements RequestTransform.
func (q *QueryParameterFromStatic) Entry() map[string]string {
	return map[string]string{
		config.TransformQueryValueParameter: q.Key,
		q.Mode.String():                     q.Value,
	}
}

// applyQueryValue skips empty values so that a missing route value never
// produces a bare key.
func applyQueryValue(rc *RequestContext, kind, key, value string, mode QueryMode) {
	if value == "" {
		rc.observeNoop(kind, "empty_value")
		return
	}
	if mode == QueryModeAppend {
		rc.appendQuery(key, value)
		return
	}
	rc.setQuery(key, value)
}

// QueryParameterRemove deletes every value of a query parameter.
type QueryParameterRemove struct {
	Key string
}

// Kind implements RequestTransform.
func (q *QueryParameterRemove) Kind() string { return config.TransformQueryRemoveParameter }

// Apply implements RequestTransform.
func (q *QueryParameterRemove) Apply(rc *RequestContext) {
	rc.deleteQuery(q.Key)
}

// Entry implements RequestTransform.
func (q *QueryParameterRemove) Entry() map[string]string {
	return map[string]string{config.TransformQueryRemoveParameter: q.Key}
}

func queryKeyAndMode(e *Entry) (string, QueryMode, string, error) {
	key := strings.TrimSpace(e.Value())
	if key == "" {
		return "", 0, "", invalidParam("query key must not be empty")
	}
	param, value, err := e.OneOf(config.ParamSet, config.ParamAppend)
	if err != nil {
		return "", 0, "", err
	}
	mode := QueryModeSet
	if param == config.ParamAppend {
		mode = QueryModeAppend
	}
	return key, mode, value, nil
}

func buildQueryValueParameter(bc *BuildContext, e *Entry) error {
	key, mode, value, err := queryKeyAndMode(e)
	if err != nil {
		return err
	}
	bc.AddRequestTransform(&QueryParameterFromStatic{Key: key, Value: value, Mode: mode})
	return nil
}

func buildQueryRouteParameter(bc *BuildContext, e *Entry) error {
	key, mode, routeKey, err := queryKeyAndMode(e)
	if err != nil {
		return err
	}
	if strings.TrimSpace(routeKey) == "" {
		return invalidParam("route value key must not be empty")
	}
	bc.AddRequestTransform(&QueryParameterFromRoute{Key: key, RouteValueKey: routeKey, Mode: mode})
	return nil
}

func buildQueryRemoveParameter(bc *BuildContext, e *Entry) error {
	key := strings.TrimSpace(e.Value())
	if key == "" {
		return invalidParam("query key must not be empty")
	}
	bc.AddRequestTransform(&QueryParameterRemove{Key: key})
	return nil
}
