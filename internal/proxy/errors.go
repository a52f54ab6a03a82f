package proxy

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidTargetURL indicates a destination address that cannot be
// proxied to.
var ErrInvalidTargetURL = errors.New("invalid target URL")

// DestinationError reports a cluster destination whose address is unusable.
// It matches ErrInvalidTargetURL.
type DestinationError struct {
	ClusterID string
	Address   string
	Err       error
}

func (e *DestinationError) Error() string {
	return fmt.Sprintf("cluster %s: destination %q: %v", e.ClusterID, e.Address, e.Err)
}

func (e *DestinationError) Unwrap() error {
	return e.Err
}

func (e *DestinationError) Is(target error) bool {
	return target == ErrInvalidTargetURL
}

// UpstreamError wraps a failed round trip to a destination.
type UpstreamError struct {
	RouteID     string
	Destination string
	Err         error
}

// NewUpstreamError wraps err for the route and destination URL.
func NewUpstreamError(routeID, destination string, err error) *UpstreamError {
	return &UpstreamError{RouteID: routeID, Destination: destination, Err: err}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("route %s: upstream %s: %v", e.RouteID, e.Destination, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the round trip ran out of time.
func (e *UpstreamError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}
