package transforms

import (
	"errors"
	"fmt"
)

// Sentinel errors for descriptor build failures.
var (
	// ErrUnknownTransformKind indicates an entry with no registered kind key.
	ErrUnknownTransformKind = errors.New("unknown transform kind")

	// ErrInvalidTransformParameter indicates a missing, unknown or malformed
	// parameter.
	ErrInvalidTransformParameter = errors.New("invalid transform parameter")

	// ErrDuplicateHeaderTransform indicates two entries targeting the same
	// header name.
	ErrDuplicateHeaderTransform = errors.New("duplicate header transform")
)

// BuildError identifies the descriptor entry that failed to build.
type BuildError struct {
	RouteID string
	Index   int
	Kind    string
	Err     error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "?"
	}
	if e.RouteID == "" {
		return fmt.Sprintf("transform %d (%s): %v", e.Index, kind, e.Err)
	}
	return fmt.Sprintf("route %s: transform %d (%s): %v", e.RouteID, e.Index, kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *BuildError.
func (e *BuildError) Is(target error) bool {
	_, ok := target.(*BuildError)
	return ok
}

func invalidParam(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransformParameter, fmt.Sprintf(format, args...))
}

// errorReason maps a build failure to the build_errors_total reason label.
func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownTransformKind):
		return "unknown_kind"
	case errors.Is(err, ErrDuplicateHeaderTransform):
		return "duplicate_header"
	case errors.Is(err, ErrInvalidTransformParameter):
		return "invalid_parameter"
	default:
		return "other"
	}
}
