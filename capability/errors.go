package capability

import (
	"errors"
	"fmt"
)

// Sentinel errors for capability calls and grants.
var (
	// ErrCallFailed is matched by every *Error.
	ErrCallFailed = errors.New("capability call failed")

	// ErrCapabilityDenied is returned when a plugin is not granted a capability kind.
	ErrCapabilityDenied = errors.New("capability denied")
)

// Error is the host error type for failures of a capability operation. Errors coming
// from a plugin are translated into it by the proxies.
type Error struct {
	Kind   Kind
	Plugin string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	if e.Plugin != "" {
		return fmt.Sprintf("%s %s (plugin %q): %v", e.Kind, e.Op, e.Plugin, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, ErrCallFailed).
func (e *Error) Is(target error) bool {
	return target == ErrCallFailed
}

// DeniedError reports a capability kind a plugin was not granted.
type DeniedError struct {
	Plugin string
	Kind   Kind
	Reason string
}

func (e *DeniedError) Error() string {
	msg := fmt.Sprintf("capability %s denied for plugin %q", e.Kind, e.Plugin)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is allows errors.Is(err, ErrCapabilityDenied).
func (e *DeniedError) Is(target error) bool {
	return target == ErrCapabilityDenied
}
