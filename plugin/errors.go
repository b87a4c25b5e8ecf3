package plugin

import (
	"errors"
	"fmt"

	"github.com/reglet-dev/robohost/capability"
)

// Sentinel errors for load failures. A *LoadError matches exactly one of them.
var (
	ErrNotFound      = errors.New("plugin module not found")
	ErrAbiMismatch   = errors.New("plugin ABI mismatch")
	ErrMissingExport = errors.New("plugin missing export")
	ErrInstantiate   = errors.New("plugin instantiation failed")
	ErrIntegrity     = errors.New("plugin integrity check failed")
)

// ErrConstructionFailed matches every *ConstructError.
var ErrConstructionFailed = errors.New("capability construction failed")

// LoadErrorKind classifies a load failure.
type LoadErrorKind int

const (
	LoadNotFound LoadErrorKind = iota + 1
	LoadAbiMismatch
	LoadMissingExport
	LoadInstantiate
	LoadIntegrity
)

func (k LoadErrorKind) sentinel() error {
	switch k {
	case LoadNotFound:
		return ErrNotFound
	case LoadAbiMismatch:
		return ErrAbiMismatch
	case LoadMissingExport:
		return ErrMissingExport
	case LoadInstantiate:
		return ErrInstantiate
	case LoadIntegrity:
		return ErrIntegrity
	default:
		return nil
	}
}

func (k LoadErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("LoadErrorKind(%d)", int(k))
}

// LoadError reports why a plugin module could not be loaded.
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("load %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is implements error matching for errors.Is() checks.
// This allows: errors.Is(err, plugin.ErrAbiMismatch)
func (e *LoadError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func loadErr(kind LoadErrorKind, path string, err error) *LoadError {
	return &LoadError{Kind: kind, Path: path, Err: err}
}

// ConstructError reports a failed capability construction. Unsupported kinds are not
// errors.
type ConstructError struct {
	Plugin string
	Kind   capability.Kind
	Err    error
}

func (e *ConstructError) Error() string {
	return fmt.Sprintf("plugin %s: construct %s: %v", e.Plugin, e.Kind, e.Err)
}

func (e *ConstructError) Unwrap() error { return e.Err }

func (e *ConstructError) Is(target error) bool {
	return target == ErrConstructionFailed
}
