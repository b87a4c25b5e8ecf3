package abi

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Constraint returns the versions a module may be built against to load in this
// build: the same major version and a minor version no newer than ours. Before 1.0.0
// every minor version is breaking.
func Constraint() (*semver.Constraints, error) {
	host := semver.MustParse(Version)

	var expr string
	if host.Major() == 0 {
		expr = fmt.Sprintf(">= 0.%d.0-0, < 0.%d.0-0", host.Minor(), host.Minor()+1)
	} else {
		expr = fmt.Sprintf(">= %d.0.0-0, < %d.%d.0-0", host.Major(), host.Major(), host.Minor()+1)
	}

	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid ABI version constraint %q: %w", expr, err)
	}
	return c, nil
}

// CheckVersion reports whether a module built against v can be loaded.
func CheckVersion(v *semver.Version) error {
	c, err := Constraint()
	if err != nil {
		return err
	}
	if ok, errs := c.Validate(v); !ok {
		return fmt.Errorf("%w: module ABI %s, host ABI %s: %w", ErrIncompatible, v, Version, errors.Join(errs...))
	}
	return nil
}
