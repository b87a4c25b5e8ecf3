package values

import (
	"fmt"
	"strings"
)

// MaxNameLength bounds plugin and instance names.
const MaxNameLength = 64

// PluginName is a validated identifier for a configured plugin or capability instance.
// Names appear in logs, grant files and spoken diagnostics, so they are restricted to
// ASCII letters, digits, underscores and hyphens.
type PluginName struct {
	value string
}

// NewPluginName trims and validates name.
func NewPluginName(name string) (PluginName, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PluginName{}, fmt.Errorf("plugin name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return PluginName{}, fmt.Errorf("plugin name %q too long (max %d chars)", name, MaxNameLength)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return PluginName{}, fmt.Errorf("plugin name %q cannot contain a path", name)
	}
	for _, ch := range name {
		if !isValidPluginChar(ch) {
			return PluginName{}, fmt.Errorf("invalid plugin name %q: must contain only alphanumeric characters, underscores, and hyphens", name)
		}
	}
	return PluginName{value: name}, nil
}

func isValidPluginChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '_' ||
		r == '-'
}

// MustNewPluginName creates a PluginName or panics.
func MustNewPluginName(name string) PluginName {
	pn, err := NewPluginName(name)
	if err != nil {
		panic(err)
	}
	return pn
}

func (p PluginName) String() string {
	return p.value
}

// IsEmpty returns true if this is the zero value.
func (p PluginName) IsEmpty() bool {
	return p.value == ""
}

// MarshalText implements encoding.TextMarshaler.
func (p PluginName) MarshalText() ([]byte, error) {
	return []byte(p.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PluginName) UnmarshalText(text []byte) error {
	name, err := NewPluginName(string(text))
	if err != nil {
		return err
	}
	*p = name
	return nil
}
