// Package repository discovers plugin modules on the local filesystem.
package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/reglet-dev/robohost/plugin/values"
)

// ErrPluginNotFound is returned when no search pattern yields the requested module.
var ErrPluginNotFound = errors.New("plugin not found")

// PluginNotFoundError reports which reference was searched for and where.
type PluginNotFoundError struct {
	Reference string
	Patterns  []string
}

func (e *PluginNotFoundError) Error() string {
	return fmt.Sprintf("plugin not found: %s (searched %s)", e.Reference, strings.Join(e.Patterns, ", "))
}

// Is implements error matching for errors.Is() checks.
func (e *PluginNotFoundError) Is(target error) bool {
	return target == ErrPluginNotFound
}

// ModuleExtensions are the file extensions of loadable plugin modules.
var ModuleExtensions = []string{".wasm", ".so"}

// Entry is one discovered plugin module.
type Entry struct {
	// Name is the file name without extension.
	Name values.PluginName
	Path string
}

// FSPluginRepository finds plugin modules by doublestar glob patterns such as
// "plugins/**/*.wasm". Relative patterns are resolved against the base directory.
type FSPluginRepository struct {
	base     string
	patterns []string
}

// NewFSPluginRepository creates a repository searching patterns under base.
func NewFSPluginRepository(base string, patterns ...string) (*FSPluginRepository, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePathPattern(p) {
			return nil, fmt.Errorf("invalid plugin search pattern %q", p)
		}
	}
	return &FSPluginRepository{base: base, patterns: slices.Clone(patterns)}, nil
}

// Patterns returns the search patterns as given.
func (r *FSPluginRepository) Patterns() []string {
	return slices.Clone(r.patterns)
}

// Find resolves ref to a discovered module path. ref matches a module whose path ends
// with ref, or whose name equals ref.
func (r *FSPluginRepository) Find(ctx context.Context, ref string) (string, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return "", err
	}

	suffix := filepath.ToSlash(filepath.Clean(ref))
	for _, e := range entries {
		p := filepath.ToSlash(e.Path)
		if p == suffix || strings.HasSuffix(p, "/"+suffix) {
			return e.Path, nil
		}
	}
	for _, e := range entries {
		if e.Name.String() == ref {
			return e.Path, nil
		}
	}
	return "", &PluginNotFoundError{Reference: ref, Patterns: r.Patterns()}
}

// List returns every module the patterns match, sorted by path and without duplicates.
// Files whose names are not valid plugin names are skipped.
func (r *FSPluginRepository) List(ctx context.Context) ([]Entry, error) {
	var paths []string
	for _, pattern := range r.patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		full := pattern
		if !filepath.IsAbs(full) && r.base != "" {
			full = filepath.Join(r.base, full)
		}
		matches, err := doublestar.FilepathGlob(full, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	paths = slices.Compact(paths)

	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		ext := filepath.Ext(p)
		if !slices.Contains(ModuleExtensions, ext) {
			continue
		}
		name, err := values.NewPluginName(strings.TrimSuffix(filepath.Base(p), ext))
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Name: name, Path: p})
	}
	return entries, nil
}
