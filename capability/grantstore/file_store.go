// Package grantstore keeps the capability grants a user has approved in a YAML file, so
// they are not asked again on the next run:
//
//	plugins:
//	  arm:
//	    - JointTrajectoryClient
//	    - MoveBase
package grantstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/reglet-dev/robohost/capability"
	"gopkg.in/yaml.v3"
)

const grantsPerm fs.FileMode = 0o600

// DefaultPath is robohost/grants.yaml under the user configuration directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "robohost", "grants.yaml")
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithPath stores grants at path. An empty path keeps DefaultPath.
func WithPath(path string) FileStoreOption {
	return func(s *FileStore) {
		if path != "" {
			s.path = path
		}
	}
}

// FileStore is a capability.GrantStore backed by one YAML file.
type FileStore struct {
	path string
}

var _ capability.GrantStore = (*FileStore)(nil)

func NewFileStore(opts ...FileStoreOption) *FileStore {
	s := &FileStore{path: DefaultPath()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the grants. A missing file holds no grants.
func (s *FileStore) Load() (*capability.GrantSet, error) {
	grants := capability.NewGrantSet()

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return grants, nil
	case err != nil:
		return nil, fmt.Errorf("grantstore: %w", err)
	}

	if err := yaml.Unmarshal(data, grants); err != nil {
		return nil, fmt.Errorf("grantstore: %s: %w", s.path, err)
	}
	if grants.Plugins == nil {
		grants.Plugins = make(map[string][]capability.Kind)
	}
	return grants, nil
}

// Save replaces the file with grants, sorted and deduplicated. The new content is
// written beside the file and renamed over it, so a reader sees either the old grants
// or the new ones.
func (s *FileStore) Save(grants *capability.GrantSet) error {
	out := grants.Clone()
	out.Normalize()

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("grantstore: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("grantstore: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".grants-*.yaml")
	if err != nil {
		return fmt.Errorf("grantstore: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("grantstore: %w", err)
	}
	if err := tmp.Chmod(grantsPerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("grantstore: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("grantstore: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("grantstore: %w", err)
	}
	return nil
}

// ConfigPath returns the grants file path.
func (s *FileStore) ConfigPath() string {
	return s.path
}
