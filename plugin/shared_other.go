//go:build !((linux || darwin || freebsd) && cgo)

package plugin

import (
	"context"
	"errors"
)

func (l *Loader) loadShared(_ context.Context, path, _ string) (*PluginProxy, error) {
	return nil, loadErr(LoadNotFound, path, errors.New("shared object plugins are not supported on this platform"))
}
