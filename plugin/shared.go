//go:build (linux || darwin || freebsd) && cgo

package plugin

import (
	"context"
	"fmt"
	goplugin "plugin"
	"strings"

	"github.com/reglet-dev/robohost/export"
)

func (l *Loader) loadShared(ctx context.Context, path, resolved string) (*PluginProxy, error) {
	so, err := goplugin.Open(resolved)
	if err != nil {
		// the runtime refuses objects built against other package versions
		if strings.Contains(err.Error(), "different version") {
			return nil, loadErr(LoadAbiMismatch, path, err)
		}
		return nil, loadErr(LoadNotFound, path, err)
	}

	sym, err := so.Lookup(export.RootSymbol)
	if err != nil {
		return nil, loadErr(LoadMissingExport, path, err)
	}

	var m *export.Module
	switch v := sym.(type) {
	case *export.Module:
		m = v
	case **export.Module:
		m = *v
	default:
		return nil, loadErr(LoadMissingExport, path, fmt.Errorf("symbol %s has type %T, want *export.Module", export.RootSymbol, sym))
	}
	return l.loadNative(ctx, path, m)
}
