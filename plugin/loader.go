// Package plugin loads capability plugins and exposes their implementations to the
// host as capability proxies.
//
// A plugin is one of: a module registered in-process under "builtin:<name>", a wasm
// module run by wazero, or a Go shared object. Every plugin carries an abi.Header that
// is verified before any of its code runs; every call goes through the abi boundary.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/reglet-dev/robohost/abi"
	"github.com/reglet-dev/robohost/export"
	"github.com/reglet-dev/robohost/host"
)

// BuiltinPrefix marks a module registered with WithBuiltin.
const BuiltinPrefix = "builtin:"

// Loader loads plugin modules. Loaded modules stay loaded until Close.
type Loader struct {
	settings settings

	mu       sync.Mutex
	executor *host.Executor
	modules  []*host.Module
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	return &Loader{settings: newSettings(opts)}
}

// Load loads the module at path, verifies its header, constructs its plugin instance
// and returns a proxy for it. Failures are *LoadError.
func (l *Loader) Load(ctx context.Context, path string) (*PluginProxy, error) {
	if name, ok := strings.CutPrefix(path, BuiltinPrefix); ok {
		m, found := l.settings.builtins[name]
		if !found {
			return nil, loadErr(LoadNotFound, path, fmt.Errorf("no builtin plugin %q", name))
		}
		return l.loadNative(ctx, path, m)
	}

	resolved, err := l.resolve(ctx, path)
	if err != nil {
		return nil, loadErr(LoadNotFound, path, err)
	}

	data, err := os.ReadFile(filepath.Clean(resolved))
	if err != nil {
		return nil, loadErr(LoadNotFound, path, err)
	}

	if pin, ok := l.settings.digests[path]; ok {
		if err := pin.Verify(data); err != nil {
			return nil, loadErr(LoadIntegrity, path, err)
		}
	}

	switch filepath.Ext(resolved) {
	case ".wasm":
		return l.loadWasm(ctx, path, data)
	case ".so":
		return l.loadShared(ctx, path, resolved)
	default:
		return nil, loadErr(LoadNotFound, path, fmt.Errorf("unrecognized module type %q", filepath.Ext(resolved)))
	}
}

func (l *Loader) resolve(ctx context.Context, path string) (string, error) {
	_, err := os.Stat(path)
	if err == nil {
		return path, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || filepath.IsAbs(path) || l.settings.repo == nil {
		return "", err
	}
	return l.settings.repo.Find(ctx, path)
}

func (l *Loader) loadNative(ctx context.Context, path string, m *export.Module) (*PluginProxy, error) {
	if m == nil || m.New == nil {
		return nil, loadErr(LoadMissingExport, path, errors.New("module has no plugin constructor"))
	}
	if err := abi.CheckHeader(m.Header); err != nil {
		return nil, loadErr(LoadAbiMismatch, path, err)
	}

	// a panicking constructor takes the process down
	p := m.New()
	if p == nil {
		return nil, loadErr(LoadInstantiate, path, errors.New("plugin constructor returned nil"))
	}

	proxy, err := newPluginProxy(ctx, export.NewServer(p, export.WithLogger(l.settings.logger)), l.settings)
	if err != nil {
		return nil, loadErr(LoadInstantiate, path, err)
	}
	l.settings.logger.InfoContext(ctx, "plugin: loaded", "path", path, "plugin", proxy.Name(), "id", proxy.ID())
	return proxy, nil
}

func (l *Loader) loadWasm(ctx context.Context, path string, data []byte) (*PluginProxy, error) {
	exec, err := l.executorFor(ctx)
	if err != nil {
		return nil, loadErr(LoadInstantiate, path, err)
	}

	m, err := exec.Load(ctx, filepath.Base(path), data)
	if err != nil {
		return nil, loadErr(classifyWasm(err), path, err)
	}

	if err := m.Construct(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, loadErr(LoadInstantiate, path, err)
	}

	proxy, err := newPluginProxy(ctx, m, l.settings)
	if err != nil {
		_ = m.Close(ctx)
		return nil, loadErr(LoadInstantiate, path, err)
	}

	l.mu.Lock()
	l.modules = append(l.modules, m)
	l.mu.Unlock()

	l.settings.logger.InfoContext(ctx, "plugin: loaded", "path", path, "plugin", proxy.Name(), "id", proxy.ID(),
		"abi", m.Header().SemVer().String())
	return proxy, nil
}

func classifyWasm(err error) LoadErrorKind {
	switch {
	case errors.Is(err, abi.ErrIncompatible):
		return LoadAbiMismatch
	case errors.Is(err, host.ErrMissingExport):
		return LoadMissingExport
	case errors.Is(err, host.ErrInvalidModule):
		return LoadNotFound
	default:
		return LoadInstantiate
	}
}

func (l *Loader) executorFor(ctx context.Context) (*host.Executor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.executor != nil {
		return l.executor, nil
	}
	opts := append([]host.Option{host.WithLogger(l.settings.logger)}, l.settings.hostOptions...)
	exec, err := host.NewExecutor(ctx, opts...)
	if err != nil {
		return nil, err
	}
	l.executor = exec
	return exec, nil
}

// Close releases every wasm module. Proxies from this loader must not be used after.
// Shared objects cannot be unloaded.
func (l *Loader) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, m := range l.modules {
		errs = append(errs, m.Close(ctx))
	}
	l.modules = nil
	if l.executor != nil {
		errs = append(errs, l.executor.Close(ctx))
		l.executor = nil
	}
	return errors.Join(errs...)
}
