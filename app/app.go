// Package app assembles a teleoperation session from a configuration: it loads the
// configured plugins, constructs the capability instances the control nodes need,
// builds the nodes and the switcher, and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/reglet-dev/robohost/capability"
	"github.com/reglet-dev/robohost/capability/gatekeeper"
	"github.com/reglet-dev/robohost/capability/grantstore"
	"github.com/reglet-dev/robohost/config"
	"github.com/reglet-dev/robohost/export"
	"github.com/reglet-dev/robohost/plugin"
	"github.com/reglet-dev/robohost/plugin/repository"
	"github.com/reglet-dev/robohost/plugin/values"
	"github.com/reglet-dev/robohost/plugins/keyboard"
	"github.com/reglet-dev/robohost/plugins/memory"
	"github.com/reglet-dev/robohost/teleop"
)

// NoPluginInstanceError reports a configured instance whose plugin does not
// implement the kind it is declared as.
type NoPluginInstanceError struct {
	Name string
	Kind capability.Kind
}

func (e *NoPluginInstanceError) Error() string {
	return fmt.Sprintf("failed to create `%s` instance `%s`: not supported by its plugin", e.Kind, e.Name)
}

type options struct {
	logger        *slog.Logger
	builtins      map[string]*export.Module
	prompter      capability.Prompter
	store         capability.GrantStore
	pluginOpts    []plugin.Option
	switcherOpts  []teleop.Option
	trustOverride bool
}

// Option configures Build.
type Option func(*options)

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBuiltin registers an in-process plugin under builtin:<name>. The memory and
// keyboard plugins are always registered.
func WithBuiltin(name string, m *export.Module) Option {
	return func(o *options) { o.builtins[name] = m }
}

// WithPrompter replaces the terminal prompter used for grants.
func WithPrompter(p capability.Prompter) Option {
	return func(o *options) { o.prompter = p }
}

// WithGrantStore replaces the grant store named by the configuration.
func WithGrantStore(s capability.GrantStore) Option {
	return func(o *options) { o.store = s }
}

// WithTrustPlugins grants every capability regardless of the configuration.
func WithTrustPlugins(trust bool) Option {
	return func(o *options) { o.trustOverride = trust }
}

// WithPluginOptions passes options to the plugin loader.
func WithPluginOptions(opts ...plugin.Option) Option {
	return func(o *options) { o.pluginOpts = append(o.pluginOpts, opts...) }
}

// WithSwitcherOptions passes options to the switcher.
func WithSwitcherOptions(opts ...teleop.Option) Option {
	return func(o *options) { o.switcherOpts = append(o.switcherOpts, opts...) }
}

// Teleop is an assembled session.
type Teleop struct {
	Switcher *teleop.Switcher
	Gamepad  capability.Gamepad

	loader  *plugin.Loader
	closers []io.Closer
	logger  *slog.Logger
}

// Build assembles a session from cfg. On error everything loaded so far is released.
func Build(ctx context.Context, cfg *config.Teleop, opts ...Option) (_ *Teleop, err error) {
	o := options{
		logger: slog.Default(),
		builtins: map[string]*export.Module{
			memory.Name:   memory.Module(),
			keyboard.Name: keyboard.Module(),
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	loaderOpts, err := loaderOptions(cfg, &o)
	if err != nil {
		return nil, err
	}

	b := &builder{
		cfg:       cfg,
		logger:    o.logger,
		loader:    plugin.NewLoader(loaderOpts...),
		plugins:   make(map[string]*plugin.PluginProxy),
		instances: make(map[string]any),
	}
	t := &Teleop{loader: b.loader, logger: o.logger}
	defer func() {
		if err != nil {
			_ = t.Close(ctx)
		}
	}()

	if t.Gamepad, err = get[capability.Gamepad](ctx, b, cfg.Gamepad, capability.KindGamepad); err != nil {
		return nil, err
	}
	speaker, err := get[capability.Speaker](ctx, b, cfg.Speaker, capability.KindSpeaker)
	if err != nil {
		return nil, err
	}

	nodes := make([]teleop.ControlNode, 0, len(cfg.ControlNodes))
	for i, nc := range cfg.ControlNodes {
		node, err := b.node(ctx, nc, speaker)
		if err != nil {
			return nil, fmt.Errorf("control node %d (%s): %w", i, nc.Mode, err)
		}
		if c, ok := node.(io.Closer); ok {
			t.closers = append(t.closers, c)
		}
		nodes = append(nodes, node)
	}

	index, err := teleop.IndexOfMode(nodes, cfg.InitialMode)
	if err != nil {
		return nil, err
	}

	swOpts := append([]teleop.Option{teleop.WithLogger(o.logger)}, o.switcherOpts...)
	if t.Switcher, err = teleop.NewSwitcher(nodes, speaker, index, swOpts...); err != nil {
		return nil, err
	}

	o.logger.InfoContext(ctx, "teleop: assembled", "nodes", len(nodes), "initial_mode", nodes[index].Mode())
	return t, nil
}

func loaderOptions(cfg *config.Teleop, o *options) ([]plugin.Option, error) {
	level, err := gatekeeper.ParseSecurityLevel(cfg.Security.Level)
	if err != nil {
		return nil, err
	}
	store := o.store
	if store == nil {
		store = grantstore.NewFileStore(grantstore.WithPath(cfg.ResolvePath(cfg.Security.GrantsFile)))
	}
	gkOpts := []gatekeeper.Option{
		gatekeeper.WithStore(store),
		gatekeeper.WithSecurityLevel(level),
		gatekeeper.WithTrustAll(cfg.Security.TrustPlugins || o.trustOverride),
		gatekeeper.WithLogger(o.logger),
	}
	if o.prompter != nil {
		gkOpts = append(gkOpts, gatekeeper.WithPrompter(o.prompter))
	}

	opts := []plugin.Option{
		plugin.WithLogger(o.logger),
		plugin.WithAuthorizer(gatekeeper.NewGatekeeper(gkOpts...)),
	}
	for name, m := range o.builtins {
		opts = append(opts, plugin.WithBuiltin(name, m))
	}

	if len(cfg.PluginSearchPaths) > 0 {
		repo, err := repository.NewFSPluginRepository(cfg.Dir, cfg.PluginSearchPaths...)
		if err != nil {
			return nil, fmt.Errorf("plugin_search_paths: %w", err)
		}
		opts = append(opts, plugin.WithRepository(repo))
	}

	for name, p := range cfg.Plugins {
		if p.Digest == "" {
			continue
		}
		d, err := values.ParseDigest(p.Digest)
		if err != nil {
			return nil, fmt.Errorf("plugins.%s.digest: %w", name, err)
		}
		opts = append(opts, plugin.WithDigest(modulePath(cfg, p.Path), d))
	}

	return append(opts, o.pluginOpts...), nil
}

// modulePath resolves file paths against the configuration directory and leaves
// builtin references and bare names (found through the search paths) alone.
func modulePath(cfg *config.Teleop, path string) string {
	if strings.HasPrefix(path, plugin.BuiltinPrefix) {
		return path
	}
	if filepath.IsAbs(path) || strings.ContainsRune(path, filepath.Separator) || strings.ContainsRune(path, '/') || filepath.Ext(path) != "" {
		return cfg.ResolvePath(path)
	}
	return path
}

// Run runs the switcher until the gamepad quits, Stop is called or ctx ends.
func (t *Teleop) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, t.Switcher.Stop)
	defer stop()
	return t.Switcher.Main(ctx, t.Gamepad)
}

// Stop stops a running session.
func (t *Teleop) Stop() {
	if t.Switcher != nil {
		t.Switcher.Stop()
	}
}

// Close releases scripted nodes and unloads wasm plugins.
func (t *Teleop) Close(ctx context.Context) error {
	var errs []error
	for _, c := range t.closers {
		errs = append(errs, c.Close())
	}
	errs = append(errs, t.loader.Close(ctx))
	return errors.Join(errs...)
}
