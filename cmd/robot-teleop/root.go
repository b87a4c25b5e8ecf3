package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/reglet-dev/robohost/app"
	"github.com/reglet-dev/robohost/config"
	"github.com/reglet-dev/robohost/plugin"
	"github.com/reglet-dev/robohost/plugin/repository"
	"github.com/reglet-dev/robohost/plugins/keyboard"
	"github.com/reglet-dev/robohost/plugins/memory"
)

const logFileName = "robot-teleop.log"

type options struct {
	configPath        string
	teleopConfig      string
	showDefaultConfig bool
	logDirectory      string
	logLevel          string
	logFormat         string
	listPlugins       bool
	trustPlugins      bool
}

func execute(ctx context.Context, args []string, stdout io.Writer) error {
	var opts options
	fs := flag.NewFlagSet("robot-teleop", flag.ContinueOnError)

	fs.StringVarP(&opts.configPath, "config-path", "c", "", "Teleop configuration file (.toml, .yaml or .json)")
	fs.StringVar(&opts.teleopConfig, "teleop-config", "", "Inline TOML applied on top of the configuration file")
	fs.BoolVar(&opts.showDefaultConfig, "show-default-config", false, "Print the default configuration and exit")
	fs.StringVar(&opts.logDirectory, "log-directory", "", "Write logs to "+logFileName+" in this directory instead of stderr")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	fs.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	fs.BoolVar(&opts.listPlugins, "list-plugins", false, "List available plugins and exit")
	fs.BoolVar(&opts.trustPlugins, "trust-plugins", false, "Grant every capability without asking")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments %q", fs.Args())
	}

	if opts.showDefaultConfig {
		data, err := config.Default().TOML()
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}

	logger, closeLog, err := newLogger(opts)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := config.Load(opts.configPath, opts.teleopConfig)
	if err != nil {
		return err
	}

	if opts.listPlugins {
		return listPlugins(ctx, stdout, cfg)
	}

	t, err := app.Build(ctx, cfg,
		app.WithLogger(logger),
		app.WithTrustPlugins(opts.trustPlugins),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := t.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("robot-teleop: close failed", "error", err)
		}
	}()

	return t.Run(ctx)
}

func newLogger(opts options) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return nil, nil, fmt.Errorf("--log-level: %w", err)
	}

	var (
		out     io.Writer = os.Stderr
		closeFn           = func() {}
	)
	if opts.logDirectory != "" {
		if err := os.MkdirAll(opts.logDirectory, 0o755); err != nil {
			return nil, nil, fmt.Errorf("--log-directory: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(opts.logDirectory, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("--log-directory: %w", err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(opts.logFormat) {
	case "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		closeFn()
		return nil, nil, fmt.Errorf("--log-format: unknown format %q", opts.logFormat)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

func listPlugins(ctx context.Context, w io.Writer, cfg *config.Teleop) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPATH")
	for _, name := range []string{keyboard.Name, memory.Name} {
		fmt.Fprintf(tw, "%s\t%s%s\n", name, plugin.BuiltinPrefix, name)
	}

	if len(cfg.PluginSearchPaths) > 0 {
		repo, err := repository.NewFSPluginRepository(cfg.Dir, cfg.PluginSearchPaths...)
		if err != nil {
			return err
		}
		entries, err := repo.List(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.Path)
		}
	}

	configured := make([]string, 0, len(cfg.Plugins))
	for name := range cfg.Plugins {
		configured = append(configured, name)
	}
	sort.Strings(configured)
	if len(configured) > 0 {
		fmt.Fprintln(tw, "\nCONFIGURED\tPATH")
		for _, name := range configured {
			fmt.Fprintf(tw, "%s\t%s\n", name, cfg.Plugins[name].Path)
		}
	}
	return tw.Flush()
}
