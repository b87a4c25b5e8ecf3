package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/robohost/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_ShowDefaultConfig(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), []string{"--show-default-config"}, &out))

	path := filepath.Join(t.TempDir(), "teleop.toml")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o600))

	cfg, err := config.Load(path, "")
	require.NoError(t, err)
	want := config.Default()
	want.Dir = cfg.Dir
	assert.Equal(t, want, cfg)
}

func TestExecute_ListPlugins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "plugins"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugins", "gripper.wasm"), []byte{0}, 0o600))

	path := filepath.Join(dir, "teleop.toml")
	cfg := config.Default()
	cfg.PluginSearchPaths = []string{"plugins/*.wasm"}
	data, err := cfg.TOML()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), []string{
		"-c", path, "--list-plugins", "--log-directory", filepath.Join(dir, "logs"),
	}, &out))

	assert.Contains(t, out.String(), "builtin:memory")
	assert.Contains(t, out.String(), "builtin:keyboard")
	assert.Contains(t, out.String(), "gripper")
	assert.Contains(t, out.String(), "CONFIGURED")
	assert.FileExists(t, filepath.Join(dir, "logs", logFileName))
}

func TestExecute_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--joystick"}},
		{"positional argument", []string{"teleop.toml"}},
		{"bad log level", []string{"--log-level", "loud", "--list-plugins"}},
		{"bad log format", []string{"--log-format", "xml", "--list-plugins"}},
		{"missing config", []string{"-c", filepath.Join(t.TempDir(), "missing.toml")}},
		{"bad override", []string{"--teleop-config", "initial_mode = ", "--list-plugins"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Error(t, execute(context.Background(), tt.args, &bytes.Buffer{}))
		})
	}
}
