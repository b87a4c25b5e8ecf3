package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/reglet-dev/robohost/config"
	"github.com/reglet-dev/robohost/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
initial_mode = "arm"
gamepad = "pad"
speaker = "voice"
plugin_search_paths = ["plugins/**/*.wasm"]

[security]
level = "permissive"

[plugins.sim]
path = "builtin:memory"

[instances.pad]
plugin = "sim"
kind = "Gamepad"
args_from_path = "pad.yaml"

[instances.voice]
plugin = "sim"
kind = "Speaker"

[instances.arm]
plugin = "sim"
kind = "JointTrajectoryClient"
args = "joint_names: [a, b]"

[[control_nodes]]
type = "joints_pose"
mode = "arm"
submode = "home"
joint_trajectory_client = "arm"
positions = [1.0, 2.0]
duration_secs = 0.5
trigger = "East"

[[control_nodes]]
type = "lua"
mode = "script"
script_path = "node.lua"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_TOMLFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "teleop.toml", sampleTOML)
	writeFile(t, dir, "pad.yaml", "events: [North]")
	writeFile(t, dir, "node.lua", "function proc() end")

	cfg, err := config.Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "arm", cfg.InitialMode)
	assert.Equal(t, "permissive", cfg.Security.Level)
	assert.Equal(t, []string{"plugins/**/*.wasm"}, cfg.PluginSearchPaths)
	assert.Equal(t, dir, cfg.Dir)
	require.Len(t, cfg.ControlNodes, 2)

	arm := cfg.ControlNodes[0]
	assert.Equal(t, []float64{1.0, 2.0}, arm.Positions)
	assert.Equal(t, 500*time.Millisecond, arm.Duration())
	assert.Equal(t, time.Second, cfg.ControlNodes[1].Duration())

	args, err := cfg.InstanceArgs("pad")
	require.NoError(t, err)
	assert.Equal(t, "events: [North]", args)

	args, err = cfg.InstanceArgs("arm")
	require.NoError(t, err)
	assert.Equal(t, "joint_names: [a, b]", args)

	_, err = cfg.InstanceArgs("nope")
	assert.Error(t, err)

	src, err := cfg.ScriptSource(cfg.ControlNodes[1])
	require.NoError(t, err)
	assert.Equal(t, "function proc() end", src)
}

func TestLoad_FormatsAgree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fromTOML, err := config.Load(writeFile(t, dir, "a.toml", sampleTOML), "")
	require.NoError(t, err)

	doc, err := parser.NewTOMLParser().Parse([]byte(sampleTOML))
	require.NoError(t, err)
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	fromJSON, err := config.Load(writeFile(t, dir, "a.json", string(data)), "")
	require.NoError(t, err)

	assert.Equal(t, fromTOML, fromJSON)
}

func TestLoad_DefaultAndOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("", "")
	require.NoError(t, err)
	def := config.Default()
	def.Dir = cfg.Dir
	assert.Equal(t, def, cfg)

	cfg, err = config.Load("", "initial_mode = \"arm\"\n[security]\ntrust_plugins = true\n")
	require.NoError(t, err)
	assert.Equal(t, "arm", cfg.InitialMode)
	assert.True(t, cfg.Security.TrustPlugins)
	assert.Equal(t, "standard", cfg.Security.Level, "nested tables merge key by key")

	_, err = config.Load("", "initial_mode = ")
	assert.ErrorContains(t, err, "overrides")
}

func TestDefault_RendersAsTOML(t *testing.T) {
	t.Parallel()

	data, err := config.Default().TOML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "[plugins.sim]")

	path := writeFile(t, t.TempDir(), "default.toml", string(data))
	cfg, err := config.Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, config.Default().ControlNodes, cfg.ControlNodes)
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		override string
		want     string
	}{
		{"unknown key", "colour = \"red\"", "colour"},
		{"bad security level", "[security]\nlevel = \"lax\"", "/security/level"},
		{"bad kind", "[instances.voice]\nkind = \"Toaster\"", "/instances/voice/kind"},
		{"unknown plugin", "[instances.voice]\nplugin = \"nowhere\"", `unknown plugin "nowhere"`},
		{"gamepad of wrong kind", "gamepad = \"voice\"", `instance "voice" is a Speaker, want Gamepad`},
		{"unknown speaker", "speaker = \"nobody\"", `speaker: unknown instance "nobody"`},
		{"bad plugin name", "[plugins.\"bad name\"]\npath = \"x.wasm\"", "invalid plugin name"},
		{"bad digest", "[plugins.sim]\ndigest = \"md5:abcd\"", "/plugins/sim/digest"},
		{"bad button", "[[control_nodes]]\ntype = \"move_base\"\nmode = \"m\"\nmove_base = \"base\"\ndeadman = \"Pedal\"", `unknown button "Pedal"`},
		{"unknown deadman", "[[control_nodes]]\ntype = \"move_base\"\nmode = \"m\"\nmove_base = \"base\"\ndeadman = \"Unknown\"", `unknown button "Unknown"`},
		{"pose without positions", "[[control_nodes]]\ntype = \"joints_pose\"\nmode = \"m\"\njoint_trajectory_client = \"arm\"", "positions: required"},
		{"lua without script", "[[control_nodes]]\ntype = \"lua\"\nmode = \"m\"", "exactly one of script and script_path"},
		{"node type", "[[control_nodes]]\ntype = \"hover\"\nmode = \"m\"", "/control_nodes/0/type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.Load("", tt.override)
			require.ErrorIs(t, err, config.ErrInvalid)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSchema(t *testing.T) {
	t.Parallel()

	s, err := config.Schema()
	require.NoError(t, err)
	assert.True(t, strings.Contains(s, "control_nodes"))
}

func TestResolvePath(t *testing.T) {
	t.Parallel()

	cfg := &config.Teleop{Dir: "/etc/robot"}
	assert.Equal(t, "/etc/robot/pad.yaml", cfg.ResolvePath("pad.yaml"))
	assert.Equal(t, "/abs/pad.yaml", cfg.ResolvePath("/abs/pad.yaml"))
	assert.Empty(t, cfg.ResolvePath(""))
}
