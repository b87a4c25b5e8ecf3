// Package config defines the teleoperation configuration document and loads it from
// TOML, YAML or JSON.
package config

import (
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Node types.
const (
	NodeMoveBase   = "move_base"
	NodeJointsPose = "joints_pose"
	NodeLua        = "lua"
)

// Teleop is the teleoperation configuration.
type Teleop struct {
	// InitialMode selects the first active control node by mode. Empty selects the
	// first node.
	InitialMode string `json:"initial_mode,omitempty" toml:"initial_mode"`
	// Gamepad and Speaker name entries of Instances.
	Gamepad           string              `json:"gamepad" toml:"gamepad" jsonschema:"required,minLength=1"`
	Speaker           string              `json:"speaker" toml:"speaker" jsonschema:"required,minLength=1"`
	PluginSearchPaths []string            `json:"plugin_search_paths,omitempty" toml:"plugin_search_paths,omitempty"`
	Security          Security            `json:"security,omitempty" toml:"security"`
	Plugins           map[string]Plugin   `json:"plugins" toml:"plugins" jsonschema:"required"`
	Instances         map[string]Instance `json:"instances" toml:"instances" jsonschema:"required"`
	ControlNodes      []ControlNode       `json:"control_nodes" toml:"control_nodes" jsonschema:"required"`

	// Dir is the directory relative paths resolve against: the directory of the
	// loaded file, or the working directory.
	Dir string `json:"-" toml:"-"`
}

// Security configures capability grants.
type Security struct {
	Level        string `json:"level,omitempty" toml:"level" jsonschema:"enum=strict,enum=standard,enum=permissive"`
	GrantsFile   string `json:"grants_file,omitempty" toml:"grants_file,omitempty"`
	TrustPlugins bool   `json:"trust_plugins,omitempty" toml:"trust_plugins"`
}

// Plugin names a plugin module to load.
type Plugin struct {
	// Path is a file path, a name found through PluginSearchPaths, or builtin:<name>.
	Path string `json:"path" toml:"path" jsonschema:"required,minLength=1"`
	// Digest optionally pins the module file, as sha256:<hex>.
	Digest string `json:"digest,omitempty" toml:"digest,omitempty" jsonschema:"pattern=^((sha256|sha512):[0-9a-fA-F]+)?$"`
}

// Instance is one capability constructed from a plugin.
type Instance struct {
	Plugin string `json:"plugin" toml:"plugin" jsonschema:"required,minLength=1"`
	Kind   string `json:"kind" toml:"kind" jsonschema:"required,enum=Gamepad,enum=JointTrajectoryClient,enum=Speaker,enum=MoveBase,enum=Navigation,enum=Localization,enum=TransformResolver"`
	Args   string `json:"args,omitempty" toml:"args,omitempty"`
	// ArgsFromPath replaces Args with the contents of a file.
	ArgsFromPath string `json:"args_from_path,omitempty" toml:"args_from_path,omitempty"`
}

// Velocity is a base velocity limit.
type Velocity struct {
	X     float64 `json:"x" toml:"x"`
	Y     float64 `json:"y" toml:"y"`
	Theta float64 `json:"theta" toml:"theta"`
}

// ControlNode configures one operating mode. Which fields apply depends on Type.
type ControlNode struct {
	Type    string `json:"type" toml:"type" jsonschema:"required,enum=move_base,enum=joints_pose,enum=lua"`
	Mode    string `json:"mode" toml:"mode" jsonschema:"required,minLength=1"`
	Submode string `json:"submode,omitempty" toml:"submode,omitempty"`

	// Instance names of the capabilities the node uses.
	MoveBase              string `json:"move_base,omitempty" toml:"move_base,omitempty"`
	JointTrajectoryClient string `json:"joint_trajectory_client,omitempty" toml:"joint_trajectory_client,omitempty"`
	Speaker               string `json:"speaker,omitempty" toml:"speaker,omitempty"`

	// move_base
	MaxVelocity *Velocity `json:"max_velocity,omitempty" toml:"max_velocity,omitempty"`
	Deadman     string    `json:"deadman,omitempty" toml:"deadman,omitempty"`

	// joints_pose; Submode is the pose name
	Positions    []float64 `json:"positions,omitempty" toml:"positions,omitempty"`
	DurationSecs float64   `json:"duration_secs,omitempty" toml:"duration_secs,omitempty" jsonschema:"minimum=0"`
	Trigger      string    `json:"trigger,omitempty" toml:"trigger,omitempty"`

	// lua
	Script     string `json:"script,omitempty" toml:"script,omitempty"`
	ScriptPath string `json:"script_path,omitempty" toml:"script_path,omitempty"`
}

// Duration returns DurationSecs, defaulting to one second.
func (n ControlNode) Duration() time.Duration {
	if n.DurationSecs <= 0 {
		return time.Second
	}
	return time.Duration(n.DurationSecs * float64(time.Second))
}

// Default returns a configuration that drives the in-memory robot from the keyboard.
func Default() *Teleop {
	return &Teleop{
		InitialMode: "base",
		Gamepad:     "keyboard",
		Speaker:     "voice",
		Security:    Security{Level: "standard"},
		Plugins: map[string]Plugin{
			"sim":      {Path: "builtin:memory"},
			"keyboard": {Path: "builtin:keyboard"},
		},
		Instances: map[string]Instance{
			"keyboard": {Plugin: "keyboard", Kind: "Gamepad"},
			"voice":    {Plugin: "sim", Kind: "Speaker"},
			"base":     {Plugin: "sim", Kind: "MoveBase"},
			"arm":      {Plugin: "sim", Kind: "JointTrajectoryClient", Args: "joint_names: [shoulder, elbow, wrist]"},
		},
		ControlNodes: []ControlNode{
			{Type: NodeMoveBase, Mode: "base", MoveBase: "base"},
			{
				Type:                  NodeJointsPose,
				Mode:                  "arm",
				Submode:               "home",
				JointTrajectoryClient: "arm",
				Positions:             []float64{0, 0, 0},
				DurationSecs:          2,
			},
		},
	}
}

// TOML renders c as a TOML document.
func (c *Teleop) TOML() ([]byte, error) {
	return toml.Marshal(c)
}
