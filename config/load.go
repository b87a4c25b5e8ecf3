package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/reglet-dev/robohost/capability"
	"github.com/reglet-dev/robohost/parser"
	"github.com/reglet-dev/robohost/plugin/values"
	"github.com/reglet-dev/robohost/registry"
	"github.com/reglet-dev/robohost/validation"
)

// SchemaKind is the registry kind of the teleop document.
const SchemaKind = "teleop"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid teleop configuration")

var schemas = sync.OnceValues(func() (*registry.Registry, error) {
	r := registry.NewRegistry()
	if err := r.Register(SchemaKind, Teleop{}); err != nil {
		return nil, err
	}
	return r, nil
})

var validator = sync.OnceValues(func() (*validation.SchemaValidator, error) {
	r, err := schemas()
	if err != nil {
		return nil, err
	}
	return validation.NewSchemaValidator(r), nil
})

// Schema returns the JSON schema of the teleop document.
func Schema() (string, error) {
	r, err := schemas()
	if err != nil {
		return "", err
	}
	s, _ := r.GetSchema(SchemaKind)
	return s, nil
}

// Load reads the configuration at path, or starts from Default when path is empty,
// then applies overrides, an inline TOML document whose keys take priority.
func Load(path, overrides string) (*Teleop, error) {
	var (
		doc map[string]any
		dir string
		err error
	)
	if path == "" {
		doc, err = toDocument(Default())
		if err != nil {
			return nil, err
		}
		if dir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	} else {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if doc, err = parser.ForPath(path).Parse(data); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		dir = filepath.Dir(abs)
	}

	if overrides != "" {
		patch, err := parser.NewTOMLParser().Parse([]byte(overrides))
		if err != nil {
			return nil, fmt.Errorf("config: overrides: %w", err)
		}
		doc = parser.Merge(doc, patch)
	}

	cfg, err := Decode(doc)
	if err != nil {
		if path != "" {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, err
	}
	cfg.Dir = dir
	return cfg, nil
}

func toDocument(c *Teleop) (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return parser.NewJSONParser().Parse(data)
}

// Decode validates a parsed document against the schema and the cross-reference
// rules of Check, and decodes it.
func Decode(doc map[string]any) (*Teleop, error) {
	normalized, err := parser.Normalize(doc)
	if err != nil {
		return nil, err
	}

	v, err := validator()
	if err != nil {
		return nil, fmt.Errorf("config: schema: %w", err)
	}
	res, err := v.Validate(SchemaKind, normalized)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cfg Teleop
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Check verifies names and references between sections.
func (c *Teleop) Check() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	for name, p := range c.Plugins {
		if _, err := values.NewPluginName(name); err != nil {
			fail("plugins: %w", err)
		}
		if _, err := values.ParseDigest(p.Digest); err != nil {
			fail("plugins.%s.digest: %w", name, err)
		}
	}

	for name, inst := range c.Instances {
		if _, err := values.NewPluginName(name); err != nil {
			fail("instances: %w", err)
		}
		if _, ok := c.Plugins[inst.Plugin]; !ok {
			fail("instances.%s: unknown plugin %q", name, inst.Plugin)
		}
	}

	checkRef := func(field, name string, kind capability.Kind) {
		inst, ok := c.Instances[name]
		switch {
		case !ok:
			fail("%s: unknown instance %q", field, name)
		case capability.Kind(inst.Kind) != kind:
			fail("%s: instance %q is a %s, want %s", field, name, inst.Kind, kind)
		}
	}
	checkButton := func(field, name string) {
		if name == "" {
			return
		}
		if _, ok := capability.ParseButton(name); !ok {
			fail("%s: unknown button %q", field, name)
		}
	}

	checkRef("gamepad", c.Gamepad, capability.KindGamepad)
	checkRef("speaker", c.Speaker, capability.KindSpeaker)

	for i, n := range c.ControlNodes {
		field := fmt.Sprintf("control_nodes[%d]", i)
		if n.Speaker != "" {
			checkRef(field+".speaker", n.Speaker, capability.KindSpeaker)
		}
		switch n.Type {
		case NodeMoveBase:
			checkRef(field+".move_base", n.MoveBase, capability.KindMoveBase)
			checkButton(field+".deadman", n.Deadman)
		case NodeJointsPose:
			checkRef(field+".joint_trajectory_client", n.JointTrajectoryClient, capability.KindJointTrajectoryClient)
			checkButton(field+".trigger", n.Trigger)
			if len(n.Positions) == 0 {
				fail("%s.positions: required for %s nodes", field, NodeJointsPose)
			}
		case NodeLua:
			if (n.Script == "") == (n.ScriptPath == "") {
				fail("%s: exactly one of script and script_path is required", field)
			}
			if n.MoveBase != "" {
				checkRef(field+".move_base", n.MoveBase, capability.KindMoveBase)
			}
			if n.JointTrajectoryClient != "" {
				checkRef(field+".joint_trajectory_client", n.JointTrajectoryClient, capability.KindJointTrajectoryClient)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// ResolvePath makes a relative path relative to Dir.
func (c *Teleop) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.Dir == "" {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// InstanceArgs returns the construction arguments of the named instance.
func (c *Teleop) InstanceArgs(name string) (string, error) {
	inst, ok := c.Instances[name]
	if !ok {
		return "", fmt.Errorf("config: unknown instance %q", name)
	}
	if inst.ArgsFromPath == "" {
		return inst.Args, nil
	}
	path := c.ResolvePath(inst.ArgsFromPath)
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("config: instance %s: read args: %w", name, err)
	}
	return string(data), nil
}

// ScriptSource returns the Lua source of a lua node.
func (c *Teleop) ScriptSource(n ControlNode) (string, error) {
	if n.ScriptPath == "" {
		return n.Script, nil
	}
	data, err := os.ReadFile(filepath.Clean(c.ResolvePath(n.ScriptPath)))
	if err != nil {
		return "", fmt.Errorf("config: node %s: read script: %w", n.Mode, err)
	}
	return string(data), nil
}
