// Package memory is the builtin "memory" plugin: every capability kind, simulated in
// process by capability/memory. It lets a teleop configuration run without hardware
// and is the reference plugin compiled to wasm by plugins/wasmdemo.
//
// Construction arguments are YAML (or JSON):
//
//	joint_names: [shoulder, elbow]
//	positions: [0.0, 0.0]
//	events: [press:North, "axis:LeftStickX:0.5", unknown]
//	pose: {x: 1, y: 2, angle: 0}
//	transforms:
//	  - {from: map, to: base, translation: [1, 0, 0], rotation: [1, 0, 0, 0]}
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goccy/go-yaml"

	"github.com/reglet-dev/robohost/capability"
	sim "github.com/reglet-dev/robohost/capability/memory"
	"github.com/reglet-dev/robohost/export"
)

// Name is the plugin name and its builtin key.
const Name = "memory"

// Args are the construction arguments of every kind. Each kind reads the fields it
// needs.
type Args struct {
	JointNames []string    `yaml:"joint_names"`
	Positions  []float64   `yaml:"positions"`
	Events     []string    `yaml:"events"`
	Pose       *Pose       `yaml:"pose"`
	Transforms []Transform `yaml:"transforms"`
}

// Pose is a planar pose.
type Pose struct {
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Angle float64 `yaml:"angle"`
}

// Transform is a fixed frame transform. Rotation is a quaternion, scalar first.
type Transform struct {
	From        string     `yaml:"from"`
	To          string     `yaml:"to"`
	Translation []float64 `yaml:"translation"`
	Rotation    []float64 `yaml:"rotation"`
}

// ParseArgs decodes args. Empty args are valid. Unknown keys are rejected.
func ParseArgs(args string) (Args, error) {
	var a Args
	if args == "" {
		return a, nil
	}
	if err := yaml.UnmarshalWithOptions([]byte(args), &a, yaml.DisallowUnknownField()); err != nil {
		return Args{}, fmt.Errorf("memory plugin args: %w", err)
	}
	return a, nil
}

// Module returns the plugin module, ready for plugin.WithBuiltin or a wasm guest.
func Module() *export.Module {
	return export.NewModule(func() export.Plugin { return New(nil) })
}

// Plugin constructs simulated capabilities. Every construction is a new, independent
// implementation.
type Plugin struct {
	logger *slog.Logger
}

var _ export.Plugin = (*Plugin)(nil)

// New returns the plugin.
func New(logger *slog.Logger) *Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Plugin{logger: logger}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) NewGamepad(args string) (capability.Gamepad, error) {
	a, err := ParseArgs(args)
	if err != nil {
		return nil, err
	}
	events := make([]capability.Event, 0, len(a.Events))
	for _, s := range a.Events {
		ev, err := capability.ParseEvent(s)
		if err != nil {
			return nil, fmt.Errorf("memory plugin args: %w", err)
		}
		events = append(events, ev)
	}
	return sim.NewGamepad(events...), nil
}

func (p *Plugin) NewJointTrajectoryClient(args string) (capability.JointTrajectoryClient, error) {
	a, err := ParseArgs(args)
	if err != nil {
		return nil, err
	}
	if len(a.JointNames) == 0 {
		return nil, errors.New("memory plugin args: joint_names is required")
	}
	c := sim.NewJointTrajectoryClient(a.JointNames)
	if len(a.Positions) > 0 {
		if _, err := c.SendJointPositions(context.Background(), a.Positions, 0); err != nil {
			return nil, fmt.Errorf("memory plugin args: positions: %w", err)
		}
	}
	return c, nil
}

func (p *Plugin) NewSpeaker(string) (capability.Speaker, error) {
	return sim.NewSpeaker(p.logger), nil
}

func (p *Plugin) NewMoveBase(string) (capability.MoveBase, error) {
	return sim.NewMoveBase(), nil
}

func (p *Plugin) NewNavigation(string) (capability.Navigation, error) {
	return sim.NewNavigation(), nil
}

func (p *Plugin) NewLocalization(args string) (capability.Localization, error) {
	a, err := ParseArgs(args)
	if err != nil {
		return nil, err
	}
	pose := capability.Identity2()
	if a.Pose != nil {
		pose = capability.NewIsometry2(a.Pose.X, a.Pose.Y, a.Pose.Angle)
	}
	return sim.NewLocalization(pose), nil
}

func (p *Plugin) NewTransformResolver(args string) (capability.TransformResolver, error) {
	a, err := ParseArgs(args)
	if err != nil {
		return nil, err
	}
	r := sim.NewTransformResolver()
	for _, t := range a.Transforms {
		if len(t.Translation) > 3 || len(t.Rotation) > 4 {
			return nil, fmt.Errorf("memory plugin args: transform %s->%s: want 3 translation and 4 rotation components", t.From, t.To)
		}
		var tr [3]float64
		copy(tr[:], t.Translation)
		rot := capability.Quaternion{W: 1}
		if len(t.Rotation) > 0 {
			var q [4]float64
			copy(q[:], t.Rotation)
			rot = capability.Quaternion{W: q[0], X: q[1], Y: q[2], Z: q[3]}
		}
		r.Set(t.From, t.To, capability.Isometry3{
			Translation: capability.Vector3{X: tr[0], Y: tr[1], Z: tr[2]},
			Rotation:    rot,
		})
	}
	return r, nil
}
