package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/robohost/capability"
	"github.com/reglet-dev/robohost/config"
	"github.com/reglet-dev/robohost/plugin"
	"github.com/reglet-dev/robohost/teleop"
	"github.com/reglet-dev/robohost/teleop/luanode"
)

// builder loads each plugin and constructs each instance at most once, so nodes
// naming the same instance share it.
type builder struct {
	cfg    *config.Teleop
	logger *slog.Logger
	loader *plugin.Loader

	plugins   map[string]*plugin.PluginProxy
	instances map[string]any
}

func get[T any](ctx context.Context, b *builder, name string, kind capability.Kind) (T, error) {
	var zero T
	v, err := b.instance(ctx, name, kind)
	if err != nil {
		return zero, err
	}
	impl, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("instance %q is a %T, not a %s", name, v, kind)
	}
	return impl, nil
}

func (b *builder) plugin(ctx context.Context, name string) (*plugin.PluginProxy, error) {
	if p, ok := b.plugins[name]; ok {
		return p, nil
	}
	pc, ok := b.cfg.Plugins[name]
	if !ok {
		return nil, fmt.Errorf("unknown plugin %q", name)
	}
	p, err := b.loader.Load(ctx, modulePath(b.cfg, pc.Path))
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", name, err)
	}
	b.plugins[name] = p
	return p, nil
}

func (b *builder) instance(ctx context.Context, name string, kind capability.Kind) (any, error) {
	if v, ok := b.instances[name]; ok {
		return v, nil
	}
	ic, ok := b.cfg.Instances[name]
	if !ok {
		return nil, fmt.Errorf("unknown instance %q", name)
	}
	if capability.Kind(ic.Kind) != kind {
		return nil, fmt.Errorf("instance %q is a %s, want %s", name, ic.Kind, kind)
	}

	p, err := b.plugin(ctx, ic.Plugin)
	if err != nil {
		return nil, err
	}
	args, err := b.cfg.InstanceArgs(name)
	if err != nil {
		return nil, err
	}

	var (
		impl      any
		supported bool
	)
	switch kind {
	case capability.KindGamepad:
		impl, supported, err = p.NewGamepad(ctx, args)
	case capability.KindJointTrajectoryClient:
		impl, supported, err = p.NewJointTrajectoryClient(ctx, args)
	case capability.KindSpeaker:
		impl, supported, err = p.NewSpeaker(ctx, args)
	case capability.KindMoveBase:
		impl, supported, err = p.NewMoveBase(ctx, args)
	case capability.KindNavigation:
		impl, supported, err = p.NewNavigation(ctx, args)
	case capability.KindLocalization:
		impl, supported, err = p.NewLocalization(ctx, args)
	case capability.KindTransformResolver:
		impl, supported, err = p.NewTransformResolver(ctx, args)
	default:
		return nil, fmt.Errorf("instance %q: unknown kind %q", name, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", name, err)
	}
	if !supported {
		return nil, &NoPluginInstanceError{Name: name, Kind: kind}
	}

	b.logger.DebugContext(ctx, "teleop: instance constructed", "instance", name, "kind", kind, "plugin", p.Name())
	b.instances[name] = impl
	return impl, nil
}

func (b *builder) node(ctx context.Context, nc config.ControlNode, speaker capability.Speaker) (teleop.ControlNode, error) {
	switch nc.Type {
	case config.NodeMoveBase:
		base, err := get[capability.MoveBase](ctx, b, nc.MoveBase, capability.KindMoveBase)
		if err != nil {
			return nil, err
		}
		mc := teleop.MoveBaseConfig{Mode: nc.Mode, Submode: nc.Submode}
		if nc.MaxVelocity != nil {
			mc.MaxVelocity = capability.BaseVelocity{X: nc.MaxVelocity.X, Y: nc.MaxVelocity.Y, Theta: nc.MaxVelocity.Theta}
		}
		if nc.Deadman != "" {
			mc.Deadman, _ = capability.ParseButton(nc.Deadman)
		}
		return teleop.NewMoveBaseNode(mc, base, b.logger), nil

	case config.NodeJointsPose:
		client, err := get[capability.JointTrajectoryClient](ctx, b, nc.JointTrajectoryClient, capability.KindJointTrajectoryClient)
		if err != nil {
			return nil, err
		}
		if names := client.JointNames(); len(names) != len(nc.Positions) {
			return nil, fmt.Errorf("pose %q has %d positions for %d joints %v", nc.Submode, len(nc.Positions), len(names), names)
		}
		jc := teleop.JointsPoseConfig{
			Mode:      nc.Mode,
			PoseName:  nc.Submode,
			Positions: nc.Positions,
			Duration:  nc.Duration(),
		}
		if nc.Trigger != "" {
			jc.Trigger, _ = capability.ParseButton(nc.Trigger)
		}
		return teleop.NewJointsPoseNode(jc, client, b.logger), nil

	case config.NodeLua:
		caps := luanode.Capabilities{Speaker: speaker}
		var err error
		if nc.Speaker != "" {
			if caps.Speaker, err = get[capability.Speaker](ctx, b, nc.Speaker, capability.KindSpeaker); err != nil {
				return nil, err
			}
		}
		if nc.MoveBase != "" {
			if caps.MoveBase, err = get[capability.MoveBase](ctx, b, nc.MoveBase, capability.KindMoveBase); err != nil {
				return nil, err
			}
		}
		if nc.JointTrajectoryClient != "" {
			if caps.Joints, err = get[capability.JointTrajectoryClient](ctx, b, nc.JointTrajectoryClient, capability.KindJointTrajectoryClient); err != nil {
				return nil, err
			}
		}
		src, err := b.cfg.ScriptSource(nc)
		if err != nil {
			return nil, err
		}
		name := nc.ScriptPath
		if name == "" {
			name = nc.Mode
		}
		node, err := luanode.New(luanode.Config{Mode: nc.Mode, Submode: nc.Submode, Source: src, Name: name}, caps, b.logger)
		if err != nil {
			return nil, err
		}
		return node, nil

	default:
		return nil, fmt.Errorf("unknown control node type %q", nc.Type)
	}
}
