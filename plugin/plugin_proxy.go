package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/reglet-dev/robohost/abi"
	"github.com/reglet-dev/robohost/capability"
	"github.com/reglet-dev/robohost/export"
)

// PluginProxy is a loaded plugin instance. Each New<Kind> call constructs a new
// implementation; earlier proxies stay valid.
type PluginProxy struct {
	id         uuid.UUID
	name       string
	transport  abi.Transport
	authorizer capability.Authorizer
	pool       *BlockingPool
	poll       time.Duration
	logger     *slog.Logger
}

func newPluginProxy(ctx context.Context, t abi.Transport, s settings) (*PluginProxy, error) {
	var res abi.NameResult
	if err := abi.Call(ctx, t, abi.RootHandle, abi.MethodPluginName, nil, &res); err != nil {
		return nil, fmt.Errorf("read plugin name: %w", err)
	}
	return &PluginProxy{
		id:         uuid.New(),
		name:       res.Name,
		transport:  t,
		authorizer: s.authorizer,
		pool:       s.pool,
		poll:       s.pollInterval,
		logger:     s.logger,
	}, nil
}

// NewInProcess wraps a plugin implemented in the host binary.
func NewInProcess(ctx context.Context, p export.Plugin, opts ...Option) (*PluginProxy, error) {
	s := newSettings(opts)
	return newPluginProxy(ctx, export.NewServer(p, export.WithLogger(s.logger)), s)
}

// ID identifies this instance in diagnostics.
func (p *PluginProxy) ID() uuid.UUID { return p.id }

// Name returns the plugin's human-readable name. Names need not be unique.
func (p *PluginProxy) Name() string { return p.name }

// construct asks the plugin for an implementation of kind. ok is false when the plugin
// does not provide it.
func (p *PluginProxy) construct(ctx context.Context, kind capability.Kind, args string) (remote, bool, error) {
	if p.authorizer != nil {
		if err := p.authorizer.Authorize(p.name, kind); err != nil {
			return remote{}, false, &ConstructError{Plugin: p.name, Kind: kind, Err: err}
		}
	}

	var res abi.ConstructResult
	err := abi.Call(ctx, p.transport, abi.RootHandle, abi.MethodPluginConstruct,
		abi.ConstructArgs{Kind: string(kind), Args: args}, &res)
	if err != nil {
		return remote{}, false, &ConstructError{Plugin: p.name, Kind: kind, Err: err}
	}
	if !res.Supported {
		return remote{}, false, nil
	}

	p.logger.DebugContext(ctx, "plugin: constructed capability", "plugin", p.name, "id", p.id, "kind", kind, "handle", res.Handle)
	return remote{
		transport: p.transport,
		handle:    res.Handle,
		plugin:    p.name,
		kind:      kind,
		poll:      p.poll,
		logger:    p.logger,
	}, true, nil
}

// NewGamepad constructs a gamepad.
func (p *PluginProxy) NewGamepad(ctx context.Context, args string) (*GamepadProxy, bool, error) {
	r, ok, err := p.construct(ctx, capability.KindGamepad, args)
	if !ok {
		return nil, false, err
	}
	return &GamepadProxy{remote: r, pool: p.pool}, true, nil
}

// NewJointTrajectoryClient constructs a joint trajectory client.
func (p *PluginProxy) NewJointTrajectoryClient(ctx context.Context, args string) (*JointTrajectoryClientProxy, bool, error) {
	r, ok, err := p.construct(ctx, capability.KindJointTrajectoryClient, args)
	if !ok {
		return nil, false, err
	}
	return &JointTrajectoryClientProxy{remote: r}, true, nil
}

// NewSpeaker constructs a speaker.
func (p *PluginProxy) NewSpeaker(ctx context.Context, args string) (*SpeakerProxy, bool, error) {
	r, ok, err := p.construct(ctx, capability.KindSpeaker, args)
	if !ok {
		return nil, false, err
	}
	return &SpeakerProxy{remote: r}, true, nil
}

// NewMoveBase constructs a move base.
func (p *PluginProxy) NewMoveBase(ctx context.Context, args string) (*MoveBaseProxy, bool, error) {
	r, ok, err := p.construct(ctx, capability.KindMoveBase, args)
	if !ok {
		return nil, false, err
	}
	return &MoveBaseProxy{remote: r}, true, nil
}

// NewNavigation constructs a navigation.
func (p *PluginProxy) NewNavigation(ctx context.Context, args string) (*NavigationProxy, bool, error) {
	r, ok, err := p.construct(ctx, capability.KindNavigation, args)
	if !ok {
		return nil, false, err
	}
	return &NavigationProxy{remote: r}, true, nil
}

// NewLocalization constructs a localization.
func (p *PluginProxy) NewLocalization(ctx context.Context, args string) (*LocalizationProxy, bool, error) {
	r, ok, err := p.construct(ctx, capability.KindLocalization, args)
	if !ok {
		return nil, false, err
	}
	return &LocalizationProxy{remote: r}, true, nil
}

// NewTransformResolver constructs a transform resolver.
func (p *PluginProxy) NewTransformResolver(ctx context.Context, args string) (*TransformResolverProxy, bool, error) {
	r, ok, err := p.construct(ctx, capability.KindTransformResolver, args)
	if !ok {
		return nil, false, err
	}
	return &TransformResolverProxy{remote: r}, true, nil
}
