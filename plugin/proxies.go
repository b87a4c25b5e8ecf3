package plugin

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reglet-dev/robohost/abi"
	"github.com/reglet-dev/robohost/capability"
	"github.com/reglet-dev/robohost/export"
)

// GamepadProxy is a capability.Gamepad backed by a plugin implementation.
type GamepadProxy struct {
	remote
	pool     *BlockingPool
	stopped  atomic.Bool
	stopOnce sync.Once
}

var _ capability.Gamepad = (*GamepadProxy)(nil)

// NextEvent returns the next event. Reads run on the blocking pool; pool rejection,
// context cancellation, a worker panic and call failures all yield the Unknown event,
// as does every read after Stop.
func (g *GamepadProxy) NextEvent(ctx context.Context) capability.Event {
	if g.stopped.Load() {
		return capability.UnknownEvent()
	}

	ev, err := Submit(ctx, g.pool, g.read)
	if err != nil {
		g.logger.DebugContext(ctx, "plugin: gamepad read ended", "plugin", g.plugin, "error", err)
		return capability.UnknownEvent()
	}
	if g.stopped.Load() {
		return capability.UnknownEvent()
	}
	return ev
}

func (g *GamepadProxy) read(ctx context.Context) (capability.Event, error) {
	for {
		if g.stopped.Load() || ctx.Err() != nil {
			return capability.UnknownEvent(), nil
		}
		var res abi.NextEventResult
		err := g.call(ctx, "next_event", abi.MethodGamepadNextEvent, abi.NextEventArgs{TimeoutMillis: g.pollMillis()}, &res)
		if err != nil {
			return capability.UnknownEvent(), err
		}
		if !res.Pending {
			return res.Event.Capability(), nil
		}
	}
}

// Stop makes pending and later reads return Unknown. The stop request is forwarded to
// the implementation in the background, once, so Stop returns without waiting on the
// plugin.
func (g *GamepadProxy) Stop() {
	g.stopped.Store(true)
	g.stopOnce.Do(func() {
		go func() {
			if err := g.call(context.Background(), "stop", abi.MethodGamepadStop, nil, nil); err != nil {
				g.logger.Warn("plugin: gamepad stop failed", "plugin", g.plugin, "error", err)
			}
		}()
	})
}

// JointTrajectoryClientProxy is a capability.JointTrajectoryClient backed by a plugin
// implementation.
type JointTrajectoryClientProxy struct {
	remote

	namesMu sync.Mutex
	names   []string
}

var _ capability.JointTrajectoryClient = (*JointTrajectoryClientProxy)(nil)

// JointNames returns the joint names. They are fetched once; a failed fetch is logged
// and yields nil.
func (c *JointTrajectoryClientProxy) JointNames() []string {
	c.namesMu.Lock()
	defer c.namesMu.Unlock()

	if c.names == nil {
		var res abi.JointNamesResult
		if err := c.call(context.Background(), "joint_names", abi.MethodJointNames, nil, &res); err != nil {
			c.logger.Warn("plugin: joint names unavailable", "plugin", c.plugin, "error", err)
			return nil
		}
		c.names = res.Names
		if c.names == nil {
			c.names = []string{}
		}
	}
	return slices.Clone(c.names)
}

func (c *JointTrajectoryClientProxy) CurrentJointPositions(ctx context.Context) ([]float64, error) {
	var res abi.PositionsResult
	if err := c.call(ctx, "current_joint_positions", abi.MethodCurrentJointPos, nil, &res); err != nil {
		return nil, err
	}
	return res.Positions, nil
}

func (c *JointTrajectoryClientProxy) SendJointPositions(ctx context.Context, positions []float64, d time.Duration) (capability.WaitFuture, error) {
	return c.callFuture(ctx, "send_joint_positions", abi.MethodSendJointPositions,
		abi.SendPositionsArgs{Positions: positions, Duration: abi.DurationOf(d)})
}

func (c *JointTrajectoryClientProxy) SendJointTrajectory(ctx context.Context, points []capability.TrajectoryPoint) (capability.WaitFuture, error) {
	return c.callFuture(ctx, "send_joint_trajectory", abi.MethodSendJointTrajectory,
		abi.SendTrajectoryArgs{Points: abi.TrajectoryOf(points)})
}

// SpeakerProxy is a capability.Speaker backed by a plugin implementation.
type SpeakerProxy struct{ remote }

var _ capability.Speaker = (*SpeakerProxy)(nil)

func (s *SpeakerProxy) Speak(ctx context.Context, message string) (capability.WaitFuture, error) {
	return s.callFuture(ctx, "speak", abi.MethodSpeak, abi.SpeakArgs{Message: message})
}

// MoveBaseProxy is a capability.MoveBase backed by a plugin implementation.
type MoveBaseProxy struct{ remote }

var _ capability.MoveBase = (*MoveBaseProxy)(nil)

func (b *MoveBaseProxy) CurrentVelocity(ctx context.Context) (capability.BaseVelocity, error) {
	var v abi.Velocity
	if err := b.call(ctx, "current_velocity", abi.MethodCurrentVelocity, nil, &v); err != nil {
		return capability.BaseVelocity{}, err
	}
	return v.Capability(), nil
}

func (b *MoveBaseProxy) SendVelocity(ctx context.Context, v capability.BaseVelocity) error {
	return b.call(ctx, "send_velocity", abi.MethodSendVelocity, abi.VelocityOf(v), nil)
}

// NavigationProxy is a capability.Navigation backed by a plugin implementation.
type NavigationProxy struct{ remote }

var _ capability.Navigation = (*NavigationProxy)(nil)

func (n *NavigationProxy) SendGoalPose(ctx context.Context, goal capability.Isometry2, frameID string, timeout time.Duration) (capability.WaitFuture, error) {
	return n.callFuture(ctx, "send_goal_pose", abi.MethodSendGoalPose, abi.GoalArgs{
		Goal:    abi.Isometry2Of(goal),
		FrameID: frameID,
		Timeout: abi.DurationOf(timeout),
	})
}

func (n *NavigationProxy) Cancel(ctx context.Context) error {
	return n.call(ctx, "cancel", abi.MethodCancelNavigation, nil, nil)
}

// LocalizationProxy is a capability.Localization backed by a plugin implementation.
type LocalizationProxy struct{ remote }

var _ capability.Localization = (*LocalizationProxy)(nil)

func (l *LocalizationProxy) CurrentPose(ctx context.Context, frameID string) (capability.Isometry2, error) {
	var pose abi.Isometry2
	if err := l.call(ctx, "current_pose", abi.MethodCurrentPose, abi.FrameArgs{FrameID: frameID}, &pose); err != nil {
		return capability.Isometry2{}, err
	}
	return pose.Capability(), nil
}

// TransformResolverProxy is a capability.TransformResolver backed by a plugin
// implementation.
type TransformResolverProxy struct{ remote }

var _ capability.TransformResolver = (*TransformResolverProxy)(nil)

func (r *TransformResolverProxy) ResolveTransformation(ctx context.Context, from, to string, at time.Time) (capability.Isometry3, error) {
	var iso abi.Isometry3
	args := abi.TransformArgs{From: from, To: to, Time: abi.TimeOf(at)}
	if err := r.call(ctx, "resolve_transformation", abi.MethodResolveTransformation, args, &iso); err != nil {
		return capability.Isometry3{}, err
	}
	return iso.Capability(), nil
}

// nativeRemote serves impl from a private in-process server so native implementations
// go through the same boundary as plugin ones.
func nativeRemote(impl any, kind capability.Kind, opts []Option) remote {
	s := newSettings(opts)
	server := export.NewServer(nil, export.WithLogger(s.logger))
	return remote{
		transport: server,
		handle:    server.Register(impl),
		plugin:    "native",
		kind:      kind,
		poll:      s.pollInterval,
		logger:    s.logger,
	}
}

// NewGamepadProxy wraps a native gamepad.
func NewGamepadProxy(g capability.Gamepad, opts ...Option) *GamepadProxy {
	s := newSettings(opts)
	return &GamepadProxy{remote: nativeRemote(g, capability.KindGamepad, opts), pool: s.pool}
}

// NewJointTrajectoryClientProxy wraps a native joint trajectory client.
func NewJointTrajectoryClientProxy(c capability.JointTrajectoryClient, opts ...Option) *JointTrajectoryClientProxy {
	return &JointTrajectoryClientProxy{remote: nativeRemote(c, capability.KindJointTrajectoryClient, opts)}
}

// NewSpeakerProxy wraps a native speaker.
func NewSpeakerProxy(sp capability.Speaker, opts ...Option) *SpeakerProxy {
	return &SpeakerProxy{remote: nativeRemote(sp, capability.KindSpeaker, opts)}
}

// NewMoveBaseProxy wraps a native move base.
func NewMoveBaseProxy(b capability.MoveBase, opts ...Option) *MoveBaseProxy {
	return &MoveBaseProxy{remote: nativeRemote(b, capability.KindMoveBase, opts)}
}

// NewNavigationProxy wraps a native navigation.
func NewNavigationProxy(n capability.Navigation, opts ...Option) *NavigationProxy {
	return &NavigationProxy{remote: nativeRemote(n, capability.KindNavigation, opts)}
}

// NewLocalizationProxy wraps a native localization.
func NewLocalizationProxy(l capability.Localization, opts ...Option) *LocalizationProxy {
	return &LocalizationProxy{remote: nativeRemote(l, capability.KindLocalization, opts)}
}

// NewTransformResolverProxy wraps a native transform resolver.
func NewTransformResolverProxy(r capability.TransformResolver, opts ...Option) *TransformResolverProxy {
	return &TransformResolverProxy{remote: nativeRemote(r, capability.KindTransformResolver, opts)}
}
