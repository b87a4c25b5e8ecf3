package export

import (
	"context"
	"fmt"
	"time"

	"github.com/reglet-dev/robohost/abi"
	"github.com/reglet-dev/robohost/capability"
)

type method func(ctx context.Context, s *Server, obj any, req abi.Request) (any, error)

// on adapts a handler for implementations of type T.
func on[T any](fn func(ctx context.Context, s *Server, impl T, req abi.Request) (any, error)) method {
	return func(ctx context.Context, s *Server, obj any, req abi.Request) (any, error) {
		impl, ok := obj.(T)
		if !ok {
			return nil, &abi.Error{
				Code:    abi.CodeUnknownMethod,
				Message: fmt.Sprintf("%s on handle %d: %v", req.Method, req.Handle, errNotSupportedByHandle),
			}
		}
		return fn(ctx, s, impl, req)
	}
}

// withArgs decodes the payload into A before calling fn.
func withArgs[T, A any](fn func(ctx context.Context, s *Server, impl T, args A) (any, error)) method {
	return on(func(ctx context.Context, s *Server, impl T, req abi.Request) (any, error) {
		var args A
		if err := abi.DecodePayload(req, &args); err != nil {
			return nil, err
		}
		return fn(ctx, s, impl, args)
	})
}

var methods = map[string]method{
	abi.MethodPluginName: on(func(_ context.Context, _ *Server, p Plugin, _ abi.Request) (any, error) {
		return abi.NameResult{Name: p.Name()}, nil
	}),
	abi.MethodPluginConstruct: withArgs(pluginConstruct),
	abi.MethodHandleRelease: func(_ context.Context, s *Server, _ any, req abi.Request) (any, error) {
		if req.Handle != abi.RootHandle {
			s.Release(req.Handle)
		}
		return nil, nil
	},
	abi.MethodFutureWait: on(futureWait),

	abi.MethodGamepadNextEvent: withArgs(gamepadNextEvent),
	abi.MethodGamepadStop: on(func(_ context.Context, _ *Server, g capability.Gamepad, _ abi.Request) (any, error) {
		g.Stop()
		return nil, nil
	}),

	abi.MethodJointNames: on(func(_ context.Context, _ *Server, c capability.JointTrajectoryClient, _ abi.Request) (any, error) {
		return abi.JointNamesResult{Names: c.JointNames()}, nil
	}),
	abi.MethodCurrentJointPos: on(func(ctx context.Context, _ *Server, c capability.JointTrajectoryClient, _ abi.Request) (any, error) {
		positions, err := c.CurrentJointPositions(ctx)
		if err != nil {
			return nil, err
		}
		return abi.PositionsResult{Positions: positions}, nil
	}),
	abi.MethodSendJointPositions: withArgs(func(ctx context.Context, s *Server, c capability.JointTrajectoryClient, args abi.SendPositionsArgs) (any, error) {
		return s.futureResult(c.SendJointPositions(ctx, args.Positions, args.Duration.Std()))
	}),
	abi.MethodSendJointTrajectory: withArgs(func(ctx context.Context, s *Server, c capability.JointTrajectoryClient, args abi.SendTrajectoryArgs) (any, error) {
		return s.futureResult(c.SendJointTrajectory(ctx, abi.CapabilityTrajectory(args.Points)))
	}),

	abi.MethodSpeak: withArgs(func(ctx context.Context, s *Server, sp capability.Speaker, args abi.SpeakArgs) (any, error) {
		return s.futureResult(sp.Speak(ctx, args.Message))
	}),

	abi.MethodCurrentVelocity: on(func(ctx context.Context, _ *Server, b capability.MoveBase, _ abi.Request) (any, error) {
		v, err := b.CurrentVelocity(ctx)
		if err != nil {
			return nil, err
		}
		return abi.VelocityOf(v), nil
	}),
	abi.MethodSendVelocity: withArgs(func(ctx context.Context, _ *Server, b capability.MoveBase, args abi.Velocity) (any, error) {
		return nil, b.SendVelocity(ctx, args.Capability())
	}),

	abi.MethodSendGoalPose: withArgs(func(ctx context.Context, s *Server, n capability.Navigation, args abi.GoalArgs) (any, error) {
		return s.futureResult(n.SendGoalPose(ctx, args.Goal.Capability(), args.FrameID, args.Timeout.Std()))
	}),
	abi.MethodCancelNavigation: on(func(ctx context.Context, _ *Server, n capability.Navigation, _ abi.Request) (any, error) {
		return nil, n.Cancel(ctx)
	}),

	abi.MethodCurrentPose: withArgs(func(ctx context.Context, _ *Server, l capability.Localization, args abi.FrameArgs) (any, error) {
		pose, err := l.CurrentPose(ctx, args.FrameID)
		if err != nil {
			return nil, err
		}
		return abi.Isometry2Of(pose), nil
	}),

	abi.MethodResolveTransformation: withArgs(func(ctx context.Context, _ *Server, r capability.TransformResolver, args abi.TransformArgs) (any, error) {
		iso, err := r.ResolveTransformation(ctx, args.From, args.To, args.Time.Time())
		if err != nil {
			return nil, err
		}
		return abi.Isometry3Of(iso), nil
	}),
}

func pluginConstruct(_ context.Context, s *Server, p Plugin, args abi.ConstructArgs) (any, error) {
	impl, err := construct(p, capability.Kind(args.Kind), args.Args)
	if err != nil {
		return nil, err
	}
	if impl == nil {
		return abi.ConstructResult{Supported: false}, nil
	}
	return abi.ConstructResult{Supported: true, Handle: s.Register(impl)}, nil
}

func futureWait(ctx context.Context, s *Server, p *pendingFuture, req abi.Request) (any, error) {
	var args abi.WaitArgs
	if err := abi.DecodePayload(req, &args); err != nil {
		return nil, err
	}

	var timeout <-chan time.Time
	if args.TimeoutMillis > 0 {
		timer := time.NewTimer(time.Duration(args.TimeoutMillis) * time.Millisecond)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-p.done:
		s.Release(req.Handle)
		if p.err != nil {
			return nil, p.err
		}
		return abi.WaitResult{Done: true}, nil
	case <-timeout:
		return abi.WaitResult{Done: false}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func gamepadNextEvent(ctx context.Context, _ *Server, g capability.Gamepad, args abi.NextEventArgs) (any, error) {
	waitCtx := ctx
	if args.TimeoutMillis > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, time.Duration(args.TimeoutMillis)*time.Millisecond)
		defer cancel()
	}

	ev := g.NextEvent(waitCtx)
	if ev.IsUnknown() && waitCtx.Err() != nil && ctx.Err() == nil {
		return abi.NextEventResult{Pending: true}, nil
	}
	return abi.NextEventResult{Event: abi.EventOf(ev)}, nil
}
