// Package export is the implementation side of the capability boundary. A plugin
// implements Plugin, wraps its constructor in a Module, and the Server turns boundary
// requests into calls on the constructed capability implementations.
package export

import (
	"github.com/reglet-dev/robohost/abi"
	"github.com/reglet-dev/robohost/capability"
)

// RootSymbol is the symbol a Go shared-object plugin exports. Its type must be
// *Module.
const RootSymbol = "RobotPluginModule"

// Plugin constructs capability implementations from opaque argument strings.
//
// Each constructor returns (nil, nil) when the plugin does not provide that kind.
// Gamepad implementations must return the Unknown event from NextEvent once their
// context is done.
type Plugin interface {
	Name() string
	NewGamepad(args string) (capability.Gamepad, error)
	NewJointTrajectoryClient(args string) (capability.JointTrajectoryClient, error)
	NewSpeaker(args string) (capability.Speaker, error)
	NewMoveBase(args string) (capability.MoveBase, error)
	NewNavigation(args string) (capability.Navigation, error)
	NewLocalization(args string) (capability.Localization, error)
	NewTransformResolver(args string) (capability.TransformResolver, error)
}

// UnimplementedPlugin supports no capability kind. Embed it and override the
// constructors a plugin provides.
type UnimplementedPlugin struct{}

func (UnimplementedPlugin) NewGamepad(string) (capability.Gamepad, error) { return nil, nil }
func (UnimplementedPlugin) NewJointTrajectoryClient(string) (capability.JointTrajectoryClient, error) {
	return nil, nil
}
func (UnimplementedPlugin) NewSpeaker(string) (capability.Speaker, error)   { return nil, nil }
func (UnimplementedPlugin) NewMoveBase(string) (capability.MoveBase, error) { return nil, nil }
func (UnimplementedPlugin) NewNavigation(string) (capability.Navigation, error) {
	return nil, nil
}
func (UnimplementedPlugin) NewLocalization(string) (capability.Localization, error) {
	return nil, nil
}
func (UnimplementedPlugin) NewTransformResolver(string) (capability.TransformResolver, error) {
	return nil, nil
}

// Module is the root a loader finds in a plugin: the header it was built with and
// the constructor of its single plugin instance.
type Module struct {
	Header abi.Header
	New    func() Plugin
}

// NewModule stamps ctor with the header of this build.
func NewModule(ctor func() Plugin) *Module {
	return &Module{Header: abi.CurrentHeader(), New: ctor}
}

// construct dispatches a construction request to the constructor for kind. A nil
// implementation means the kind is not supported.
func construct(p Plugin, kind capability.Kind, args string) (any, error) {
	switch kind {
	case capability.KindGamepad:
		impl, err := p.NewGamepad(args)
		return nilIfEmpty(impl, err)
	case capability.KindJointTrajectoryClient:
		impl, err := p.NewJointTrajectoryClient(args)
		return nilIfEmpty(impl, err)
	case capability.KindSpeaker:
		impl, err := p.NewSpeaker(args)
		return nilIfEmpty(impl, err)
	case capability.KindMoveBase:
		impl, err := p.NewMoveBase(args)
		return nilIfEmpty(impl, err)
	case capability.KindNavigation:
		impl, err := p.NewNavigation(args)
		return nilIfEmpty(impl, err)
	case capability.KindLocalization:
		impl, err := p.NewLocalization(args)
		return nilIfEmpty(impl, err)
	case capability.KindTransformResolver:
		impl, err := p.NewTransformResolver(args)
		return nilIfEmpty(impl, err)
	default:
		return nil, &abi.Error{Code: abi.CodeInvalidRequest, Message: "unknown capability kind " + string(kind)}
	}
}

// nilIfEmpty turns a nil interface value of any capability type into an untyped nil.
func nilIfEmpty[T any](impl T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if any(impl) == nil {
		return nil, nil
	}
	return impl, nil
}
