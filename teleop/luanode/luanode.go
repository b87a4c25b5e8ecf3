// Package luanode provides a control node whose behaviour is a Lua script.
//
// The script may define two global functions:
//
//	function proc() end           -- called every switcher tick
//	function handle_event(ev) end -- called for every forwarded gamepad event
//
// ev is a table with a kind field ("button_pressed", "button_released",
// "axis_changed") and button, or axis and value. The robot table exposes the node's
// capabilities: robot.speak(msg), robot.send_velocity(x, y, theta),
// robot.send_joint_positions({...}, seconds) and robot.log(msg).
package luanode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/reglet-dev/robohost/capability"
)

const (
	procFunc        = "proc"
	handleEventFunc = "handle_event"
	robotTable      = "robot"
)

var (
	ErrClosed       = errors.New("luanode: state closed")
	ErrNoCapability = errors.New("luanode: capability not configured")
	errNotAFunction = errors.New("luanode: global is not a function")
)

// loaders of code from strings or disk
var unsafeGlobals = []string{"dofile", "loadfile", "load", "loadstring", "require", "module"}

// Config describes a scripted node.
type Config struct {
	Mode    string
	Submode string
	// Source is the Lua program. Name labels it in error messages.
	Source string
	Name   string
}

// Capabilities are the robot interfaces a script may use. Any may be nil.
type Capabilities struct {
	Speaker  capability.Speaker
	MoveBase capability.MoveBase
	Joints   capability.JointTrajectoryClient
}

// Node runs a Lua script as a teleop.ControlNode. Calls are serialized on one Lua
// state.
type Node struct {
	cfg    Config
	caps   Capabilities
	logger *slog.Logger

	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

// New compiles and runs the script's top level.
func New(cfg Config, caps Capabilities, logger *slog.Logger) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Mode
	}

	n := &Node{cfg: cfg, caps: caps, logger: logger.With("mode", cfg.Mode)}
	n.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(n.L)
	n.registerRobot()

	fn, err := n.L.LoadString(cfg.Source)
	if err != nil {
		n.L.Close()
		return nil, fmt.Errorf("luanode: compile %s: %w", cfg.Name, err)
	}
	n.L.Push(fn)
	if err := n.L.PCall(0, lua.MultRet, nil); err != nil {
		n.L.Close()
		return nil, fmt.Errorf("luanode: run %s: %w", cfg.Name, err)
	}
	n.L.SetTop(0)
	return n, nil
}

func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}
}

func (n *Node) Mode() string    { return n.cfg.Mode }
func (n *Node) Submode() string { return n.cfg.Submode }

// Proc implements teleop.ControlNode.
func (n *Node) Proc(ctx context.Context) {
	if err := n.Call(ctx, procFunc); err != nil {
		n.report(ctx, procFunc, err)
	}
}

// HandleEvent implements teleop.ControlNode.
func (n *Node) HandleEvent(ctx context.Context, ev capability.Event) {
	n.mu.Lock()
	table := eventTable(n.L, ev)
	n.mu.Unlock()

	if err := n.Call(ctx, handleEventFunc, table); err != nil {
		n.report(ctx, handleEventFunc, err)
	}
}

func (n *Node) report(ctx context.Context, fn string, err error) {
	if ctx.Err() != nil {
		return
	}
	n.logger.WarnContext(ctx, "luanode: script call failed", "function", fn, "error", err)
}

// Call calls a global script function. A function the script does not define is not
// an error. ctx is visible to robot.* bindings and aborts the script when done.
func (n *Node) Call(ctx context.Context, fn string, args ...lua.LValue) (err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}

	target := n.L.GetGlobal(fn)
	if target == lua.LNil {
		return nil
	}
	if target.Type() != lua.LTFunction {
		return fmt.Errorf("%w: %s is a %s", errNotAFunction, fn, target.Type())
	}

	n.L.SetContext(ctx)
	defer n.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("luanode: %s panicked: %v", fn, r)
		}
	}()
	top := n.L.GetTop()
	defer n.L.SetTop(top)
	return n.L.CallByParam(lua.P{Fn: target, NRet: 0, Protect: true}, args...)
}

// Close releases the Lua state.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.closed {
		n.L.Close()
		n.closed = true
	}
	return nil
}

func (n *Node) registerRobot() {
	mod := n.L.SetFuncs(n.L.NewTable(), map[string]lua.LGFunction{
		"speak":                n.luaSpeak,
		"send_velocity":        n.luaSendVelocity,
		"send_joint_positions": n.luaSendJointPositions,
		"log":                  n.luaLog,
	})
	n.L.SetGlobal(robotTable, mod)
}

func callContext(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (n *Node) luaSpeak(L *lua.LState) int {
	msg := L.CheckString(1)
	if n.caps.Speaker == nil {
		L.RaiseError("%v: speaker", ErrNoCapability)
		return 0
	}
	ctx := callContext(L)
	f, err := n.caps.Speaker.Speak(ctx, msg)
	if err == nil {
		err = f.Wait(ctx)
	}
	if err != nil {
		L.RaiseError("speak: %v", err)
	}
	return 0
}

func (n *Node) luaSendVelocity(L *lua.LState) int {
	v := capability.BaseVelocity{
		X:     float64(L.CheckNumber(1)),
		Y:     float64(L.OptNumber(2, 0)),
		Theta: float64(L.OptNumber(3, 0)),
	}
	if n.caps.MoveBase == nil {
		L.RaiseError("%v: move base", ErrNoCapability)
		return 0
	}
	if err := n.caps.MoveBase.SendVelocity(callContext(L), v); err != nil {
		L.RaiseError("send_velocity: %v", err)
	}
	return 0
}

func (n *Node) luaSendJointPositions(L *lua.LState) int {
	tbl := L.CheckTable(1)
	seconds := float64(L.OptNumber(2, 1))

	positions := make([]float64, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		num, ok := tbl.RawGetInt(i).(lua.LNumber)
		if !ok {
			L.ArgError(1, fmt.Sprintf("element %d is not a number", i))
			return 0
		}
		positions = append(positions, float64(num))
	}
	if n.caps.Joints == nil {
		L.RaiseError("%v: joint trajectory client", ErrNoCapability)
		return 0
	}

	ctx := callContext(L)
	f, err := n.caps.Joints.SendJointPositions(ctx, positions, time.Duration(seconds*float64(time.Second)))
	if err == nil {
		err = f.Wait(ctx)
	}
	if err != nil {
		L.RaiseError("send_joint_positions: %v", err)
	}
	return 0
}

func (n *Node) luaLog(L *lua.LState) int {
	n.logger.InfoContext(callContext(L), L.CheckString(1), "script", n.cfg.Name)
	return 0
}

func eventTable(L *lua.LState, ev capability.Event) *lua.LTable {
	t := L.NewTable()
	switch ev.Kind {
	case capability.EventButtonPressed:
		t.RawSetString("kind", lua.LString("button_pressed"))
		t.RawSetString("button", lua.LString(ev.Button.String()))
	case capability.EventButtonReleased:
		t.RawSetString("kind", lua.LString("button_released"))
		t.RawSetString("button", lua.LString(ev.Button.String()))
	case capability.EventAxisChanged:
		t.RawSetString("kind", lua.LString("axis_changed"))
		t.RawSetString("axis", lua.LString(ev.Axis.String()))
		t.RawSetString("value", lua.LNumber(ev.Value))
	default:
		t.RawSetString("kind", lua.LString("unknown"))
	}
	return t
}
