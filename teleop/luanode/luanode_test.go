package luanode_test

import (
	"context"
	"testing"
	"time"

	"github.com/reglet-dev/robohost/capability"
	"github.com/reglet-dev/robohost/capability/memory"
	"github.com/reglet-dev/robohost/teleop"
	"github.com/reglet-dev/robohost/teleop/luanode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const driveScript = `
local speed = 0

function handle_event(ev)
  if ev.kind == "axis_changed" and ev.axis == "LeftStickY" then
    speed = ev.value
  elseif ev.kind == "button_pressed" and ev.button == "South" then
    robot.speak("home")
    robot.send_joint_positions({1.0, 2.0}, 0.5)
  end
end

function proc()
  robot.send_velocity(speed * 2, 0, 0)
end
`

func newNode(t *testing.T, source string, caps luanode.Capabilities) *luanode.Node {
	t.Helper()
	n, err := luanode.New(luanode.Config{Mode: "script", Submode: "1", Source: source}, caps, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestNode_DrivesCapabilities(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	speaker := memory.NewSpeaker(nil)
	base := memory.NewMoveBase()
	joints := memory.NewJointTrajectoryClient([]string{"a", "b"})

	n := newNode(t, driveScript, luanode.Capabilities{Speaker: speaker, MoveBase: base, Joints: joints})
	var _ teleop.ControlNode = n
	assert.Equal(t, "script1", teleop.Announcement(n))

	n.HandleEvent(ctx, capability.AxisChanged(capability.AxisLeftStickY, 0.25))
	n.Proc(ctx)
	v, err := base.CurrentVelocity(ctx)
	require.NoError(t, err)
	assert.Equal(t, capability.BaseVelocity{X: 0.5}, v)

	n.HandleEvent(ctx, capability.ButtonPressed(capability.ButtonSouth))
	assert.Equal(t, []string{"home"}, speaker.Transcript())
	got, err := joints.CurrentJointPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 2.0}, got)
}

func TestNode_CompileAndRunErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"syntax error", "function proc(", "compile"},
		{"runtime error at top level", "error('boom')", "run"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := luanode.New(luanode.Config{Mode: "bad", Source: tt.source}, luanode.Capabilities{}, nil)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNode_Sandbox(t *testing.T) {
	t.Parallel()

	n := newNode(t, `
function check()
  assert(io == nil, "io")
  assert(os == nil, "os")
  assert(dofile == nil, "dofile")
  assert(loadstring == nil, "loadstring")
  assert(require == nil, "require")
  assert(string.upper("x") == "X")
  assert(math.floor(1.5) == 1)
  assert(#table.concat({"a", "b"}) == 2)
end
`, luanode.Capabilities{})

	assert.NoError(t, n.Call(context.Background(), "check"))
}

func TestNode_CallErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	n := newNode(t, `
not_a_function = 3
function speak() robot.speak("hi") end
function spin() while true do end end
`, luanode.Capabilities{})

	assert.NoError(t, n.Call(ctx, "undefined"), "missing functions are skipped")
	assert.Error(t, n.Call(ctx, "not_a_function"))
	assert.ErrorContains(t, n.Call(ctx, "speak"), luanode.ErrNoCapability.Error())

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, n.Call(short, "spin"), "a done context aborts the script")

	require.NoError(t, n.Close())
	assert.ErrorIs(t, n.Call(ctx, "speak"), luanode.ErrClosed)
}
