package memory_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/reglet-dev/robohost/capability"
	"github.com/reglet-dev/robohost/capability/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGamepad_ReplaysThenBlocksUntilStop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g := memory.NewGamepad(capability.ButtonPressed(capability.ButtonNorth))

	assert.Equal(t, capability.ButtonPressed(capability.ButtonNorth), g.NextEvent(ctx))

	got := make(chan capability.Event, 1)
	go func() { got <- g.NextEvent(ctx) }()

	select {
	case <-got:
		t.Fatal("NextEvent returned before Stop")
	case <-time.After(20 * time.Millisecond):
	}

	g.Stop()
	select {
	case ev := <-got:
		assert.True(t, ev.IsUnknown())
	case <-time.After(time.Second):
		t.Fatal("NextEvent did not return after Stop")
	}
	assert.True(t, g.IsStopped())
	assert.Equal(t, 1, g.StopCount())

	g.Stop()
	assert.Equal(t, 2, g.StopCount())
}

func TestGamepad_ContextCancel(t *testing.T) {
	t.Parallel()

	g := memory.NewGamepad()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.True(t, g.NextEvent(ctx).IsUnknown())
	assert.False(t, g.IsStopped())
}

func TestJointTrajectoryClient(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := memory.NewJointTrajectoryClient([]string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, c.JointNames())

	pos, err := c.CurrentJointPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, pos)

	f, err := c.SendJointPositions(ctx, []float64{1, 2}, time.Second)
	require.NoError(t, err)
	require.NoError(t, f.Wait(ctx))

	pos, err = c.CurrentJointPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, pos)

	_, err = c.SendJointPositions(ctx, []float64{1}, time.Second)
	assert.Error(t, err)

	points := []capability.TrajectoryPoint{
		{Positions: []float64{0.5, 0.5}, TimeFromStart: time.Second},
		{Positions: []float64{3, 4}, TimeFromStart: 2 * time.Second},
	}
	_, err = c.SendJointTrajectory(ctx, points)
	require.NoError(t, err)
	assert.Equal(t, points, c.LastTrajectory())

	pos, err = c.CurrentJointPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, pos)
}

func TestSpeaker_Transcript(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewSpeaker(slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, m := range []string{"one", "two"} {
		f, err := s.Speak(ctx, m)
		require.NoError(t, err)
		require.NoError(t, f.Wait(ctx))
	}
	assert.Equal(t, []string{"one", "two"}, s.Transcript())
}

func TestMoveBaseNavigationLocalization(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	b := memory.NewMoveBase()
	require.NoError(t, b.SendVelocity(ctx, capability.BaseVelocity{X: 1, Theta: 0.5}))
	v, err := b.CurrentVelocity(ctx)
	require.NoError(t, err)
	assert.Equal(t, capability.BaseVelocity{X: 1, Theta: 0.5}, v)
	assert.Equal(t, 1, b.Commands())

	n := memory.NewNavigation()
	assert.ErrorIs(t, n.Cancel(ctx), memory.ErrNoGoal)
	_, err = n.SendGoalPose(ctx, capability.NewIsometry2(1, 2, 0), "map", time.Minute)
	require.NoError(t, err)
	goal, frame, active := n.Goal()
	assert.Equal(t, capability.NewIsometry2(1, 2, 0), goal)
	assert.Equal(t, "map", frame)
	assert.True(t, active)
	assert.NoError(t, n.Cancel(ctx))

	l := memory.NewLocalization(capability.Identity2())
	l.SetPose(capability.NewIsometry2(3, 4, 1))
	pose, err := l.CurrentPose(ctx, "map")
	require.NoError(t, err)
	assert.Equal(t, capability.NewIsometry2(3, 4, 1), pose)
}

func TestTransformResolver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := memory.NewTransformResolver()
	iso := capability.Isometry3{Translation: capability.Vector3{X: 1}, Rotation: capability.Quaternion{W: 1}}
	r.Set("base", "camera", iso)

	got, err := r.ResolveTransformation(ctx, "base", "camera", time.Now())
	require.NoError(t, err)
	assert.Equal(t, iso, got)

	got, err = r.ResolveTransformation(ctx, "camera", "base", time.Now())
	require.NoError(t, err)
	assert.InDelta(t, -1, got.Translation.X, 1e-9)

	got, err = r.ResolveTransformation(ctx, "map", "map", time.Now())
	require.NoError(t, err)
	assert.Equal(t, capability.Identity3(), got)

	_, err = r.ResolveTransformation(ctx, "map", "odom", time.Now())
	assert.Error(t, err)
}
