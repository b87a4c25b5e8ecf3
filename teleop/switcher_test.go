package teleop_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reglet-dev/robohost/capability"
	"github.com/reglet-dev/robohost/capability/memory"
	"github.com/reglet-dev/robohost/teleop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordNode struct {
	mode, submode string

	procs  atomic.Int32
	mu     sync.Mutex
	events []capability.Event
}

func newRecordNode(mode, submode string) *recordNode {
	return &recordNode{mode: mode, submode: submode}
}

func (n *recordNode) Mode() string    { return n.mode }
func (n *recordNode) Submode() string { return n.submode }

func (n *recordNode) Proc(context.Context) { n.procs.Add(1) }

func (n *recordNode) HandleEvent(_ context.Context, ev capability.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordNode) Events() []capability.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]capability.Event(nil), n.events...)
}

type failingSpeaker struct{}

func (failingSpeaker) Speak(context.Context, string) (capability.WaitFuture, error) {
	return capability.WaitFuture{}, errors.New("speaker unplugged")
}

func threeNodes() (a, b, c *recordNode, nodes []teleop.ControlNode) {
	a, b, c = newRecordNode("A", ""), newRecordNode("B", "1"), newRecordNode("C", "")
	return a, b, c, []teleop.ControlNode{a, b, c}
}

func TestNewSwitcher_Preconditions(t *testing.T) {
	t.Parallel()

	_, _, _, nodes := threeNodes()
	speaker := memory.NewSpeaker(nil)

	tests := []struct {
		name    string
		nodes   []teleop.ControlNode
		index   int
		wantErr error
	}{
		{"no nodes", nil, 0, teleop.ErrNoControlNodes},
		{"negative index", nodes, -1, teleop.ErrInitialIndexOutOfRange},
		{"index past end", nodes, 3, teleop.ErrInitialIndexOutOfRange},
		{"last index", nodes, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := teleop.NewSwitcher(tt.nodes, speaker, tt.index)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.index, s.CurrentIndex())
			assert.False(t, s.IsRunning())
		})
	}
}

func TestSwitcher_IncrementModeWrapsAround(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for n := 1; n <= 4; n++ {
		for start := 0; start < n; start++ {
			nodes := make([]teleop.ControlNode, n)
			for i := range nodes {
				nodes[i] = newRecordNode(string(rune('A'+i)), "")
			}
			s, err := teleop.NewSwitcher(nodes, memory.NewSpeaker(nil), start)
			require.NoError(t, err)

			for range n {
				require.NoError(t, s.IncrementMode(ctx))
			}
			assert.Equal(t, start, s.CurrentIndex(), "n=%d start=%d", n, start)
		}
	}
}

func TestSwitcher_SpeakCurrentMode(t *testing.T) {
	t.Parallel()

	_, _, _, nodes := threeNodes()
	speaker := memory.NewSpeaker(nil)
	s, err := teleop.NewSwitcher(nodes, speaker, 1)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.SpeakCurrentMode(ctx))
	require.NoError(t, s.IncrementMode(ctx))
	require.NoError(t, s.SpeakCurrentMode(ctx))
	assert.Equal(t, []string{"B1", "C", "C"}, speaker.Transcript())

	failing, err := teleop.NewSwitcher(nodes, failingSpeaker{}, 0)
	require.NoError(t, err)
	assert.ErrorContains(t, failing.SpeakCurrentMode(ctx), "speaker unplugged")
}

func TestSwitcher_ConcurrentIncrements(t *testing.T) {
	t.Parallel()

	_, _, _, nodes := threeNodes()
	s, err := teleop.NewSwitcher(nodes, memory.NewSpeaker(nil), 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementMode(context.Background()))
		}()
	}
	wg.Wait()
	assert.Equal(t, 100%3, s.CurrentIndex())
}

func TestSwitcher_Main(t *testing.T) {
	t.Parallel()

	axis := capability.AxisChanged(capability.AxisLeftStickX, 0.5)
	north := capability.ButtonPressed(capability.ButtonNorth)

	tests := []struct {
		name       string
		events     []capability.Event
		transcript []string
		wantA      []capability.Event
		wantB      []capability.Event
		wantIndex  int
	}{
		{
			name:       "axis after first switch goes to second node",
			events:     []capability.Event{north, axis, north, capability.UnknownEvent()},
			transcript: []string{"A", "B1", "C"},
			wantB:      []capability.Event{axis},
			wantIndex:  2,
		},
		{
			name:       "axis before any switch goes to initial node",
			events:     []capability.Event{axis, north, capability.UnknownEvent()},
			transcript: []string{"A", "B1"},
			wantA:      []capability.Event{axis},
			wantIndex:  1,
		},
		{
			name:       "non-mode buttons are forwarded",
			events:     []capability.Event{capability.ButtonPressed(capability.ButtonSouth), capability.UnknownEvent()},
			transcript: []string{"A"},
			wantA:      []capability.Event{capability.ButtonPressed(capability.ButtonSouth)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, b, c, nodes := threeNodes()
			speaker := memory.NewSpeaker(nil)
			gamepad := memory.NewGamepad(tt.events...)

			s, err := teleop.NewSwitcher(nodes, speaker, 0, teleop.WithTickInterval(time.Millisecond))
			require.NoError(t, err)

			require.NoError(t, s.Main(context.Background(), gamepad))

			assert.Equal(t, tt.transcript, speaker.Transcript())
			assert.Equal(t, tt.wantA, a.Events())
			assert.Equal(t, tt.wantB, b.Events())
			assert.Empty(t, c.Events())
			assert.Equal(t, tt.wantIndex, s.CurrentIndex())
			assert.False(t, s.IsRunning())
			assert.Equal(t, 1, gamepad.StopCount())
		})
	}
}

func TestSwitcher_MainDrivesCurrentNode(t *testing.T) {
	t.Parallel()

	a, b, _, nodes := threeNodes()
	gamepad := memory.NewGamepad()
	s, err := teleop.NewSwitcher(nodes, memory.NewSpeaker(nil), 0, teleop.WithTickInterval(time.Millisecond))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Main(context.Background(), gamepad) }()

	require.Eventually(t, func() bool { return a.procs.Load() >= 3 }, 2*time.Second, time.Millisecond)
	assert.Zero(t, b.procs.Load())

	gamepad.Push(capability.ButtonPressed(capability.ButtonNorth))
	require.Eventually(t, func() bool { return b.procs.Load() >= 3 }, 2*time.Second, time.Millisecond)

	s.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Main did not return after Stop")
	}
	assert.Equal(t, 1, gamepad.StopCount())
}

func TestSwitcher_ModeSwitchStopsBase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := memory.NewMoveBase()
	drive := teleop.NewMoveBaseNode(teleop.MoveBaseConfig{Mode: "base"}, base, nil)
	other := newRecordNode("arm", "")
	gamepad := memory.NewGamepad(capability.AxisChanged(capability.AxisLeftStickY, 1))
	s, err := teleop.NewSwitcher([]teleop.ControlNode{drive, other}, memory.NewSpeaker(nil), 0,
		teleop.WithTickInterval(time.Millisecond))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Main(ctx, gamepad) }()

	require.Eventually(t, func() bool {
		v, _ := base.CurrentVelocity(ctx)
		return !v.IsZero()
	}, 2*time.Second, time.Millisecond)

	gamepad.Push(capability.ButtonPressed(capability.ButtonNorth))
	require.Eventually(t, func() bool {
		v, _ := base.CurrentVelocity(ctx)
		return other.procs.Load() >= 3 && v.IsZero()
	}, 2*time.Second, time.Millisecond)

	sent := base.Commands()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, sent, base.Commands(), "the inactive node stays quiet")

	s.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Main did not return after Stop")
	}
}

func TestSwitcher_MainReturnsWhenContextDone(t *testing.T) {
	t.Parallel()

	_, _, _, nodes := threeNodes()
	gamepad := memory.NewGamepad()
	s, err := teleop.NewSwitcher(nodes, memory.NewSpeaker(nil), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, s.Main(ctx, gamepad))
	assert.False(t, s.IsRunning())
	assert.Equal(t, 1, gamepad.StopCount())
}

func TestSwitcher_MainCustomModeButton(t *testing.T) {
	t.Parallel()

	a, _, _, nodes := threeNodes()
	speaker := memory.NewSpeaker(nil)
	gamepad := memory.NewGamepad(
		capability.ButtonPressed(capability.ButtonNorth),
		capability.ButtonPressed(capability.ButtonStart),
		capability.UnknownEvent(),
	)
	s, err := teleop.NewSwitcher(nodes, speaker, 0, teleop.WithModeButton(capability.ButtonStart))
	require.NoError(t, err)

	require.NoError(t, s.Main(context.Background(), gamepad))
	assert.Equal(t, []string{"A", "B1"}, speaker.Transcript())
	assert.Equal(t, []capability.Event{capability.ButtonPressed(capability.ButtonNorth)}, a.Events())
}

func TestSwitcher_MainInitialAnnouncementFails(t *testing.T) {
	t.Parallel()

	a, _, _, nodes := threeNodes()
	gamepad := memory.NewGamepad(capability.UnknownEvent())
	s, err := teleop.NewSwitcher(nodes, failingSpeaker{}, 0)
	require.NoError(t, err)

	err = s.Main(context.Background(), gamepad)
	require.ErrorContains(t, err, "speaker unplugged")
	assert.False(t, s.IsRunning())
	assert.Zero(t, a.procs.Load())
	assert.Zero(t, gamepad.StopCount())
}

func TestIndexOfMode(t *testing.T) {
	t.Parallel()

	_, _, _, nodes := threeNodes()

	tests := []struct {
		mode    string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"A", 0, false},
		{"C", 2, false},
		{"Z", 0, true},
	}

	for _, tt := range tests {
		got, err := teleop.IndexOfMode(nodes, tt.mode)
		if tt.wantErr {
			var nsm *teleop.NoSuchModeError
			require.ErrorAs(t, err, &nsm)
			assert.Equal(t, tt.mode, nsm.Mode)
			assert.Equal(t, []string{"A", "B", "C"}, nsm.Known)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
