package keyboard_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/reglet-dev/robohost/capability"
	"github.com/reglet-dev/robohost/plugin"
	"github.com/reglet-dev/robohost/plugins/keyboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  byte
		want []capability.Event
	}{
		{' ', []capability.Event{
			capability.ButtonPressed(capability.ButtonNorth),
			capability.ButtonReleased(capability.ButtonNorth),
		}},
		{'w', []capability.Event{capability.AxisChanged(capability.AxisLeftStickY, 1)}},
		{'d', []capability.Event{capability.AxisChanged(capability.AxisLeftStickX, -1)}},
		{'q', []capability.Event{capability.UnknownEvent()}},
		{0x03, []capability.Event{capability.UnknownEvent()}},
		{'7', nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, keyboard.Translate(tt.key), "key %q", tt.key)
	}
	assert.Len(t, keyboard.Translate('x'), 3)
}

func TestGamepad_ReadsKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g, err := keyboard.NewGamepad(strings.NewReader("w7 q"), nil)
	require.NoError(t, err)
	defer g.Stop()

	assert.Equal(t, capability.AxisChanged(capability.AxisLeftStickY, 1), g.NextEvent(ctx))
	assert.Equal(t, capability.ButtonPressed(capability.ButtonNorth), g.NextEvent(ctx))
	assert.Equal(t, capability.ButtonReleased(capability.ButtonNorth), g.NextEvent(ctx))
	assert.True(t, g.NextEvent(ctx).IsUnknown())
}

func TestGamepad_EOFIsUnknown(t *testing.T) {
	t.Parallel()

	g, err := keyboard.NewGamepad(strings.NewReader(""), nil)
	require.NoError(t, err)
	defer g.Stop()

	assert.True(t, g.NextEvent(context.Background()).IsUnknown())
}

func TestGamepad_StopUnblocks(t *testing.T) {
	t.Parallel()

	r, w := io.Pipe()
	defer w.Close()

	g, err := keyboard.NewGamepad(r, nil)
	require.NoError(t, err)

	done := make(chan capability.Event, 1)
	go func() { done <- g.NextEvent(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	g.Stop()
	g.Stop()

	select {
	case ev := <-done:
		assert.True(t, ev.IsUnknown())
	case <-time.After(2 * time.Second):
		t.Fatal("NextEvent did not return after Stop")
	}
}

func TestPlugin_ThroughLoader(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := plugin.NewLoader(
		plugin.WithBuiltin(keyboard.Name, keyboard.New(strings.NewReader("s"), nil).Module()),
		plugin.WithPollInterval(5*time.Millisecond),
	)
	t.Cleanup(func() { _ = l.Close(ctx) })

	p, err := l.Load(ctx, plugin.BuiltinPrefix+keyboard.Name)
	require.NoError(t, err)

	_, _, err = p.NewGamepad(ctx, "extra")
	assert.Error(t, err)

	g, ok, err := p.NewGamepad(ctx, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, capability.AxisChanged(capability.AxisLeftStickY, -1), g.NextEvent(ctx))

	sp, ok, err := p.NewSpeaker(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, sp)
}
