// Package keyboard is the builtin "keyboard" plugin: a Gamepad driven from the
// terminal. Stdin is switched to raw mode while the gamepad runs.
//
// Key map:
//
//	w / s        left stick Y +1 / -1
//	a / d        left stick X +1 / -1
//	z / c        right stick X +1 / -1
//	x            all sticks to 0
//	space        North (mode switch)
//	i j k l      West, LeftTrigger, South, RightTrigger
//	q, Ctrl-C    quit (Unknown)
//
// A terminal reports no key releases, so button keys produce a press immediately
// followed by a release.
package keyboard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/reglet-dev/robohost/capability"
	"github.com/reglet-dev/robohost/export"
)

// Name is the plugin name and its builtin key.
const Name = "keyboard"

const ctrlC = 0x03

var buttonKeys = map[byte]capability.Button{
	' ': capability.ButtonNorth,
	'i': capability.ButtonWest,
	'j': capability.ButtonLeftTrigger,
	'k': capability.ButtonSouth,
	'l': capability.ButtonRightTrigger,
}

type axisKey struct {
	axis  capability.Axis
	value float64
}

var axisKeys = map[byte]axisKey{
	'w': {capability.AxisLeftStickY, 1},
	's': {capability.AxisLeftStickY, -1},
	'a': {capability.AxisLeftStickX, 1},
	'd': {capability.AxisLeftStickX, -1},
	'z': {capability.AxisRightStickX, 1},
	'c': {capability.AxisRightStickX, -1},
}

// Translate maps one key to the events it produces. Unmapped keys produce none.
func Translate(key byte) []capability.Event {
	switch key {
	case 'q', ctrlC:
		return []capability.Event{capability.UnknownEvent()}
	case 'x':
		return []capability.Event{
			capability.AxisChanged(capability.AxisLeftStickX, 0),
			capability.AxisChanged(capability.AxisLeftStickY, 0),
			capability.AxisChanged(capability.AxisRightStickX, 0),
		}
	}
	if b, ok := buttonKeys[key]; ok {
		return []capability.Event{capability.ButtonPressed(b), capability.ButtonReleased(b)}
	}
	if a, ok := axisKeys[key]; ok {
		return []capability.Event{capability.AxisChanged(a.axis, a.value)}
	}
	return nil
}

// Gamepad reads keys from a reader.
type Gamepad struct {
	events  chan capability.Event
	stopped chan struct{}
	once    sync.Once
	restore func() error
	logger  *slog.Logger
}

// NewGamepad reads from in. When in is a terminal it is put in raw mode until Stop.
func NewGamepad(in io.Reader, logger *slog.Logger) (*Gamepad, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gamepad{
		events:  make(chan capability.Event, 64),
		stopped: make(chan struct{}),
		restore: func() error { return nil },
		logger:  logger,
	}

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return nil, fmt.Errorf("keyboard: raw mode: %w", err)
		}
		g.restore = func() error { return term.Restore(int(f.Fd()), state) }
	}

	go g.read(bufio.NewReader(in))
	return g, nil
}

func (g *Gamepad) read(r io.ByteReader) {
	for {
		key, err := r.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				g.logger.Warn("keyboard: read failed", "error", err)
			}
			g.push(capability.UnknownEvent())
			return
		}
		for _, ev := range Translate(key) {
			if !g.push(ev) {
				return
			}
		}
	}
}

func (g *Gamepad) push(ev capability.Event) bool {
	select {
	case g.events <- ev:
		return true
	case <-g.stopped:
		return false
	}
}

// NextEvent implements capability.Gamepad.
func (g *Gamepad) NextEvent(ctx context.Context) capability.Event {
	select {
	case <-g.stopped:
		return capability.UnknownEvent()
	default:
	}
	select {
	case ev := <-g.events:
		return ev
	case <-g.stopped:
		return capability.UnknownEvent()
	case <-ctx.Done():
		return capability.UnknownEvent()
	}
}

// Stop implements capability.Gamepad. It restores the terminal.
func (g *Gamepad) Stop() {
	g.once.Do(func() {
		close(g.stopped)
		if err := g.restore(); err != nil {
			g.logger.Warn("keyboard: restore terminal failed", "error", err)
		}
	})
}

// Plugin constructs keyboard gamepads on stdin.
type Plugin struct {
	export.UnimplementedPlugin
	in     io.Reader
	logger *slog.Logger
}

// New returns a plugin reading from in.
func New(in io.Reader, logger *slog.Logger) *Plugin {
	return &Plugin{in: in, logger: logger}
}

// Module returns the plugin module reading from stdin.
func Module() *export.Module {
	return New(os.Stdin, nil).Module()
}

// Module returns a module whose constructor yields p.
func (p *Plugin) Module() *export.Module {
	return export.NewModule(func() export.Plugin { return p })
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) NewGamepad(args string) (capability.Gamepad, error) {
	if args != "" {
		return nil, fmt.Errorf("keyboard: takes no arguments, got %q", args)
	}
	return NewGamepad(p.in, p.logger)
}
