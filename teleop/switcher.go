package teleop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reglet-dev/robohost/capability"
)

const (
	// DefaultTickInterval is how often the current node's Proc runs.
	DefaultTickInterval = 50 * time.Millisecond
	// DefaultModeButton advances to the next mode.
	DefaultModeButton = capability.ButtonNorth
)

var (
	ErrNoControlNodes         = errors.New("teleop: at least one control node is required")
	ErrInitialIndexOutOfRange = errors.New("teleop: initial control node index out of range")
)

// Option configures a Switcher.
type Option func(*Switcher)

// WithTickInterval sets the node driver period. Non-positive values are ignored.
func WithTickInterval(d time.Duration) Option {
	return func(s *Switcher) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithModeButton sets the button that advances the mode.
func WithModeButton(b capability.Button) Option {
	return func(s *Switcher) {
		s.modeButton = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Switcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Switcher owns a fixed list of control nodes and a current index into it. Main drives
// the current node on a ticker and feeds it gamepad events until stopped.
type Switcher struct {
	nodes      []ControlNode
	speaker    capability.Speaker
	tick       time.Duration
	modeButton capability.Button
	logger     *slog.Logger

	mu    sync.Mutex
	index int

	running atomic.Bool

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// NewSwitcher returns a switcher starting at nodes[initialIndex].
func NewSwitcher(nodes []ControlNode, speaker capability.Speaker, initialIndex int, opts ...Option) (*Switcher, error) {
	if len(nodes) == 0 {
		return nil, ErrNoControlNodes
	}
	if initialIndex < 0 || initialIndex >= len(nodes) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInitialIndexOutOfRange, initialIndex, len(nodes))
	}
	if speaker == nil {
		return nil, errors.New("teleop: speaker is required")
	}

	s := &Switcher{
		nodes:      append([]ControlNode(nil), nodes...),
		speaker:    speaker,
		tick:       DefaultTickInterval,
		modeButton: DefaultModeButton,
		logger:     slog.Default(),
		index:      initialIndex,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CurrentIndex returns the index of the current node.
func (s *Switcher) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *Switcher) current() ControlNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes[s.index]
}

// IncrementMode advances to the next node, wrapping around, and announces it. The node
// left behind is deactivated first if it implements Deactivator.
func (s *Switcher) IncrementMode(ctx context.Context) error {
	s.mu.Lock()
	prev := s.index
	s.index = (s.index + 1) % len(s.nodes)
	next := s.index
	node := s.nodes[next]
	s.mu.Unlock()

	if d, ok := s.nodes[prev].(Deactivator); ok && prev != next {
		d.Deactivate(ctx)
	}
	return s.announce(ctx, node)
}

// SpeakCurrentMode announces the current node and waits for the speech to finish.
func (s *Switcher) SpeakCurrentMode(ctx context.Context) error {
	return s.announce(ctx, s.current())
}

func (s *Switcher) announce(ctx context.Context, node ControlNode) error {
	msg := Announcement(node)
	f, err := s.speaker.Speak(ctx, msg)
	if err != nil {
		return fmt.Errorf("teleop: announce mode %q: %w", msg, err)
	}
	if err := f.Wait(ctx); err != nil {
		return fmt.Errorf("teleop: announce mode %q: %w", msg, err)
	}
	return nil
}

// IsRunning reports whether Main is consuming events.
func (s *Switcher) IsRunning() bool {
	return s.running.Load()
}

// Stop makes Main return. A gamepad read or node call in progress sees its context
// cancelled.
func (s *Switcher) Stop() {
	s.running.Store(false)

	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Main announces the current mode and runs until Stop is called, ctx is done or the
// gamepad yields the Unknown event. The mode button advances the mode; every other
// event goes to the current node. Main stops gamepad exactly once before returning.
//
// Main returns an error only when the initial announcement fails, in which case
// nothing was started.
func (s *Switcher) Main(ctx context.Context, gamepad capability.Gamepad) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()

	s.running.Store(true)
	if err := s.SpeakCurrentMode(runCtx); err != nil {
		s.running.Store(false)
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		defer gamepad.Stop()
		s.drive(runCtx)
		return nil
	})

	for s.IsRunning() {
		ev := gamepad.NextEvent(runCtx)
		s.logger.DebugContext(ctx, "teleop: event", "event", ev.String())

		switch {
		case ev.IsPressed(s.modeButton):
			if err := s.IncrementMode(runCtx); err != nil {
				s.logger.WarnContext(ctx, "teleop: failed to switch mode", "error", err)
			}
		case ev.IsUnknown():
			s.logger.WarnContext(ctx, "teleop: gamepad returned unknown event, stopping")
			s.Stop()
		default:
			s.current().HandleEvent(runCtx, ev)
		}
	}

	// wake the driver if it is waiting for a tick
	cancel()
	_ = g.Wait()
	return nil
}

func (s *Switcher) drive(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for s.IsRunning() {
		node := s.current()
		s.logger.DebugContext(ctx, "teleop: tick", "mode", node.Mode())
		node.Proc(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
