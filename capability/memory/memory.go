// Package memory provides in-memory implementations of every capability contract.
// They back the builtin "memory" plugin, dry runs without hardware, and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reglet-dev/robohost/capability"
)

// Gamepad replays queued events. When the queue is empty NextEvent blocks until an
// event is pushed, Stop is called or ctx is done.
type Gamepad struct {
	events   chan capability.Event
	stopped  chan struct{}
	stopOnce sync.Once
	stops    atomic.Int32
}

// NewGamepad returns a gamepad that yields events in order.
func NewGamepad(events ...capability.Event) *Gamepad {
	g := &Gamepad{
		events:  make(chan capability.Event, len(events)+64),
		stopped: make(chan struct{}),
	}
	for _, ev := range events {
		g.events <- ev
	}
	return g
}

// Push enqueues an event. It blocks when the queue is full.
func (g *Gamepad) Push(ev capability.Event) {
	select {
	case g.events <- ev:
	case <-g.stopped:
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

// Stop implements capability.Gamepad.
func (g *Gamepad) Stop() {
	g.stops.Add(1)
	g.stopOnce.Do(func() { close(g.stopped) })
}

// IsStopped reports whether Stop has been called.
func (g *Gamepad) IsStopped() bool {
	select {
	case <-g.stopped:
		return true
	default:
		return false
	}
}

// StopCount returns how many times Stop has been called.
func (g *Gamepad) StopCount() int {
	return int(g.stops.Load())
}

// JointTrajectoryClient keeps commanded joint positions in memory. Commands complete
// immediately.
type JointTrajectoryClient struct {
	names []string

	mu         sync.Mutex
	positions  []float64
	trajectory []capability.TrajectoryPoint
}

// NewJointTrajectoryClient returns a client for names, all joints at zero.
func NewJointTrajectoryClient(names []string) *JointTrajectoryClient {
	return &JointTrajectoryClient{
		names:     slices.Clone(names),
		positions: make([]float64, len(names)),
	}
}

// JointNames implements capability.JointTrajectoryClient.
func (c *JointTrajectoryClient) JointNames() []string {
	return slices.Clone(c.names)
}

// CurrentJointPositions implements capability.JointTrajectoryClient.
func (c *JointTrajectoryClient) CurrentJointPositions(context.Context) ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.positions), nil
}

// SendJointPositions implements capability.JointTrajectoryClient.
func (c *JointTrajectoryClient) SendJointPositions(_ context.Context, positions []float64, _ time.Duration) (capability.WaitFuture, error) {
	if err := c.checkLen(positions); err != nil {
		return capability.WaitFuture{}, err
	}
	c.mu.Lock()
	c.positions = slices.Clone(positions)
	c.mu.Unlock()
	return capability.Ready(), nil
}

// SendJointTrajectory implements capability.JointTrajectoryClient. The final point
// becomes the current position.
func (c *JointTrajectoryClient) SendJointTrajectory(_ context.Context, points []capability.TrajectoryPoint) (capability.WaitFuture, error) {
	for i, p := range points {
		if err := c.checkLen(p.Positions); err != nil {
			return capability.WaitFuture{}, fmt.Errorf("point %d: %w", i, err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trajectory = slices.Clone(points)
	if len(points) > 0 {
		c.positions = slices.Clone(points[len(points)-1].Positions)
	}
	return capability.Ready(), nil
}

// LastTrajectory returns the most recent trajectory sent.
func (c *JointTrajectoryClient) LastTrajectory() []capability.TrajectoryPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.trajectory)
}

func (c *JointTrajectoryClient) checkLen(positions []float64) error {
	if len(positions) != len(c.names) {
		return fmt.Errorf("expected %d joint positions, got %d", len(c.names), len(positions))
	}
	return nil
}

// Speaker records every message and logs it.
type Speaker struct {
	logger *slog.Logger

	mu         sync.Mutex
	transcript []string
}

// NewSpeaker returns a speaker that logs to logger (slog.Default when nil).
func NewSpeaker(logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{logger: logger}
}

// Speak implements capability.Speaker.
func (s *Speaker) Speak(ctx context.Context, message string) (capability.WaitFuture, error) {
	s.mu.Lock()
	s.transcript = append(s.transcript, message)
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "speak", "message", message)
	return capability.Ready(), nil
}

// Transcript returns every message spoken, in order.
func (s *Speaker) Transcript() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.transcript)
}

// MoveBase stores the last commanded velocity.
type MoveBase struct {
	mu       sync.Mutex
	velocity capability.BaseVelocity
	commands int
}

// NewMoveBase returns a stationary base.
func NewMoveBase() *MoveBase {
	return &MoveBase{}
}

// CurrentVelocity implements capability.MoveBase.
func (b *MoveBase) CurrentVelocity(context.Context) (capability.BaseVelocity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.velocity, nil
}

// SendVelocity implements capability.MoveBase.
func (b *MoveBase) SendVelocity(_ context.Context, v capability.BaseVelocity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.velocity = v
	b.commands++
	return nil
}

// Commands returns how many velocity commands were received.
func (b *MoveBase) Commands() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.commands
}

// ErrNoGoal is returned by Navigation.Cancel when no goal is active.
var ErrNoGoal = errors.New("no active goal")

// Navigation accepts goals and reaches them immediately.
type Navigation struct {
	mu      sync.Mutex
	goal    capability.Isometry2
	frameID string
	active  bool
}

// NewNavigation returns an idle navigation stack.
func NewNavigation() *Navigation {
	return &Navigation{}
}

// SendGoalPose implements capability.Navigation.
func (n *Navigation) SendGoalPose(_ context.Context, goal capability.Isometry2, frameID string, _ time.Duration) (capability.WaitFuture, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.goal = goal
	n.frameID = frameID
	n.active = true
	return capability.Ready(), nil
}

// Cancel implements capability.Navigation.
func (n *Navigation) Cancel(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.active {
		return ErrNoGoal
	}
	n.active = false
	return nil
}

// Goal returns the last goal and whether it is still active.
func (n *Navigation) Goal() (capability.Isometry2, string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.goal, n.frameID, n.active
}

// Localization reports a settable pose for any frame.
type Localization struct {
	mu   sync.Mutex
	pose capability.Isometry2
}

// NewLocalization returns a localization at pose.
func NewLocalization(pose capability.Isometry2) *Localization {
	return &Localization{pose: pose}
}

// CurrentPose implements capability.Localization.
func (l *Localization) CurrentPose(context.Context, string) (capability.Isometry2, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pose, nil
}

// SetPose replaces the reported pose.
func (l *Localization) SetPose(pose capability.Isometry2) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pose = pose
}

// TransformResolver resolves registered frame pairs, their inverses, and identical
// frames to identity.
type TransformResolver struct {
	mu         sync.RWMutex
	transforms map[[2]string]capability.Isometry3
}

// NewTransformResolver returns a resolver with no registered transforms.
func NewTransformResolver() *TransformResolver {
	return &TransformResolver{transforms: make(map[[2]string]capability.Isometry3)}
}

// Set registers the transform from one frame to another.
func (r *TransformResolver) Set(from, to string, iso capability.Isometry3) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transforms[[2]string{from, to}] = iso
}

// ResolveTransformation implements capability.TransformResolver.
func (r *TransformResolver) ResolveTransformation(_ context.Context, from, to string, _ time.Time) (capability.Isometry3, error) {
	if from == to {
		return capability.Identity3(), nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if iso, ok := r.transforms[[2]string{from, to}]; ok {
		return iso, nil
	}
	if iso, ok := r.transforms[[2]string{to, from}]; ok {
		return iso.Inverse(), nil
	}
	return capability.Isometry3{}, fmt.Errorf("no transform from %q to %q", from, to)
}

var (
	_ capability.Gamepad               = (*Gamepad)(nil)
	_ capability.JointTrajectoryClient = (*JointTrajectoryClient)(nil)
	_ capability.Speaker               = (*Speaker)(nil)
	_ capability.MoveBase              = (*MoveBase)(nil)
	_ capability.Navigation            = (*Navigation)(nil)
	_ capability.Localization          = (*Localization)(nil)
	_ capability.TransformResolver     = (*TransformResolver)(nil)
)
