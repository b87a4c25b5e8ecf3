package teleop

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reglet-dev/robohost/capability"
)

// DefaultMaxVelocity is the base velocity at full stick deflection.
var DefaultMaxVelocity = capability.BaseVelocity{X: 0.5, Y: 0.5, Theta: 1.5}

var _ Deactivator = (*MoveBaseNode)(nil)

// MoveBaseConfig configures a MoveBaseNode.
type MoveBaseConfig struct {
	Mode    string
	Submode string
	// MaxVelocity scales stick deflection in [-1, 1]. Zero means DefaultMaxVelocity.
	MaxVelocity capability.BaseVelocity
	// Deadman must be held for the base to move. ButtonUnknown disables the check.
	Deadman capability.Button
}

// MoveBaseNode drives a mobile base from the sticks: left stick Y forward, left stick
// X sideways, right stick X rotation.
type MoveBaseNode struct {
	cfg    MoveBaseConfig
	base   capability.MoveBase
	logger *slog.Logger

	// sendMu orders the commands of Proc and Deactivate.
	sendMu sync.Mutex

	mu       sync.Mutex
	stick    capability.BaseVelocity
	held     bool
	wasMoved bool
}

// NewMoveBaseNode returns a node commanding base.
func NewMoveBaseNode(cfg MoveBaseConfig, base capability.MoveBase, logger *slog.Logger) *MoveBaseNode {
	if cfg.MaxVelocity.IsZero() {
		cfg.MaxVelocity = DefaultMaxVelocity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MoveBaseNode{cfg: cfg, base: base, logger: logger}
}

func (n *MoveBaseNode) Mode() string    { return n.cfg.Mode }
func (n *MoveBaseNode) Submode() string { return n.cfg.Submode }

// HandleEvent implements ControlNode.
func (n *MoveBaseNode) HandleEvent(_ context.Context, ev capability.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch ev.Kind {
	case capability.EventAxisChanged:
		switch ev.Axis {
		case capability.AxisLeftStickY:
			n.stick.X = ev.Value
		case capability.AxisLeftStickX:
			n.stick.Y = ev.Value
		case capability.AxisRightStickX:
			n.stick.Theta = ev.Value
		}
	case capability.EventButtonPressed:
		if ev.Button == n.cfg.Deadman {
			n.held = true
		}
	case capability.EventButtonReleased:
		if ev.Button == n.cfg.Deadman {
			n.held = false
		}
	}
}

// Proc sends the commanded velocity while enabled, and one zero velocity when the
// node becomes disabled.
func (n *MoveBaseNode) Proc(ctx context.Context) {
	n.sendMu.Lock()
	defer n.sendMu.Unlock()

	n.mu.Lock()
	enabled := n.cfg.Deadman == capability.ButtonUnknown || n.held
	cmd := n.stick.Scale(n.cfg.MaxVelocity)
	send := enabled || n.wasMoved
	if !enabled {
		cmd = capability.BaseVelocity{}
	}
	n.wasMoved = enabled
	n.mu.Unlock()

	if !send {
		return
	}
	if err := n.base.SendVelocity(ctx, cmd); err != nil {
		n.logger.WarnContext(ctx, "teleop: send velocity failed", "mode", n.cfg.Mode, "error", err)
	}
}

// Deactivate releases the sticks and the deadman, and sends a zero velocity if the
// base was last commanded to move.
func (n *MoveBaseNode) Deactivate(ctx context.Context) {
	n.sendMu.Lock()
	defer n.sendMu.Unlock()

	n.mu.Lock()
	moving := n.wasMoved
	n.stick = capability.BaseVelocity{}
	n.held = false
	n.wasMoved = false
	n.mu.Unlock()

	if !moving {
		return
	}
	if err := n.base.SendVelocity(ctx, capability.BaseVelocity{}); err != nil {
		n.logger.WarnContext(ctx, "teleop: stop base failed", "mode", n.cfg.Mode, "error", err)
	}
}

// JointsPoseConfig configures a JointsPoseNode.
type JointsPoseConfig struct {
	Mode     string
	PoseName string
	// Positions is the target, one value per joint of the client.
	Positions []float64
	Duration  time.Duration
	// Trigger sends the pose. ButtonUnknown means ButtonSouth.
	Trigger capability.Button
}

// JointsPoseNode moves a set of joints to a fixed pose on a button press. The submode is
// the pose name.
type JointsPoseNode struct {
	cfg    JointsPoseConfig
	client capability.JointTrajectoryClient
	logger *slog.Logger

	requested atomic.Bool
}

// NewJointsPoseNode returns a node commanding client.
func NewJointsPoseNode(cfg JointsPoseConfig, client capability.JointTrajectoryClient, logger *slog.Logger) *JointsPoseNode {
	if cfg.Trigger == capability.ButtonUnknown {
		cfg.Trigger = capability.ButtonSouth
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Positions = slices.Clone(cfg.Positions)
	return &JointsPoseNode{cfg: cfg, client: client, logger: logger}
}

func (n *JointsPoseNode) Mode() string    { return n.cfg.Mode }
func (n *JointsPoseNode) Submode() string { return n.cfg.PoseName }

// HandleEvent implements ControlNode. The pose is sent on the next Proc.
func (n *JointsPoseNode) HandleEvent(_ context.Context, ev capability.Event) {
	if ev.IsPressed(n.cfg.Trigger) {
		n.requested.Store(true)
	}
}

// Proc implements ControlNode.
func (n *JointsPoseNode) Proc(ctx context.Context) {
	if !n.requested.Swap(false) {
		return
	}
	f, err := n.client.SendJointPositions(ctx, n.cfg.Positions, n.cfg.Duration)
	if err == nil {
		err = f.Wait(ctx)
	}
	if err != nil {
		n.logger.WarnContext(ctx, "teleop: send joint pose failed", "pose", n.cfg.PoseName, "error", err)
		return
	}
	n.logger.InfoContext(ctx, "teleop: joint pose reached", "pose", n.cfg.PoseName)
}
