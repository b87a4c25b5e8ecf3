// Package capability defines the contracts a robot capability implementation satisfies,
// whether it lives in the host process or behind a plugin boundary.
package capability

import (
	"context"
	"time"
)

// Kind identifies a capability contract.
type Kind string

const (
	KindGamepad               Kind = "Gamepad"
	KindJointTrajectoryClient Kind = "JointTrajectoryClient"
	KindSpeaker               Kind = "Speaker"
	KindMoveBase              Kind = "MoveBase"
	KindNavigation            Kind = "Navigation"
	KindLocalization          Kind = "Localization"
	KindTransformResolver     Kind = "TransformResolver"
)

// Kinds lists every capability kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindGamepad,
		KindJointTrajectoryClient,
		KindSpeaker,
		KindMoveBase,
		KindNavigation,
		KindLocalization,
		KindTransformResolver,
	}
}

// Valid reports whether k names a known capability kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Gamepad is a source of operator input events.
//
// NextEvent blocks until an event is available. Once Stop has been called, or ctx is
// done, a pending NextEvent returns the Unknown event promptly.
type Gamepad interface {
	NextEvent(ctx context.Context) Event
	Stop()
}

// JointTrajectoryClient commands a set of joints.
type JointTrajectoryClient interface {
	JointNames() []string
	CurrentJointPositions(ctx context.Context) ([]float64, error)
	SendJointPositions(ctx context.Context, positions []float64, duration time.Duration) (WaitFuture, error)
	SendJointTrajectory(ctx context.Context, points []TrajectoryPoint) (WaitFuture, error)
}

// Speaker produces speech (or any other announcement) for the operator.
type Speaker interface {
	Speak(ctx context.Context, message string) (WaitFuture, error)
}

// MoveBase drives a mobile base by velocity.
type MoveBase interface {
	CurrentVelocity(ctx context.Context) (BaseVelocity, error)
	SendVelocity(ctx context.Context, velocity BaseVelocity) error
}

// Navigation sends goal poses to a navigation stack.
type Navigation interface {
	SendGoalPose(ctx context.Context, goal Isometry2, frameID string, timeout time.Duration) (WaitFuture, error)
	Cancel(ctx context.Context) error
}

// Localization reports the robot pose in a frame.
type Localization interface {
	CurrentPose(ctx context.Context, frameID string) (Isometry2, error)
}

// TransformResolver looks up rigid transforms between frames.
type TransformResolver interface {
	ResolveTransformation(ctx context.Context, from, to string, at time.Time) (Isometry3, error)
}
