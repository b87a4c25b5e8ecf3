package abi

import (
	"time"

	"github.com/reglet-dev/robohost/capability"
)

// DurationOf converts d. Negative durations become zero.
func DurationOf(d time.Duration) Duration {
	if d <= 0 {
		return Duration{}
	}
	//nolint:gosec // d is positive
	return Duration{Secs: uint64(d / time.Second), Nanos: uint32(d % time.Second)}
}

// Std converts back to a time.Duration, saturating on overflow.
func (d Duration) Std() time.Duration {
	const maxSecs = uint64(1<<63-1) / uint64(time.Second)
	if d.Secs > maxSecs {
		return time.Duration(1<<63 - 1)
	}
	//nolint:gosec // bounded above
	return time.Duration(d.Secs)*time.Second + time.Duration(d.Nanos)
}

// TimeOf converts a wall-clock time to a Duration since the Unix epoch. The zero time
// and times before the epoch become the zero Duration.
func TimeOf(t time.Time) Duration {
	if t.IsZero() || t.Before(time.Unix(0, 0)) {
		return Duration{}
	}
	//nolint:gosec // checked non-negative
	return Duration{Secs: uint64(t.Unix()), Nanos: uint32(t.Nanosecond())}
}

// Time converts a Duration since the Unix epoch back to a wall-clock time. The zero
// Duration becomes the zero time, which resolvers read as "latest".
func (d Duration) Time() time.Time {
	if d == (Duration{}) {
		return time.Time{}
	}
	//nolint:gosec // wire seconds fit in int64 for any realistic time
	return time.Unix(int64(d.Secs), int64(d.Nanos))
}

// EventOf converts a capability event.
func EventOf(e capability.Event) Event {
	return Event{Kind: uint8(e.Kind), Button: uint8(e.Button), Axis: uint8(e.Axis), Value: e.Value}
}

// Capability converts back to a capability event. Unrecognized kinds become Unknown.
func (e Event) Capability() capability.Event {
	kind := capability.EventKind(e.Kind)
	switch kind {
	case capability.EventButtonPressed, capability.EventButtonReleased:
		return capability.Event{Kind: kind, Button: capability.Button(e.Button)}
	case capability.EventAxisChanged:
		return capability.AxisChanged(capability.Axis(e.Axis), e.Value)
	default:
		return capability.UnknownEvent()
	}
}

// VelocityOf converts a base velocity.
func VelocityOf(v capability.BaseVelocity) Velocity {
	return Velocity{X: v.X, Y: v.Y, Theta: v.Theta}
}

// Capability converts back to a base velocity.
func (v Velocity) Capability() capability.BaseVelocity {
	return capability.BaseVelocity{X: v.X, Y: v.Y, Theta: v.Theta}
}

// Isometry2Of converts a planar transform.
func Isometry2Of(i capability.Isometry2) Isometry2 {
	return Isometry2{X: i.Translation.X, Y: i.Translation.Y, Angle: i.Angle}
}

// Capability converts back to a planar transform.
func (i Isometry2) Capability() capability.Isometry2 {
	return capability.NewIsometry2(i.X, i.Y, i.Angle)
}

// Isometry3Of converts a spatial transform.
func Isometry3Of(i capability.Isometry3) Isometry3 {
	return Isometry3{
		Translation: [3]float64{i.Translation.X, i.Translation.Y, i.Translation.Z},
		Rotation:    [4]float64{i.Rotation.W, i.Rotation.X, i.Rotation.Y, i.Rotation.Z},
	}
}

// Capability converts back to a spatial transform.
func (i Isometry3) Capability() capability.Isometry3 {
	return capability.Isometry3{
		Translation: capability.Vector3{X: i.Translation[0], Y: i.Translation[1], Z: i.Translation[2]},
		Rotation:    capability.Quaternion{W: i.Rotation[0], X: i.Rotation[1], Y: i.Rotation[2], Z: i.Rotation[3]},
	}
}

// TrajectoryOf converts trajectory points.
func TrajectoryOf(points []capability.TrajectoryPoint) []TrajectoryPoint {
	out := make([]TrajectoryPoint, len(points))
	for i, p := range points {
		out[i] = TrajectoryPoint{
			Positions:     p.Positions,
			Velocities:    p.Velocities,
			TimeFromStart: DurationOf(p.TimeFromStart),
		}
	}
	return out
}

// CapabilityTrajectory converts wire trajectory points back.
func CapabilityTrajectory(points []TrajectoryPoint) []capability.TrajectoryPoint {
	out := make([]capability.TrajectoryPoint, len(points))
	for i, p := range points {
		out[i] = capability.TrajectoryPoint{
			Positions:     p.Positions,
			Velocities:    p.Velocities,
			TimeFromStart: p.TimeFromStart.Std(),
		}
	}
	return out
}
