// Package abi defines the boundary between the host and capability implementations
// that live in separately built modules: the request envelope, the payload types of
// every method, the module header and the layout token that guards them.
//
// Payloads are JSON encoded. Every type that crosses the boundary is declared here so
// that the layout token covers it.
package abi

import (
	"context"
	"encoding/json"
)

// Transport carries one encoded Request and returns the encoded Response.
type Transport interface {
	Invoke(ctx context.Context, request []byte) ([]byte, error)
}

// RootHandle addresses the plugin instance itself.
const RootHandle uint64 = 0

// Request is the envelope of every boundary call.
type Request struct {
	Handle  uint64          `json:"handle"`
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the envelope of every boundary reply. Error is set on failure.
type Response struct {
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Method names.
const (
	MethodPluginName      = "plugin.name"
	MethodPluginConstruct = "plugin.construct"
	MethodFutureWait      = "future.wait"
	MethodHandleRelease   = "handle.release"

	MethodGamepadNextEvent = "gamepad.next_event"
	MethodGamepadStop      = "gamepad.stop"

	MethodJointNames          = "joint_trajectory_client.joint_names"
	MethodCurrentJointPos     = "joint_trajectory_client.current_joint_positions"
	MethodSendJointPositions  = "joint_trajectory_client.send_joint_positions"
	MethodSendJointTrajectory = "joint_trajectory_client.send_joint_trajectory"

	MethodSpeak = "speaker.speak"

	MethodCurrentVelocity = "move_base.current_velocity"
	MethodSendVelocity    = "move_base.send_velocity"

	MethodSendGoalPose     = "navigation.send_goal_pose"
	MethodCancelNavigation = "navigation.cancel"

	MethodCurrentPose = "localization.current_pose"

	MethodResolveTransformation = "transform_resolver.resolve_transformation"
)

// ConstructArgs asks the plugin to construct one capability implementation.
type ConstructArgs struct {
	Kind string `json:"kind"`
	Args string `json:"args"`
}

// ConstructResult reports the handle of a constructed implementation. Supported is
// false when the plugin does not provide the requested kind.
type ConstructResult struct {
	Supported bool   `json:"supported"`
	Handle    uint64 `json:"handle"`
}

// NameResult carries the plugin's human-readable name.
type NameResult struct {
	Name string `json:"name"`
}

// Duration is a span of time split into whole seconds and nanoseconds.
type Duration struct {
	Secs  uint64 `json:"secs"`
	Nanos uint32 `json:"nanos"`
}

// Event is a gamepad event.
type Event struct {
	Kind   uint8   `json:"kind"`
	Button uint8   `json:"button"`
	Axis   uint8   `json:"axis"`
	Value  float64 `json:"value"`
}

// NextEventArgs bounds how long the implementation side waits for an event.
type NextEventArgs struct {
	TimeoutMillis uint32 `json:"timeout_ms"`
}

// NextEventResult is Pending when no event arrived within the timeout.
type NextEventResult struct {
	Pending bool  `json:"pending"`
	Event   Event `json:"event"`
}

// JointNamesResult lists joint names.
type JointNamesResult struct {
	Names []string `json:"names"`
}

// PositionsResult carries joint positions.
type PositionsResult struct {
	Positions []float64 `json:"positions"`
}

// SendPositionsArgs commands joint positions over a duration.
type SendPositionsArgs struct {
	Positions []float64 `json:"positions"`
	Duration  Duration  `json:"duration"`
}

// TrajectoryPoint is one waypoint.
type TrajectoryPoint struct {
	Positions     []float64 `json:"positions"`
	Velocities    []float64 `json:"velocities,omitempty"`
	TimeFromStart Duration  `json:"time_from_start"`
}

// SendTrajectoryArgs commands a joint trajectory.
type SendTrajectoryArgs struct {
	Points []TrajectoryPoint `json:"points"`
}

// FutureResult carries the handle of a pending completion.
type FutureResult struct {
	Future uint64 `json:"future"`
}

// WaitArgs waits for the addressed future for at most TimeoutMillis.
type WaitArgs struct {
	TimeoutMillis uint32 `json:"timeout_ms"`
}

// WaitResult reports whether the future completed. A failed completion is returned
// as a Response error instead.
type WaitResult struct {
	Done bool `json:"done"`
}

// SpeakArgs is the message to speak.
type SpeakArgs struct {
	Message string `json:"message"`
}

// Velocity is a planar base velocity.
type Velocity struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Isometry2 is a planar rigid transform.
type Isometry2 struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
}

// GoalArgs sends a navigation goal.
type GoalArgs struct {
	Goal    Isometry2 `json:"goal"`
	FrameID string    `json:"frame_id"`
	Timeout Duration  `json:"timeout"`
}

// FrameArgs names a frame.
type FrameArgs struct {
	FrameID string `json:"frame_id"`
}

// TransformArgs asks for the transform between two frames at a wall-clock time,
// expressed as a Duration since the Unix epoch.
type TransformArgs struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Time Duration `json:"time"`
}

// Isometry3 is a spatial rigid transform; Rotation is (w, x, y, z).
type Isometry3 struct {
	Translation [3]float64 `json:"translation"`
	Rotation    [4]float64 `json:"rotation"`
}

// LogMessage is a structured log record emitted by a guest module.
type LogMessage struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Attrs   []LogAttr `json:"attrs,omitempty"`
}

// LogAttr is a log attribute with its value rendered as text. Type is one of string,
// int64, bool, float64, time, error or any.
type LogAttr struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// exposedTypes are covered by the layout token.
var exposedTypes = []any{
	Request{},
	Response{},
	Error{},
	ConstructArgs{},
	ConstructResult{},
	NameResult{},
	Duration{},
	Event{},
	NextEventArgs{},
	NextEventResult{},
	JointNamesResult{},
	PositionsResult{},
	SendPositionsArgs{},
	TrajectoryPoint{},
	SendTrajectoryArgs{},
	FutureResult{},
	WaitArgs{},
	WaitResult{},
	SpeakArgs{},
	Velocity{},
	Isometry2{},
	GoalArgs{},
	FrameArgs{},
	TransformArgs{},
	Isometry3{},
	LogMessage{},
	LogAttr{},
	Header{},
}
