// Package teleop runs a robot in one of several operating modes, each a ControlNode,
// and lets the operator cycle through them from a gamepad.
package teleop

import (
	"context"
	"fmt"

	"github.com/reglet-dev/robohost/capability"
)

// ControlNode is one operating mode. Mode and Submode never change after construction.
//
// Proc is called once per switcher tick while the node is current. HandleEvent receives
// every gamepad event the switcher does not consume itself. Both are called from
// different goroutines and may run concurrently.
type ControlNode interface {
	Mode() string
	Submode() string
	Proc(ctx context.Context)
	HandleEvent(ctx context.Context, ev capability.Event)
}

// Deactivator is implemented by nodes that act when the switcher moves away from
// them, such as bringing an actuator to rest.
type Deactivator interface {
	Deactivate(ctx context.Context)
}

// NoSuchModeError reports a requested initial mode that no node provides.
type NoSuchModeError struct {
	Mode  string
	Known []string
}

func (e *NoSuchModeError) Error() string {
	return fmt.Sprintf("teleop: no control node with mode %q (known: %v)", e.Mode, e.Known)
}

// IndexOfMode returns the index of the first node whose mode is mode. An empty mode
// selects the first node.
func IndexOfMode(nodes []ControlNode, mode string) (int, error) {
	if mode == "" {
		return 0, nil
	}
	known := make([]string, 0, len(nodes))
	for i, n := range nodes {
		if n.Mode() == mode {
			return i, nil
		}
		known = append(known, n.Mode())
	}
	return 0, &NoSuchModeError{Mode: mode, Known: known}
}

// Announcement is what the switcher speaks when node becomes current.
func Announcement(node ControlNode) string {
	return node.Mode() + node.Submode()
}
