package capability

import (
	"fmt"
	"strconv"
	"strings"
)

// Button is a gamepad button.
type Button uint8

const (
	ButtonUnknown Button = iota
	ButtonSouth
	ButtonEast
	ButtonNorth
	ButtonWest
	ButtonLeftTrigger
	ButtonLeftTrigger2
	ButtonRightTrigger
	ButtonRightTrigger2
	ButtonSelect
	ButtonStart
	ButtonMode
	ButtonLeftThumb
	ButtonRightThumb
	ButtonDPadUp
	ButtonDPadDown
	ButtonDPadLeft
	ButtonDPadRight
)

var buttonNames = map[Button]string{
	ButtonUnknown:       "Unknown",
	ButtonSouth:         "South",
	ButtonEast:          "East",
	ButtonNorth:         "North",
	ButtonWest:          "West",
	ButtonLeftTrigger:   "LeftTrigger",
	ButtonLeftTrigger2:  "LeftTrigger2",
	ButtonRightTrigger:  "RightTrigger",
	ButtonRightTrigger2: "RightTrigger2",
	ButtonSelect:        "Select",
	ButtonStart:         "Start",
	ButtonMode:          "Mode",
	ButtonLeftThumb:     "LeftThumb",
	ButtonRightThumb:    "RightThumb",
	ButtonDPadUp:        "DPadUp",
	ButtonDPadDown:      "DPadDown",
	ButtonDPadLeft:      "DPadLeft",
	ButtonDPadRight:     "DPadRight",
}

func (b Button) String() string {
	if name, ok := buttonNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Button(%d)", uint8(b))
}

// ParseButton returns the button with the given name, or ButtonUnknown.
func ParseButton(name string) (Button, bool) {
	for b, n := range buttonNames {
		if n == name && b != ButtonUnknown {
			return b, true
		}
	}
	return ButtonUnknown, false
}

// Axis is an analog gamepad axis.
type Axis uint8

const (
	AxisLeftStickX Axis = iota
	AxisLeftStickY
	AxisLeftTrigger
	AxisRightStickX
	AxisRightStickY
	AxisRightTrigger
	AxisDPadX
	AxisDPadY
	AxisUnknown
)

var axisNames = map[Axis]string{
	AxisLeftStickX:   "LeftStickX",
	AxisLeftStickY:   "LeftStickY",
	AxisLeftTrigger:  "LeftTrigger",
	AxisRightStickX:  "RightStickX",
	AxisRightStickY:  "RightStickY",
	AxisRightTrigger: "RightTrigger",
	AxisDPadX:        "DPadX",
	AxisDPadY:        "DPadY",
	AxisUnknown:      "Unknown",
}

func (a Axis) String() string {
	if name, ok := axisNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Axis(%d)", uint8(a))
}

// ParseAxis returns the axis with the given name, or AxisUnknown.
func ParseAxis(name string) (Axis, bool) {
	for a, n := range axisNames {
		if n == name && a != AxisUnknown {
			return a, true
		}
	}
	return AxisUnknown, false
}

// EventKind discriminates gamepad events.
type EventKind uint8

const (
	// EventUnknown is the sentinel: the source is lost, stopped or produced
	// something unrecognizable.
	EventUnknown EventKind = iota
	EventButtonPressed
	EventButtonReleased
	EventAxisChanged
)

// Event is a gamepad input event. Button is set for button events, Axis and Value
// for axis events.
type Event struct {
	Kind   EventKind
	Button Button
	Axis   Axis
	Value  float64
}

// ButtonPressed returns a press event for b.
func ButtonPressed(b Button) Event {
	return Event{Kind: EventButtonPressed, Button: b}
}

// ButtonReleased returns a release event for b.
func ButtonReleased(b Button) Event {
	return Event{Kind: EventButtonReleased, Button: b}
}

// AxisChanged returns an axis event.
func AxisChanged(a Axis, value float64) Event {
	return Event{Kind: EventAxisChanged, Axis: a, Value: value}
}

// UnknownEvent returns the sentinel event.
func UnknownEvent() Event {
	return Event{Kind: EventUnknown}
}

// IsUnknown reports whether e is the sentinel event.
func (e Event) IsUnknown() bool {
	return e.Kind == EventUnknown
}

// IsPressed reports whether e is a press of b.
func (e Event) IsPressed(b Button) bool {
	return e.Kind == EventButtonPressed && e.Button == b
}

func (e Event) String() string {
	switch e.Kind {
	case EventButtonPressed:
		return fmt.Sprintf("ButtonPressed(%s)", e.Button)
	case EventButtonReleased:
		return fmt.Sprintf("ButtonReleased(%s)", e.Button)
	case EventAxisChanged:
		return fmt.Sprintf("AxisChanged(%s, %g)", e.Axis, e.Value)
	default:
		return "Unknown"
	}
}

// ParseEvent parses the compact event notation used in scripts and configuration:
// "press:<Button>", "release:<Button>", "axis:<Axis>:<value>" or "unknown". A bare
// button name is a press.
func ParseEvent(s string) (Event, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	switch strings.ToLower(parts[0]) {
	case "unknown":
		if len(parts) == 1 {
			return UnknownEvent(), nil
		}
	case "press", "release":
		if len(parts) != 2 {
			break
		}
		b, ok := ParseButton(parts[1])
		if !ok {
			return Event{}, fmt.Errorf("unknown button %q in event %q", parts[1], s)
		}
		if strings.EqualFold(parts[0], "press") {
			return ButtonPressed(b), nil
		}
		return ButtonReleased(b), nil
	case "axis":
		if len(parts) != 3 {
			break
		}
		a, ok := ParseAxis(parts[1])
		if !ok {
			return Event{}, fmt.Errorf("unknown axis %q in event %q", parts[1], s)
		}
		v, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return Event{}, fmt.Errorf("bad axis value in event %q: %w", s, err)
		}
		return AxisChanged(a, v), nil
	default:
		if b, ok := ParseButton(parts[0]); ok && len(parts) == 1 {
			return ButtonPressed(b), nil
		}
	}
	return Event{}, fmt.Errorf("malformed event %q", s)
}
