package gatekeeper

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/reglet-dev/robohost/capability"
)

// TerminalPrompter provides interactive terminal prompting for capability grants.
type TerminalPrompter struct{}

// NewTerminalPrompter creates a new TerminalPrompter.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{}
}

// IsInteractive checks if we're running in an interactive terminal.
func (p *TerminalPrompter) IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// PromptForCapability asks the operator to grant a capability.
func (p *TerminalPrompter) PromptForCapability(req capability.Request) (granted bool, always bool, err error) {
	if req.Risk >= capability.RiskHigh {
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "\033[1;33mSafety Warning: Actuator Access Requested\033[0m\n\n")
		fmt.Fprintf(os.Stderr, "  %s\n", req.Description)
		fmt.Fprintf(os.Stderr, "  Make sure the robot workspace is clear before granting.\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	const (
		OptionYes    = "Yes, grant for this session"
		OptionAlways = "Always grant (save to grants file)"
		OptionNo     = "No, deny"
	)

	var selection string

	err = huh.NewSelect[string]().
		Title("Plugin Requesting Capability").
		Description(req.Description).
		Options(
			huh.NewOption(OptionYes, OptionYes),
			huh.NewOption(OptionAlways, OptionAlways),
			huh.NewOption(OptionNo, OptionNo),
		).
		Value(&selection).
		Run()
	if err != nil {
		return false, false, err
	}

	switch selection {
	case OptionYes:
		return true, false, nil
	case OptionAlways:
		return true, true, nil
	default:
		return false, false, nil
	}
}

// FormatNonInteractiveError creates a helpful error message for non-interactive mode.
func (p *TerminalPrompter) FormatNonInteractiveError(req capability.Request) error {
	var msg strings.Builder
	msg.WriteString("plugin requires a capability grant (running in non-interactive mode)\n\n")
	msg.WriteString(fmt.Sprintf("  - %s: %s\n", req.Kind, req.Description))
	msg.WriteString("\nTo grant it:\n")
	msg.WriteString("  1. Run interactively and approve when prompted\n")
	msg.WriteString("  2. Use --trust-plugins flag (grants every capability)\n")
	msg.WriteString(fmt.Sprintf("  3. Add %q under plugins.%s in the grants file\n", req.Kind, req.Plugin))

	return &capability.DeniedError{Plugin: req.Plugin, Kind: req.Kind, Reason: msg.String()}
}
