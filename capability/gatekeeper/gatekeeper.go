// Package gatekeeper decides which capability kinds a plugin may construct: it
// consults session and stored grants, applies the security level, prompts for missing
// grants and persists "always" decisions.
package gatekeeper

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/reglet-dev/robohost/capability"
	"github.com/reglet-dev/robohost/capability/grantstore"
)

// SecurityLevel controls the gatekeeper's prompting behavior.
type SecurityLevel string

const (
	SecurityStrict     SecurityLevel = "strict"
	SecurityStandard   SecurityLevel = "standard"
	SecurityPermissive SecurityLevel = "permissive"
)

// ParseSecurityLevel validates a level name. Empty means standard.
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	switch SecurityLevel(s) {
	case "":
		return SecurityStandard, nil
	case SecurityStrict, SecurityStandard, SecurityPermissive:
		return SecurityLevel(s), nil
	default:
		return "", fmt.Errorf("unknown security level %q", s)
	}
}

// Gatekeeper authorizes capability construction for plugins. It implements
// capability.Authorizer.
type Gatekeeper struct {
	store         capability.GrantStore
	prompter      capability.Prompter
	securityLevel SecurityLevel
	trustAll      bool
	threshold     capability.RiskLevel
	logger        *slog.Logger

	mu      sync.Mutex
	session *capability.GrantSet
	stored  *capability.GrantSet
}

// Option configures a Gatekeeper.
type Option func(*Gatekeeper)

// WithStore sets the grant store.
func WithStore(s capability.GrantStore) Option {
	return func(g *Gatekeeper) { g.store = s }
}

// WithPrompter sets the prompter.
func WithPrompter(p capability.Prompter) Option {
	return func(g *Gatekeeper) { g.prompter = p }
}

// WithSecurityLevel sets the security policy level.
func WithSecurityLevel(level SecurityLevel) Option {
	return func(g *Gatekeeper) { g.securityLevel = level }
}

// WithTrustAll grants every request without consulting grants or the operator.
func WithTrustAll(trust bool) Option {
	return func(g *Gatekeeper) { g.trustAll = trust }
}

// WithThreshold sets the lowest risk level that requires a grant. Defaults to medium.
func WithThreshold(level capability.RiskLevel) Option {
	return func(g *Gatekeeper) { g.threshold = level }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gatekeeper) { g.logger = logger }
}

// NewGatekeeper creates a gatekeeper with pluggable store and prompter.
func NewGatekeeper(opts ...Option) *Gatekeeper {
	g := &Gatekeeper{
		securityLevel: SecurityStandard,
		threshold:     capability.RiskMedium,
		session:       capability.NewGrantSet(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.store == nil {
		g.store = grantstore.NewFileStore()
	}
	if g.prompter == nil {
		g.prompter = NewTerminalPrompter()
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Authorize returns nil when plugin may construct kind, or an error matching
// capability.ErrCapabilityDenied.
func (g *Gatekeeper) Authorize(plugin string, kind capability.Kind) error {
	risk := capability.RiskOf(kind)
	if risk.Level < g.threshold {
		return nil
	}

	if g.trustAll {
		g.logger.Warn("auto-granting capability (--trust-plugins enabled)",
			"plugin", plugin, "capability", kind)
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.Has(plugin, kind) {
		return nil
	}
	if g.stored == nil {
		stored, err := g.store.Load()
		if err != nil {
			g.logger.Warn("failed to load grants, continuing without stored grants",
				"path", g.store.ConfigPath(), "error", err)
			stored = capability.NewGrantSet()
		}
		g.stored = stored
	}
	if g.stored.Has(plugin, kind) {
		return nil
	}

	req := capability.Request{
		Plugin:      plugin,
		Kind:        kind,
		Description: fmt.Sprintf("plugin %q: %s (%s risk)", plugin, risk.Description, risk.Level),
		Risk:        risk.Level,
	}

	granted, always, err := g.evaluateWithSecurityLevel(req)
	if err != nil {
		return err
	}
	if !granted {
		return &capability.DeniedError{Plugin: plugin, Kind: kind, Reason: "denied by operator"}
	}

	g.session.Add(plugin, kind)
	if always {
		g.persist(plugin, kind)
	}
	return nil
}

func (g *Gatekeeper) persist(plugin string, kind capability.Kind) {
	next := g.stored.Clone()
	next.Add(plugin, kind)
	if err := g.store.Save(next); err != nil {
		g.logger.Warn("failed to save grants", "path", g.store.ConfigPath(), "error", err)
		return
	}
	g.stored = next
	g.logger.Info("grant saved", "path", g.store.ConfigPath(), "plugin", plugin, "capability", kind)
}

// evaluateWithSecurityLevel applies security level policy and prompts if needed.
func (g *Gatekeeper) evaluateWithSecurityLevel(req capability.Request) (bool, bool, error) {
	switch g.securityLevel {
	case SecurityPermissive:
		g.logger.Warn("auto-granting capability (permissive mode)",
			"plugin", req.Plugin, "capability", req.Kind)
		return true, false, nil
	case SecurityStrict:
		g.logger.Error("capability denied by security policy",
			"level", "strict", "plugin", req.Plugin, "capability", req.Kind)
		return false, false, &capability.DeniedError{
			Plugin: req.Plugin,
			Kind:   req.Kind,
			Reason: "no stored grant under strict security policy",
		}
	}

	if !g.prompter.IsInteractive() {
		return false, false, g.prompter.FormatNonInteractiveError(req)
	}
	return g.prompter.PromptForCapability(req)
}
