package capability

import "slices"

// GrantSet records which capability kinds each plugin may construct.
type GrantSet struct {
	Plugins map[string][]Kind `yaml:"plugins,omitempty" json:"plugins,omitempty"`
}

// NewGrantSet returns an empty grant set.
func NewGrantSet() *GrantSet {
	return &GrantSet{Plugins: make(map[string][]Kind)}
}

// Has reports whether plugin is granted kind.
func (g *GrantSet) Has(plugin string, kind Kind) bool {
	if g == nil {
		return false
	}
	return slices.Contains(g.Plugins[plugin], kind)
}

// Add grants kind to plugin. Adding an existing grant is a no-op.
func (g *GrantSet) Add(plugin string, kind Kind) {
	if g.Plugins == nil {
		g.Plugins = make(map[string][]Kind)
	}
	if !g.Has(plugin, kind) {
		g.Plugins[plugin] = append(g.Plugins[plugin], kind)
	}
}

// Merge adds every grant of other.
func (g *GrantSet) Merge(other *GrantSet) {
	if other == nil {
		return
	}
	for plugin, kinds := range other.Plugins {
		for _, k := range kinds {
			g.Add(plugin, k)
		}
	}
}

// Clone returns a deep copy.
func (g *GrantSet) Clone() *GrantSet {
	out := NewGrantSet()
	out.Merge(g)
	return out
}

// IsEmpty reports whether no plugin holds any grant.
func (g *GrantSet) IsEmpty() bool {
	if g == nil {
		return true
	}
	for _, kinds := range g.Plugins {
		if len(kinds) > 0 {
			return false
		}
	}
	return true
}

// Normalize sorts each plugin's kinds and drops empty entries.
func (g *GrantSet) Normalize() {
	for plugin, kinds := range g.Plugins {
		if len(kinds) == 0 {
			delete(g.Plugins, plugin)
			continue
		}
		slices.Sort(kinds)
		g.Plugins[plugin] = slices.Compact(kinds)
	}
}

// Request describes a single grant decision presented to an operator.
type Request struct {
	Plugin      string
	Kind        Kind
	Description string
	Risk        RiskLevel
}

// Authorizer decides whether a plugin may construct a capability kind.
type Authorizer interface {
	Authorize(plugin string, kind Kind) error
}

// GrantStore persists and retrieves granted capabilities.
type GrantStore interface {
	Load() (*GrantSet, error)
	Save(grants *GrantSet) error
	ConfigPath() string
}

// Prompter handles interactive capability authorization.
type Prompter interface {
	IsInteractive() bool
	PromptForCapability(req Request) (granted bool, always bool, err error)
	FormatNonInteractiveError(req Request) error
}
