package gatekeeper_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/reglet-dev/robohost/capability"
	"github.com/reglet-dev/robohost/capability/gatekeeper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	grants *capability.GrantSet
	saves  int
}

func (s *memStore) Load() (*capability.GrantSet, error) { return s.grants.Clone(), nil }
func (s *memStore) Save(g *capability.GrantSet) error {
	s.grants = g.Clone()
	s.saves++
	return nil
}
func (s *memStore) ConfigPath() string { return "memory" }

type scriptedPrompter struct {
	interactive bool
	granted     bool
	always      bool
	prompts     int
}

func (p *scriptedPrompter) IsInteractive() bool { return p.interactive }
func (p *scriptedPrompter) PromptForCapability(capability.Request) (bool, bool, error) {
	p.prompts++
	return p.granted, p.always, nil
}
func (p *scriptedPrompter) FormatNonInteractiveError(req capability.Request) error {
	return &capability.DeniedError{Plugin: req.Plugin, Kind: req.Kind, Reason: "non-interactive"}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGatekeeper_LowRiskNeedsNoGrant(t *testing.T) {
	t.Parallel()

	prompter := &scriptedPrompter{}
	g := gatekeeper.NewGatekeeper(
		gatekeeper.WithStore(&memStore{grants: capability.NewGrantSet()}),
		gatekeeper.WithPrompter(prompter),
		gatekeeper.WithSecurityLevel(gatekeeper.SecurityStrict),
		gatekeeper.WithLogger(newTestLogger()),
	)

	for _, k := range []capability.Kind{capability.KindGamepad, capability.KindSpeaker, capability.KindLocalization} {
		assert.NoError(t, g.Authorize("pad", k))
	}
	assert.Zero(t, prompter.prompts)
}

func TestGatekeeper_SecurityLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		level       gatekeeper.SecurityLevel
		prompter    *scriptedPrompter
		stored      bool
		wantErr     bool
		wantPrompts int
	}{
		{"stored grant", gatekeeper.SecurityStrict, &scriptedPrompter{}, true, false, 0},
		{"strict denies", gatekeeper.SecurityStrict, &scriptedPrompter{interactive: true, granted: true}, false, true, 0},
		{"permissive allows", gatekeeper.SecurityPermissive, &scriptedPrompter{}, false, false, 0},
		{"standard prompts and grants", gatekeeper.SecurityStandard, &scriptedPrompter{interactive: true, granted: true}, false, false, 1},
		{"standard prompts and denies", gatekeeper.SecurityStandard, &scriptedPrompter{interactive: true}, false, true, 1},
		{"standard non-interactive", gatekeeper.SecurityStandard, &scriptedPrompter{}, false, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &memStore{grants: capability.NewGrantSet()}
			if tt.stored {
				store.grants.Add("base", capability.KindMoveBase)
			}
			g := gatekeeper.NewGatekeeper(
				gatekeeper.WithStore(store),
				gatekeeper.WithPrompter(tt.prompter),
				gatekeeper.WithSecurityLevel(tt.level),
				gatekeeper.WithLogger(newTestLogger()),
			)

			err := g.Authorize("base", capability.KindMoveBase)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, capability.ErrCapabilityDenied))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantPrompts, tt.prompter.prompts)
		})
	}
}

func TestGatekeeper_SessionAndAlways(t *testing.T) {
	t.Parallel()

	store := &memStore{grants: capability.NewGrantSet()}
	prompter := &scriptedPrompter{interactive: true, granted: true, always: true}
	g := gatekeeper.NewGatekeeper(
		gatekeeper.WithStore(store),
		gatekeeper.WithPrompter(prompter),
		gatekeeper.WithLogger(newTestLogger()),
	)

	require.NoError(t, g.Authorize("arm", capability.KindJointTrajectoryClient))
	require.NoError(t, g.Authorize("arm", capability.KindJointTrajectoryClient))

	assert.Equal(t, 1, prompter.prompts)
	assert.Equal(t, 1, store.saves)
	assert.True(t, store.grants.Has("arm", capability.KindJointTrajectoryClient))
}

func TestGatekeeper_TrustAll(t *testing.T) {
	t.Parallel()

	prompter := &scriptedPrompter{}
	g := gatekeeper.NewGatekeeper(
		gatekeeper.WithStore(&memStore{grants: capability.NewGrantSet()}),
		gatekeeper.WithPrompter(prompter),
		gatekeeper.WithSecurityLevel(gatekeeper.SecurityStrict),
		gatekeeper.WithTrustAll(true),
		gatekeeper.WithLogger(newTestLogger()),
	)

	assert.NoError(t, g.Authorize("arm", capability.KindMoveBase))
	assert.Zero(t, prompter.prompts)
}

func TestParseSecurityLevel(t *testing.T) {
	t.Parallel()

	level, err := gatekeeper.ParseSecurityLevel("")
	require.NoError(t, err)
	assert.Equal(t, gatekeeper.SecurityStandard, level)

	level, err = gatekeeper.ParseSecurityLevel("strict")
	require.NoError(t, err)
	assert.Equal(t, gatekeeper.SecurityStrict, level)

	_, err = gatekeeper.ParseSecurityLevel("lax")
	assert.Error(t, err)
}
