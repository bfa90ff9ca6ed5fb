package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BryanQuigley/systemd/pkg/state"
)

func TestActiveStateIsActiveOrActivating(t *testing.T) {
	cases := map[state.ActiveState]bool{
		state.Active:       true,
		state.Activating:   true,
		state.Reloading:    true,
		state.Deactivating: false,
		state.Inactive:     false,
		state.Failed:       false,
	}
	for s, want := range cases {
		assert.Equal(t, want, s.IsActiveOrActivating(), "state %s", s)
	}
}

func TestActiveStateString(t *testing.T) {
	assert.Equal(t, "active", state.Active.String())
	assert.Equal(t, "failed", state.Failed.String())
	assert.Equal(t, "unknown", state.ActiveState(99).String())
}

func TestLoadStateString(t *testing.T) {
	assert.Equal(t, "loaded", state.LoadStateLoaded.String())
	assert.Equal(t, "masked", state.LoadStateMasked.String())
	assert.Equal(t, "unknown", state.LoadState(99).String())
}

func TestDependencyKindString(t *testing.T) {
	assert.Equal(t, "Requires", state.Requires.String())
	assert.Equal(t, "PropagateReloadTo", state.PropagateReloadTo.String())
	assert.Equal(t, "unknown", state.DependencyKind(99).String())
}
