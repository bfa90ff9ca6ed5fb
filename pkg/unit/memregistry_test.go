package unit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BryanQuigley/systemd/pkg/job"
	"github.com/BryanQuigley/systemd/pkg/state"
	"github.com/BryanQuigley/systemd/pkg/unit"
)

func TestNewMemUnitDefaults(t *testing.T) {
	u := unit.NewMemUnit("foo.service")
	assert.Equal(t, "foo.service", u.Name())
	assert.Equal(t, state.LoadStateLoaded, u.LoadState())
	assert.Equal(t, state.Inactive, u.ActiveState())
	assert.Empty(t, u.Dependencies(state.Requires))
	assert.Nil(t, u.InstalledJob())
	assert.True(t, u.IsApplicable(job.Start))
}

func TestAddDependency(t *testing.T) {
	u := unit.NewMemUnit("foo.service")
	u.AddDependency(state.Requires, "bar.service")
	u.AddDependency(state.Requires, "baz.service")
	u.AddDependency(state.Wants, "opt.service")

	assert.Equal(t, []string{"bar.service", "baz.service"}, u.Dependencies(state.Requires))
	assert.Equal(t, []string{"opt.service"}, u.Dependencies(state.Wants))
	assert.Empty(t, u.Dependencies(state.Conflicts))
}

func TestNotApplicableTypes(t *testing.T) {
	u := unit.NewMemUnit("device.mount")
	u.NotApplicableTypes = map[job.Type]bool{job.Reload: true}

	assert.True(t, u.IsApplicable(job.Start))
	assert.False(t, u.IsApplicable(job.Reload))
}

func TestMemRegistryLookup(t *testing.T) {
	reg := unit.NewMemRegistry()
	u := unit.NewMemUnit("foo.service")
	reg.Add(u)

	got, err := reg.Lookup("foo.service")
	require.NoError(t, err)
	assert.Same(t, u, got)

	_, err = reg.Lookup("missing.service")
	assert.Error(t, err)
}

func TestMemRegistryIterUnits(t *testing.T) {
	reg := unit.NewMemRegistry()
	reg.Add(unit.NewMemUnit("a.service"))
	reg.Add(unit.NewMemUnit("b.service"))

	names := map[string]bool{}
	for _, u := range reg.IterUnits() {
		names[u.Name()] = true
	}
	assert.Equal(t, map[string]bool{"a.service": true, "b.service": true}, names)
}
