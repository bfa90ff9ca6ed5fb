package job_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BryanQuigley/systemd/pkg/job"
	"github.com/BryanQuigley/systemd/pkg/state"
)

func TestTypeMerge(t *testing.T) {
	cases := []struct {
		a, b, want job.Type
		ok         bool
	}{
		{job.Start, job.VerifyActive, job.Start, true},
		{job.Start, job.Reload, job.ReloadOrStart, true},
		{job.Start, job.Restart, job.Restart, true},
		{job.Reload, job.Restart, job.Restart, true},
		{job.TryRestart, job.Restart, job.Restart, true},
		{job.Stop, job.Stop, job.Stop, true},
		{job.Stop, job.TryRestart, job.Stop, true},
		{job.Stop, job.Start, 0, false},
		{job.Stop, job.Reload, 0, false},
		{job.Stop, job.ReloadOrStart, 0, false},
	}
	for _, c := range cases {
		got, ok := job.TypeMerge(c.a, c.b)
		require.Equal(t, c.ok, ok, "merge(%s, %s)", c.a, c.b)
		if ok {
			assert.Equal(t, c.want, got, "merge(%s, %s)", c.a, c.b)
		}

		// Commutativity: b merged with a must agree with a merged with b.
		got2, ok2 := job.TypeMerge(c.b, c.a)
		require.Equal(t, ok, ok2)
		if ok {
			assert.Equal(t, got, got2)
		}
	}
}

func TestTypeMergeAssociative(t *testing.T) {
	types := []job.Type{job.Start, job.VerifyActive, job.Reload, job.Restart, job.ReloadOrStart, job.TryRestart}
	for _, a := range types {
		for _, b := range types {
			for _, c := range types {
				ab, okAB := job.TypeMerge(a, b)
				bc, okBC := job.TypeMerge(b, c)
				require.True(t, okAB)
				require.True(t, okBC)
				left, okL := job.TypeMerge(ab, c)
				right, okR := job.TypeMerge(a, bc)
				require.True(t, okL)
				require.True(t, okR)
				assert.Equal(t, left, right, "(%s.%s).%s != %s.(%s.%s)", a, b, c, a, b, c)
			}
		}
	}
}

func TestIsRedundant(t *testing.T) {
	assert.True(t, job.IsRedundant(job.Start, state.Active))
	assert.False(t, job.IsRedundant(job.Start, state.Inactive))
	assert.True(t, job.IsRedundant(job.Stop, state.Inactive))
	assert.True(t, job.IsRedundant(job.Stop, state.Failed))
	assert.False(t, job.IsRedundant(job.Stop, state.Active))
	assert.False(t, job.IsRedundant(job.Reload, state.Active))
}

func TestIsSuperset(t *testing.T) {
	assert.True(t, job.IsSuperset(job.ReloadOrStart, job.Start))
	assert.True(t, job.IsSuperset(job.Restart, job.ReloadOrStart))
	assert.False(t, job.IsSuperset(job.Start, job.Reload))
	assert.True(t, job.IsSuperset(job.Start, job.Start))
}

func TestNewJobDefaults(t *testing.T) {
	j := job.New("foo.service", job.Start)
	assert.Equal(t, "foo.service", j.Unit)
	assert.Equal(t, job.Start, j.Type)
	assert.False(t, j.Installed)
	j.Install()
	assert.True(t, j.Installed)
}
