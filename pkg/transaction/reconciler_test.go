package transaction_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BryanQuigley/systemd/pkg/job"
	"github.com/BryanQuigley/systemd/pkg/state"
	"github.com/BryanQuigley/systemd/pkg/transaction"
	"github.com/BryanQuigley/systemd/pkg/unit"
)

// chainTopology builds the E1 scenario from spec.md §8: A requires B requires C,
// with B before A and C before B, all three inactive.
func chainTopology() *unit.MemRegistry {
	reg := unit.NewMemRegistry()

	a := unit.NewMemUnit("A")
	a.AddDependency(state.Requires, "B")

	b := unit.NewMemUnit("B")
	b.AddDependency(state.Requires, "C")
	b.AddDependency(state.Before, "A")

	c := unit.NewMemUnit("C")
	c.AddDependency(state.Before, "B")

	reg.Add(a)
	reg.Add(b)
	reg.Add(c)
	return reg
}

func TestReconcile_ChainConvergesWithOneJobPerUnit(t *testing.T) {
	reg := chainTopology()
	tr := transaction.New(reg)
	_, err := transaction.AddJobAndDependencies(context.Background(), tr, job.Start, "A", nil, true, false, false, false, false)
	require.NoError(t, err)

	require.NoError(t, transaction.Reconcile(context.Background(), tr, transaction.Fail))

	assert.Len(t, tr.JobsFor("A"), 1)
	assert.Len(t, tr.JobsFor("B"), 1)
	assert.Len(t, tr.JobsFor("C"), 1)
	for _, unitName := range []string{"A", "B", "C"} {
		j := tr.JobFor(unitName)
		require.NotNil(t, j)
		assert.Equal(t, job.Start, j.Type)
	}
}

func TestReconcile_DropsAlreadyActiveDependency(t *testing.T) {
	reg := chainTopology()
	// B is already active: reconciler Pass 3 drops the now-redundant Start
	// for B, which cascades to drop C's Start too, since C's job only
	// existed because B's Requires edge pulled it in. A is untouched: the
	// cascade follows what a deleted job pulled in, never who pulled it.
	b, err := reg.Lookup("B")
	require.NoError(t, err)
	b.(*unit.MemUnit).Active = state.Active

	tr := transaction.New(reg)
	_, err = transaction.AddJobAndDependencies(context.Background(), tr, job.Start, "A", nil, true, false, false, false, false)
	require.NoError(t, err)

	require.NoError(t, transaction.Reconcile(context.Background(), tr, transaction.Fail))

	assert.False(t, tr.HasJobFor("B"))
	assert.False(t, tr.HasJobFor("C"))
	require.NotNil(t, tr.JobFor("A"))
	assert.Equal(t, job.Start, tr.JobFor("A").Type)
}

func TestReconcile_ConflictsForcesStopOfLiveUnit(t *testing.T) {
	reg := unit.NewMemRegistry()
	a := unit.NewMemUnit("A")
	a.AddDependency(state.Conflicts, "B")
	reg.Add(a)

	b := unit.NewMemUnit("B")
	b.Active = state.Active
	reg.Add(b)

	tr := transaction.New(reg)
	_, err := transaction.AddJobAndDependencies(context.Background(), tr, job.Start, "A", nil, true, false, false, false, false)
	require.NoError(t, err)

	require.NoError(t, transaction.Reconcile(context.Background(), tr, transaction.Fail))

	bJob := tr.JobFor("B")
	require.NotNil(t, bJob)
	assert.Equal(t, job.Stop, bJob.Type)
}

func TestReconcile_MergesCompatibleTypesOnSameUnit(t *testing.T) {
	reg := unit.NewMemRegistry()
	reg.Add(unit.NewMemUnit("A"))
	tr := transaction.New(reg)

	anchor, err := transaction.AddJobAndDependencies(context.Background(), tr, job.Start, "A", nil, true, false, false, false, false)
	require.NoError(t, err)

	// A second, non-anchor Reload request on the same unit, pulled in by
	// the anchor itself, should merge into ReloadOrStart.
	_, err = transaction.AddJobAndDependencies(context.Background(), tr, job.Reload, "A", anchor, true, false, false, true, false)
	require.NoError(t, err)
	require.Len(t, tr.JobsFor("A"), 2)

	require.NoError(t, transaction.Reconcile(context.Background(), tr, transaction.Fail))

	require.Len(t, tr.JobsFor("A"), 1)
	assert.Equal(t, job.ReloadOrStart, tr.JobFor("A").Type)
}

// TestReconcile_DiamondDependencySurvivesRedundantSiblingDrop covers a
// diamond topology: Anchor requires both B and D, and both B and D require
// C, so C ends up with two independent matters=true parents. B is already
// active, so Pass 3 drops B's now-redundant Start job — but that must not
// cascade through B's own Requires link on C and delete C too, since D's
// Requires link on C is still essential and still live. Only B should be
// dropped; D and C must both survive with their Start jobs intact.
func TestReconcile_DiamondDependencySurvivesRedundantSiblingDrop(t *testing.T) {
	reg := unit.NewMemRegistry()

	anchor := unit.NewMemUnit("Anchor")
	anchor.AddDependency(state.Requires, "B")
	anchor.AddDependency(state.Requires, "D")
	reg.Add(anchor)

	b := unit.NewMemUnit("B")
	b.Active = state.Active
	b.AddDependency(state.Requires, "C")
	reg.Add(b)

	d := unit.NewMemUnit("D")
	d.AddDependency(state.Requires, "C")
	reg.Add(d)

	reg.Add(unit.NewMemUnit("C"))

	tr := transaction.New(reg)
	_, err := transaction.AddJobAndDependencies(context.Background(), tr, job.Start, "Anchor", nil, true, false, false, false, false)
	require.NoError(t, err)
	require.True(t, tr.HasJobFor("C"), "both B and D should have pulled in a single shared job for C")

	require.NoError(t, transaction.Reconcile(context.Background(), tr, transaction.Fail))

	assert.False(t, tr.HasJobFor("B"), "B's own Start is redundant against its already-active state")

	dJob := tr.JobFor("D")
	require.NotNil(t, dJob, "D is essential to the anchor and must survive")
	assert.Equal(t, job.Start, dJob.Type)

	cJob := tr.JobFor("C")
	require.NotNil(t, cJob, "C must survive: D's still-live Requires link still needs it, even though B (C's other parent) was dropped")
	assert.Equal(t, job.Start, cJob.Type)
}

func TestReconcile_UnresolvableConflictReturnsJobsConflicting(t *testing.T) {
	// X requires Y, Y conflicts X, and X itself is the anchor: the anchor's
	// own Start and the Conflicts-forced Stop on the same unit are both
	// essential, so Pass 6 has no droppable victim and must fail closed.
	reg := unit.NewMemRegistry()
	x := unit.NewMemUnit("X")
	x.Active = state.Active
	x.AddDependency(state.Requires, "Y")
	reg.Add(x)

	y := unit.NewMemUnit("Y")
	y.AddDependency(state.Conflicts, "X")
	reg.Add(y)

	tr := transaction.New(reg)
	_, err := transaction.AddJobAndDependencies(context.Background(), tr, job.Start, "X", nil, true, false, false, false, false)
	require.NoError(t, err)
	require.Len(t, tr.JobsFor("X"), 2)

	err = transaction.Reconcile(context.Background(), tr, transaction.Fail)
	require.Error(t, err)
	assert.True(t, transaction.Is(err, transaction.ErrJobsConflicting))
}
