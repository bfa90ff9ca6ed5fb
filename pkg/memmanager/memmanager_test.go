package memmanager_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BryanQuigley/systemd/pkg/job"
	"github.com/BryanQuigley/systemd/pkg/memmanager"
	"github.com/BryanQuigley/systemd/pkg/unit"
)

func TestInsertAndRemove(t *testing.T) {
	reg := unit.NewMemRegistry()
	reg.Add(unit.NewMemUnit("a.service"))
	m := memmanager.New(reg)

	j := job.New("a.service", job.Start)
	id, err := m.Insert(j)
	require.NoError(t, err)
	assert.NotZero(t, id)

	live := m.LiveJobs()
	require.Len(t, live, 1)
	assert.Equal(t, j, live[0].Job)

	m.Remove(id)
	assert.Empty(t, m.LiveJobs())
}

func TestLiveJobFor(t *testing.T) {
	reg := unit.NewMemRegistry()
	reg.Add(unit.NewMemUnit("a.service"))
	m := memmanager.New(reg)

	_, _, ok := m.LiveJobFor("a.service")
	assert.False(t, ok)

	j := job.New("a.service", job.Start)
	id, err := m.Insert(j)
	require.NoError(t, err)

	gotID, gotJob, ok := m.LiveJobFor("a.service")
	require.True(t, ok)
	assert.Equal(t, id, gotID)
	assert.Equal(t, j, gotJob)
}

func TestPublishUpdatesRegistry(t *testing.T) {
	reg := unit.NewMemRegistry()
	reg.Add(unit.NewMemUnit("a.service"))
	m := memmanager.New(reg)

	j := job.New("a.service", job.Start)
	m.Publish("a.service", j)

	u, err := reg.Lookup("a.service")
	require.NoError(t, err)
	assert.Same(t, j, u.InstalledJob())
}

func TestPublishUnknownUnitIsANoop(t *testing.T) {
	reg := unit.NewMemRegistry()
	m := memmanager.New(reg)

	assert.NotPanics(t, func() {
		m.Publish("missing.service", job.New("missing.service", job.Start))
	})
}

func TestFinishAndInvalidateRemovesJobByIdentity(t *testing.T) {
	reg := unit.NewMemRegistry()
	reg.Add(unit.NewMemUnit("a.service"))
	m := memmanager.New(reg)

	j := job.New("a.service", job.Start)
	_, err := m.Insert(j)
	require.NoError(t, err)

	othersTouched := m.FinishAndInvalidate(j, 0)
	assert.False(t, othersTouched)
	assert.Empty(t, m.LiveJobs())
}

func TestRecordingCollaborators(t *testing.T) {
	reg := unit.NewMemRegistry()
	m := memmanager.New(reg)

	j := job.New("a.service", job.Start)
	m.RunQueue().Add(j)
	m.Timer().Start(j)
	m.BusQueue().Post(j)

	rq := m.RunQueue().(*memmanager.RecordingRunQueue)
	assert.Equal(t, []*job.Job{j}, rq.Added)

	tm := m.Timer().(*memmanager.RecordingTimer)
	assert.Equal(t, []*job.Job{j}, tm.Started)

	bq := m.BusQueue().(*memmanager.RecordingBusQueue)
	assert.Equal(t, []*job.Job{j}, bq.Posted)
}
