// Package memmanager is a reference, in-memory implementation of
// pkg/transaction.Manager, playing the role transactionenv/testing.go plays
// for pachyderm's transaction environment: something the applier can
// install into and commit against without a real run queue, timer, or bus
// attached. It is not meant to be a production job store — a real manager
// owns persistence, execution, and IPC that are explicitly out of scope
// for this module (spec.md §1).
package memmanager

import (
	"sync"

	"github.com/BryanQuigley/systemd/pkg/job"
	"github.com/BryanQuigley/systemd/pkg/transaction"
	"github.com/BryanQuigley/systemd/pkg/unit"
)

// Manager is the in-memory Manager. The zero value is not usable; use New.
type Manager struct {
	mu       sync.Mutex
	nextID   uint64
	live     map[uint64]*job.Job
	registry *unit.MemRegistry

	runQueue RecordingRunQueue
	timer    RecordingTimer
	busQueue RecordingBusQueue
}

// New returns a Manager whose Publish calls update units looked up in registry.
func New(registry *unit.MemRegistry) *Manager {
	return &Manager{
		live:     make(map[uint64]*job.Job),
		registry: registry,
	}
}

func (m *Manager) LiveJobs() []transaction.LiveJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]transaction.LiveJob, 0, len(m.live))
	for id, j := range m.live {
		out = append(out, transaction.LiveJob{ID: id, Job: j})
	}
	return out
}

func (m *Manager) LiveJobFor(unitName string) (uint64, *job.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, j := range m.live {
		if j.Unit == unitName {
			return id, j, true
		}
	}
	return 0, nil, false
}

func (m *Manager) Insert(j *job.Job) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.live[id] = j
	return id, nil
}

func (m *Manager) Remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, id)
}

func (m *Manager) Publish(unitName string, j *job.Job) {
	u, err := m.registry.Lookup(unitName)
	if err != nil {
		return
	}
	if mu, ok := u.(*unit.MemUnit); ok {
		mu.Installed = j
	}
}

func (m *Manager) RunQueue() transaction.RunQueue       { return &m.runQueue }
func (m *Manager) Timer() transaction.Timer             { return &m.timer }
func (m *Manager) BusQueue() transaction.BusQueue       { return &m.busQueue }
func (m *Manager) Finisher() transaction.LiveJobFinisher { return m }

// FinishAndInvalidate implements transaction.LiveJobFinisher by removing j
// from the live set. This reference implementation never cascades — a real
// manager's finisher can, when finishing one job triggers dependents to
// fail too, which is why FinishAndInvalidate returns a bool at all
// (spec.md §4.5).
func (m *Manager) FinishAndInvalidate(j *job.Job, result transaction.FinishResult) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, live := range m.live {
		if live == j {
			delete(m.live, id)
			break
		}
	}
	return false
}

// RecordingRunQueue, RecordingTimer, and RecordingBusQueue just remember
// what they were called with, for assertions in tests and the CLI's
// verbose output.
type RecordingRunQueue struct {
	mu    sync.Mutex
	Added []*job.Job
}

func (q *RecordingRunQueue) Add(j *job.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Added = append(q.Added, j)
}

type RecordingTimer struct {
	mu      sync.Mutex
	Started []*job.Job
}

func (t *RecordingTimer) Start(j *job.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Started = append(t.Started, j)
}

type RecordingBusQueue struct {
	mu     sync.Mutex
	Posted []*job.Job
}

func (b *RecordingBusQueue) Post(j *job.Job) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Posted = append(b.Posted, j)
}
