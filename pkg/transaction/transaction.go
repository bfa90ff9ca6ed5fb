// Package transaction implements the reconciler, the transaction builder,
// and the applier described in spec.md §4: the core of the engine. A
// Transaction is a map from unit name to the head of that unit's (possibly
// still-unmerged) job list, plus the anchor job the client originally
// requested.
package transaction

import (
	"github.com/google/uuid"

	"github.com/BryanQuigley/systemd/pkg/job"
	"github.com/BryanQuigley/systemd/pkg/unit"
)

// Transaction is the mutable working set the builder fills in and the
// reconciler rewrites in place (spec.md §3).
type Transaction struct {
	// ID identifies the transaction for logging and diagnostics, mirroring
	// the teacher's transaction/server/driver.go, which stamps every
	// TransactionInfo with a fresh uuid.New() when it is started.
	ID string

	registry unit.Registry
	jobs     map[string]*job.Job
	anchor   *job.Job
}

// New creates an empty transaction against registry. registry is consulted
// for unit lookups and active/installed-job state throughout the builder
// and reconciler; it is never mutated by this package except through the
// Applier's commit phase (spec.md §4.5).
func New(registry unit.Registry) *Transaction {
	return &Transaction{ID: uuid.NewString(), registry: registry, jobs: make(map[string]*job.Job)}
}

// Anchor returns the transaction's anchor job, or nil if none has been set
// yet (an empty transaction, or one that failed before its first
// AddJobAndDependencies call completed).
func (t *Transaction) Anchor() *job.Job { return t.anchor }

// JobFor returns the head of unitName's job list in the transaction, or nil.
func (t *Transaction) JobFor(unitName string) *job.Job { return t.jobs[unitName] }

// HasJobFor reports whether the transaction has any job queued for unitName.
func (t *Transaction) HasJobFor(unitName string) bool {
	_, ok := t.jobs[unitName]
	return ok
}

// Units returns the set of unit names with at least one job in the transaction.
func (t *Transaction) Units() []string {
	out := make([]string, 0, len(t.jobs))
	for name := range t.jobs {
		out = append(out, name)
	}
	return out
}

// JobsFor returns every job currently queued for unitName (there may be more
// than one until reconciler Pass 6 merges them).
func (t *Transaction) JobsFor(unitName string) []*job.Job {
	var out []*job.Job
	for j := t.jobs[unitName]; j != nil; j = j.Next() {
		out = append(out, j)
	}
	return out
}

// AllJobs returns every job in the transaction, across all units.
func (t *Transaction) AllJobs() []*job.Job {
	var out []*job.Job
	for _, head := range t.jobs {
		for j := head; j != nil; j = j.Next() {
			out = append(out, j)
		}
	}
	return out
}

// findOrCreate returns the existing job of type t for unitName if one is
// already queued, or creates and queues a new one. isNew reports which
// happened, matching spec.md §4.3's "set is_new to distinguish".
func (t *Transaction) findOrCreate(unitName string, jt job.Type) (j *job.Job, isNew bool) {
	head := t.jobs[unitName]
	for cur := head; cur != nil; cur = cur.Next() {
		if cur.Type == jt {
			return cur, false
		}
	}
	nj := job.New(unitName, jt)
	nj.SetNext(head)
	t.jobs[unitName] = nj
	return nj, true
}

// deleteJob removes j from the transaction (per spec.md §4.4 "delete
// semantics"): it is unlinked from its unit's job list, all of its links
// are destroyed, and every job it pulled in via a matters=true link is
// reconsidered for cascade deletion — but only cascades if that job has no
// *other* surviving matters=true parent once j's own links are gone. A job
// can have two independent matters=true parents (e.g. the anchor's own
// essential chain on one side, an already-active job dropped as redundant
// on the other); deleting it just because one of its parents disappeared
// would sever the other parent's still-live requirement on it, which is
// exactly the diamond-dependency case Pass 4's orphan check (empty object
// list) exists to guard against. Checking for a surviving matters=true
// parent here is that same guard applied immediately instead of waiting
// for the next gcOrphans pass. visited guards against revisiting a job
// already removed by an earlier step of the same cascade.
func (t *Transaction) deleteJob(j *job.Job, visited map[*job.Job]bool) {
	if visited[j] {
		return
	}
	visited[j] = true

	t.unlink(j)

	var candidates []*job.Job
	for _, l := range append([]job.LinkRef(nil), j.SubjectList...) {
		if l.Matters() {
			candidates = append(candidates, l.Other(j))
		}
	}
	for _, l := range append([]job.LinkRef(nil), j.SubjectList...) {
		l.Free()
	}
	for _, l := range append([]job.LinkRef(nil), j.ObjectList...) {
		l.Free()
	}
	for _, other := range candidates {
		if visited[other] || hasSurvivingMattersParent(other) {
			continue
		}
		t.deleteJob(other, visited)
	}
}

// hasSurvivingMattersParent reports whether j is still pulled in by at
// least one matters=true link, after any links to an already-deleted job
// have been freed.
func hasSurvivingMattersParent(j *job.Job) bool {
	for _, l := range j.ObjectList {
		if l.Matters() {
			return true
		}
	}
	return false
}

// DeleteJob is the exported form of deleteJob: it drops a single job and
// runs its cascade with a fresh visited set. The reconciler passes use it
// for every job they remove.
func (t *Transaction) DeleteJob(j *job.Job) {
	t.deleteJob(j, make(map[*job.Job]bool))
}

// unlink removes j from its unit's job list without touching its links.
func (t *Transaction) unlink(j *job.Job) {
	head := t.jobs[j.Unit]
	if head == j {
		if j.Next() == nil {
			delete(t.jobs, j.Unit)
		} else {
			t.jobs[j.Unit] = j.Next()
		}
		return
	}
	for cur := head; cur != nil; cur = cur.Next() {
		if cur.Next() == j {
			cur.SetNext(j.Next())
			return
		}
	}
}

// Abort drops every job in the transaction without touching the manager's
// live set (spec.md §5, "Cancellation semantics"). It is the only way to
// discard a transaction that failed partway through construction or
// reconciliation.
func Abort(t *Transaction) {
	for _, j := range t.AllJobs() {
		for _, l := range append([]job.LinkRef(nil), j.SubjectList...) {
			l.Free()
		}
		for _, l := range append([]job.LinkRef(nil), j.ObjectList...) {
			l.Free()
		}
	}
	t.jobs = make(map[string]*job.Job)
	t.anchor = nil
}
