package transaction

import (
	"context"

	"go.uber.org/zap"

	"github.com/BryanQuigley/systemd/internal/log"
	"github.com/BryanQuigley/systemd/pkg/job"
	"github.com/BryanQuigley/systemd/pkg/link"
	"github.com/BryanQuigley/systemd/pkg/state"
	"github.com/BryanQuigley/systemd/pkg/unit"
)

// Mode is the apply mode of spec.md §4.5 / §6. It also gates reconciler
// passes 2 and 8, which spec.md §4.4 restricts to "non-destructive FAIL
// mode", and pass 4, which is skipped in Isolate mode.
type Mode int

const (
	Fail Mode = iota
	Replace
	Isolate
)

func (m Mode) String() string {
	switch m {
	case Fail:
		return "fail"
	case Replace:
		return "replace"
	case Isolate:
		return "isolate"
	default:
		return "unknown"
	}
}

// Reconcile runs the reconciler passes of spec.md §4.4 to a fixed point:
// mark essential jobs, minimize impact, drop redundant jobs, garbage
// collect orphans, break ordering cycles, merge same-unit jobs, drop
// redundant jobs again, and (FAIL mode only) reject destructive merges.
//
// Reconcile either converges — leaving the transaction with exactly one job
// per unit and no ordering cycle — or returns one of *Error{ErrJobsConflicting,
// ErrOrderIsCyclic, ErrIsDestructive} and leaves the transaction abandonable
// via Abort.
func Reconcile(ctx context.Context, tr *Transaction, mode Mode) error {
	ctx = log.Child(ctx, "reconciler", zap.String("mode", mode.String()), zap.String("transaction", tr.ID))

	markEssential(tr)
	if mode == Fail {
		minimizeImpact(ctx, tr)
	}
	dropRedundant(ctx, tr)

	for {
		if mode != Isolate {
			gcOrphans(ctx, tr)
		}

		cycleBroken, err := verifyOrderBreakCycles(ctx, tr)
		if err != nil {
			return err
		}
		if cycleBroken {
			continue
		}

		mergeDropped, err := mergeJobs(ctx, tr)
		if err != nil {
			return err
		}
		if mergeDropped {
			continue
		}

		break
	}

	dropRedundant(ctx, tr)

	if mode == Fail {
		if err := checkDestructive(ctx, tr); err != nil {
			return err
		}
	}

	log.Debug(ctx, "reconcile converged", zap.Int("units", len(tr.jobs)))
	return nil
}

// markEssential is Pass 1: from the anchor, follow only matters=true links,
// marking every reached job MattersToAnchor. A generation counter (rather
// than clearing a visited set) prevents revisiting a job within one walk.
func markEssential(tr *Transaction) {
	for _, j := range tr.AllJobs() {
		j.MattersToAnchor = false
	}
	if tr.anchor == nil {
		return
	}
	gen := currentGeneration()
	var walk func(*job.Job)
	walk = func(j *job.Job) {
		if j.Generation == gen {
			return
		}
		j.Generation = gen
		j.MattersToAnchor = true
		for _, l := range j.SubjectList {
			if l.Matters() {
				walk(l.Other(j))
			}
		}
	}
	walk(tr.anchor)
}

var generationCounter uint64

func currentGeneration() uint64 {
	generationCounter++
	return generationCounter
}

// minimizeImpact is Pass 2 (FAIL mode only): delete any non-essential job
// that would either stop a running unit or collide with a conflicting live
// installed job, looping to a fixed point since a deletion can cascade and
// change what "the transaction" contains.
func minimizeImpact(ctx context.Context, tr *Transaction) {
	for {
		changed := false
		for _, j := range tr.AllJobs() {
			if j == tr.anchor || j.MattersToAnchor {
				continue
			}
			u := tr.mustLookup(j.Unit)
			risky := (j.Type == job.Stop && u.ActiveState().IsActiveOrActivating()) || conflictsWithLive(j, u)
			if !risky {
				continue
			}
			log.Debug(ctx, "minimize impact: dropping job", zap.String("unit", j.Unit), zap.String("type", j.Type.String()))
			tr.DeleteJob(j)
			changed = true
		}
		if !changed {
			return
		}
	}
}

func conflictsWithLive(j *job.Job, u unit.Unit) bool {
	live := u.InstalledJob()
	if live == nil {
		return false
	}
	return !job.TypeIsMergeable(j.Type, live.Type)
}

// dropRedundant is Pass 3 (and Pass 7, re-run after merging): delete any
// non-anchor job that is already installed or redundant given the unit's
// current active state, provided the unit has no conflicting live job.
func dropRedundant(ctx context.Context, tr *Transaction) {
	for {
		changed := false
		for _, j := range tr.AllJobs() {
			if j == tr.anchor {
				continue
			}
			u := tr.mustLookup(j.Unit)
			if conflictsWithLive(j, u) {
				continue
			}
			if j.Installed || job.IsRedundant(j.Type, u.ActiveState()) {
				log.Debug(ctx, "drop redundant: dropping job", zap.String("unit", j.Unit), zap.String("type", j.Type.String()))
				tr.DeleteJob(j)
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// gcOrphans is Pass 4 (skipped in ISOLATE mode): delete every non-anchor
// job whose object list is empty — nothing pulled it in any more.
func gcOrphans(ctx context.Context, tr *Transaction) {
	for {
		changed := false
		for _, j := range tr.AllJobs() {
			if j == tr.anchor {
				continue
			}
			if len(j.ObjectList) == 0 {
				log.Debug(ctx, "gc orphan job", zap.String("unit", j.Unit), zap.String("type", j.Type.String()))
				tr.DeleteJob(j)
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// verifyOrderBreakCycles is Pass 5. It walks the ordering graph induced by
// UNIT_BEFORE edges between jobs currently in the transaction (falling back
// to a unit's installed job when it has none queued), restricted to jobs
// that don't have IgnoreOrder set. On finding a cycle it deletes the first
// droppable node on the cycle (not installed, not essential) and reports
// cycleBroken=true so the caller restarts from Pass 4; if no node on the
// cycle is droppable, it returns ErrOrderIsCyclic.
func verifyOrderBreakCycles(ctx context.Context, tr *Transaction) (cycleBroken bool, err error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[*job.Job]int)

	nodeFor := func(unitName string) *job.Job {
		if j := tr.JobFor(unitName); j != nil {
			return j
		}
		u, lookupErr := tr.registry.Lookup(unitName)
		if lookupErr != nil {
			return nil
		}
		return u.InstalledJob()
	}

	var cycleFrom *job.Job
	var dfs func(j *job.Job) bool
	dfs = func(j *job.Job) bool {
		if j.IgnoreOrder {
			return false
		}
		color[j] = gray
		u := tr.mustLookupOrNil(j.Unit)
		if u != nil {
			for _, nextName := range u.Dependencies(state.Before) {
				next := nodeFor(nextName)
				if next == nil || next.IgnoreOrder {
					continue
				}
				switch color[next] {
				case white:
					next.Marker = j
					if dfs(next) {
						return true
					}
				case gray:
					next.Marker = j
					cycleFrom = next
					return true
				}
			}
		}
		color[j] = black
		return false
	}

	for _, j := range tr.AllJobs() {
		if color[j] != white {
			continue
		}
		if dfs(j) {
			cyclePath := walkCycle(cycleFrom)
			victim := chooseCycleVictim(cyclePath)
			if victim == nil {
				return false, NewError(ErrOrderIsCyclic, cycleFrom.Unit)
			}
			log.Debug(ctx, "breaking ordering cycle", zap.String("unit", victim.Unit), zap.String("type", victim.Type.String()))
			tr.DeleteJob(victim)
			return true, nil
		}
	}
	return false, nil
}

// walkCycle follows Marker (the DFS predecessor) backward from start until
// it returns to start, reconstructing the cycle without any extra allocation
// beyond the resulting slice (spec.md §9).
func walkCycle(start *job.Job) []*job.Job {
	path := []*job.Job{start}
	for cur := start.Marker; cur != nil && cur != start; cur = cur.Marker {
		path = append(path, cur)
		if len(path) > 1<<20 {
			break // defensive: malformed marker chain, avoid an infinite loop.
		}
	}
	return path
}

// chooseCycleVictim implements spec.md §4.4 Pass 5's drop rule: the first
// node on the cycle that is not installed and not essential to the anchor.
func chooseCycleVictim(cycle []*job.Job) *job.Job {
	for _, j := range cycle {
		if !j.Installed && !j.MattersToAnchor {
			return j
		}
	}
	return nil
}

// mergeJobs is Pass 6: fold every unit's queued job types through
// job.TypeMerge, resolving conflicts by dropping one side per the priority
// rule below when possible, then collapsing the survivors into one job per
// unit. Returns dropped=true when a conflict-resolution drop happened, so
// the caller restarts from Pass 4.
func mergeJobs(ctx context.Context, tr *Transaction) (dropped bool, err error) {
	for _, unitName := range tr.Units() {
		list := tr.JobsFor(unitName)
		if len(list) == 0 {
			continue
		}

		merged, ok := list[0].Type, true
		for _, j := range list[1:] {
			merged, ok = job.TypeMerge(merged, j.Type)
			if !ok {
				break
			}
		}

		if !ok {
			victim := chooseMergeVictim(list)
			if victim == nil {
				return false, NewError(ErrJobsConflicting, unitName)
			}
			log.Debug(ctx, "merge conflict: dropping job", zap.String("unit", unitName), zap.String("type", victim.Type.String()))
			tr.DeleteJob(victim)
			return true, nil
		}

		// A unit's live installed job also participates in the merge even
		// when there's only one queued job for it: a queued START against a
		// unit that's already RELOAD-ing must absorb into RELOAD_OR_START,
		// not stay a bare START that Pass 8 would then reject as destructive.
		if u := tr.mustLookupOrNil(unitName); u != nil {
			if live := u.InstalledJob(); live != nil {
				if withLive, ok := job.TypeMerge(merged, live.Type); ok {
					merged = withLive
				}
			}
		}

		if len(list) < 2 && merged == list[0].Type {
			continue
		}

		collapse(tr, unitName, list, merged)
	}
	return false, nil
}

// chooseMergeVictim implements spec.md §4.4 Pass 6's conflict-resolution
// substep: among droppable pairs (neither essential, neither installed),
// prefer to keep starts over stops, except a Stop pulled in via a
// conflicts=true link outranks the start it opposes.
func chooseMergeVictim(list []*job.Job) *job.Job {
	for i := 0; i < len(list); i++ {
		for k := i + 1; k < len(list); k++ {
			a, b := list[i], list[k]
			if job.TypeIsMergeable(a.Type, b.Type) {
				continue
			}
			if a.MattersToAnchor || b.MattersToAnchor || a.Installed || b.Installed {
				continue
			}
			stopJob, otherJob := stopAndOther(a, b)
			if stopJob == nil {
				continue // shouldn't happen given the lattice, but never guess a victim.
			}
			if pulledByConflict(stopJob) {
				return otherJob
			}
			return stopJob
		}
	}
	return nil
}

func stopAndOther(a, b *job.Job) (stopJob, otherJob *job.Job) {
	switch {
	case a.Type == job.Stop:
		return a, b
	case b.Type == job.Stop:
		return b, a
	default:
		return nil, nil
	}
}

func pulledByConflict(j *job.Job) bool {
	for _, l := range j.ObjectList {
		if l.Conflicts() {
			return true
		}
	}
	return false
}

// collapse merges every job in list into a single survivor of the given
// type, absorbing their link lists and freeing the dead peers. The anchor,
// if present in list, is always kept as the survivor so tr.anchor never
// needs to be repointed.
func collapse(tr *Transaction, unitName string, list []*job.Job, mergedType job.Type) {
	survivor := list[0]
	for _, j := range list {
		if j == tr.anchor {
			survivor = j
			break
		}
	}

	for _, j := range list {
		if j == survivor {
			continue
		}
		for _, l := range append([]job.LinkRef(nil), j.SubjectList...) {
			if ll, ok := l.(*link.Link); ok {
				link.Repoint(ll, j, survivor)
			}
			survivor.SubjectList = append(survivor.SubjectList, l)
		}
		for _, l := range append([]job.LinkRef(nil), j.ObjectList...) {
			if ll, ok := l.(*link.Link); ok {
				link.Repoint(ll, j, survivor)
			}
			survivor.ObjectList = append(survivor.ObjectList, l)
		}
		survivor.Override = survivor.Override || j.Override
		survivor.MattersToAnchor = survivor.MattersToAnchor || j.MattersToAnchor
		survivor.Installed = survivor.Installed || j.Installed
		tr.unlink(j)
	}

	survivor.Type = mergedType
	survivor.SetNext(nil)
	tr.jobs[unitName] = survivor
}

// checkDestructive is Pass 8 (FAIL mode only): every surviving job whose
// unit has a live installed job must be a superset of that job's type.
func checkDestructive(ctx context.Context, tr *Transaction) error {
	for _, j := range tr.AllJobs() {
		u := tr.mustLookup(j.Unit)
		live := u.InstalledJob()
		if live == nil {
			continue
		}
		if !job.IsSuperset(j.Type, live.Type) {
			log.Debug(ctx, "destructive transaction", zap.String("unit", j.Unit),
				zap.String("requested", j.Type.String()), zap.String("live", live.Type.String()))
			return NewError(ErrIsDestructive, j.Unit)
		}
	}
	return nil
}

func (t *Transaction) mustLookup(unitName string) unit.Unit {
	u, err := t.registry.Lookup(unitName)
	if err != nil {
		panic("transaction: unit " + unitName + " has a queued job but is missing from the registry: " + err.Error())
	}
	return u
}

func (t *Transaction) mustLookupOrNil(unitName string) unit.Unit {
	u, err := t.registry.Lookup(unitName)
	if err != nil {
		return nil
	}
	return u
}
