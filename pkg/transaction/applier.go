package transaction

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/BryanQuigley/systemd/internal/log"
	"github.com/BryanQuigley/systemd/pkg/job"
)

// DefaultNotifyConcurrency bounds how many RunQueue/Timer/BusQueue
// notifications an Applier dispatches concurrently during the commit phase. It
// mirrors the teacher's driver.memoryLimiter: a weighted semaphore sized to
// avoid a single large isolate transaction spawning thousands of
// unbounded goroutines.
const DefaultNotifyConcurrency = 32

// Applier installs a reconciled Transaction into a Manager's live job set
// (spec.md §4.5). It is the only component that touches the manager's live
// set; everything upstream of it works purely on the Transaction value.
type Applier struct {
	manager Manager
	notify  *semaphore.Weighted
}

// NewApplier builds an Applier against manager. notifyConcurrency bounds
// concurrent commit-phase notifications; pass 0 or a negative value to use
// DefaultNotifyConcurrency.
func NewApplier(manager Manager, notifyConcurrency int64) *Applier {
	if notifyConcurrency <= 0 {
		notifyConcurrency = DefaultNotifyConcurrency
	}
	return &Applier{manager: manager, notify: semaphore.NewWeighted(notifyConcurrency)}
}

// Activate reconciles tr for mode and, on success, installs it into the
// applier's manager atomically: either every not-yet-installed job in tr
// becomes visible to the run queue, or none do (spec.md §5, "Ordering
// guarantees... apply").
//
// A caller that wants to inspect or veto the reconciled transaction may run
// Reconcile itself beforehand; Activate always runs Reconcile again, so a
// transaction with a single job per unit still gets the live-job merge,
// redundancy drops, cycle check and destructiveness check.
func Activate(ctx context.Context, applier *Applier, tr *Transaction, mode Mode) error {
	ctx = log.Child(ctx, "activate", zap.String("mode", mode.String()), zap.String("transaction", tr.ID))

	if err := Reconcile(ctx, tr, mode); err != nil {
		return err
	}

	if mode == Isolate {
		if err := applier.cancelSweep(ctx, tr); err != nil {
			return err
		}
	}

	inserted, err := applier.install(ctx, tr)
	if err != nil {
		applier.rollback(inserted)
		return err
	}

	applier.commit(ctx, tr, inserted)
	log.Info(ctx, "transaction activated", zap.Int("installed", len(inserted)))
	return nil
}

// cancelSweep implements the isolate cancel-sweep of spec.md §4.5: every
// live job whose unit is not in tr is finished as canceled. Cancellation
// can cascade (finishing one live job may finish others transitively), so
// the sweep restarts its scan whenever the finisher reports that it touched
// something else, per spec.md §5's "the cancel-sweep completes before any
// new install starts" guarantee.
func (a *Applier) cancelSweep(ctx context.Context, tr *Transaction) error {
	finisher := a.manager.Finisher()
	for {
		restarted := false
		for _, live := range a.manager.LiveJobs() {
			if tr.HasJobFor(live.Job.Unit) {
				continue
			}
			log.Debug(ctx, "isolate: canceling live job not in transaction", zap.String("unit", live.Job.Unit))
			if othersTouched := finisher.FinishAndInvalidate(live.Job, FinishCanceled); othersTouched {
				restarted = true
				break
			}
		}
		if !restarted {
			return nil
		}
	}
}

// install is the install phase of spec.md §4.5: every not-yet-installed job
// in tr is inserted into the manager's live-job map. If any insertion
// fails, install stops and returns the insertions made so far together
// with the error; Activate then undoes them with rollback.
func (a *Applier) install(ctx context.Context, tr *Transaction) ([]LiveJob, error) {
	var inserted []LiveJob
	for _, j := range tr.AllJobs() {
		if j.Installed {
			continue
		}
		id, err := a.manager.Insert(j)
		if err != nil {
			log.Debug(ctx, "install phase failed, rolling back", zap.String("unit", j.Unit), zap.Error(err))
			return inserted, err
		}
		inserted = append(inserted, LiveJob{ID: id, Job: j})
	}
	return inserted, nil
}

// rollback undoes exactly the insertions install() made in this call,
// leaving previously installed jobs untouched (spec.md §4.5, "Rollback
// removes only what this call inserted").
func (a *Applier) rollback(inserted []LiveJob) {
	for _, lj := range inserted {
		a.manager.Remove(lj.ID)
	}
}

// commit is the commit phase of spec.md §4.5: each installed job is
// unlinked from the transaction's bookkeeping (kept, but with its links
// cleared), marked installed, published as its unit's live job, and
// announced to the run queue, timer, and bus queue. The three
// notifications are fire-and-forget and are dispatched concurrently,
// bounded by the applier's semaphore, since nothing downstream of Activate
// waits on them.
func (a *Applier) commit(ctx context.Context, tr *Transaction, inserted []LiveJob) {
	var wg sync.WaitGroup
	for _, lj := range inserted {
		j := lj.Job

		// Retire whatever was already live for this unit before publishing
		// the new survivor, so the live set never carries two independent
		// entries for the same unit (spec.md §5, at most one live job per
		// unit once activate returns).
		// j is already in the live set at this point, so every other live
		// job on the same unit is retired, not just whichever one a
		// single lookup happens to return.
		for _, old := range a.manager.LiveJobs() {
			if old.Job.Unit == j.Unit && old.Job != j {
				log.Debug(ctx, "retiring previous live job for unit", zap.String("unit", j.Unit))
				a.manager.Remove(old.ID)
			}
		}

		for _, l := range append([]job.LinkRef(nil), j.SubjectList...) {
			l.Free()
		}
		for _, l := range append([]job.LinkRef(nil), j.ObjectList...) {
			l.Free()
		}
		j.Install()
		a.manager.Publish(j.Unit, j)

		wg.Add(1)
		go a.dispatch(ctx, &wg, j)
	}
	wg.Wait()
}

func (a *Applier) dispatch(ctx context.Context, wg *sync.WaitGroup, j *job.Job) {
	defer wg.Done()
	if err := a.notify.Acquire(ctx, 1); err != nil {
		// ctx was canceled while waiting for a notify slot; the job is
		// already installed, so this only delays its run-queue/timer/bus
		// announcement rather than losing correctness.
		log.Debug(ctx, "notify dispatch skipped, context done", zap.String("unit", j.Unit), zap.Error(err))
		return
	}
	defer a.notify.Release(1)

	a.manager.RunQueue().Add(j)
	a.manager.Timer().Start(j)
	a.manager.BusQueue().Post(j)
}
