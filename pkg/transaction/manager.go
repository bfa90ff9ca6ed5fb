package transaction

import "github.com/BryanQuigley/systemd/pkg/job"

// FinishResult is the outcome recorded against a live job that the applier
// cancels during an isolate sweep (spec.md §7, "User-visible behavior").
type FinishResult int

const (
	FinishCanceled FinishResult = iota
	FinishSuperseded
)

func (r FinishResult) String() string {
	switch r {
	case FinishCanceled:
		return "canceled"
	case FinishSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// RunQueue, Timer, and BusQueue are the fire-and-forget notification
// targets of spec.md §6: on commit, every newly installed job is announced
// to each of them. None of them are consulted for a return value the
// engine acts on.
type RunQueue interface {
	Add(j *job.Job)
}

type Timer interface {
	Start(j *job.Job)
}

type BusQueue interface {
	Post(j *job.Job)
}

// LiveJobFinisher is the collaborator used during the isolate cancel-sweep
// (spec.md §4.5): it finishes a still-live job with a result and reports
// whether finishing it cascaded into touching other live jobs, in which
// case the applier must restart its iteration over the live set.
type LiveJobFinisher interface {
	FinishAndInvalidate(j *job.Job, result FinishResult) (othersTouched bool)
}

// LiveJob pairs an installed job with the id it was assigned when installed
// (spec.md §4.5, "keyed by a newly assigned monotonic id").
type LiveJob struct {
	ID  uint64
	Job *job.Job
}

// Manager is the slice of the surrounding service manager the applier
// needs: the live-job table it installs into, and the notification
// collaborators it fires on commit. It is the "manager's active job table"
// of spec.md §1 and the "manager" parameter of spec.md §6's activate().
type Manager interface {
	// LiveJobs returns every job currently installed, across all units.
	LiveJobs() []LiveJob
	// LiveJobFor returns the installed job for unitName, or (0, nil, false).
	LiveJobFor(unitName string) (id uint64, j *job.Job, ok bool)
	// Insert assigns a new monotonic id to j and adds it to the live set,
	// returning the id. Insert must not mutate j.Installed; the applier
	// does that itself once the whole install phase has succeeded.
	Insert(j *job.Job) (id uint64, err error)
	// Remove deletes the job with the given id from the live set. Used by
	// the applier's install-phase rollback.
	Remove(id uint64)
	// Publish records j as unitName's currently installed job, visible
	// through unit.Unit.InstalledJob().
	Publish(unitName string, j *job.Job)

	RunQueue() RunQueue
	Timer() Timer
	BusQueue() BusQueue
	Finisher() LiveJobFinisher
}
