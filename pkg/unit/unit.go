// Package unit defines the engine's view of the units it schedules jobs
// against. The engine treats a Unit as opaque except for the handful of
// fields spec.md §3 grants it read access to; everything about how a unit
// is loaded, configured, or executed lives outside this module (spec.md §1,
// "Explicitly out of scope").
package unit

import (
	"github.com/BryanQuigley/systemd/pkg/job"
	"github.com/BryanQuigley/systemd/pkg/state"
)

// Unit is the read surface the engine needs from the manager's unit
// registry. Concrete units (how they are loaded, what they run) are the
// excluded collaborator described in spec.md §1 and §6.
type Unit interface {
	Name() string
	LoadState() state.LoadState
	ActiveState() state.ActiveState

	// Dependencies returns the set of unit names this unit declares under
	// kind. The result may be nil when there are none.
	Dependencies(kind state.DependencyKind) []string

	// IgnoreOnIsolate reports whether AddIsolateJobs should skip this unit
	// even though it is loaded and active.
	IgnoreOnIsolate() bool

	// FollowingSet returns the units that follow this one: a job requested
	// on this unit (the leader) is replicated to each of them (spec.md
	// §4.3). It returns nil if nothing follows this unit.
	FollowingSet() []string

	// IsApplicable reports whether t can be requested against this unit's
	// class (spec.md §4.1 job_type_is_applicable).
	IsApplicable(t job.Type) bool

	// InstalledJob returns the job currently published as this unit's live
	// job, or nil if there is none.
	InstalledJob() *job.Job
}

// Registry is the read-only lookup surface of the manager's unit table
// (spec.md §6). The engine never mutates it directly; publishing a unit's
// installed job happens through the Manager during the applier's commit
// phase.
type Registry interface {
	Lookup(name string) (Unit, error)
	IterUnits() []Unit
}
