// Package job implements the transaction engine's job model: the JobType
// merge lattice, the predicates the reconciler needs (redundant, superset,
// applicable), and the Job value itself (spec.md §3, §4.1).
//
// A Job is deliberately a plain struct with exported scratch fields
// (Generation, Marker) rather than an opaque handle: the reconciler's DFS
// passes need to read and reset them directly, the way the original engine
// this is modeled on keeps traversal state on the node itself instead of a
// side table (spec.md §9).
package job

import "github.com/BryanQuigley/systemd/pkg/state"

// Type is one of the operations the engine can schedule against a unit
// (spec.md §3).
type Type int

const (
	Start Type = iota
	VerifyActive
	Stop
	Reload
	Restart
	TryRestart
	ReloadOrStart
)

func (t Type) String() string {
	names := [...]string{
		"start", "verify-active", "stop", "reload", "restart",
		"try-restart", "reload-or-start",
	}
	if int(t) < 0 || int(t) >= len(names) {
		return "unknown"
	}
	return names[t]
}

// Job is one pending operation on one unit (spec.md §3). Unit is stored as
// its name rather than a pointer to keep this package independent of
// pkg/unit; the reconciler and applier resolve names through the Registry
// when they need live-state information.
type Job struct {
	Unit string
	Type Type

	Installed bool
	Override  bool
	IgnoreOrder bool

	// MattersToAnchor is recomputed by reconciler Pass 1 on every pass.
	MattersToAnchor bool

	// Generation and Marker are scratch fields owned by whichever graph
	// traversal is currently running (Pass 1's essential-marking walk,
	// Pass 5's cycle-detecting DFS). Callers must not rely on their values
	// across calls into the reconciler (spec.md §5, "Memory discipline").
	Generation uint64
	Marker     *Job

	// SubjectList holds links where this job is the subject (the puller);
	// ObjectList holds links where this job is the object (the pulled).
	// Both are maintained exclusively by pkg/link.
	SubjectList []LinkRef
	ObjectList  []LinkRef

	// next chains multiple not-yet-merged jobs queued against the same
	// unit, before reconciler Pass 6 collapses them to one.
	next *Job

	// id distinguishes jobs for equality/ordering purposes independent of
	// pointer identity, useful in tests and log output.
	id uint64
}

// LinkRef is the job-side view of a link, declared here rather than in
// pkg/link to avoid an import cycle: link.Link embeds a Subject and Object
// *Job, so job cannot import link. LinkRef is satisfied by *link.Link.
type LinkRef interface {
	Matters() bool
	Conflicts() bool
	Other(from *Job) *Job
	Free()
}

var nextID uint64

// New creates a job for the given unit and type. id is used only for
// diagnostics; the reconciler and applier identify jobs by pointer.
func New(unitName string, t Type) *Job {
	nextID++
	return &Job{Unit: unitName, Type: t, id: nextID}
}

// ID returns a stable diagnostic identifier for the job, not used for any
// correctness decision.
func (j *Job) ID() uint64 { return j.id }

// Next returns the next not-yet-merged job queued for the same unit, or nil.
func (j *Job) Next() *Job { return j.next }

// SetNext links j to the next job queued for the same unit.
func (j *Job) SetNext(n *Job) { j.next = n }

// Install marks the job installed. Idempotent.
func (j *Job) Install() { j.Installed = true }

// mergeTable is the lattice of spec.md §4.1, encoded as a lookup rather than
// a chain of if-statements per the "this is data, not code branches"
// guidance of spec.md §9 for the builder's fan-out table; the same
// principle applies here.
//
// Entries are symmetric: mergeTable[a][b] and mergeTable[b][a] must agree
// where both are present. TypeMerge checks both orderings so only one needs
// to be listed.
var mergeTable = map[[2]Type]Type{
	{Start, Start}:        Start,
	{Start, VerifyActive}: Start,
	{Start, Reload}:       ReloadOrStart,
	{Start, Restart}:      Restart,
	{Start, ReloadOrStart}: ReloadOrStart,
	{Start, TryRestart}:   Restart,

	{VerifyActive, VerifyActive}: VerifyActive,
	{VerifyActive, Reload}:       Reload,
	{VerifyActive, Restart}:      Restart,
	{VerifyActive, ReloadOrStart}: ReloadOrStart,
	{VerifyActive, TryRestart}:   TryRestart,

	{Reload, Reload}:        Reload,
	{Reload, Restart}:       Restart,
	{Reload, ReloadOrStart}: ReloadOrStart,
	{Reload, TryRestart}:    Restart,

	{Restart, Restart}:      Restart,
	{Restart, ReloadOrStart}: Restart,
	{Restart, TryRestart}:   Restart,

	{ReloadOrStart, ReloadOrStart}: ReloadOrStart,
	{ReloadOrStart, TryRestart}:    Restart,

	{TryRestart, TryRestart}: TryRestart,

	{Stop, Stop}:       Stop,
	{Stop, TryRestart}: Stop,
}

// TypeMerge computes the least upper bound of a and b in the merge lattice
// of spec.md §4.1. ok is false when the pair conflicts (most commonly, one
// side is Stop and the other is anything but Stop or TryRestart) — the
// reconciler's conflict-resolution substep (Pass 6) takes over from there.
func TypeMerge(a, b Type) (result Type, ok bool) {
	if a == b {
		return a, true
	}
	if r, present := mergeTable[[2]Type{a, b}]; present {
		return r, true
	}
	if r, present := mergeTable[[2]Type{b, a}]; present {
		return r, true
	}
	return 0, false
}

// TypeIsMergeable reports whether a and b have a defined merge result.
func TypeIsMergeable(a, b Type) bool {
	_, ok := TypeMerge(a, b)
	return ok
}

// IsRedundant reports whether applying t to a unit already in activeState
// would do nothing observable (spec.md §4.1 job_type_is_redundant).
func IsRedundant(t Type, activeState state.ActiveState) bool {
	switch t {
	case Start, VerifyActive, ReloadOrStart:
		return activeState == state.Active || activeState == state.Reloading || activeState == state.Activating
	case Stop:
		return activeState == state.Inactive || activeState == state.Failed || activeState == state.Deactivating
	case Reload:
		return false // reload is never a no-op to request; it always re-executes.
	case Restart, TryRestart:
		return false
	default:
		return false
	}
}

// IsSuperset reports whether achieving a also achieves everything executing
// b would (spec.md §4.1 job_type_is_superset), used by the reconciler's
// destructiveness check (Pass 8).
func IsSuperset(a, b Type) bool {
	if a == b {
		return true
	}
	switch a {
	case Restart:
		// Restart re-executes fully, so it subsumes any weaker request.
		return b == Start || b == VerifyActive || b == Reload || b == ReloadOrStart || b == TryRestart
	case ReloadOrStart:
		return b == Start || b == VerifyActive || b == Reload
	case Start:
		return b == VerifyActive
	case TryRestart:
		return b == VerifyActive
	default:
		return false
	}
}
