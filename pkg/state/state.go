// Package state defines the small, shared vocabulary both pkg/job and
// pkg/unit need to describe a unit's condition: its load outcome, its
// runtime state, and the kind of dependency edge connecting two units. It
// exists on its own so job and unit can each depend on it without
// depending on each other.
package state

// LoadState is the outcome of resolving a unit's definition.
type LoadState int

const (
	LoadStateLoaded LoadState = iota
	LoadStateNotFound
	LoadStateError
	LoadStateMasked
)

func (s LoadState) String() string {
	switch s {
	case LoadStateLoaded:
		return "loaded"
	case LoadStateNotFound:
		return "not-found"
	case LoadStateError:
		return "error"
	case LoadStateMasked:
		return "masked"
	default:
		return "unknown"
	}
}

// ActiveState is a unit's current runtime state.
type ActiveState int

const (
	Active ActiveState = iota
	Reloading
	Activating
	Deactivating
	Inactive
	Failed
)

func (s ActiveState) String() string {
	switch s {
	case Active:
		return "active"
	case Reloading:
		return "reloading"
	case Activating:
		return "activating"
	case Deactivating:
		return "deactivating"
	case Inactive:
		return "inactive"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsActiveOrActivating reports whether the state represents a unit that is
// currently running or on its way up — the gate reconciler Pass 2 uses to
// decide whether dropping a non-essential STOP would silently kill a live
// service.
func (s ActiveState) IsActiveOrActivating() bool {
	return s == Active || s == Activating || s == Reloading
}

// DependencyKind is one edge type in the unit dependency multimap of
// spec.md §3. Polarity (does it pull a START, a STOP, a VERIFY_ACTIVE...)
// is decided by the builder's fan-out table (spec.md §4.3), not by the kind
// itself.
type DependencyKind int

const (
	Requires DependencyKind = iota
	RequiresOverridable
	Wants
	Requisite
	RequisiteOverridable
	Conflicts
	ConflictedBy
	BindsTo
	BoundBy
	RequiredBy
	Before
	After
	PropagateReloadTo
)

func (k DependencyKind) String() string {
	names := [...]string{
		"Requires", "RequiresOverridable", "Wants", "Requisite",
		"RequisiteOverridable", "Conflicts", "ConflictedBy", "BindsTo",
		"BoundBy", "RequiredBy", "Before", "After", "PropagateReloadTo",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "unknown"
	}
	return names[k]
}
