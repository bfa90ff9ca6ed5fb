package unit

import (
	"sync"

	"github.com/BryanQuigley/systemd/pkg/job"
	"github.com/BryanQuigley/systemd/pkg/state"
	"github.com/BryanQuigley/systemd/pkg/txerr"
)

// MemUnit is a mutable, in-memory Unit, the reference implementation used
// by tests and the CLI's demo mode in place of a real unit-loading
// subsystem (out of scope per spec.md §1).
type MemUnit struct {
	NameVal            string
	Load               state.LoadState
	Active             state.ActiveState
	Deps               map[state.DependencyKind][]string
	NotApplicableTypes map[job.Type]bool
	IgnoreIsolate      bool
	Followers          []string
	Installed          *job.Job
}

// NewMemUnit returns a loaded, inactive unit named name with no dependencies.
func NewMemUnit(name string) *MemUnit {
	return &MemUnit{
		NameVal: name,
		Load:    state.LoadStateLoaded,
		Active:  state.Inactive,
		Deps:    make(map[state.DependencyKind][]string),
	}
}

func (u *MemUnit) Name() string                 { return u.NameVal }
func (u *MemUnit) LoadState() state.LoadState   { return u.Load }
func (u *MemUnit) ActiveState() state.ActiveState { return u.Active }
func (u *MemUnit) IgnoreOnIsolate() bool        { return u.IgnoreIsolate }
func (u *MemUnit) FollowingSet() []string       { return u.Followers }
func (u *MemUnit) InstalledJob() *job.Job       { return u.Installed }

func (u *MemUnit) Dependencies(kind state.DependencyKind) []string {
	return u.Deps[kind]
}

func (u *MemUnit) IsApplicable(t job.Type) bool {
	return !u.NotApplicableTypes[t]
}

// AddDependency declares a dependency of kind on target. Requires-family
// edges are not automatically mirrored as RequiredBy/BoundBy on the
// target; call AddDependency on the target too when the request/stop-fanout
// tables (spec.md §4.3) need the reverse edge.
func (u *MemUnit) AddDependency(kind state.DependencyKind, target string) {
	u.Deps[kind] = append(u.Deps[kind], target)
}

// MemRegistry is an in-memory Registry backed by a plain map, guarded by a
// mutex since a CLI or test harness may look units up from goroutines the
// engine itself never spawns (the engine's own calls are single-threaded
// per spec.md §5).
type MemRegistry struct {
	mu    sync.RWMutex
	units map[string]*MemUnit
}

// NewMemRegistry returns an empty registry.
func NewMemRegistry() *MemRegistry {
	return &MemRegistry{units: make(map[string]*MemUnit)}
}

// Add registers u, replacing any existing unit of the same name.
func (r *MemRegistry) Add(u *MemUnit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[u.NameVal] = u
}

func (r *MemRegistry) Lookup(name string) (Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[name]
	if !ok {
		return nil, txerr.Errorf("unit %q not found", name)
	}
	return u, nil
}

func (r *MemRegistry) IterUnits() []Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Unit, 0, len(r.units))
	for _, u := range r.units {
		out = append(out, u)
	}
	return out
}
