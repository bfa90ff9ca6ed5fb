package transaction

import (
	"context"

	"go.uber.org/zap"

	"github.com/BryanQuigley/systemd/internal/log"
	"github.com/BryanQuigley/systemd/pkg/job"
	"github.com/BryanQuigley/systemd/pkg/link"
	"github.com/BryanQuigley/systemd/pkg/state"
	"github.com/BryanQuigley/systemd/pkg/txerr"
	"github.com/BryanQuigley/systemd/pkg/unit"
)

// fanoutEdge is one row of the per-edge-kind table of spec.md §4.3. Encoding
// the table as data rather than a chain of type-switches is the guidance of
// spec.md §9 ("this is data, not code branches").
type fanoutEdge struct {
	kind    state.DependencyKind
	result  job.Type
	matters func(override bool) bool
	conflicts bool
	fatal   bool
}

func alwaysMatters(bool) bool    { return true }
func neverMatters(bool) bool     { return false }
func unlessOverride(o bool) bool { return !o }

func startLikeEdges() []fanoutEdge {
	return []fanoutEdge{
		{kind: state.Requires, result: job.Start, matters: alwaysMatters, fatal: true},
		{kind: state.BindsTo, result: job.Start, matters: alwaysMatters, fatal: true},
		{kind: state.RequiresOverridable, result: job.Start, matters: unlessOverride, fatal: false},
		{kind: state.Wants, result: job.Start, matters: neverMatters, fatal: false},
		{kind: state.Requisite, result: job.VerifyActive, matters: alwaysMatters, fatal: true},
		{kind: state.RequisiteOverridable, result: job.VerifyActive, matters: unlessOverride, fatal: false},
		{kind: state.Conflicts, result: job.Stop, matters: alwaysMatters, conflicts: true, fatal: true},
		{kind: state.ConflictedBy, result: job.Stop, matters: neverMatters, fatal: false},
	}
}

func reloadPropagationEdges() []fanoutEdge {
	return []fanoutEdge{
		{kind: state.PropagateReloadTo, result: job.Reload, matters: neverMatters, fatal: false},
	}
}

func stopLikeEdges(requested job.Type) []fanoutEdge {
	return []fanoutEdge{
		{kind: state.RequiredBy, result: requested, matters: alwaysMatters, fatal: true},
		{kind: state.BoundBy, result: requested, matters: alwaysMatters, fatal: true},
	}
}

// fanoutFor returns the recursive-expansion table for a requested job type,
// per the table in spec.md §4.3.
func fanoutFor(t job.Type) []fanoutEdge {
	switch t {
	case job.Start:
		return startLikeEdges()
	case job.ReloadOrStart:
		return append(startLikeEdges(), reloadPropagationEdges()...)
	case job.Reload:
		return reloadPropagationEdges()
	case job.Stop, job.Restart, job.TryRestart:
		return stopLikeEdges(t)
	case job.VerifyActive:
		return nil
	default:
		return nil
	}
}

// AddJobAndDependencies is component C's request function (spec.md §4.3):
// it finds or creates a job for (unitName, t) in tr, links it to puller if
// one is given, and — if the job is new and ignoreRequirements is false —
// recursively expands the unit's dependencies into further jobs.
//
// On success, on has-anchor transactions this always returns the job that
// was found or created; on the very first call for a transaction (puller
// == nil) that job becomes tr's anchor.
func AddJobAndDependencies(
	ctx context.Context,
	tr *Transaction,
	t job.Type,
	unitName string,
	puller *job.Job,
	matters, override, conflicts, ignoreRequirements, ignoreOrder bool,
) (*job.Job, error) {
	u, err := tr.registry.Lookup(unitName)
	if err != nil {
		return nil, Wrap(ErrLoadFailed, unitName, err)
	}

	if (u.LoadState() == state.LoadStateError || u.LoadState() == state.LoadStateNotFound) && t != job.Stop {
		return nil, NewError(ErrLoadFailed, unitName)
	}
	if u.LoadState() == state.LoadStateMasked && t != job.Stop {
		return nil, NewError(ErrMasked, unitName)
	}
	if !u.IsApplicable(t) {
		return nil, NewError(ErrJobTypeNotApplicable, unitName)
	}

	j, isNew := tr.findOrCreate(unitName, t)
	j.IgnoreOrder = j.IgnoreOrder || ignoreOrder
	if override {
		j.Override = true
	}

	if puller == nil {
		if tr.anchor != nil && tr.anchor != j {
			return nil, txerr.Errorf("transaction: a second anchor job was requested (existing anchor unit %q, new %q)", tr.anchor.Unit, unitName)
		}
		tr.anchor = j
	} else {
		link.New(puller, j, matters, conflicts)
	}

	if !isNew || ignoreRequirements {
		return j, nil
	}

	for _, followerName := range u.FollowingSet() {
		if _, err := AddJobAndDependencies(ctx, tr, t, followerName, j, false, override, false, false, ignoreOrder); err != nil {
			log.Debug(ctx, "follower replication suppressed",
				zap.String("unit", unitName), zap.String("follower", followerName), zap.Error(err))
		}
	}

	for _, edge := range fanoutFor(t) {
		for _, depName := range u.Dependencies(edge.kind) {
			_, err := AddJobAndDependencies(ctx, tr, edge.result, depName, j, edge.matters(override), override, edge.conflicts, false, ignoreOrder)
			if err != nil {
				if edge.fatal && !Is(err, ErrJobTypeNotApplicable) {
					return nil, err
				}
				log.Debug(ctx, "dependency edge suppressed",
					zap.String("unit", unitName), zap.String("dependency", depName),
					zap.String("kind", edge.kind.String()), zap.Error(err))
				continue
			}
		}
	}

	return j, nil
}

// AddIsolateJobs prepares a Stop job, pulled by the anchor, for every loaded
// unit that is not already in the transaction, is not marked
// IgnoreOnIsolate, and is either active or carries a live installed job
// (spec.md §4.3). It requires tr to already have an anchor.
func AddIsolateJobs(ctx context.Context, tr *Transaction, registry unit.Registry) error {
	if tr.anchor == nil {
		return txerr.New("transaction: AddIsolateJobs called before an anchor job was established")
	}
	for _, u := range registry.IterUnits() {
		name := u.Name()
		if u.IgnoreOnIsolate() {
			continue
		}
		if tr.HasJobFor(name) {
			continue
		}
		if u.LoadState() != state.LoadStateLoaded {
			continue
		}
		if !u.ActiveState().IsActiveOrActivating() && u.InstalledJob() == nil {
			continue
		}
		if _, err := AddJobAndDependencies(ctx, tr, job.Stop, name, tr.anchor, false, false, false, false, false); err != nil {
			if Is(err, ErrJobTypeNotApplicable) {
				log.Debug(ctx, "isolate stop not applicable, skipping", zap.String("unit", name))
				continue
			}
			return err
		}
	}
	return nil
}
