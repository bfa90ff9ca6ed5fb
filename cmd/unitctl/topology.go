package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BryanQuigley/systemd/pkg/state"
	"github.com/BryanQuigley/systemd/pkg/unit"
)

// topologyFile is the on-disk shape of a demo unit topology. It exists
// purely so unitctl has something to drive; the real unit-loading
// subsystem (unit files, templates, drop-ins) is out of scope for this
// module (spec.md §1).
type topologyFile struct {
	Units []struct {
		Name            string              `yaml:"name"`
		Active          string              `yaml:"active"`
		IgnoreOnIsolate bool                `yaml:"ignoreOnIsolate"`
		Follows         []string            `yaml:"follows"`
		Deps            map[string][]string `yaml:"deps"`
	} `yaml:"units"`
}

var depKindByName = map[string]state.DependencyKind{
	"requires":             state.Requires,
	"requiresOverridable":  state.RequiresOverridable,
	"wants":                state.Wants,
	"requisite":            state.Requisite,
	"requisiteOverridable": state.RequisiteOverridable,
	"conflicts":            state.Conflicts,
	"conflictedBy":         state.ConflictedBy,
	"bindsTo":              state.BindsTo,
	"boundBy":              state.BoundBy,
	"requiredBy":           state.RequiredBy,
	"before":               state.Before,
	"after":                state.After,
	"propagateReloadTo":    state.PropagateReloadTo,
}

var activeStateByName = map[string]state.ActiveState{
	"active":        state.Active,
	"reloading":     state.Reloading,
	"activating":    state.Activating,
	"deactivating":  state.Deactivating,
	"inactive":      state.Inactive,
	"failed":        state.Failed,
}

func loadTopologyFile(path string) (*unit.MemRegistry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology file: %w", err)
	}
	var tf topologyFile
	if err := yaml.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("parse topology file: %w", err)
	}

	reg := unit.NewMemRegistry()
	for _, u := range tf.Units {
		mu := unit.NewMemUnit(u.Name)
		if u.Active != "" {
			as, ok := activeStateByName[u.Active]
			if !ok {
				return nil, fmt.Errorf("unit %q: unknown active state %q", u.Name, u.Active)
			}
			mu.Active = as
		}
		mu.IgnoreIsolate = u.IgnoreOnIsolate
		mu.Followers = u.Follows
		for kindName, targets := range u.Deps {
			kind, ok := depKindByName[kindName]
			if !ok {
				return nil, fmt.Errorf("unit %q: unknown dependency kind %q", u.Name, kindName)
			}
			for _, target := range targets {
				mu.AddDependency(kind, target)
			}
		}
		reg.Add(mu)
	}
	return reg, nil
}

// demoTopology returns a fixed A-requires-B-requires-C chain, matching
// spec.md §8's E1 scenario, so `unitctl start A` has something interesting
// to expand without needing a topology file on hand.
func demoTopology() *unit.MemRegistry {
	reg := unit.NewMemRegistry()

	a := unit.NewMemUnit("A")
	a.AddDependency(state.Requires, "B")

	b := unit.NewMemUnit("B")
	b.AddDependency(state.Requires, "C")
	b.AddDependency(state.Before, "A")

	c := unit.NewMemUnit("C")
	c.AddDependency(state.Before, "B")

	reg.Add(a)
	reg.Add(b)
	reg.Add(c)
	return reg
}
