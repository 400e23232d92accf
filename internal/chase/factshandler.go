package chase

import (
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/term"
)

// FactsHandler decides when a fired trigger's head atoms actually reach
// the writing target.
type FactsHandler interface {
	Apply(target store.WritableMaterializedData, atoms []term.Atom) (added []term.Atom, err error)
}

// DirectApplication writes every new atom to the target immediately,
// skipping atoms already present.
type DirectApplication struct{}

func (DirectApplication) Apply(target store.WritableMaterializedData, atoms []term.Atom) ([]term.Atom, error) {
	var added []term.Atom
	for _, a := range atoms {
		ok, err := target.Add(a)
		if err != nil {
			return added, err
		}
		if ok {
			added = append(added, a)
		}
	}
	return added, nil
}

// EagerFunctionEvaluation decorates another FactsHandler, forward-
// evaluating ground evaluable function terms in materialized head atoms
// before they reach the target. Terms the registry
// cannot resolve pass through unchanged.
type EagerFunctionEvaluation struct {
	Inner     FactsHandler
	Functions *store.ComputedPredicateSource
}

func (e EagerFunctionEvaluation) Apply(target store.WritableMaterializedData, atoms []term.Atom) ([]term.Atom, error) {
	resolved := make([]term.Atom, len(atoms))
	for i, a := range atoms {
		ts := make([]term.Term, len(a.Terms))
		changed := false
		for j, t := range a.Terms {
			nt := e.Functions.ResolveGround(t)
			ts[j] = nt
			if nt != t {
				changed = true
			}
		}
		if changed {
			resolved[i] = term.Atom{Predicate: a.Predicate, Terms: ts}
		} else {
			resolved[i] = a
		}
	}
	return e.Inner.Apply(target, resolved)
}

// DelegatedApplication reports new atoms without writing them to the
// target; an AddCreatedFacts end-of-step treatment must merge them in
// later (used by the source-delegated datalog applier so a single
// compiled SQL join can own the actual insert).
type DelegatedApplication struct{}

func (DelegatedApplication) Apply(target store.WritableMaterializedData, atoms []term.Atom) ([]term.Atom, error) {
	var pending []term.Atom
	for _, a := range atoms {
		if !target.AcceptsAtom(a) || containsAtom(target, a) {
			continue
		}
		pending = append(pending, a)
	}
	return pending, nil
}
