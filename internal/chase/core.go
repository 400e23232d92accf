package chase

import (
	"github.com/dbchase/chasecore/internal/eval"
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/subst"
	"github.com/dbchase/chasecore/internal/term"
)

// NaiveCoreProcessor computes a core by repeatedly testing whether the
// whole atom set still has a homomorphism into the store with one atom
// removed; if so that atom is redundant and can be dropped for good. A
// labeled null is just a term.Variable produced by one of the existential
// renamers, so "does a homomorphism exist" is exactly a conjunctive query
// match: evaluate every atom (nulls as free variables, constants fixed)
// against the candidate smaller store.
//
// This is the textbook quadratic-ish core algorithm, not a specialized
// one: each round is O(atoms) homomorphism tests, and a removed atom
// shrinks every subsequent round's target. Fine for the batch sizes this
// engine targets; a production system chasing millions of facts would
// want an incremental variant instead.
type NaiveCoreProcessor struct{}

func (NaiveCoreProcessor) ComputeCore(target store.WritableMaterializedData) error {
	atoms := allAtoms(target)
	changed := true
	for changed {
		changed = false
		for i, candidate := range atoms {
			// A fully ground atom can never be redundant: removing it drops
			// the only way a homomorphism (which must fix constants) could
			// still satisfy it, since the store holds no duplicate atoms.
			if candidate.IsGround() {
				continue
			}
			rest := without(atoms, i)
			if homomorphicInto(atoms, rest) {
				if err := target.Remove(candidate); err != nil {
					return err
				}
				atoms = rest
				changed = true
				break
			}
		}
	}
	return nil
}

func allAtoms(target store.MaterializedData) []term.Atom {
	it := target.Iterate()
	var out []term.Atom
	for {
		a, ok, err := it.Next()
		if err != nil || !ok {
			break
		}
		out = append(out, a)
	}
	return out
}

func without(atoms []term.Atom, i int) []term.Atom {
	out := make([]term.Atom, 0, len(atoms)-1)
	for j, a := range atoms {
		if j != i {
			out = append(out, a)
		}
	}
	return out
}

// homomorphicInto reports whether every atom in full has an image under
// some substitution such that the image set is contained in a snapshot
// of rest (i.e. rest, queried as a Data source, satisfies the whole
// conjunction full).
func homomorphicInto(full []term.Atom, rest []term.Atom) bool {
	snapshot := store.NewInMemoryFactBase()
	for _, a := range rest {
		if _, err := snapshot.Add(a); err != nil {
			return false
		}
	}
	ev := eval.New(snapshot)
	formulas := make([]formula.Formula, len(full))
	for i, a := range full {
		formulas[i] = formula.AtomFormula{Atom: a}
	}
	body := formula.Conjoin(formulas)

	found := false
	err := ev.EvaluateFormula(body, subst.New(), func(*subst.Substitution) bool {
		found = true
		return false
	})
	if err != nil {
		return false
	}
	return found
}
