// Package eval implements conjunctive-query evaluation over a store.Data:
// a backtracking homomorphism search ordered by a most-constrained-first
// join planner, plus a first-order formula evaluator built on top of it.
package eval

import (
	"sort"

	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/subst"
	"github.com/dbchase/chasecore/internal/term"
)

// planAtom pairs a source atom with its position in the original
// conjunction, so diagnostics and Restricted-style checkers can still refer
// to "the i-th atom" after reordering.
type planAtom struct {
	atom  term.Atom
	index int
}

// planJoin orders atoms for evaluation. At each step it picks the atom
// whose BasicQuery (given the variables already bound by seed or by
// earlier atoms in the order) has the smallest estimated result size, per
// store.BoundEstimator; atoms with no estimate available are treated as
// maximally expensive and pushed toward the end, so a cheap, well-estimated
// join always wins a tie against an opaque one.
// Comparison atoms need both operands ground when they run, so they are
// never chosen while another atom could still bind one of their
// variables.
func planJoin(data store.Data, atoms []term.Atom, seed *subst.Substitution) []planAtom {
	remaining := make([]planAtom, len(atoms))
	for i, a := range atoms {
		remaining[i] = planAtom{atom: a, index: i}
	}

	bound := make(map[*term.Variable]struct{})
	if seed != nil {
		for _, v := range seed.Domain() {
			bound[v] = struct{}{}
		}
	}
	ordered := make([]planAtom, 0, len(atoms))

	for len(remaining) > 0 {
		bestIdx := -1
		bestCost := -1
		bestKnown := false
		for i, pa := range remaining {
			if pa.atom.Predicate.IsComparison() && !allVariablesBound(pa.atom, bound) {
				continue
			}
			cost, known := estimateCost(data, pa.atom, bound)
			better := bestIdx == -1
			if !better {
				switch {
				case known && !bestKnown:
					better = true
				case known == bestKnown && cost < bestCost:
					better = true
				}
			}
			if better {
				bestIdx, bestCost, bestKnown = i, cost, known
			}
		}
		if bestIdx == -1 {
			// Only comparisons with unboundable operands are left; take them
			// in original order and let evaluation report zero tuples.
			bestIdx = 0
		}
		chosen := remaining[bestIdx]
		ordered = append(ordered, chosen)
		for _, v := range variablesOf(chosen.atom) {
			bound[v] = struct{}{}
		}
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return ordered
}

func estimateCost(data store.Data, a term.Atom, bound map[*term.Variable]struct{}) (int, bool) {
	q := queryFor(a, bound)
	est, ok := data.(store.BoundEstimator)
	if !ok {
		return 0, false
	}
	return est.EstimateBound(q)
}

// queryFor builds the BasicQuery for atom a given the set of variables
// already bound by the join prefix: bound occurrences become
// BoundPositions placeholders (the actual values are filled in per-tuple
// during the real join), free variable occurrences become AnswerVars.
func queryFor(a term.Atom, bound map[*term.Variable]struct{}) store.BasicQuery {
	boundPos := make(map[int]term.Term)
	answerVars := make(map[int]*term.Variable)
	for pos, t := range a.Terms {
		switch v := t.(type) {
		case *term.Variable:
			if _, isBound := bound[v]; isBound {
				boundPos[pos] = v // placeholder; cost estimation only needs "is bound"
			} else {
				answerVars[pos] = v
			}
		default:
			boundPos[pos] = t
		}
	}
	return store.BasicQuery{Predicate: a.Predicate, BoundPositions: boundPos, AnswerVars: answerVars}
}

func allVariablesBound(a term.Atom, bound map[*term.Variable]struct{}) bool {
	for v := range a.Variables() {
		if _, ok := bound[v]; !ok {
			return false
		}
	}
	return true
}

func variablesOf(a term.Atom) []*term.Variable {
	seen := a.Variables()
	out := make([]*term.Variable, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// instantiate builds the concrete BasicQuery for atom a under the current
// partial substitution sub: bound variables resolve to their value,
// everything else (unbound variable or not a variable at all but still
// appearing free, which cannot happen for ground terms) becomes an answer
// position.
func instantiate(a term.Atom, sub *subst.Substitution) store.BasicQuery {
	boundPos := make(map[int]term.Term)
	answerVars := make(map[int]*term.Variable)
	for pos, t := range a.Terms {
		switch v := t.(type) {
		case *term.Variable:
			if val, ok := sub.Get(v); ok {
				boundPos[pos] = val
			} else {
				answerVars[pos] = v
			}
		default:
			boundPos[pos] = t
		}
	}
	return store.BasicQuery{Predicate: a.Predicate, BoundPositions: boundPos, AnswerVars: answerVars}
}
