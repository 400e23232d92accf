package eval

import (
	"fmt"

	"github.com/dbchase/chasecore/internal/chaseerr"
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/subst"
	"github.com/dbchase/chasecore/internal/term"
)

// EvaluateFormula dispatches on f's Kind and reports every satisfying
// extension of base to yield, stopping early if yield returns false.
// Negation is evaluated by failure: a NegationFormula
// succeeds for base iff its inner formula has zero solutions under base,
// and since the range-restriction check requires every free variable of
// the inner formula to be bound already, the inner search never
// introduces new bindings to merge.
func (e *Evaluator) EvaluateFormula(f formula.Formula, base *subst.Substitution, yield func(*subst.Substitution) bool) error {
	switch node := f.(type) {
	case formula.AtomFormula:
		return e.JoinAtoms([]term.Atom{node.Atom}, base, yield)

	case formula.ConjunctionFormula:
		var innerErr error
		stop := false
		outerErr := e.EvaluateFormula(node.Left, base, func(left *subst.Substitution) bool {
			err := e.EvaluateFormula(node.Right, left, func(right *subst.Substitution) bool {
				if !yield(right) {
					stop = true
					return false
				}
				return true
			})
			if err != nil {
				innerErr = err
				stop = true
			}
			return !stop
		})
		if innerErr != nil {
			return innerErr
		}
		return outerErr

	case formula.DisjunctionFormula:
		// Dedup on the local answer-variable projection: the same binding
		// reached through both disjuncts must be reported once, and
		// callers that consume EvaluateFormula directly (not
		// through EvaluateAndProject's own top-level dedup) still need it.
		vars := node.FreeVariables()
		seen := make(map[string]struct{})
		stop := false
		emit := func(s *subst.Substitution) bool {
			key := s.Restrict(vars).Key()
			if _, dup := seen[key]; dup {
				return true
			}
			seen[key] = struct{}{}
			if !yield(s) {
				stop = true
				return false
			}
			return true
		}
		err := e.EvaluateFormula(node.Left, base, emit)
		if err != nil || stop {
			return err
		}
		return e.EvaluateFormula(node.Right, base, emit)

	case formula.NegationFormula:
		if v, unbound := firstUnboundFreeVariable(node.Inner, base); unbound {
			return chaseerr.NewUnsupportedQueryError("eval.EvaluateFormula",
				fmt.Sprintf("negation is not range-restricted: %s is free under the enclosing conjuncts", v.Name()))
		}
		satisfied := false
		err := e.EvaluateFormula(node.Inner, base, func(*subst.Substitution) bool {
			satisfied = true
			return false // one witness is enough to falsify the negation
		})
		if err != nil {
			return err
		}
		if satisfied {
			return nil
		}
		if !yield(base) {
			return nil
		}
		return nil

	case formula.ExistentialFormula:
		return e.EvaluateFormula(node.Inner, base, func(s *subst.Substitution) bool {
			return yield(s.Restrict(domainExcluding(s, node.Var)))
		})

	case formula.UniversalFormula:
		// Evaluated as ¬∃v.¬φ, rewritten into the existing Negation/
		// Existential cases rather than hand-rolled, so it shares their
		// exact semantics (including the range-restriction behavior of
		// Negation above).
		equiv := formula.NegationFormula{
			Inner: formula.ExistentialFormula{
				Var:   node.Var,
				Inner: formula.NegationFormula{Inner: node.Inner},
			},
		}
		return e.EvaluateFormula(equiv, base, yield)

	default:
		return chaseerr.NewUnsupportedOperationError("eval.EvaluateFormula", fmt.Sprintf("unrecognized formula kind %v", f.Kind()))
	}
}

// firstUnboundFreeVariable returns a free variable of f that base does not
// bind, if any — the range-restriction check required before evaluating
// a negation: every free variable inside must already be bound
// by the enclosing conjuncts, or the negation is unsafely quantified
// (its truth value would depend on an infinite/unenumerated domain).
func firstUnboundFreeVariable(f formula.Formula, base *subst.Substitution) (*term.Variable, bool) {
	for v := range f.FreeVariables() {
		if _, bound := base.Get(v); !bound {
			return v, true
		}
	}
	return nil, false
}

// domainExcluding returns the domain of s minus v, used to keep an
// existentially-bound join variable out of a reported substitution's
// domain without otherwise touching the result.
func domainExcluding(s *subst.Substitution, v *term.Variable) map[*term.Variable]struct{} {
	out := make(map[*term.Variable]struct{}, s.Len())
	for _, dv := range s.Domain() {
		if dv != v {
			out[dv] = struct{}{}
		}
	}
	return out
}
