package chase

import (
	"github.com/dbchase/chasecore/internal/eval"
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/subst"
)

// ViolatedConstraints evaluates every negative constraint's body against
// the data ev searches and returns the ones with at least one witness. A
// correctly saturated store satisfies none of its rule base's negative
// constraints; callers typically run this after the engine halts.
func ViolatedConstraints(rb *formula.RuleBase, ev *eval.Evaluator) ([]*formula.NegativeConstraint, error) {
	var out []*formula.NegativeConstraint
	for _, nc := range rb.NegativeConstraints {
		found := false
		err := ev.EvaluateFormula(nc.Body, subst.New(), func(*subst.Substitution) bool {
			found = true
			return false
		})
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, nc)
		}
	}
	return out, nil
}
