package eval

import (
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/subst"
	"github.com/dbchase/chasecore/internal/term"
)

// Answer is one projected solution row, in the order of the Query's
// AnswerVariables.
type Answer []term.Term

// Query is a formula evaluated under a fixed answer-variable projection
// — the evaluate-and-project shape of a conjunctive query.
// PreSubstitution, when set, seeds the search with fixed bindings before
// any atom is matched.
type Query struct {
	Body            formula.Formula
	AnswerVariables []*term.Variable
	PreSubstitution *subst.Substitution
}

// EvaluateAndProject runs q.Body and projects each solution onto
// q.AnswerVariables, deduplicating by projected value (conjunctive-query
// answers are a set, not a bag). A nil AnswerVariables
// list ("boolean query") yields a single empty Answer if q.Body is
// satisfiable at all, and none otherwise.
func (e *Evaluator) EvaluateAndProject(q Query) ([]Answer, error) {
	base := q.PreSubstitution
	if base == nil {
		base = subst.New()
	}
	var out []Answer
	seen := make(map[string]struct{})
	err := e.EvaluateFormula(q.Body, base, func(s *subst.Substitution) bool {
		row := make(Answer, len(q.AnswerVariables))
		for i, v := range q.AnswerVariables {
			val, ok := s.Get(v)
			if !ok {
				val = v // free variable with no solver binding stays itself (open answer)
			}
			row[i] = val
		}
		key := projectionKey(row)
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		out = append(out, row)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func projectionKey(row Answer) string {
	key := ""
	for _, t := range row {
		key += t.Identifier() + "\x00"
	}
	return key
}
