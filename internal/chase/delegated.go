package chase

import (
	"github.com/dbchase/chasecore/internal/eval"
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/store/sqlstore"
	"github.com/dbchase/chasecore/internal/subst"
	"github.com/dbchase/chasecore/internal/term"
)

// SourceDelegatedApplier hands an entire datalog (existential-free) rule's
// body join to a store that can compile it into one native query, instead
// of running the generic backtracking evaluator atom by atom. It only
// applies to rules whose body atoms are all declared by
// a single DatalogDelegable source and whose head has no existential
// variables; every other rule in a rule base must still go through the
// regular RuleApplier.
type SourceDelegatedApplier struct {
	Delegate sqlstore.DatalogDelegable
}

func NewSourceDelegatedApplier(delegate sqlstore.DatalogDelegable) *SourceDelegatedApplier {
	return &SourceDelegatedApplier{Delegate: delegate}
}

// SplitDelegable partitions a rule base's rules into those this applier
// can run natively (datalog, conjunctive body, answer variables = the
// body's free variables) and the remainder the engine must still run through the
// generic applier.
func SplitDelegable(rules []*formula.Rule) (delegable []*formula.Rule, rest []*formula.Rule) {
	for _, r := range rules {
		if len(r.ExistentialVariables()) == 0 && isConjunctiveBody(r.Body) {
			delegable = append(delegable, r)
			continue
		}
		rest = append(rest, r)
	}
	return delegable, rest
}

func isConjunctiveBody(f formula.Formula) bool {
	switch v := f.(type) {
	case formula.AtomFormula:
		return true
	case formula.ConjunctionFormula:
		return isConjunctiveBody(v.Left) && isConjunctiveBody(v.Right)
	default:
		return false
	}
}

// ApplyRule runs a single delegable rule's body join natively and
// returns one substitution per body match, binding every free variable
// of the body; it does not build head atoms. The caller still owns
// checker/facts-handler policy; this only replaces trigger computation.
func (a *SourceDelegatedApplier) ApplyRule(r *formula.Rule) ([]*subst.Substitution, error) {
	atoms := r.Body.Atoms()
	answerVars := frontierVars(r)

	bindings, err := a.Delegate.EvaluateJoin(atoms, answerVars)
	if err != nil {
		return nil, err
	}

	subs := make([]*subst.Substitution, 0, len(bindings))
	for _, b := range bindings {
		s := subst.New()
		for v, t := range b {
			s = s.Extend(v, t)
		}
		subs = append(subs, s)
	}
	return subs, nil
}

// Compute implements TriggerComputer by running the group's shared body
// through the delegate's native join once and sharing the resulting
// substitutions across every rule in the group (every rule in a group has
// an identical body, so this is sound regardless of which individual
// rule's frontier triggered the split).
func (a *SourceDelegatedApplier) Compute(group *RuleGroup, ev *eval.Evaluator, full store.Data, lastStepFacts []term.Atom) (map[*formula.Rule][]*subst.Substitution, error) {
	atoms := group.Body.Atoms()
	answerVars := sortedVars(varSlice(group.Body.FreeVariables()))

	bindings, err := a.Delegate.EvaluateJoin(atoms, answerVars)
	if err != nil {
		return nil, err
	}

	subs := make([]*subst.Substitution, 0, len(bindings))
	for _, b := range bindings {
		s := subst.New()
		for v, t := range b {
			s = s.Extend(v, t)
		}
		subs = append(subs, s)
	}
	return shareAcrossGroup(group, subs), nil
}

func varSlice(set map[*term.Variable]struct{}) []*term.Variable {
	out := make([]*term.Variable, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}

func frontierVars(r *formula.Rule) []*term.Variable {
	free := r.Body.FreeVariables()
	out := make([]*term.Variable, 0, len(free))
	for v := range free {
		out = append(out, v)
	}
	return sortedVars(out)
}
