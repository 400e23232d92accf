// Package chase implements the existential-rules saturation engine: a
// scheduler chooses candidate rules, a trigger computer finds body
// matches, a trigger checker filters redundant ones, and a trigger
// applier materializes head atoms under a configurable renaming
// discipline for existential variables.
package chase

import (
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/subst"
	"github.com/dbchase/chasecore/internal/term"
)

// Trigger is a (rule, body-substitution) pair: one potential rule firing.
type Trigger struct {
	Rule *formula.Rule
	Sub  *subst.Substitution
}

// StepResult is the outcome of one chase step. AppliedRules and
// CreatedFacts are both nil before the first step ("unknown").
// A facts handler that defers target writes (Delegated)
// leaves CreatedFacts populated and the target untouched until an
// AddCreatedFacts treatment runs.
type StepResult struct {
	AppliedRules map[*formula.Rule]struct{}
	CreatedFacts []term.Atom
	// FactCountUnknown marks a step whose created-fact count cannot be
	// determined (source-delegated datalog applier): the
	// fixpoint detector must treat a step with FactCountUnknown as "maybe
	// progress" rather than assuming zero.
	FactCountUnknown bool
}

func (s *StepResult) isUnknown() bool { return s == nil }

// RuleGroup gathers rules that share a structurally identical body, so a
// single trigger-computation pass can serve every rule in the group.
type RuleGroup struct {
	Body  formula.Formula
	Rules []*formula.Rule
}

// GroupByBody partitions a rule base's rules into RuleGroups keyed by
// body.String(), preserving first-seen order for determinism.
func GroupByBody(rules []*formula.Rule) []*RuleGroup {
	index := make(map[string]int)
	var groups []*RuleGroup
	for _, r := range rules {
		key := r.Body.String()
		if i, ok := index[key]; ok {
			groups[i].Rules = append(groups[i].Rules, r)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, &RuleGroup{Body: r.Body, Rules: []*formula.Rule{r}})
	}
	return groups
}

// headAtoms extracts the ground-able atoms of a rule's head under sub,
// using only the rule's first head disjunct: the engine does not branch
// the chase over true disjunctive heads (RuleSplit normalizes the common
// conjunctive case into single-piece rules before this ever matters).
func headAtoms(r *formula.Rule, sub *subst.Substitution) []term.Atom {
	disjuncts := r.HeadDisjuncts()
	if len(disjuncts) == 0 {
		return nil
	}
	atoms := disjuncts[0].Atoms()
	out := make([]term.Atom, 0, len(atoms))
	for _, a := range atoms {
		out = append(out, sub.ApplyAtom(a))
	}
	return out
}
