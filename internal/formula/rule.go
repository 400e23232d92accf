package formula

import (
	"github.com/dbchase/chasecore/internal/chaseerr"
	"github.com/dbchase/chasecore/internal/term"
)

// Rule is (body, head, label?). NewRule enforces two structural
// invariants: every free variable of the head must also be free in the
// body (those shared variables are the frontier; the body may bind more,
// and existentials appear only inside head as ExistentialFormula), and no
// existential variable may appear free in body. Both are
// RuleValidationErrors, eager and fatal.
type Rule struct {
	Body  Formula
	Head  Formula
	Label string
}

// NewRule validates and constructs a Rule.
func NewRule(body, head Formula, label string) (*Rule, error) {
	bodyFree := body.FreeVariables()
	headFree := head.FreeVariables()

	for v := range headFree {
		if _, free := bodyFree[v]; !free {
			return nil, chaseerr.NewRuleValidationError(label,
				"head free variable "+v.Name()+" does not occur free in the body")
		}
	}

	existentials := existentialVariables(head)
	for v := range existentials {
		if _, free := bodyFree[v]; free {
			return nil, chaseerr.NewRuleValidationError(label,
				"existential variable "+v.Name()+" appears free in the body")
		}
	}

	return &Rule{Body: body, Head: head, Label: label}, nil
}

func sameVarSet(a, b map[*term.Variable]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if _, ok := b[v]; !ok {
			return false
		}
	}
	return true
}

// ExistentialVariables returns all variables bound by existential
// quantifiers in the rule's head.
func (r *Rule) ExistentialVariables() map[*term.Variable]struct{} {
	return existentialVariables(r.Head)
}

func existentialVariables(f Formula) map[*term.Variable]struct{} {
	out := make(map[*term.Variable]struct{})
	collectExistentials(f, out)
	return out
}

func collectExistentials(f Formula, out map[*term.Variable]struct{}) {
	switch v := f.(type) {
	case ExistentialFormula:
		out[v.Var] = struct{}{}
		collectExistentials(v.Inner, out)
	case UniversalFormula:
		collectExistentials(v.Inner, out)
	case ConjunctionFormula:
		collectExistentials(v.Left, out)
		collectExistentials(v.Right, out)
	case DisjunctionFormula:
		collectExistentials(v.Left, out)
		collectExistentials(v.Right, out)
	case NegationFormula:
		collectExistentials(v.Inner, out)
	}
}

// HeadDisjuncts returns the head viewed as an ordered list of
// disjunction-free formulas. Existential wrappers around a
// DisjunctionFormula are pushed inward so each disjunct keeps its
// existential scope; this matches how RuleSplit expects
// to consume the head one piece at a time.
func (r *Rule) HeadDisjuncts() []Formula {
	return headDisjuncts(r.Head, nil)
}

func headDisjuncts(f Formula, existentials []*term.Variable) []Formula {
	switch v := f.(type) {
	case DisjunctionFormula:
		left := headDisjuncts(v.Left, existentials)
		right := headDisjuncts(v.Right, existentials)
		return append(left, right...)
	case ExistentialFormula:
		return headDisjuncts(v.Inner, append(existentials, v.Var))
	default:
		out := f
		for i := len(existentials) - 1; i >= 0; i-- {
			out = ExistentialFormula{Var: existentials[i], Inner: out}
		}
		return []Formula{out}
	}
}

// NegativeConstraint is a body formula that a saturated store must never
// satisfy; RuleBase carries a set of these alongside its rules.
type NegativeConstraint struct {
	Body  Formula
	Label string
}

// RuleBase groups a rule set with its negative constraints.
type RuleBase struct {
	Rules               []*Rule
	NegativeConstraints []*NegativeConstraint
}

// NewRuleBase builds an empty RuleBase.
func NewRuleBase() *RuleBase {
	return &RuleBase{}
}

// AddRule appends a rule.
func (rb *RuleBase) AddRule(r *Rule) {
	rb.Rules = append(rb.Rules, r)
}

// AddNegativeConstraint appends a negative constraint.
func (rb *RuleBase) AddNegativeConstraint(nc *NegativeConstraint) {
	rb.NegativeConstraints = append(rb.NegativeConstraints, nc)
}
