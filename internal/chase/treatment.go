package chase

import (
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/logging"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/term"
)

// GlobalPretreatment runs once, before the first chase step.
type GlobalPretreatment interface {
	Apply(rb *formula.RuleBase) (*formula.RuleBase, error)
}

// StepPretreatment runs at the top of every step, before the scheduler is
// consulted.
type StepPretreatment interface {
	Apply(step int, target store.WritableMaterializedData) error
}

// EndOfStepTreatment runs after a step's trigger applier has returned its
// StepResult.
type EndOfStepTreatment interface {
	Apply(step int, result *StepResult, target store.WritableMaterializedData) error
}

// GlobalEndTreatment runs once, after the engine's halting conditions
// report done.
type GlobalEndTreatment interface {
	Apply(target store.WritableMaterializedData) error
}

// RuleSplit rewrites every rule whose head has more than one piece (a
// maximal group of head atoms connected through shared existential
// variables) into one rule per piece, all sharing the original body.
// This is what lets headAtoms/RestrictedChecker/renamers treat "the
// head" as a single connected unit without tracking disjunctive
// branching.
type RuleSplit struct{}

func (RuleSplit) Apply(rb *formula.RuleBase) (*formula.RuleBase, error) {
	out := formula.NewRuleBase()
	out.NegativeConstraints = rb.NegativeConstraints
	for _, r := range rb.Rules {
		pieces, err := splitRule(r)
		if err != nil {
			return nil, err
		}
		out.Rules = append(out.Rules, pieces...)
	}
	return out, nil
}

func splitRule(r *formula.Rule) ([]*formula.Rule, error) {
	disjuncts := r.HeadDisjuncts()
	if len(disjuncts) != 1 {
		// A genuinely disjunctive head is left untouched: splitting across
		// disjuncts would change the rule's semantics, not just its shape.
		return []*formula.Rule{r}, nil
	}
	pieces := pieceAtoms(disjuncts[0])
	if len(pieces) <= 1 {
		return []*formula.Rule{r}, nil
	}
	rules := make([]*formula.Rule, 0, len(pieces))
	for i, piece := range pieces {
		head := pieceHead(piece, r.ExistentialVariables())
		nr, err := formula.NewRule(r.Body, head, piecesLabel(r.Label, i))
		if err != nil {
			return nil, err
		}
		rules = append(rules, nr)
	}
	return rules, nil
}

func piecesLabel(label string, i int) string {
	if label == "" {
		return label
	}
	suffix := []byte("#0")
	suffix[1] = byte('0' + i%10)
	return label + string(suffix)
}

// pieceAtoms groups a head disjunct's atoms into maximal connected
// components over shared existential variables; atoms touching no
// existential variable each form their own singleton piece.
func pieceAtoms(head formula.Formula) [][]term.Atom {
	atoms := head.Atoms()
	existentials := existentialVarsOf(head)

	parent := make([]int, len(atoms))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	varOwner := make(map[*term.Variable]int)
	for i, a := range atoms {
		for _, t := range a.Terms {
			v, ok := t.(*term.Variable)
			if !ok {
				continue
			}
			if _, isExistential := existentials[v]; !isExistential {
				continue
			}
			if owner, seen := varOwner[v]; seen {
				union(owner, i)
			} else {
				varOwner[v] = i
			}
		}
	}

	groups := make(map[int][]term.Atom)
	var order []int
	for i, a := range atoms {
		root := find(i)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], a)
	}
	out := make([][]term.Atom, 0, len(order))
	for _, root := range order {
		out = append(out, groups[root])
	}
	return out
}

func existentialVarsOf(f formula.Formula) map[*term.Variable]struct{} {
	out := make(map[*term.Variable]struct{})
	for v := range f.BoundVariables() {
		out[v] = struct{}{}
	}
	return out
}

func pieceHead(atoms []term.Atom, existentials map[*term.Variable]struct{}) formula.Formula {
	forms := make([]formula.Formula, len(atoms))
	for i, a := range atoms {
		forms[i] = formula.AtomFormula{Atom: a}
	}
	conj := formula.Conjoin(forms)
	used := make(map[*term.Variable]struct{})
	for _, a := range atoms {
		for _, t := range a.Terms {
			if v, ok := t.(*term.Variable); ok {
				if _, ok := existentials[v]; ok {
					used[v] = struct{}{}
				}
			}
		}
	}
	out := conj
	for v := range used {
		out = formula.ExistentialFormula{Var: v, Inner: out}
	}
	return out
}

// AddCreatedFacts merges a step's CreatedFacts into the writing target.
// Required after DelegatedApplication, whose whole point is to defer the
// write.
type AddCreatedFacts struct{}

func (AddCreatedFacts) Apply(step int, result *StepResult, target store.WritableMaterializedData) error {
	if result == nil {
		return nil
	}
	_, err := target.AddAll(result.CreatedFacts)
	return err
}

// CoreProcessor computes the core of a materialized store (a minimal
// homomorphically equivalent substore), used by ComputeCore/
// ComputeLocalCore.
type CoreProcessor interface {
	ComputeCore(target store.WritableMaterializedData) error
}

// ComputeCore runs core reduction once, as a global end treatment.
type ComputeCore struct {
	Processor CoreProcessor
}

func (c ComputeCore) Apply(target store.WritableMaterializedData) error {
	return c.Processor.ComputeCore(target)
}

// ComputeLocalCore runs core reduction after every step, keeping the
// target small throughout the chase rather than only at the end.
type ComputeLocalCore struct {
	Processor CoreProcessor
}

func (c ComputeLocalCore) Apply(step int, result *StepResult, target store.WritableMaterializedData) error {
	return c.Processor.ComputeCore(target)
}

// PredicateFilterEndTreatment drops every atom whose predicate is in
// Predicates, once the engine reaches StepNumber. Used by the stratified
// meta-chase to project away intermediate predicates at stratum
// boundaries.
type PredicateFilterEndTreatment struct {
	Predicates map[*term.Predicate]struct{}
	StepNumber int
}

func NewPredicateFilterEndTreatment(predicates []*term.Predicate, atStep int) *PredicateFilterEndTreatment {
	set := make(map[*term.Predicate]struct{}, len(predicates))
	for _, p := range predicates {
		set[p] = struct{}{}
	}
	return &PredicateFilterEndTreatment{Predicates: set, StepNumber: atStep}
}

func (p *PredicateFilterEndTreatment) Apply(step int, result *StepResult, target store.WritableMaterializedData) error {
	if step != p.StepNumber {
		return nil
	}
	it := target.Iterate()
	var toRemove []term.Atom
	for {
		a, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if _, drop := p.Predicates[a.Predicate]; drop {
			toRemove = append(toRemove, a)
		}
	}
	return target.RemoveAll(toRemove)
}

// Debug logs per-step statistics through internal/logging, mirroring how
// the rest of the engine reports progress.
type Debug struct{}

func (Debug) Apply(step int, result *StepResult, target store.WritableMaterializedData) error {
	if result == nil {
		logging.ChaseDebug("step %d: initial state", step)
		return nil
	}
	logging.ChaseDebug("step %d: applied %d rules, created %d facts", step, len(result.AppliedRules), len(result.CreatedFacts))
	return nil
}
