package chase

import (
	"github.com/dbchase/chasecore/internal/formula"
)

// Scheduler decides which rules the next step should try, given the
// previous step's result (nil before the first step). Every scheduler
// must return the full rule base on the first call.
type Scheduler interface {
	Init(rb *formula.RuleBase) error
	RulesToApply(last *StepResult) []*formula.Rule
}

// NaiveScheduler always returns the full rule base.
type NaiveScheduler struct {
	rules []*formula.Rule
}

func NewNaiveScheduler() *NaiveScheduler { return &NaiveScheduler{} }

func (s *NaiveScheduler) Init(rb *formula.RuleBase) error {
	s.rules = rb.Rules
	return nil
}

func (s *NaiveScheduler) RulesToApply(last *StepResult) []*formula.Rule {
	return s.rules
}

// ByPredicateScheduler indexes each rule by the predicates referenced in
// its body, and returns only the rules whose body mentions a predicate
// that the previous step newly produced.
type ByPredicateScheduler struct {
	rules        []*formula.Rule
	byPredicate  map[string][]*formula.Rule
}

func NewByPredicateScheduler() *ByPredicateScheduler { return &ByPredicateScheduler{} }

func (s *ByPredicateScheduler) Init(rb *formula.RuleBase) error {
	s.rules = rb.Rules
	s.byPredicate = make(map[string][]*formula.Rule)
	for _, r := range rb.Rules {
		seen := make(map[string]struct{})
		for _, a := range r.Body.Atoms() {
			key := a.Predicate.String()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			s.byPredicate[key] = append(s.byPredicate[key], r)
		}
	}
	return nil
}

func (s *ByPredicateScheduler) RulesToApply(last *StepResult) []*formula.Rule {
	if last.isUnknown() {
		return s.rules
	}
	seenPred := make(map[string]struct{})
	for _, atom := range last.CreatedFacts {
		seenPred[atom.Predicate.String()] = struct{}{}
	}
	seenRule := make(map[*formula.Rule]struct{})
	var out []*formula.Rule
	for pred := range seenPred {
		for _, r := range s.byPredicate[pred] {
			if _, ok := seenRule[r]; ok {
				continue
			}
			seenRule[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

// GRDScheduler precomputes the Graph of Rule Dependencies at Init: an edge
// r1 -> r2 exists iff some predicate in r1's head also appears in r2's
// body (a predicate-level approximation of "r1's head can unify with an
// atom in r2's body after renaming", sufficient for scheduling purposes
// since the trigger computer re-verifies the actual join). RulesToApply
// returns the union of successors of every rule applied in the last step.
type GRDScheduler struct {
	rules     []*formula.Rule
	successors map[*formula.Rule][]*formula.Rule
}

func NewGRDScheduler() *GRDScheduler { return &GRDScheduler{} }

func (s *GRDScheduler) Init(rb *formula.RuleBase) error {
	s.rules = rb.Rules
	s.successors = make(map[*formula.Rule][]*formula.Rule)

	headPredicates := make(map[*formula.Rule]map[string]struct{})
	bodyPredicates := make(map[*formula.Rule]map[string]struct{})
	for _, r := range rb.Rules {
		hp := make(map[string]struct{})
		for _, d := range r.HeadDisjuncts() {
			for _, a := range d.Atoms() {
				hp[a.Predicate.String()] = struct{}{}
			}
		}
		headPredicates[r] = hp

		bp := make(map[string]struct{})
		for _, a := range r.Body.Atoms() {
			bp[a.Predicate.String()] = struct{}{}
		}
		bodyPredicates[r] = bp
	}

	for _, r1 := range rb.Rules {
		for _, r2 := range rb.Rules {
			for pred := range headPredicates[r1] {
				if _, ok := bodyPredicates[r2][pred]; ok {
					s.successors[r1] = append(s.successors[r1], r2)
					break
				}
			}
		}
	}
	return nil
}

func (s *GRDScheduler) RulesToApply(last *StepResult) []*formula.Rule {
	if last.isUnknown() {
		return s.rules
	}
	seen := make(map[*formula.Rule]struct{})
	var out []*formula.Rule
	for r := range last.AppliedRules {
		for _, succ := range s.successors[r] {
			if _, ok := seen[succ]; ok {
				continue
			}
			seen[succ] = struct{}{}
			out = append(out, succ)
		}
	}
	return out
}
