package chase

import (
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/term"
)

// Stratum is one slice of a stratified meta-chase: a rule base to
// saturate on its own before the next stratum runs.
type Stratum struct {
	RuleBase *formula.RuleBase
}

// Stratify splits a rule base into an ordered sequence of strata using
// the GRD: a predicate-dependency SCC analysis would give the coarsest
// valid stratification, but since GRDScheduler already approximates rule
// dependencies at the predicate level (and the trigger computer
// re-verifies every actual join), Stratify takes the simpler,
// always-correct "single evaluation" approach: order rules by the same
// head/body predicate dependency
// used by GRDScheduler, and only split into a new stratum when a rule
// would otherwise depend on a predicate produced by a rule not yet
// placed. This never produces more strata than strictly necessary for
// rules that genuinely chain, but may lump independent rules into one
// stratum rather than running them in full parallel isolation — a
// correctness-preserving, non-minimal stratification.
func Stratify(rb *formula.RuleBase) []*Stratum {
	if len(rb.Rules) == 0 {
		return nil
	}

	headPreds := make(map[*formula.Rule]map[string]struct{})
	bodyPreds := make(map[*formula.Rule]map[string]struct{})
	for _, r := range rb.Rules {
		hp := make(map[string]struct{})
		for _, d := range r.HeadDisjuncts() {
			for _, a := range d.Atoms() {
				hp[a.Predicate.String()] = struct{}{}
			}
		}
		headPreds[r] = hp
		bp := make(map[string]struct{})
		for _, a := range r.Body.Atoms() {
			bp[a.Predicate.String()] = struct{}{}
		}
		bodyPreds[r] = bp
	}

	placed := make(map[*formula.Rule]int)
	var strata [][]*formula.Rule

	remaining := append([]*formula.Rule(nil), rb.Rules...)
	for len(remaining) > 0 {
		var placedThisRound []*formula.Rule
		var stillRemaining []*formula.Rule
		stratumIndex := len(strata)

		for _, r := range remaining {
			dependsOnUnplaced := false
			for pred := range bodyPreds[r] {
				for _, other := range rb.Rules {
					if other == r {
						continue
					}
					if _, produces := headPreds[other][pred]; !produces {
						continue
					}
					if idx, ok := placed[other]; ok && idx == stratumIndex {
						dependsOnUnplaced = true
					}
					if _, ok := placed[other]; !ok {
						dependsOnUnplaced = true
					}
				}
			}
			if dependsOnUnplaced {
				stillRemaining = append(stillRemaining, r)
				continue
			}
			placedThisRound = append(placedThisRound, r)
		}

		if len(placedThisRound) == 0 {
			// Cyclic dependency among the remainder (mutual recursion): the
			// cycle must saturate together, so place everything left in one
			// final stratum rather than looping forever.
			placedThisRound = stillRemaining
			stillRemaining = nil
		}

		for _, r := range placedThisRound {
			placed[r] = stratumIndex
		}
		strata = append(strata, placedThisRound)
		remaining = stillRemaining
	}

	out := make([]*Stratum, len(strata))
	for i, rules := range strata {
		srb := formula.NewRuleBase()
		srb.Rules = rules
		if i == len(strata)-1 {
			srb.NegativeConstraints = rb.NegativeConstraints
		}
		out[i] = &Stratum{RuleBase: srb}
	}
	return out
}

// RunStratified runs one inner Engine per stratum, sharing the same
// writing target across all of them. Each stratum reaches its own
// fixpoint before the next begins. When finalPredicates is non-empty, a
// predicate filter projects intermediate predicates away at the earliest
// stratum boundary where no later stratum can still read them; with it
// empty, nothing is ever dropped. buildEngine must
// return a fresh Engine configured with the same policy components,
// pointed at stratum.RuleBase, for every stratum.
func RunStratified(strata []*Stratum, finalPredicates []*term.Predicate, buildEngine func(*Stratum) *Engine) ([]*RunResult, error) {
	final := make(map[*term.Predicate]struct{}, len(finalPredicates))
	for _, p := range finalPredicates {
		final[p] = struct{}{}
	}

	results := make([]*RunResult, 0, len(strata))
	for i, s := range strata {
		e := buildEngine(s)
		res, err := e.Run()
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if len(final) == 0 {
			continue
		}
		drop := droppablePredicates(e.Chasable.WritingTarget, final, strata[i+1:])
		if len(drop) == 0 {
			continue
		}
		filter := NewPredicateFilterEndTreatment(drop, res.Steps)
		if err := filter.Apply(res.Steps, res.LastResult, e.Chasable.WritingTarget); err != nil {
			return results, err
		}
	}
	return results, nil
}

// droppablePredicates lists the target's predicates that are neither
// final nor mentioned anywhere in a later stratum's rules, i.e. the
// intermediate results no remaining computation can observe.
func droppablePredicates(target store.MaterializedData, final map[*term.Predicate]struct{}, later []*Stratum) []*term.Predicate {
	needed := make(map[string]struct{})
	for _, s := range later {
		for _, r := range s.RuleBase.Rules {
			for _, a := range r.Body.Atoms() {
				needed[a.Predicate.String()] = struct{}{}
			}
			for _, d := range r.HeadDisjuncts() {
				for _, a := range d.Atoms() {
					needed[a.Predicate.String()] = struct{}{}
				}
			}
		}
	}
	var out []*term.Predicate
	for _, p := range target.GetPredicates() {
		if _, keep := final[p]; keep {
			continue
		}
		if _, used := needed[p.String()]; used {
			continue
		}
		out = append(out, p)
	}
	return out
}
