package chase

import (
	"github.com/dbchase/chasecore/internal/eval"
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/term"
)

// Engine ties a rule base, a chasable data pair, and a configured set of
// policy components into the main chase loop:
//
//	apply_global_pretreatments
//	while not halting:
//	    apply_step_pretreatments
//	    rules <- scheduler.RulesToApply(last)
//	    last  <- applier.Apply(rules, chasableData)
//	    apply_end_of_step_treatments
//	apply_global_end_treatments
type Engine struct {
	Chasable *store.ChasableData
	Session  *term.Session
	RuleBase *formula.RuleBase

	Scheduler       Scheduler
	TriggerComputer TriggerComputer
	TriggerChecker  TriggerChecker
	Renamer         Renamer
	FactsHandler    FactsHandler
	Applier         RuleApplier
	Halting         HaltingCondition

	GlobalPretreatments []GlobalPretreatment
	StepPretreatments   []StepPretreatment
	EndOfStepTreatments []EndOfStepTreatment
	GlobalEndTreatments []GlobalEndTreatment
}

// RunResult summarizes a completed chase run.
type RunResult struct {
	Steps      int
	LastResult *StepResult
}

// Run executes the chase loop to completion (or until a halting condition
// fires) and returns the number of steps taken.
func (e *Engine) Run() (*RunResult, error) {
	rb := e.RuleBase
	for _, pre := range e.GlobalPretreatments {
		next, err := pre.Apply(rb)
		if err != nil {
			return nil, err
		}
		rb = next
	}

	if err := e.Scheduler.Init(rb); err != nil {
		return nil, err
	}

	ev := eval.NewWithSession(e.Chasable.MergedView(), e.Session)

	var last *StepResult
	var lastStepFacts []term.Atom
	step := 0

	for {
		nextRules := e.Scheduler.RulesToApply(last)
		if lc, ok := findLimitAtoms(e.Halting); ok {
			lc.CurrentCount = countAtoms(e.Chasable.WritingTarget)
		}
		if e.Halting.ShouldHalt(last, step, rb, nextRules) {
			break
		}

		for _, pre := range e.StepPretreatments {
			if err := pre.Apply(step, e.Chasable.WritingTarget); err != nil {
				return nil, err
			}
		}

		groups := GroupByBody(nextRules)
		result, err := e.Applier.Apply(step, groups, ev, e.Chasable.WritingTarget, lastStepFacts, e.Session,
			e.TriggerComputer, e.TriggerChecker, e.Renamer, e.FactsHandler)
		if err != nil {
			return nil, err
		}

		for _, t := range e.EndOfStepTreatments {
			if err := t.Apply(step, result, e.Chasable.WritingTarget); err != nil {
				return nil, err
			}
		}

		last = result
		lastStepFacts = result.CreatedFacts
		step++
	}

	for _, post := range e.GlobalEndTreatments {
		if err := post.Apply(e.Chasable.WritingTarget); err != nil {
			return nil, err
		}
	}

	return &RunResult{Steps: step, LastResult: last}, nil
}

func countAtoms(target store.MaterializedData) int {
	it := target.Iterate()
	n := 0
	for {
		_, ok, err := it.Next()
		if err != nil || !ok {
			break
		}
		n++
	}
	return n
}

// findLimitAtoms walks an All-composed halting condition tree looking for
// a LimitAtoms so Run can refresh its CurrentCount every step.
func findLimitAtoms(h HaltingCondition) (*LimitAtoms, bool) {
	switch v := h.(type) {
	case *LimitAtoms:
		return v, true
	case *All:
		for _, c := range v.Conditions {
			if lc, ok := findLimitAtoms(c); ok {
				return lc, true
			}
		}
	}
	return nil, false
}
