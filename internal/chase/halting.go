package chase

import (
	"sync/atomic"
	"time"

	"github.com/dbchase/chasecore/internal/formula"
)

// HaltingCondition is one stop criterion evaluated at the top of every
// chase step. The engine ANDs every configured
// condition together: the chase halts as soon as any of them says stop.
type HaltingCondition interface {
	ShouldHalt(last *StepResult, step int, rb *formula.RuleBase, nextRules []*formula.Rule) bool
}

// All composes multiple conditions with logical OR over "halt": the
// chase stops as soon as any one of them returns true.
type All struct {
	Conditions []HaltingCondition
}

func NewAll(conditions ...HaltingCondition) *All { return &All{Conditions: conditions} }

func (a *All) ShouldHalt(last *StepResult, step int, rb *formula.RuleBase, nextRules []*formula.Rule) bool {
	for _, c := range a.Conditions {
		if c.ShouldHalt(last, step, rb, nextRules) {
			return true
		}
	}
	return false
}

// CreatedFactsAtPreviousStep halts once a step creates zero new facts
// (the classic chase-termination criterion). A step whose fact count is
// unknown (source-delegated applier) is treated as
// "progress may have happened" and never halts this condition.
type CreatedFactsAtPreviousStep struct{}

func (CreatedFactsAtPreviousStep) ShouldHalt(last *StepResult, step int, rb *formula.RuleBase, nextRules []*formula.Rule) bool {
	if last.isUnknown() {
		return false
	}
	if last.FactCountUnknown {
		return false
	}
	return len(last.CreatedFacts) == 0
}

// HasRulesToApply halts once the scheduler has nothing left to try.
type HasRulesToApply struct{}

func (HasRulesToApply) ShouldHalt(last *StepResult, step int, rb *formula.RuleBase, nextRules []*formula.Rule) bool {
	return len(nextRules) == 0
}

// LimitAtoms halts once the writing target holds at least Max atoms.
// It does not measure the target itself: it compares Max against the
// CurrentCount field, which the engine refreshes from the writing
// target's size before each check.
type LimitAtoms struct {
	Max          int
	CurrentCount int
}

func NewLimitAtoms(max int) *LimitAtoms { return &LimitAtoms{Max: max} }

func (l *LimitAtoms) ShouldHalt(last *StepResult, step int, rb *formula.RuleBase, nextRules []*formula.Rule) bool {
	return l.CurrentCount >= l.Max
}

// LimitNumberOfStep halts once the engine has run Max steps.
type LimitNumberOfStep struct {
	Max int
}

func NewLimitNumberOfStep(max int) *LimitNumberOfStep { return &LimitNumberOfStep{Max: max} }

func (l *LimitNumberOfStep) ShouldHalt(last *StepResult, step int, rb *formula.RuleBase, nextRules []*formula.Rule) bool {
	return l.Max > 0 && step >= l.Max
}

// Timeout halts once Deadline has passed, independent of step progress.
type Timeout struct {
	Deadline time.Time
}

func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		return &Timeout{}
	}
	return &Timeout{Deadline: time.Now().Add(d)}
}

func (t *Timeout) ShouldHalt(last *StepResult, step int, rb *formula.RuleBase, nextRules []*formula.Rule) bool {
	if t.Deadline.IsZero() {
		return false
	}
	return time.Now().After(t.Deadline)
}

// ExternalInterruption halts as soon as Flag is set, letting a caller
// (e.g. a CLI's signal handler) cooperatively stop a running chase.
type ExternalInterruption struct {
	Flag *atomic.Bool
}

func NewExternalInterruption(flag *atomic.Bool) *ExternalInterruption {
	return &ExternalInterruption{Flag: flag}
}

func (e *ExternalInterruption) ShouldHalt(last *StepResult, step int, rb *formula.RuleBase, nextRules []*formula.Rule) bool {
	return e.Flag != nil && e.Flag.Load()
}
