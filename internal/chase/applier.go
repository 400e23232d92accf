package chase

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dbchase/chasecore/internal/eval"
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/term"
)

// RuleApplier runs one chase step: for every group it asks the trigger
// computer for candidate substitutions, filters them through the trigger
// checker, renames existentials, and hands the resulting atoms to the
// facts handler.
type RuleApplier interface {
	Apply(step int, groups []*RuleGroup, ev *eval.Evaluator, target store.WritableMaterializedData,
		lastStepFacts []term.Atom, sess *term.Session,
		computer TriggerComputer, checker TriggerChecker, renamer Renamer, handler FactsHandler) (*StepResult, error)
}

func applyGroup(group *RuleGroup, ev *eval.Evaluator, full store.Data, target store.WritableMaterializedData,
	lastStepFacts []term.Atom, sess *term.Session,
	computer TriggerComputer, checker TriggerChecker, renamer Renamer, handler FactsHandler) (map[*formula.Rule]struct{}, []term.Atom, error) {

	perRule, err := computer.Compute(group, ev, full, lastStepFacts)
	if err != nil {
		return nil, nil, err
	}

	applied := make(map[*formula.Rule]struct{})
	var created []term.Atom
	for r, subs := range perRule {
		for _, sub := range subs {
			if !checker.ShouldFire(r, sub, target) {
				continue
			}
			renamed := renamer.Rename(r, sub, sess)
			atoms := headAtoms(r, renamed)
			added, err := handler.Apply(target, atoms)
			if err != nil {
				return applied, created, err
			}
			if len(added) > 0 {
				applied[r] = struct{}{}
				created = append(created, added...)
			}
		}
	}
	return applied, created, nil
}

// SequentialRuleApplier processes every rule group one after another, in
// GroupByBody order.
type SequentialRuleApplier struct{}

func (SequentialRuleApplier) Apply(step int, groups []*RuleGroup, ev *eval.Evaluator, target store.WritableMaterializedData,
	lastStepFacts []term.Atom, sess *term.Session,
	computer TriggerComputer, checker TriggerChecker, renamer Renamer, handler FactsHandler) (*StepResult, error) {

	result := &StepResult{AppliedRules: make(map[*formula.Rule]struct{})}
	var full store.Data = target
	for _, group := range groups {
		applied, created, err := applyGroup(group, ev, full, target, lastStepFacts, sess, computer, checker, renamer, handler)
		if err != nil {
			return result, err
		}
		for r := range applied {
			result.AppliedRules[r] = struct{}{}
		}
		result.CreatedFacts = append(result.CreatedFacts, created...)
	}
	return result, nil
}

// MultiThreadRuleApplier runs rule groups concurrently, bounded by
// MaxWorkers, serializing writes to target with a single mutex
// (concurrent trigger computation is safe, but applying triggers
// against the shared target is not). A group's internal trigger order
// still applies sequentially; only groups race each other.
type MultiThreadRuleApplier struct {
	MaxWorkers int
	mu         sync.Mutex
}

func NewMultiThreadRuleApplier(maxWorkers int) *MultiThreadRuleApplier {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &MultiThreadRuleApplier{MaxWorkers: maxWorkers}
}

func (m *MultiThreadRuleApplier) Apply(step int, groups []*RuleGroup, ev *eval.Evaluator, target store.WritableMaterializedData,
	lastStepFacts []term.Atom, sess *term.Session,
	computer TriggerComputer, checker TriggerChecker, renamer Renamer, handler FactsHandler) (*StepResult, error) {

	var full store.Data = target

	workers := m.MaxWorkers
	if workers > 32 {
		workers = 32
	}
	if workers > len(groups) {
		workers = len(groups)
	}
	if workers < 1 {
		workers = 1
	}

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(workers)

	result := &StepResult{AppliedRules: make(map[*formula.Rule]struct{})}
	var resultMu sync.Mutex
	var errs error
	var errsMu sync.Mutex

	for _, group := range groups {
		group := group
		g.Go(func() error {
			perRule, err := computer.Compute(group, ev, full, lastStepFacts)
			if err != nil {
				return err
			}
			for r, subs := range perRule {
				for _, sub := range subs {
					m.mu.Lock()
					fire := checker.ShouldFire(r, sub, target)
					var added []term.Atom
					var applyErr error
					if fire {
						renamed := renamer.Rename(r, sub, sess)
						atoms := headAtoms(r, renamed)
						added, applyErr = handler.Apply(target, atoms)
					}
					m.mu.Unlock()
					if applyErr != nil {
						errsMu.Lock()
						errs = multierr.Append(errs, applyErr)
						errsMu.Unlock()
						continue
					}
					if len(added) > 0 {
						resultMu.Lock()
						result.AppliedRules[r] = struct{}{}
						result.CreatedFacts = append(result.CreatedFacts, added...)
						resultMu.Unlock()
					}
				}
			}
			return nil
		})
	}

	waitErr := g.Wait()
	return result, multierr.Append(waitErr, errs)
}
