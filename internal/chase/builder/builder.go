// Package builder assembles a chase.Engine from named policy components:
// a staged, fluent setter API with sensible defaults, refusing to build
// without a chasable data and a rule base set. FromConfig resolves a config.ChaseConfig's policy-name
// strings into the concrete chase.* implementations they name.
package builder

import (
	"time"

	"github.com/dbchase/chasecore/internal/chase"
	"github.com/dbchase/chasecore/internal/chaseerr"
	"github.com/dbchase/chasecore/internal/config"
	"github.com/dbchase/chasecore/internal/eval"
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/term"
)

// ChaseBuilder accumulates policy components and produces a runnable
// chase.Engine. Every With* method returns the receiver so calls chain.
type ChaseBuilder struct {
	sess     *term.Session
	ruleBase *formula.RuleBase
	chasable *store.ChasableData

	scheduler       chase.Scheduler
	triggerComputer chase.TriggerComputer
	triggerChecker  chase.TriggerChecker
	renamer         chase.Renamer
	factsHandler    chase.FactsHandler
	applier         chase.RuleApplier

	globalPre []chase.GlobalPretreatment
	stepPre   []chase.StepPretreatment
	endStep   []chase.EndOfStepTreatment
	globalEnd []chase.GlobalEndTreatment

	halting []chase.HaltingCondition
}

// New starts a builder over sess. Policy components default to a
// correct-but-unoptimized baseline composition: naive scheduler,
// semi-naive computer, oblivious checker, fresh renamer, direct facts
// handler, sequential applier, halt on a fixpoint step.
func New(sess *term.Session) *ChaseBuilder {
	return &ChaseBuilder{
		sess:            sess,
		scheduler:       chase.NewNaiveScheduler(),
		triggerComputer: chase.SemiNaiveTriggerComputer{},
		triggerChecker:  chase.NewObliviousChecker(),
		renamer:         chase.NewFreshRenamer(sess),
		factsHandler:    chase.DirectApplication{},
		applier:         chase.SequentialRuleApplier{},
	}
}

func (b *ChaseBuilder) WithRuleBase(rb *formula.RuleBase) *ChaseBuilder {
	b.ruleBase = rb
	return b
}

func (b *ChaseBuilder) WithChasable(c *store.ChasableData) *ChaseBuilder {
	b.chasable = c
	return b
}

func (b *ChaseBuilder) WithScheduler(s chase.Scheduler) *ChaseBuilder {
	b.scheduler = s
	return b
}

func (b *ChaseBuilder) WithTriggerComputer(c chase.TriggerComputer) *ChaseBuilder {
	b.triggerComputer = c
	return b
}

func (b *ChaseBuilder) WithTriggerChecker(c chase.TriggerChecker) *ChaseBuilder {
	b.triggerChecker = c
	return b
}

func (b *ChaseBuilder) WithRenamer(r chase.Renamer) *ChaseBuilder {
	b.renamer = r
	return b
}

func (b *ChaseBuilder) WithFactsHandler(h chase.FactsHandler) *ChaseBuilder {
	b.factsHandler = h
	return b
}

func (b *ChaseBuilder) WithApplier(a chase.RuleApplier) *ChaseBuilder {
	b.applier = a
	return b
}

func (b *ChaseBuilder) WithParallelApplier(maxWorkers int) *ChaseBuilder {
	b.applier = chase.NewMultiThreadRuleApplier(maxWorkers)
	return b
}

func (b *ChaseBuilder) AddGlobalPretreatment(p chase.GlobalPretreatment) *ChaseBuilder {
	b.globalPre = append(b.globalPre, p)
	return b
}

func (b *ChaseBuilder) AddStepPretreatment(p chase.StepPretreatment) *ChaseBuilder {
	b.stepPre = append(b.stepPre, p)
	return b
}

func (b *ChaseBuilder) AddEndOfStepTreatment(t chase.EndOfStepTreatment) *ChaseBuilder {
	b.endStep = append(b.endStep, t)
	return b
}

func (b *ChaseBuilder) AddGlobalEndTreatment(t chase.GlobalEndTreatment) *ChaseBuilder {
	b.globalEnd = append(b.globalEnd, t)
	return b
}

func (b *ChaseBuilder) AddHaltingCondition(h chase.HaltingCondition) *ChaseBuilder {
	b.halting = append(b.halting, h)
	return b
}

// Build validates the accumulated configuration and returns a
// chase.Engine. At minimum a chasable data and a rule base must have
// been set; with no halting condition added, Build falls back to
// CreatedFactsAtPreviousStep + HasRulesToApply so a built engine can
// always terminate on a genuine fixpoint.
func (b *ChaseBuilder) Build() (*chase.Engine, error) {
	if b.chasable == nil {
		return nil, chaseerr.NewConfigurationError("builder.Build", "chasable data not set")
	}
	if b.ruleBase == nil {
		return nil, chaseerr.NewConfigurationError("builder.Build", "rule base not set")
	}

	halting := b.halting
	if len(halting) == 0 {
		halting = []chase.HaltingCondition{
			chase.CreatedFactsAtPreviousStep{},
			chase.HasRulesToApply{},
		}
	}

	if ec, ok := b.triggerChecker.(*chase.EquivalentChecker); ok {
		ec.SetEvaluator(eval.NewWithSession(b.chasable.MergedView(), b.sess))
	}

	endStep := b.endStep
	if _, delegated := b.factsHandler.(chase.DelegatedApplication); delegated && !hasAddCreatedFacts(endStep) {
		// Delegated application never touches the target itself; without
		// this treatment the chase would discard every derived fact.
		endStep = append(endStep, chase.AddCreatedFacts{})
	}

	handler := b.factsHandler
	for _, src := range b.chasable.DataSources {
		if cs, ok := src.(*store.ComputedPredicateSource); ok {
			handler = chase.EagerFunctionEvaluation{Inner: handler, Functions: cs}
			break
		}
	}

	return &chase.Engine{
		Chasable:        b.chasable,
		Session:         b.sess,
		RuleBase:        b.ruleBase,
		Scheduler:       b.scheduler,
		TriggerComputer: b.triggerComputer,
		TriggerChecker:  b.triggerChecker,
		Renamer:         b.renamer,
		FactsHandler:    handler,
		Applier:         b.applier,
		Halting:         chase.NewAll(halting...),

		GlobalPretreatments: b.globalPre,
		StepPretreatments:   b.stepPre,
		EndOfStepTreatments: endStep,
		GlobalEndTreatments: b.globalEnd,
	}, nil
}

func hasAddCreatedFacts(treatments []chase.EndOfStepTreatment) bool {
	for _, t := range treatments {
		if _, ok := t.(chase.AddCreatedFacts); ok {
			return true
		}
	}
	return false
}

// FromConfig builds a ChaseBuilder pre-populated from cfg's named policy
// strings (the scheduler/trigger_computer/trigger_checker/renamer/
// facts_handler fields config.Validate already checks are one of a known
// set), plus its resource-limit halting conditions and RuleSplit/core
// pretreatment toggles. The caller still must call WithRuleBase/WithChasable
// before Build.
func FromConfig(sess *term.Session, cfg *config.ChaseConfig) (*ChaseBuilder, error) {
	b := New(sess)

	switch cfg.Scheduler {
	case "naive", "":
		b.WithScheduler(chase.NewNaiveScheduler())
	case "by_predicate":
		b.WithScheduler(chase.NewByPredicateScheduler())
	case "grd":
		b.WithScheduler(chase.NewGRDScheduler())
	default:
		return nil, chaseerr.NewConfigurationError("builder.FromConfig", "unknown scheduler "+cfg.Scheduler)
	}

	switch cfg.TriggerComputer {
	case "naive":
		b.WithTriggerComputer(chase.NaiveTriggerComputer{})
	case "semi_naive", "":
		b.WithTriggerComputer(chase.SemiNaiveTriggerComputer{})
	case "two_steps":
		b.WithTriggerComputer(chase.TwoStepsTriggerComputer{})
	case "restricted":
		b.WithTriggerComputer(chase.RestrictedTriggerComputer{})
	default:
		return nil, chaseerr.NewConfigurationError("builder.FromConfig", "unknown trigger computer "+cfg.TriggerComputer)
	}

	switch cfg.TriggerChecker {
	case "always_true":
		b.WithTriggerChecker(chase.AlwaysTrueChecker{})
	case "oblivious", "":
		b.WithTriggerChecker(chase.NewObliviousChecker())
	case "semi_oblivious":
		b.WithTriggerChecker(chase.NewSemiObliviousChecker())
	case "restricted":
		b.WithTriggerChecker(chase.RestrictedChecker{})
	case "equivalent":
		// The real evaluator isn't known until WithChasable has run, so
		// Build wires it in via SetEvaluator once the chasable data exists.
		b.WithTriggerChecker(chase.NewEquivalentChecker(nil))
	case "multi":
		b.WithTriggerChecker(chase.NewMultiChecker(chase.NewSemiObliviousChecker(), chase.RestrictedChecker{}))
	default:
		return nil, chaseerr.NewConfigurationError("builder.FromConfig", "unknown trigger checker "+cfg.TriggerChecker)
	}

	switch cfg.Renamer {
	case "fresh", "":
		b.WithRenamer(chase.NewFreshRenamer(sess))
	case "pseudo_skolem_body":
		b.WithRenamer(chase.NewBodyPseudoSkolemRenamer(sess))
	case "pseudo_skolem_frontier":
		b.WithRenamer(chase.NewFrontierPseudoSkolemRenamer(sess))
	case "pseudo_skolem_frontier_by_piece":
		b.WithRenamer(chase.NewFrontierByPiecePseudoSkolemRenamer(sess))
	case "true_skolem_body":
		b.WithRenamer(chase.NewBodyTrueSkolemRenamer())
	case "true_skolem_frontier":
		b.WithRenamer(chase.NewFrontierTrueSkolemRenamer())
	case "true_skolem_frontier_by_piece":
		b.WithRenamer(chase.NewFrontierByPieceTrueSkolemRenamer())
	default:
		return nil, chaseerr.NewConfigurationError("builder.FromConfig", "unknown renamer "+cfg.Renamer)
	}

	switch cfg.FactsHandler {
	case "direct", "":
		b.WithFactsHandler(chase.DirectApplication{})
	case "delegated":
		b.WithFactsHandler(chase.DelegatedApplication{})
	default:
		return nil, chaseerr.NewConfigurationError("builder.FromConfig", "unknown facts handler "+cfg.FactsHandler)
	}

	if cfg.Parallel {
		b.WithParallelApplier(cfg.MaxWorkers)
	}

	if cfg.RuleSplit {
		b.AddGlobalPretreatment(chase.RuleSplit{})
	}
	if cfg.Debug {
		b.AddEndOfStepTreatment(chase.Debug{})
	}
	if cfg.ComputeCore {
		b.AddGlobalEndTreatment(chase.ComputeCore{Processor: chase.NaiveCoreProcessor{}})
	}

	if cfg.MaxSteps > 0 {
		b.AddHaltingCondition(chase.NewLimitNumberOfStep(cfg.MaxSteps))
	}
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 && cfg.HaltingOnTimeout {
		b.AddHaltingCondition(chase.NewTimeout(d))
	}
	b.AddHaltingCondition(chase.CreatedFactsAtPreviousStep{})
	b.AddHaltingCondition(chase.HasRulesToApply{})

	return b, nil
}
