package builder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbchase/chasecore/internal/chase"
	"github.com/dbchase/chasecore/internal/chase/builder"
	"github.com/dbchase/chasecore/internal/config"
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/term"
)

func TestBuildRefusesWithoutChasableOrRuleBase(t *testing.T) {
	sess := term.NewSession()

	_, err := builder.New(sess).Build()
	require.Error(t, err)

	rb := formula.NewRuleBase()
	_, err = builder.New(sess).WithRuleBase(rb).Build()
	require.Error(t, err, "a rule base alone, with no chasable data, must still refuse to build")
}

func TestBuildSucceedsWithChasableAndRuleBase(t *testing.T) {
	sess := term.NewSession()
	rb := formula.NewRuleBase()
	target := store.NewInMemoryFactBase()

	engine, err := builder.New(sess).
		WithRuleBase(rb).
		WithChasable(store.NewChasableData(target)).
		Build()
	require.NoError(t, err)
	assert.NotNil(t, engine)
}

func TestFromConfigResolvesNamedPolicies(t *testing.T) {
	sess := term.NewSession()
	cfg := &config.ChaseConfig{
		Scheduler:       "by_predicate",
		TriggerComputer: "restricted",
		TriggerChecker:  "semi_oblivious",
		Renamer:         "pseudo_skolem_frontier",
		FactsHandler:    "direct",
		MaxSteps:        5,
	}

	b, err := builder.FromConfig(sess, cfg)
	require.NoError(t, err)

	rb := formula.NewRuleBase()
	target := store.NewInMemoryFactBase()
	engine, err := b.WithRuleBase(rb).WithChasable(store.NewChasableData(target)).Build()
	require.NoError(t, err)
	assert.NotNil(t, engine)
}

func TestFromConfigRejectsUnknownScheduler(t *testing.T) {
	sess := term.NewSession()
	cfg := &config.ChaseConfig{Scheduler: "bogus"}

	_, err := builder.FromConfig(sess, cfg)
	require.Error(t, err)
}

func TestFromConfigResolvesMultiChecker(t *testing.T) {
	sess := term.NewSession()
	cfg := &config.ChaseConfig{TriggerChecker: "multi"}

	b, err := builder.FromConfig(sess, cfg)
	require.NoError(t, err)

	engine, err := b.
		WithRuleBase(formula.NewRuleBase()).
		WithChasable(store.NewChasableData(store.NewInMemoryFactBase())).
		Build()
	require.NoError(t, err)
	assert.NotNil(t, engine)
}

// TestBuildWiresAddCreatedFactsForDelegatedHandler: a delegated facts
// handler never writes to the target itself, so Build must append the
// merge treatment or every derived fact would be dropped on the floor.
func TestBuildWiresAddCreatedFactsForDelegatedHandler(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("p", 1)
	q := sess.Predicate("q", 1)
	x := sess.Variable("X")

	r, err := formula.NewRule(
		formula.AtomFormula{Atom: term.MustAtom(p, x)},
		formula.AtomFormula{Atom: term.MustAtom(q, x)},
		"p-to-q")
	require.NoError(t, err)
	rb := formula.NewRuleBase()
	rb.AddRule(r)

	target := store.NewInMemoryFactBase()
	_, err = target.Add(term.MustAtom(p, sess.Constant("a")))
	require.NoError(t, err)

	engine, err := builder.New(sess).
		WithRuleBase(rb).
		WithChasable(store.NewChasableData(target)).
		WithFactsHandler(chase.DelegatedApplication{}).
		Build()
	require.NoError(t, err)

	_, err = engine.Run()
	require.NoError(t, err)
	assert.True(t, target.Contains(term.MustAtom(q, sess.Constant("a"))),
		"delegated writes must reach the target through the end-of-step merge")
}
