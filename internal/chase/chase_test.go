package chase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dbchase/chasecore/internal/chase"
	"github.com/dbchase/chasecore/internal/chase/builder"
	"github.com/dbchase/chasecore/internal/eval"
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/subst"
	"github.com/dbchase/chasecore/internal/term"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ancestorRuleBase builds parent/2 -> ancestor/2 transitive closure, a
// plain datalog fixpoint with no existential variables.
func ancestorRuleBase(sess *term.Session) (*formula.RuleBase, *term.Predicate, *term.Predicate) {
	parent := sess.Predicate("parent", 2)
	ancestor := sess.Predicate("ancestor", 2)
	x, y, z := sess.Variable("X"), sess.Variable("Y"), sess.Variable("Z")

	rb := formula.NewRuleBase()
	base, err := formula.NewRule(
		formula.AtomFormula{Atom: term.MustAtom(parent, x, y)},
		formula.AtomFormula{Atom: term.MustAtom(ancestor, x, y)},
		"ancestor-base")
	if err != nil {
		panic(err)
	}
	rb.AddRule(base)

	step, err := formula.NewRule(
		formula.ConjunctionFormula{
			Left:  formula.AtomFormula{Atom: term.MustAtom(parent, x, y)},
			Right: formula.AtomFormula{Atom: term.MustAtom(ancestor, y, z)},
		},
		formula.AtomFormula{Atom: term.MustAtom(ancestor, x, z)},
		"ancestor-step")
	if err != nil {
		panic(err)
	}
	rb.AddRule(step)

	return rb, parent, ancestor
}

func TestEngineRunAncestorTransitiveClosure(t *testing.T) {
	sess := term.NewSession()
	rb, parent, ancestor := ancestorRuleBase(sess)

	target := store.NewInMemoryFactBase()
	_, err := target.AddAll([]term.Atom{
		term.MustAtom(parent, sess.Constant("alice"), sess.Constant("bob")),
		term.MustAtom(parent, sess.Constant("bob"), sess.Constant("carol")),
	})
	require.NoError(t, err)

	b := builder.New(sess).WithRuleBase(rb).WithChasable(store.NewChasableData(target))
	engine, err := b.Build()
	require.NoError(t, err)

	result, err := engine.Run()
	require.NoError(t, err)
	assert.Greater(t, result.Steps, 0)

	assert.True(t, target.Contains(term.MustAtom(ancestor, sess.Constant("alice"), sess.Constant("bob"))))
	assert.True(t, target.Contains(term.MustAtom(ancestor, sess.Constant("bob"), sess.Constant("carol"))))
	assert.True(t, target.Contains(term.MustAtom(ancestor, sess.Constant("alice"), sess.Constant("carol"))),
		"transitive closure must derive the two-hop ancestor fact")
}

func TestEngineRunExistentialRuleConvergesUnderFrontierRenamer(t *testing.T) {
	sess := term.NewSession()
	employee := sess.Predicate("employee", 1)
	manages := sess.Predicate("manages", 2)
	x, y := sess.Variable("X"), sess.Variable("Y")

	rb := formula.NewRuleBase()
	r, err := formula.NewRule(
		formula.AtomFormula{Atom: term.MustAtom(employee, x)},
		formula.ExistentialFormula{Var: y, Inner: formula.AtomFormula{Atom: term.MustAtom(manages, y, x)}},
		"assign-manager")
	require.NoError(t, err)
	rb.AddRule(r)

	target := store.NewInMemoryFactBase()
	_, err = target.AddAll([]term.Atom{
		term.MustAtom(employee, sess.Constant("alice")),
		term.MustAtom(employee, sess.Constant("bob")),
	})
	require.NoError(t, err)

	b := builder.New(sess).
		WithRuleBase(rb).
		WithChasable(store.NewChasableData(target)).
		WithRenamer(chase.NewFrontierPseudoSkolemRenamer(sess))
	engine, err := b.Build()
	require.NoError(t, err)

	result, err := engine.Run()
	require.NoError(t, err)

	it := target.Iterate()
	managesCount := 0
	for {
		a, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		if a.Predicate == manages {
			managesCount++
		}
	}
	assert.Equal(t, 2, managesCount, "each of the two employees gets exactly one manager fact")
	assert.Greater(t, result.Steps, 0)
}

// TestFreshRenamerMaterializesOneWitnessPerTrigger: with the default
// oblivious checker a fresh-renamed existential fires once per body match,
// leaving exactly one manages fact whose first position is an opaque
// fresh variable.
func TestFreshRenamerMaterializesOneWitnessPerTrigger(t *testing.T) {
	sess := term.NewSession()
	employee := sess.Predicate("employee", 1)
	manages := sess.Predicate("manages", 2)
	x, y := sess.Variable("X"), sess.Variable("Y")

	rb := formula.NewRuleBase()
	r, err := formula.NewRule(
		formula.AtomFormula{Atom: term.MustAtom(employee, x)},
		formula.ExistentialFormula{Var: y, Inner: formula.AtomFormula{Atom: term.MustAtom(manages, y, x)}},
		"assign-manager")
	require.NoError(t, err)
	rb.AddRule(r)

	target := store.NewInMemoryFactBase()
	_, err = target.Add(term.MustAtom(employee, sess.Constant("alice")))
	require.NoError(t, err)

	engine, err := builder.New(sess).
		WithRuleBase(rb).
		WithChasable(store.NewChasableData(target)).
		WithRenamer(chase.NewFreshRenamer(sess)).
		Build()
	require.NoError(t, err)

	_, err = engine.Run()
	require.NoError(t, err)

	var witnesses []term.Atom
	it := target.Iterate()
	for {
		a, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		if a.Predicate == manages {
			witnesses = append(witnesses, a)
		}
	}
	require.Len(t, witnesses, 1)
	assert.True(t, term.IsVariable(witnesses[0].Terms[0]), "the existential image is a fresh variable")
	assert.Equal(t, "alice", witnesses[0].Terms[1].Identifier())
	assert.Equal(t, 2, target.Size())
}

func TestEngineRunHaltsOnMaxStepsEvenWithoutFixpoint(t *testing.T) {
	sess := term.NewSession()
	employee := sess.Predicate("employee", 1)
	manages := sess.Predicate("manages", 2)
	x, y := sess.Variable("X"), sess.Variable("Y")

	rb := formula.NewRuleBase()
	r, err := formula.NewRule(
		formula.AtomFormula{Atom: term.MustAtom(employee, x)},
		formula.ExistentialFormula{Var: y, Inner: formula.AtomFormula{Atom: term.MustAtom(manages, y, x)}},
		"assign-manager")
	require.NoError(t, err)
	rb.AddRule(r)

	target := store.NewInMemoryFactBase()
	_, err = target.Add(term.MustAtom(employee, sess.Constant("alice")))
	require.NoError(t, err)

	// Adding a step-count ceiling replaces Build's default fixpoint
	// conditions, so this ceiling alone must stop the run.
	b := builder.New(sess).
		WithRuleBase(rb).
		WithChasable(store.NewChasableData(target)).
		WithRenamer(chase.NewFreshRenamer(sess)).
		AddHaltingCondition(chase.NewLimitNumberOfStep(3))
	engine, err := b.Build()
	require.NoError(t, err)

	result, err := engine.Run()
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Steps, 3)
}

func TestAllHaltingHaltsOnFirstTrueCondition(t *testing.T) {
	always := alwaysHalt{}
	never := neverHalt{}
	all := chase.NewAll(never, always)
	assert.True(t, all.ShouldHalt(nil, 0, nil, nil))

	allFalse := chase.NewAll(never, never)
	assert.False(t, allFalse.ShouldHalt(nil, 0, nil, nil))
}

type alwaysHalt struct{}

func (alwaysHalt) ShouldHalt(last *chase.StepResult, step int, rb *formula.RuleBase, nextRules []*formula.Rule) bool {
	return true
}

type neverHalt struct{}

func (neverHalt) ShouldHalt(last *chase.StepResult, step int, rb *formula.RuleBase, nextRules []*formula.Rule) bool {
	return false
}

func TestLimitNumberOfStepHalts(t *testing.T) {
	l := chase.NewLimitNumberOfStep(2)
	assert.False(t, l.ShouldHalt(nil, 0, nil, nil))
	assert.False(t, l.ShouldHalt(nil, 1, nil, nil))
	assert.True(t, l.ShouldHalt(nil, 2, nil, nil))
}

func TestCreatedFactsAtPreviousStepTreatsUnknownCountAsProgress(t *testing.T) {
	c := chase.CreatedFactsAtPreviousStep{}
	unknownCount := &chase.StepResult{FactCountUnknown: true}
	assert.False(t, c.ShouldHalt(unknownCount, 1, nil, nil))

	zero := &chase.StepResult{CreatedFacts: nil}
	assert.True(t, c.ShouldHalt(zero, 1, nil, nil))
}

func TestFrontierPseudoSkolemRenamerIsDeterministic(t *testing.T) {
	sess := term.NewSession()
	employee := sess.Predicate("employee", 1)
	manages := sess.Predicate("manages", 2)
	x, y := sess.Variable("X"), sess.Variable("Y")

	r, err := formula.NewRule(
		formula.AtomFormula{Atom: term.MustAtom(employee, x)},
		formula.ExistentialFormula{Var: y, Inner: formula.AtomFormula{Atom: term.MustAtom(manages, y, x)}},
		"assign-manager")
	require.NoError(t, err)

	renamer := chase.NewFrontierPseudoSkolemRenamer(sess)
	alice := sess.Constant("alice")

	sub1 := renamer.Rename(r, bindX(x, alice), sess)
	sub2 := renamer.Rename(r, bindX(x, alice), sess)

	v1, ok1 := sub1.Get(y)
	v2, ok2 := sub2.Get(y)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, v1.Identifier(), v2.Identifier(), "same frontier must reuse the same cached skolem variable")
}

func bindX(x *term.Variable, val term.Term) *subst.Substitution {
	return subst.New().Extend(x, val)
}

// twoPieceRule builds p(X1), q(X2) -> ∃Y1.a(X1,Y1) ∧ ∃Y2.b(X2,Y2): a
// single non-disjunctive head whose two atoms share no existential, so it
// has two pieces with disjoint frontiers {X1} and {X2}.
func twoPieceRule(t *testing.T, sess *term.Session) (*formula.Rule, *term.Variable, *term.Variable, *term.Variable, *term.Variable) {
	t.Helper()
	p := sess.Predicate("p", 1)
	q := sess.Predicate("q", 1)
	a := sess.Predicate("a", 2)
	b := sess.Predicate("b", 2)
	x1, x2 := sess.Variable("X1"), sess.Variable("X2")
	y1, y2 := sess.Variable("Y1"), sess.Variable("Y2")

	r, err := formula.NewRule(
		formula.ConjunctionFormula{
			Left:  formula.AtomFormula{Atom: term.MustAtom(p, x1)},
			Right: formula.AtomFormula{Atom: term.MustAtom(q, x2)},
		},
		formula.ConjunctionFormula{
			Left:  formula.ExistentialFormula{Var: y1, Inner: formula.AtomFormula{Atom: term.MustAtom(a, x1, y1)}},
			Right: formula.ExistentialFormula{Var: y2, Inner: formula.AtomFormula{Atom: term.MustAtom(b, x2, y2)}},
		},
		"two-piece")
	require.NoError(t, err)
	return r, x1, x2, y1, y2
}

// TestFrontierByPiecePseudoSkolemRenamerKeysPerPiece: with a two-piece
// head, changing a frontier variable the piece never mentions must not
// change that piece's existential, while the piece that does mention it
// gets a fresh one — the whole point of the finer ByPiece cache.
func TestFrontierByPiecePseudoSkolemRenamerKeysPerPiece(t *testing.T) {
	sess := term.NewSession()
	r, x1, x2, y1, y2 := twoPieceRule(t, sess)
	c, d, e := sess.Constant("c"), sess.Constant("d"), sess.Constant("e")

	renamer := chase.NewFrontierByPiecePseudoSkolemRenamer(sess)
	sub1 := renamer.Rename(r, subst.New().Extend(x1, c).Extend(x2, d), sess)
	sub2 := renamer.Rename(r, subst.New().Extend(x1, c).Extend(x2, e), sess)

	y1First, ok := sub1.Get(y1)
	require.True(t, ok)
	y1Second, ok := sub2.Get(y1)
	require.True(t, ok)
	assert.Equal(t, y1First.Identifier(), y1Second.Identifier(),
		"Y1's piece only mentions X1, so a changed X2 must reuse the cached variable")

	y2First, ok := sub1.Get(y2)
	require.True(t, ok)
	y2Second, ok := sub2.Get(y2)
	require.True(t, ok)
	assert.NotEqual(t, y2First.Identifier(), y2Second.Identifier(),
		"Y2's piece mentions X2, so a changed X2 must mint a new variable")

	// The coarser frontier-scoped renamer keys on the whole frontier and
	// cannot reuse Y1 across the two substitutions.
	coarse := chase.NewFrontierPseudoSkolemRenamer(sess)
	c1 := coarse.Rename(r, subst.New().Extend(x1, c).Extend(x2, d), sess)
	c2 := coarse.Rename(r, subst.New().Extend(x1, c).Extend(x2, e), sess)
	y1Coarse1, _ := c1.Get(y1)
	y1Coarse2, _ := c2.Get(y1)
	assert.NotEqual(t, y1Coarse1.Identifier(), y1Coarse2.Identifier())
}

// TestFrontierByPieceTrueSkolemRenamerNarrowsArguments: the skolem term
// for each existential carries only its own piece's frontier values, not
// the whole frontier.
func TestFrontierByPieceTrueSkolemRenamerNarrowsArguments(t *testing.T) {
	sess := term.NewSession()
	r, x1, x2, y1, y2 := twoPieceRule(t, sess)
	c, d := sess.Constant("c"), sess.Constant("d")

	renamer := chase.NewFrontierByPieceTrueSkolemRenamer()
	sub := renamer.Rename(r, subst.New().Extend(x1, c).Extend(x2, d), sess)

	y1Term, ok := sub.Get(y1)
	require.True(t, ok)
	y1Fn, ok := y1Term.(*term.FunctionTerm)
	require.True(t, ok)
	require.Len(t, y1Fn.Args(), 1)
	assert.Equal(t, "c", y1Fn.Args()[0].Identifier())

	y2Term, ok := sub.Get(y2)
	require.True(t, ok)
	y2Fn, ok := y2Term.(*term.FunctionTerm)
	require.True(t, ok)
	require.Len(t, y2Fn.Args(), 1)
	assert.Equal(t, "d", y2Fn.Args()[0].Identifier())
}

// TestSemiObliviousChaseIsDeterministicAcrossRuns: with the semi-oblivious
// checker and a deterministic renamer, two runs over the same input reach
// writing targets with identical atom sets (fresh-variable counters start
// from zero in each session, so even the minted names agree).
func TestSemiObliviousChaseIsDeterministicAcrossRuns(t *testing.T) {
	run := func() map[string]struct{} {
		sess := term.NewSession()
		employee := sess.Predicate("employee", 1)
		manages := sess.Predicate("manages", 2)
		x, y := sess.Variable("X"), sess.Variable("Y")

		rb := formula.NewRuleBase()
		r, err := formula.NewRule(
			formula.AtomFormula{Atom: term.MustAtom(employee, x)},
			formula.ExistentialFormula{Var: y, Inner: formula.AtomFormula{Atom: term.MustAtom(manages, y, x)}},
			"assign-manager")
		require.NoError(t, err)
		rb.AddRule(r)

		target := store.NewInMemoryFactBase()
		_, err = target.AddAll([]term.Atom{
			term.MustAtom(employee, sess.Constant("alice")),
			term.MustAtom(employee, sess.Constant("bob")),
		})
		require.NoError(t, err)

		engine, err := builder.New(sess).
			WithRuleBase(rb).
			WithChasable(store.NewChasableData(target)).
			WithTriggerChecker(chase.NewSemiObliviousChecker()).
			WithRenamer(chase.NewFrontierPseudoSkolemRenamer(sess)).
			Build()
		require.NoError(t, err)
		_, err = engine.Run()
		require.NoError(t, err)
		return atomKeys(t, target)
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
}

func TestViolatedConstraintsReportsWitnessedBodies(t *testing.T) {
	sess := term.NewSession()
	banned := sess.Predicate("banned", 1)
	admin := sess.Predicate("admin", 1)
	x := sess.Variable("X")

	rb := formula.NewRuleBase()
	rb.AddNegativeConstraint(&formula.NegativeConstraint{
		Body: formula.ConjunctionFormula{
			Left:  formula.AtomFormula{Atom: term.MustAtom(banned, x)},
			Right: formula.AtomFormula{Atom: term.MustAtom(admin, x)},
		},
		Label: "no-banned-admins",
	})

	target := store.NewInMemoryFactBase()
	_, err := target.AddAll([]term.Atom{
		term.MustAtom(banned, sess.Constant("mallory")),
		term.MustAtom(admin, sess.Constant("alice")),
	})
	require.NoError(t, err)

	ev := eval.New(target)
	violated, err := chase.ViolatedConstraints(rb, ev)
	require.NoError(t, err)
	assert.Empty(t, violated, "no individual is both banned and admin")

	_, err = target.Add(term.MustAtom(admin, sess.Constant("mallory")))
	require.NoError(t, err)
	violated, err = chase.ViolatedConstraints(rb, ev)
	require.NoError(t, err)
	require.Len(t, violated, 1)
	assert.Equal(t, "no-banned-admins", violated[0].Label)
}

// chainRuleBase builds p -> q -> s, a two-layer rule base that Stratify
// must split into two strata (the q->s rule reads what p->q produces).
func chainRuleBase(sess *term.Session) (*formula.RuleBase, *term.Predicate, *term.Predicate, *term.Predicate) {
	p := sess.Predicate("p", 2)
	q := sess.Predicate("q", 2)
	s := sess.Predicate("s", 2)
	x, y := sess.Variable("X"), sess.Variable("Y")

	rb := formula.NewRuleBase()
	r1, err := formula.NewRule(
		formula.AtomFormula{Atom: term.MustAtom(p, x, y)},
		formula.AtomFormula{Atom: term.MustAtom(q, x, y)},
		"p-to-q")
	if err != nil {
		panic(err)
	}
	rb.AddRule(r1)
	r2, err := formula.NewRule(
		formula.AtomFormula{Atom: term.MustAtom(q, x, y)},
		formula.AtomFormula{Atom: term.MustAtom(s, x, y)},
		"q-to-s")
	if err != nil {
		panic(err)
	}
	rb.AddRule(r2)
	return rb, p, q, s
}

func runToFixpoint(t *testing.T, sess *term.Session, rb *formula.RuleBase, target *store.InMemoryFactBase) {
	t.Helper()
	engine, err := builder.New(sess).WithRuleBase(rb).WithChasable(store.NewChasableData(target)).Build()
	require.NoError(t, err)
	_, err = engine.Run()
	require.NoError(t, err)
}

func atomKeys(t *testing.T, target *store.InMemoryFactBase) map[string]struct{} {
	t.Helper()
	out := make(map[string]struct{})
	it := target.Iterate()
	for {
		a, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out[a.Key()] = struct{}{}
	}
	return out
}

// TestStratifiedChaseMatchesSingleChase: for a
// stratifiable rule base, running one engine per stratum in order over a
// shared target reaches the same atom set as a single non-stratified
// chase with the same policies.
func TestStratifiedChaseMatchesSingleChase(t *testing.T) {
	sess := term.NewSession()
	rb, p, _, _ := chainRuleBase(sess)

	seed := []term.Atom{
		term.MustAtom(p, sess.Constant("a"), sess.Constant("b")),
		term.MustAtom(p, sess.Constant("b"), sess.Constant("c")),
	}

	single := store.NewInMemoryFactBase()
	_, err := single.AddAll(seed)
	require.NoError(t, err)
	runToFixpoint(t, sess, rb, single)

	stratified := store.NewInMemoryFactBase()
	_, err = stratified.AddAll(seed)
	require.NoError(t, err)

	strata := chase.Stratify(rb)
	require.Len(t, strata, 2, "p->q must saturate before q->s")

	_, err = chase.RunStratified(strata, nil, func(s *chase.Stratum) *chase.Engine {
		engine, buildErr := builder.New(sess).
			WithRuleBase(s.RuleBase).
			WithChasable(store.NewChasableData(stratified)).
			Build()
		require.NoError(t, buildErr)
		return engine
	})
	require.NoError(t, err)

	assert.Equal(t, atomKeys(t, single), atomKeys(t, stratified))
}

// TestStratifiedChaseProjectsIntermediatePredicates: with a final-
// predicates projection configured, every predicate no later stratum can
// read is dropped at the stratum boundary, leaving only the requested
// output.
func TestStratifiedChaseProjectsIntermediatePredicates(t *testing.T) {
	sess := term.NewSession()
	rb, p, _, s := chainRuleBase(sess)

	target := store.NewInMemoryFactBase()
	_, err := target.Add(term.MustAtom(p, sess.Constant("a"), sess.Constant("b")))
	require.NoError(t, err)

	strata := chase.Stratify(rb)
	_, err = chase.RunStratified(strata, []*term.Predicate{s}, func(st *chase.Stratum) *chase.Engine {
		engine, buildErr := builder.New(sess).
			WithRuleBase(st.RuleBase).
			WithChasable(store.NewChasableData(target)).
			Build()
		require.NoError(t, buildErr)
		return engine
	})
	require.NoError(t, err)

	assert.True(t, target.Contains(term.MustAtom(s, sess.Constant("a"), sess.Constant("b"))))
	assert.Equal(t, 1, target.Size(), "p and q are intermediate and must be projected away")
}

// TestHeadFunctionTermsEvaluatedEagerly: a head atom carrying an
// evaluable function term over frontier variables must be materialized
// with the computed value, not the unevaluated term, when a computed
// source is part of the chasable data.
func TestHeadFunctionTermsEvaluatedEagerly(t *testing.T) {
	sess := term.NewSession()
	num := sess.Predicate("num", 1)
	doubled := sess.Predicate("doubled", 2)
	x := sess.Variable("X")
	two, four := sess.Constant("2"), sess.Constant("4")

	computed := store.NewComputedPredicateSource(sess)
	computed.Register(&store.ComputedFunction{
		Name:  "double",
		Arity: 1,
		Forward: func(inputs []term.Term) (term.Term, error) {
			if inputs[0].Identifier() == "2" {
				return four, nil
			}
			return nil, assert.AnError
		},
	})

	rb := formula.NewRuleBase()
	rule, err := formula.NewRule(
		formula.AtomFormula{Atom: term.MustAtom(num, x)},
		formula.AtomFormula{Atom: term.MustAtom(doubled, x, term.NewEvaluableFunctionTerm("double", x))},
		"double-it")
	require.NoError(t, err)
	rb.AddRule(rule)

	target := store.NewInMemoryFactBase()
	_, err = target.Add(term.MustAtom(num, two))
	require.NoError(t, err)

	b := builder.New(sess).
		WithRuleBase(rb).
		WithChasable(store.NewChasableData(target, computed))
	engine, err := b.Build()
	require.NoError(t, err)

	_, err = engine.Run()
	require.NoError(t, err)

	assert.True(t, target.Contains(term.MustAtom(doubled, two, four)),
		"double(2) must materialize as the constant 4")
}

// TestRestrictedCheckerSkipsAlreadySatisfiedHead: the
// existential head is already witnessed by e(a, n) in the target, so the
// restricted checker must reject the trigger and the chase does no work.
func TestRestrictedCheckerSkipsAlreadySatisfiedHead(t *testing.T) {
	sess := term.NewSession()
	r := sess.Predicate("r", 1)
	e := sess.Predicate("e", 2)
	x, y := sess.Variable("X"), sess.Variable("Y")

	rb := formula.NewRuleBase()
	rule, err := formula.NewRule(
		formula.AtomFormula{Atom: term.MustAtom(r, x)},
		formula.ExistentialFormula{Var: y, Inner: formula.AtomFormula{Atom: term.MustAtom(e, x, y)}},
		"assign-e")
	require.NoError(t, err)
	rb.AddRule(rule)

	target := store.NewInMemoryFactBase()
	_, err = target.AddAll([]term.Atom{
		term.MustAtom(r, sess.Constant("a")),
		term.MustAtom(e, sess.Constant("a"), sess.Constant("n")),
	})
	require.NoError(t, err)

	b := builder.New(sess).
		WithRuleBase(rb).
		WithChasable(store.NewChasableData(target)).
		WithTriggerChecker(chase.RestrictedChecker{})
	engine, err := b.Build()
	require.NoError(t, err)

	result, err := engine.Run()
	require.NoError(t, err)
	assert.Equal(t, 2, target.Size(), "restricted checker must reject a trigger whose head is already satisfied")
	assert.NotNil(t, result)
}

// TestRuleSplitProducesBothHeadPieces: a conjunctive
// (non-disjunctive) head r(X) -> s(X) ∧ t(X), rewritten by RuleSplit into two
// single-piece rules, must still derive both s(a) and t(a).
func TestRuleSplitProducesBothHeadPieces(t *testing.T) {
	sess := term.NewSession()
	r := sess.Predicate("r", 1)
	s := sess.Predicate("s", 1)
	tp := sess.Predicate("t", 1)
	x := sess.Variable("X")

	rb := formula.NewRuleBase()
	rule, err := formula.NewRule(
		formula.AtomFormula{Atom: term.MustAtom(r, x)},
		formula.ConjunctionFormula{
			Left:  formula.AtomFormula{Atom: term.MustAtom(s, x)},
			Right: formula.AtomFormula{Atom: term.MustAtom(tp, x)},
		},
		"split-head")
	require.NoError(t, err)
	rb.AddRule(rule)

	target := store.NewInMemoryFactBase()
	_, err = target.Add(term.MustAtom(r, sess.Constant("a")))
	require.NoError(t, err)

	b := builder.New(sess).
		WithRuleBase(rb).
		WithChasable(store.NewChasableData(target)).
		AddGlobalPretreatment(chase.RuleSplit{})
	engine, err := b.Build()
	require.NoError(t, err)

	_, err = engine.Run()
	require.NoError(t, err)

	assert.True(t, target.Contains(term.MustAtom(r, sess.Constant("a"))))
	assert.True(t, target.Contains(term.MustAtom(s, sess.Constant("a"))))
	assert.True(t, target.Contains(term.MustAtom(tp, sess.Constant("a"))))
	assert.Equal(t, 3, target.Size())
}
