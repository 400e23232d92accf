package formula_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/term"
)

func TestAtomFormulaFreeVariables(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("likes", 2)
	x := sess.Variable("X")
	pizza := sess.Constant("pizza")

	f := formula.AtomFormula{Atom: term.MustAtom(p, x, pizza)}
	fv := f.FreeVariables()
	assert.Len(t, fv, 1)
	_, ok := fv[x]
	assert.True(t, ok)
	assert.Empty(t, f.BoundVariables())
}

func TestConjunctionUnionsFreeVariables(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("parent", 2)
	x, y, z := sess.Variable("X"), sess.Variable("Y"), sess.Variable("Z")

	left := formula.AtomFormula{Atom: term.MustAtom(p, x, y)}
	right := formula.AtomFormula{Atom: term.MustAtom(p, y, z)}
	conj := formula.ConjunctionFormula{Left: left, Right: right}

	fv := conj.FreeVariables()
	assert.Len(t, fv, 3)
	assert.Len(t, conj.Atoms(), 2)
}

func TestNegationDoesNotExposeAtoms(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("banned", 1)
	x := sess.Variable("X")

	neg := formula.NegationFormula{Inner: formula.AtomFormula{Atom: term.MustAtom(p, x)}}
	assert.Empty(t, neg.Atoms(), "atoms behind a negation must not be reachable via Atoms()")
	assert.Len(t, neg.FreeVariables(), 1, "negation must still report its free variables")
}

func TestExistentialBindsVariable(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("manages", 2)
	x, y := sess.Variable("X"), sess.Variable("Y")

	inner := formula.AtomFormula{Atom: term.MustAtom(p, y, x)}
	ex := formula.ExistentialFormula{Var: y, Inner: inner}

	fv := ex.FreeVariables()
	assert.Len(t, fv, 1)
	_, stillFree := fv[y]
	assert.False(t, stillFree)

	bv := ex.BoundVariables()
	_, bound := bv[y]
	assert.True(t, bound)
}

func TestConjoinBuildsRightLeaningChain(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("p", 1)
	a := formula.AtomFormula{Atom: term.MustAtom(p, sess.Constant("a"))}
	b := formula.AtomFormula{Atom: term.MustAtom(p, sess.Constant("b"))}
	c := formula.AtomFormula{Atom: term.MustAtom(p, sess.Constant("c"))}

	joined := formula.Conjoin([]formula.Formula{a, b, c})
	assert.Len(t, joined.Atoms(), 3)
}

func TestConjoinPanicsOnEmpty(t *testing.T) {
	assert.Panics(t, func() {
		formula.Conjoin(nil)
	})
}

func TestNewRuleRejectsMismatchedFrontier(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("p", 1)
	q := sess.Predicate("q", 1)
	x := sess.Variable("X")
	y := sess.Variable("Y")

	body := formula.AtomFormula{Atom: term.MustAtom(p, x)}
	head := formula.AtomFormula{Atom: term.MustAtom(q, y)}

	_, err := formula.NewRule(body, head, "bad-frontier")
	require.Error(t, err)
}

func TestNewRuleRejectsExistentialFreeInBody(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("p", 1)
	q := sess.Predicate("q", 2)
	x := sess.Variable("X")
	y := sess.Variable("Y")

	// Body illegally mentions Y free, while head existentially quantifies Y.
	body := formula.ConjunctionFormula{
		Left:  formula.AtomFormula{Atom: term.MustAtom(p, x)},
		Right: formula.AtomFormula{Atom: term.MustAtom(q, x, y)},
	}
	head := formula.ExistentialFormula{
		Var:   y,
		Inner: formula.AtomFormula{Atom: term.MustAtom(q, x, y)},
	}

	_, err := formula.NewRule(body, head, "bad-existential")
	require.Error(t, err)
}

func TestNewRuleAcceptsValidFrontier(t *testing.T) {
	sess := term.NewSession()
	employee := sess.Predicate("employee", 1)
	manages := sess.Predicate("manages", 2)
	x, y := sess.Variable("X"), sess.Variable("Y")

	body := formula.AtomFormula{Atom: term.MustAtom(employee, x)}
	head := formula.ExistentialFormula{
		Var:   y,
		Inner: formula.AtomFormula{Atom: term.MustAtom(manages, y, x)},
	}

	r, err := formula.NewRule(body, head, "assign-manager")
	require.NoError(t, err)
	assert.Len(t, r.ExistentialVariables(), 1)
}

func TestHeadDisjunctsPushesExistentialsIntoEachDisjunct(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("p", 1)
	q := sess.Predicate("q", 1)
	x := sess.Variable("X")
	y := sess.Variable("Y")

	body := formula.AtomFormula{Atom: term.MustAtom(p, x)}
	disjunctiveHead := formula.ExistentialFormula{
		Var: y,
		Inner: formula.DisjunctionFormula{
			Left:  formula.AtomFormula{Atom: term.MustAtom(q, y)},
			Right: formula.AtomFormula{Atom: term.MustAtom(q, y)},
		},
	}

	r, err := formula.NewRule(body, disjunctiveHead, "disjunctive")
	require.NoError(t, err)

	disjuncts := r.HeadDisjuncts()
	require.Len(t, disjuncts, 2)
	for _, d := range disjuncts {
		assert.Equal(t, formula.KindExistential, d.Kind())
	}
}

func TestRuleBaseAddRuleAndConstraint(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("p", 1)
	x := sess.Variable("X")

	body := formula.AtomFormula{Atom: term.MustAtom(p, x)}
	r, err := formula.NewRule(body, body, "identity")
	require.NoError(t, err)

	rb := formula.NewRuleBase()
	rb.AddRule(r)
	rb.AddNegativeConstraint(&formula.NegativeConstraint{Body: body, Label: "nc1"})

	assert.Len(t, rb.Rules, 1)
	assert.Len(t, rb.NegativeConstraints, 1)
}
