package subst_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dbchase/chasecore/internal/subst"
	"github.com/dbchase/chasecore/internal/term"
)

func TestExtendNeverStoresIdentity(t *testing.T) {
	sess := term.NewSession()
	x := sess.Variable("X")

	s := subst.New().Extend(x, x)
	assert.Equal(t, 0, s.Len(), "binding a variable to itself must not be stored")
}

func TestApplyVariable(t *testing.T) {
	sess := term.NewSession()
	x := sess.Variable("X")
	alice := sess.Constant("alice")

	s := subst.New().Extend(x, alice)
	assert.Equal(t, term.Term(alice), s.Apply(x))

	y := sess.Variable("Y")
	assert.Equal(t, term.Term(y), s.Apply(y), "unbound variable applies to itself")
}

func TestApplyFunctionTermRecurses(t *testing.T) {
	sess := term.NewSession()
	x := sess.Variable("X")
	alice := sess.Constant("alice")
	s := subst.New().Extend(x, alice)

	ft := term.NewLogicalFunctionTerm("f", x, sess.Constant("const"))
	applied := s.Apply(ft)
	got, ok := applied.(*term.FunctionTerm)
	if assert.True(t, ok) {
		assert.Equal(t, term.Term(alice), got.Args()[0])
		assert.True(t, got.IsGround())
	}
}

func TestApplyAtom(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("likes", 2)
	x := sess.Variable("X")
	alice := sess.Constant("alice")
	pizza := sess.Constant("pizza")

	a := term.MustAtom(p, x, pizza)
	s := subst.New().Extend(x, alice)
	applied := s.ApplyAtom(a)

	assert.True(t, applied.IsGround())
	assert.True(t, applied.Equals(term.MustAtom(p, alice, pizza)))
}

func TestComposeAppliesRightThenLeft(t *testing.T) {
	sess := term.NewSession()
	x := sess.Variable("X")
	y := sess.Variable("Y")
	alice := sess.Constant("alice")

	// b: X -> Y ; a: Y -> alice
	b := subst.New().Extend(x, y)
	a := subst.New().Extend(y, alice)

	composed := subst.Compose(a, b)
	got, ok := composed.Get(x)
	if assert.True(t, ok) {
		assert.Equal(t, term.Term(alice), got)
	}
}

func TestComposeCarriesOverUnshadowedLeftEntries(t *testing.T) {
	sess := term.NewSession()
	x := sess.Variable("X")
	z := sess.Variable("Z")
	alice := sess.Constant("alice")
	bob := sess.Constant("bob")

	a := subst.New().Extend(z, bob)
	b := subst.New().Extend(x, alice)

	composed := subst.Compose(a, b)
	gotX, ok := composed.Get(x)
	assert.True(t, ok)
	assert.Equal(t, term.Term(alice), gotX)

	gotZ, ok := composed.Get(z)
	assert.True(t, ok)
	assert.Equal(t, term.Term(bob), gotZ)
}

func TestRestrictLimitsDomain(t *testing.T) {
	sess := term.NewSession()
	x := sess.Variable("X")
	y := sess.Variable("Y")
	alice := sess.Constant("alice")
	bob := sess.Constant("bob")

	s := subst.New().Extend(x, alice).Extend(y, bob)
	restricted := s.Restrict(map[*term.Variable]struct{}{x: {}})

	assert.Equal(t, 1, restricted.Len())
	_, hasY := restricted.Get(y)
	assert.False(t, hasY)
}

func TestEqualAndKey(t *testing.T) {
	sess := term.NewSession()
	x := sess.Variable("X")
	alice := sess.Constant("alice")

	s1 := subst.New().Extend(x, alice)
	s2 := subst.New().Extend(x, alice)
	assert.True(t, s1.Equal(s2))
	assert.Equal(t, s1.Key(), s2.Key())

	y := sess.Variable("Y")
	s3 := subst.New().Extend(y, alice)
	assert.False(t, s1.Equal(s3))
}

func TestFromMapStripsIdentity(t *testing.T) {
	sess := term.NewSession()
	x := sess.Variable("X")
	alice := sess.Constant("alice")

	s := subst.FromMap(map[*term.Variable]term.Term{
		x: alice,
		// an identity entry built manually should also be dropped
	})
	assert.Equal(t, 1, s.Len())

	identity := subst.FromMap(map[*term.Variable]term.Term{x: x})
	assert.Equal(t, 0, identity.Len())
}
