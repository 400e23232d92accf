package mangleio_test

import (
	"testing"

	"github.com/google/mangle/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbchase/chasecore/internal/chaseerr"
	"github.com/dbchase/chasecore/internal/mangleio"
	"github.com/dbchase/chasecore/internal/term"
)

func TestToMangleAtomRoundTripsThroughFromMangleAtom(t *testing.T) {
	sess := term.NewSession()
	parent := sess.Predicate("parent", 2)
	a := term.MustAtom(parent, sess.Constant("alice"), sess.Constant("42"))

	ma, err := mangleio.ToMangleAtom(a)
	require.NoError(t, err)
	assert.Equal(t, "parent", ma.Predicate.Symbol)
	assert.Equal(t, 2, ma.Predicate.Arity)
	assert.Equal(t, ast.String("alice"), ma.Args[0])
	assert.Equal(t, ast.Number(42), ma.Args[1])

	back, err := mangleio.FromMangleAtom(sess, ma)
	require.NoError(t, err)
	assert.True(t, back.Equals(a), "round trip must preserve predicate and constant values")
}

func TestToMangleAtomRejectsNonGroundAtom(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("p", 1)
	a := term.MustAtom(p, sess.Variable("X"))

	_, err := mangleio.ToMangleAtom(a)
	require.Error(t, err)
	assert.True(t, chaseerr.IsUnsupportedOperation(err))
}

func TestToMangleAtomRejectsFunctionTerm(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("p", 1)
	fn := term.NewLogicalFunctionTerm("f", sess.Constant("a"))
	a := term.MustAtom(p, fn)

	_, err := mangleio.ToMangleAtom(a)
	require.Error(t, err)
	assert.True(t, chaseerr.IsUnsupportedOperation(err))
}

func TestFromMangleAtomRejectsNonConstantArg(t *testing.T) {
	sess := term.NewSession()
	sym := ast.PredicateSym{Symbol: "p", Arity: 1}
	ma := ast.Atom{Predicate: sym, Args: []ast.BaseTerm{ast.Variable{Symbol: "X"}}}

	_, convErr := mangleio.FromMangleAtom(sess, ma)
	require.Error(t, convErr)
	assert.True(t, chaseerr.IsUnsupportedOperation(convErr))
}

func TestToMangleAtomsStopsAtFirstFailure(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("p", 1)
	good := term.MustAtom(p, sess.Constant("a"))
	bad := term.MustAtom(p, sess.Variable("X"))

	_, err := mangleio.ToMangleAtoms([]term.Atom{good, bad})
	require.Error(t, err)
}
