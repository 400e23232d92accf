package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/term"
)

func TestInMemoryFactBaseAddAndContains(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("likes", 2)
	a := term.MustAtom(p, sess.Constant("alice"), sess.Constant("pizza"))

	fb := store.NewInMemoryFactBase()
	added, err := fb.Add(a)
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, fb.Contains(a))

	addedAgain, err := fb.Add(a)
	require.NoError(t, err)
	assert.False(t, addedAgain, "re-adding an existing atom must be a no-op")
	assert.Equal(t, 1, fb.Size())
}

func TestInMemoryFactBaseRemoveIsNoOpOnAbsent(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("likes", 2)
	a := term.MustAtom(p, sess.Constant("alice"), sess.Constant("pizza"))

	fb := store.NewInMemoryFactBase()
	err := fb.Remove(a)
	require.NoError(t, err)
	assert.Equal(t, 0, fb.Size())
}

func TestInMemoryFactBaseAddAllAndIterate(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("parent", 2)
	facts := []term.Atom{
		term.MustAtom(p, sess.Constant("alice"), sess.Constant("bob")),
		term.MustAtom(p, sess.Constant("bob"), sess.Constant("carol")),
	}

	fb := store.NewInMemoryFactBase()
	n, err := fb.AddAll(facts)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	it := fb.Iterate()
	var seen []term.Atom
	for {
		a, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		seen = append(seen, a)
	}
	assert.Len(t, seen, 2)
}

func TestInMemoryFactBaseEvaluateByBoundPosition(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("parent", 2)
	alice, bob, carol := sess.Constant("alice"), sess.Constant("bob"), sess.Constant("carol")

	fb := store.NewInMemoryFactBase()
	_, err := fb.AddAll([]term.Atom{
		term.MustAtom(p, alice, bob),
		term.MustAtom(p, alice, carol),
	})
	require.NoError(t, err)

	y := sess.Variable("Y")
	q := store.BasicQuery{
		Predicate:      p,
		BoundPositions: map[int]term.Term{0: alice},
		AnswerVars:     map[int]*term.Variable{1: y},
	}
	it, err := fb.Evaluate(q)
	require.NoError(t, err)

	var results []string
	for {
		tup, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		results = append(results, tup[0].Identifier())
	}
	assert.ElementsMatch(t, []string{"bob", "carol"}, results)
}

func TestInMemoryFactBaseEvaluateUnknownPredicateIsEmpty(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("parent", 2)
	unknown := sess.Predicate("unknown", 1)

	fb := store.NewInMemoryFactBase()
	it, err := fb.Evaluate(store.BasicQuery{Predicate: unknown})
	require.NoError(t, err)
	_, ok, err := it.Next()
	require.NoError(t, err)
	assert.False(t, ok, "unknown predicate must yield an empty iterator, not an error")
	_ = p
}

func TestInMemoryFactBaseEstimateBound(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("parent", 2)
	alice := sess.Constant("alice")

	fb := store.NewInMemoryFactBase()
	_, err := fb.AddAll([]term.Atom{
		term.MustAtom(p, alice, sess.Constant("bob")),
		term.MustAtom(p, alice, sess.Constant("carol")),
		term.MustAtom(p, sess.Constant("bob"), sess.Constant("dan")),
	})
	require.NoError(t, err)

	n, known := fb.EstimateBound(store.BasicQuery{Predicate: p})
	assert.True(t, known)
	assert.Equal(t, 3, n, "no bound positions: the whole predicate bucket")

	n, known = fb.EstimateBound(store.BasicQuery{
		Predicate:      p,
		BoundPositions: map[int]term.Term{0: alice},
	})
	assert.True(t, known)
	assert.Equal(t, 2, n, "bound constant narrows to its term bucket")

	n, known = fb.EstimateBound(store.BasicQuery{
		Predicate:      p,
		BoundPositions: map[int]term.Term{0: sess.Constant("nobody")},
	})
	assert.True(t, known)
	assert.Zero(t, n, "a term absent from every atom can match nothing")
}

func TestInMemoryFactBaseConstantsVariablesTerms(t *testing.T) {
	sess := term.NewSession()
	p := sess.Predicate("likes", 2)
	x := sess.Variable("X")
	pizza := sess.Constant("pizza")

	fb := store.NewInMemoryFactBase()
	_, err := fb.Add(term.MustAtom(p, x, pizza))
	require.NoError(t, err)

	assert.Len(t, fb.Constants(), 1)
	assert.Len(t, fb.Variables(), 1)
	assert.Len(t, fb.Terms(), 2)
}
