package sqlstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/store/sqlstore"
	"github.com/dbchase/chasecore/internal/term"
)

func openTestStore(t *testing.T, sess *term.Session) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open(sess, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreAddAndEvaluateByBoundPosition(t *testing.T) {
	sess := term.NewSession()
	s := openTestStore(t, sess)

	parent := sess.Predicate("parent", 2)
	alice, bob, carol := sess.Constant("alice"), sess.Constant("bob"), sess.Constant("carol")

	n, err := s.AddAll([]term.Atom{
		term.MustAtom(parent, alice, bob),
		term.MustAtom(parent, alice, carol),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	added, err := s.Add(term.MustAtom(parent, alice, bob))
	require.NoError(t, err)
	assert.False(t, added, "re-adding an existing row must be a no-op")

	y := sess.Variable("Y")
	q := store.BasicQuery{
		Predicate:      parent,
		BoundPositions: map[int]term.Term{0: alice},
		AnswerVars:     map[int]*term.Variable{1: y},
	}
	it, err := s.Evaluate(q)
	require.NoError(t, err)

	var got []string
	for {
		tup, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, tup[0].Identifier())
	}
	assert.ElementsMatch(t, []string{"bob", "carol"}, got)
}

func TestStoreRejectsAtomsWithVariables(t *testing.T) {
	sess := term.NewSession()
	s := openTestStore(t, sess)

	p := sess.Predicate("p", 1)
	_, err := s.Add(term.MustAtom(p, sess.Variable("X")))
	require.Error(t, err)
}

func TestStoreRemoveDeletesMatchingRow(t *testing.T) {
	sess := term.NewSession()
	s := openTestStore(t, sess)

	p := sess.Predicate("p", 1)
	a := term.MustAtom(p, sess.Constant("a"))

	_, err := s.Add(a)
	require.NoError(t, err)
	require.NoError(t, s.Remove(a))

	it := s.Iterate()
	_, ok, err := it.Next()
	require.NoError(t, err)
	assert.False(t, ok, "removed row must not resurface on iteration")
}

func TestStoreIterateReconstructsAtomsAcrossPredicates(t *testing.T) {
	sess := term.NewSession()
	s := openTestStore(t, sess)

	p := sess.Predicate("p", 1)
	q := sess.Predicate("q", 2)
	_, err := s.AddAll([]term.Atom{
		term.MustAtom(p, sess.Constant("a")),
		term.MustAtom(q, sess.Constant("x"), sess.Constant("y")),
	})
	require.NoError(t, err)

	it := s.Iterate()
	var seen int
	for {
		_, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		seen++
	}
	assert.Equal(t, 2, seen)
	assert.Len(t, s.Constants(), 3)
	assert.Empty(t, s.Variables(), "sql store never stores variables")
}

func TestEvaluateJoinCompilesConjunctionToOneQuery(t *testing.T) {
	sess := term.NewSession()
	s := openTestStore(t, sess)

	parent := sess.Predicate("parent", 2)
	alice, bob, carol := sess.Constant("alice"), sess.Constant("bob"), sess.Constant("carol")
	_, err := s.AddAll([]term.Atom{
		term.MustAtom(parent, alice, bob),
		term.MustAtom(parent, bob, carol),
	})
	require.NoError(t, err)

	x, y, z := sess.Variable("X"), sess.Variable("Y"), sess.Variable("Z")
	results, err := s.EvaluateJoin([]term.Atom{
		term.MustAtom(parent, x, y),
		term.MustAtom(parent, y, z),
	}, []*term.Variable{x, z})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alice", results[0][x].Identifier())
	assert.Equal(t, "carol", results[0][z].Identifier())
}

func TestEvaluateJoinGroundConjunctionIsMembershipProbe(t *testing.T) {
	sess := term.NewSession()
	s := openTestStore(t, sess)

	p := sess.Predicate("p", 1)
	_, err := s.Add(term.MustAtom(p, sess.Constant("a")))
	require.NoError(t, err)

	results, err := s.EvaluateJoin([]term.Atom{term.MustAtom(p, sess.Constant("a"))}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1, "a stored ground conjunction probes true")
	assert.Empty(t, results[0])

	results, err = s.EvaluateJoin([]term.Atom{term.MustAtom(p, sess.Constant("b"))}, nil)
	require.NoError(t, err)
	assert.Empty(t, results, "an absent ground conjunction probes false")
}

func TestStoreHasPredicateOnlyAfterEnsureOrAdd(t *testing.T) {
	sess := term.NewSession()
	s := openTestStore(t, sess)

	p := sess.Predicate("unused", 1)
	assert.False(t, s.HasPredicate(p))

	require.NoError(t, s.EnsurePredicate(p))
	assert.True(t, s.HasPredicate(p))
}
