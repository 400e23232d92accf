// Package store implements the Data/Writable/MaterializedData contract,
// the in-memory graph store, the built-in comparison predicates, the
// virtual-deletion wrapper, and computed-predicate sources for function
// terms.
package store

import (
	"github.com/dbchase/chasecore/internal/term"
)

// PositionConstraint describes whether a predicate position requires a
// ground term.
type PositionConstraint int

const (
	Unconstrained PositionConstraint = iota
	RequiresGround
)

// AtomicPattern describes per-position constraints for a predicate.
type AtomicPattern struct {
	Predicate   *term.Predicate
	Constraints []PositionConstraint
}

// Tuple is a row of terms, the unit Evaluate returns.
type Tuple []term.Term

// TupleIter is a pull-based iterator: each call to Next is a suspension
// point. Implementations that need backtracking state keep
// an explicit stack rather than recursing.
type TupleIter interface {
	// Next advances the iterator. ok is false when exhausted (not an
	// error: routine exhaustion is not a failure).
	Next() (t Tuple, ok bool, err error)
}

// AtomIter iterates whole atoms, used by MaterializedData.Iterate.
type AtomIter interface {
	Next() (a term.Atom, ok bool, err error)
}

// EmptyTupleIter never yields anything; used for "no such predicate in
// this source" adapters and computed-predicate failures.
type EmptyTupleIter struct{}

func (EmptyTupleIter) Next() (Tuple, bool, error) { return nil, false, nil }

// SliceTupleIter iterates a pre-computed slice of tuples.
type SliceTupleIter struct {
	tuples []Tuple
	pos    int
}

// NewSliceTupleIter wraps tuples as a TupleIter.
func NewSliceTupleIter(tuples []Tuple) *SliceTupleIter {
	return &SliceTupleIter{tuples: tuples}
}

func (it *SliceTupleIter) Next() (Tuple, bool, error) {
	if it.pos >= len(it.tuples) {
		return nil, false, nil
	}
	t := it.tuples[it.pos]
	it.pos++
	return t, true, nil
}

// BasicQuery is a single-atom query projected onto answer positions:
// positions map to a ground Term (bound) or to an answer Variable;
// positions in neither map are ignored wildcards.
type BasicQuery struct {
	Predicate      *term.Predicate
	BoundPositions map[int]term.Term
	AnswerVars     map[int]*term.Variable
}

// AnswerOrder returns the answer-variable positions in ascending order,
// the order in which Evaluate's result tuples are laid out.
func (q BasicQuery) AnswerOrder() []int {
	positions := make([]int, 0, len(q.AnswerVars))
	for p := range q.AnswerVars {
		positions = append(positions, p)
	}
	// insertion sort is fine: arities are small in practice.
	for i := 1; i < len(positions); i++ {
		for j := i; j > 0 && positions[j-1] > positions[j]; j-- {
			positions[j-1], positions[j] = positions[j], positions[j-1]
		}
	}
	return positions
}

// Data is the minimal read contract a fact source exposes.
type Data interface {
	GetPredicates() []*term.Predicate
	HasPredicate(p *term.Predicate) bool
	GetAtomicPattern(p *term.Predicate) (AtomicPattern, error)
	Evaluate(q BasicQuery) (TupleIter, error)
	CanEvaluate(q BasicQuery) bool
}

// BoundEstimator is the optional "estimate_bound" hook the join planner
// uses. A source that cannot estimate should not
// implement this interface; the planner treats that as "unknown".
type BoundEstimator interface {
	EstimateBound(q BasicQuery) (estimate int, known bool)
}

// MaterializedData additionally supports iterating all atoms and
// enumerating constants/variables/terms.
type MaterializedData interface {
	Data
	Iterate() AtomIter
	Constants() []*term.Constant
	Variables() []*term.Variable
	Terms() []term.Term
}

// Writable adds mutation operations. Remove of an absent atom is a
// no-op.
type Writable interface {
	Add(a term.Atom) (added bool, err error)
	Remove(a term.Atom) error
	AddAll(atoms []term.Atom) (added int, err error)
	RemoveAll(atoms []term.Atom) error
}

// AtomAcceptance lets a storage reject ill-formed additions before
// attempting them.
type AtomAcceptance interface {
	AcceptsPredicate(p *term.Predicate) bool
	AcceptsAtom(a term.Atom) bool
}

// WritableMaterializedData is the common shape of the concrete in-memory
// store and the SQL-backed plug-in.
type WritableMaterializedData interface {
	MaterializedData
	Writable
	AtomAcceptance
}
