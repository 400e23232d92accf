package store

import (
	"sync"

	"github.com/dbchase/chasecore/internal/chaseerr"
	"github.com/dbchase/chasecore/internal/term"
)

// InMemoryFactBase is the mutable in-memory graph store:
// a set of atoms plus two secondary indexes, predicate -> atoms and
// term -> atoms. Iteration order is deterministic within a process given
// identical insertion history (an insertion-ordered slice alongside the
// set); cross-run determinism is not promised.
type InMemoryFactBase struct {
	mu         sync.RWMutex
	atoms      map[string]term.Atom   // key -> atom
	order      []string               // insertion order of keys
	byPred     map[*term.Predicate]map[string]struct{}
	byTerm     map[string]map[string]struct{} // term identifier -> atom keys
	acceptsVar bool                            // in-memory stores accept variables in atoms
}

// NewInMemoryFactBase builds an empty store. Unlike a triple store
// (which rejects variables), the in-memory store accepts
// them — useful for representing open facts during testing.
func NewInMemoryFactBase() *InMemoryFactBase {
	return &InMemoryFactBase{
		atoms:      make(map[string]term.Atom),
		byPred:     make(map[*term.Predicate]map[string]struct{}),
		byTerm:     make(map[string]map[string]struct{}),
		acceptsVar: true,
	}
}

func (s *InMemoryFactBase) AcceptsPredicate(p *term.Predicate) bool { return true }

func (s *InMemoryFactBase) AcceptsAtom(a term.Atom) bool {
	if s.acceptsVar {
		return true
	}
	for _, t := range a.Terms {
		if term.IsVariable(t) {
			return false
		}
	}
	return true
}

// Add inserts atom into all three indexes if absent.
func (s *InMemoryFactBase) Add(a term.Atom) (bool, error) {
	if !s.AcceptsAtom(a) {
		return false, chaseerr.NewAtomValidationError(a.String(), "store does not accept atoms containing variables")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := a.Key()
	if _, exists := s.atoms[key]; exists {
		return false, nil
	}
	s.atoms[key] = a
	s.order = append(s.order, key)

	if s.byPred[a.Predicate] == nil {
		s.byPred[a.Predicate] = make(map[string]struct{})
	}
	s.byPred[a.Predicate][key] = struct{}{}

	for _, t := range a.Terms {
		id := t.Identifier()
		if s.byTerm[id] == nil {
			s.byTerm[id] = make(map[string]struct{})
		}
		s.byTerm[id][key] = struct{}{}
	}
	return true, nil
}

// AddAll inserts a batch of atoms, returning the number actually added.
func (s *InMemoryFactBase) AddAll(atoms []term.Atom) (int, error) {
	added := 0
	for _, a := range atoms {
		ok, err := s.Add(a)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// Remove deletes atom from all indexes and drops empty buckets. Removing
// an absent atom is a no-op.
func (s *InMemoryFactBase) Remove(a term.Atom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := a.Key()
	stored, exists := s.atoms[key]
	if !exists {
		return nil
	}
	delete(s.atoms, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	if bucket := s.byPred[stored.Predicate]; bucket != nil {
		delete(bucket, key)
		if len(bucket) == 0 {
			delete(s.byPred, stored.Predicate)
		}
	}
	for _, t := range stored.Terms {
		id := t.Identifier()
		if bucket := s.byTerm[id]; bucket != nil {
			delete(bucket, key)
			if len(bucket) == 0 {
				delete(s.byTerm, id)
			}
		}
	}
	return nil
}

// RemoveAll removes a batch of atoms.
func (s *InMemoryFactBase) RemoveAll(atoms []term.Atom) error {
	for _, a := range atoms {
		if err := s.Remove(a); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether the exact ground atom a is stored.
func (s *InMemoryFactBase) Contains(a term.Atom) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.atoms[a.Key()]
	return ok
}

// Size returns the cardinality of the stored atom set.
func (s *InMemoryFactBase) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.atoms)
}

func (s *InMemoryFactBase) GetPredicates() []*term.Predicate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	preds := make([]*term.Predicate, 0, len(s.byPred))
	for p := range s.byPred {
		preds = append(preds, p)
	}
	return preds
}

func (s *InMemoryFactBase) HasPredicate(p *term.Predicate) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byPred[p]
	return ok
}

func (s *InMemoryFactBase) GetAtomicPattern(p *term.Predicate) (AtomicPattern, error) {
	constraints := make([]PositionConstraint, p.Arity())
	for i := range constraints {
		constraints[i] = Unconstrained
	}
	return AtomicPattern{Predicate: p, Constraints: constraints}, nil
}

func (s *InMemoryFactBase) CanEvaluate(q BasicQuery) bool {
	return true
}

// Evaluate runs the two-step candidate-then-filter algorithm over the
// predicate and term indexes.
func (s *InMemoryFactBase) Evaluate(q BasicQuery) (TupleIter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	predBucket, ok := s.byPred[q.Predicate]
	if !ok {
		// Unknown predicate: empty result, not an error.
		return EmptyTupleIter{}, nil
	}

	candidates := s.candidateKeysLocked(q, predBucket)
	order := q.AnswerOrder()
	var tuples []Tuple
	// Walk insertion order rather than the candidate map so result order
	// is reproducible within a process.
	for _, key := range s.order {
		if _, ok := candidates[key]; !ok {
			continue
		}
		a := s.atoms[key]
		if !matchesBoundPositions(a, q.BoundPositions) {
			continue
		}
		row := make(Tuple, len(order))
		for i, pos := range order {
			row[i] = a.Terms[pos]
		}
		tuples = append(tuples, row)
	}
	return NewSliceTupleIter(tuples), nil
}

func (s *InMemoryFactBase) candidateKeysLocked(q BasicQuery, predBucket map[string]struct{}) map[string]struct{} {
	if len(q.BoundPositions) == 0 {
		out := make(map[string]struct{}, len(predBucket))
		for k := range predBucket {
			out[k] = struct{}{}
		}
		return out
	}

	var smallest map[string]struct{}
	for _, boundTerm := range q.BoundPositions {
		bucket := s.byTerm[boundTerm.Identifier()]
		if bucket == nil {
			return map[string]struct{}{}
		}
		if smallest == nil || len(bucket) < len(smallest) {
			smallest = bucket
		}
	}
	out := make(map[string]struct{})
	for k := range smallest {
		if _, inPred := predBucket[k]; inPred {
			out[k] = struct{}{}
		}
	}
	return out
}

func matchesBoundPositions(a term.Atom, bound map[int]term.Term) bool {
	for pos, t := range bound {
		if pos >= len(a.Terms) || a.Terms[pos].Identifier() != t.Identifier() {
			return false
		}
	}
	return true
}

// EstimateBound reports an upper bound on Evaluate's result size: the
// size of the smallest index bucket the candidate step would consult.
// Bound positions holding a variable are plan-time placeholders whose
// eventual value is unknown, so they don't narrow the estimate.
func (s *InMemoryFactBase) EstimateBound(q BasicQuery) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.byPred[q.Predicate]
	if !ok {
		return 0, true
	}
	best := len(bucket)
	for _, t := range q.BoundPositions {
		if term.IsVariable(t) {
			continue
		}
		tb := s.byTerm[t.Identifier()]
		if tb == nil {
			return 0, true
		}
		if len(tb) < best {
			best = len(tb)
		}
	}
	return best, true
}

func (s *InMemoryFactBase) Iterate() AtomIter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	atoms := make([]term.Atom, 0, len(s.order))
	for _, k := range s.order {
		atoms = append(atoms, s.atoms[k])
	}
	return &sliceAtomIter{atoms: atoms}
}

type sliceAtomIter struct {
	atoms []term.Atom
	pos   int
}

func (it *sliceAtomIter) Next() (term.Atom, bool, error) {
	if it.pos >= len(it.atoms) {
		return term.Atom{}, false, nil
	}
	a := it.atoms[it.pos]
	it.pos++
	return a, true, nil
}

func (s *InMemoryFactBase) Constants() []*term.Constant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[*term.Constant]struct{})
	for _, a := range s.atoms {
		for _, t := range a.Terms {
			if c, ok := t.(*term.Constant); ok {
				seen[c] = struct{}{}
			}
		}
	}
	out := make([]*term.Constant, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	return out
}

func (s *InMemoryFactBase) Variables() []*term.Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[*term.Variable]struct{})
	for _, a := range s.atoms {
		for v := range a.Variables() {
			seen[v] = struct{}{}
		}
	}
	out := make([]*term.Variable, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	return out
}

func (s *InMemoryFactBase) Terms() []term.Term {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]term.Term)
	for _, a := range s.atoms {
		for _, t := range a.Terms {
			seen[t.Identifier()] = t
		}
	}
	out := make([]term.Term, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	return out
}
