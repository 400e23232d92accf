package store

import (
	"sync"

	"github.com/dbchase/chasecore/internal/term"
)

// VirtualDeletionWrapper wraps a WritableMaterializedData and a set of
// "removed" atoms that Remove adds to without mutating the underlying
// store. This is the only retraction path the core supports; there is
// no incremental maintenance under retraction except through this
// wrapper.
type VirtualDeletionWrapper struct {
	inner   WritableMaterializedData
	mu      sync.RWMutex
	removed map[string]term.Atom
}

// NewVirtualDeletionWrapper wraps inner.
func NewVirtualDeletionWrapper(inner WritableMaterializedData) *VirtualDeletionWrapper {
	return &VirtualDeletionWrapper{inner: inner, removed: make(map[string]term.Atom)}
}

func (w *VirtualDeletionWrapper) isRemoved(a term.Atom) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.removed[a.Key()]
	return ok
}

// Contains reports whether a is in the underlying store and not virtually
// removed.
func (w *VirtualDeletionWrapper) Contains(a term.Atom) bool {
	if w.isRemoved(a) {
		return false
	}
	if mem, ok := w.inner.(*InMemoryFactBase); ok {
		return mem.Contains(a)
	}
	it := w.inner.Iterate()
	for {
		cand, ok, err := it.Next()
		if err != nil || !ok {
			return false
		}
		if cand.Equals(a) {
			return true
		}
	}
}

// Remove adds a to the virtual removal set without touching inner.
func (w *VirtualDeletionWrapper) Remove(a term.Atom) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removed[a.Key()] = a
	return nil
}

// RemoveAll virtually removes a batch of atoms.
func (w *VirtualDeletionWrapper) RemoveAll(atoms []term.Atom) error {
	for _, a := range atoms {
		if err := w.Remove(a); err != nil {
			return err
		}
	}
	return nil
}

// Add delegates to the underlying store, and un-marks the atom as removed
// if it had been virtually deleted.
func (w *VirtualDeletionWrapper) Add(a term.Atom) (bool, error) {
	w.mu.Lock()
	delete(w.removed, a.Key())
	w.mu.Unlock()
	return w.inner.Add(a)
}

func (w *VirtualDeletionWrapper) AddAll(atoms []term.Atom) (int, error) {
	added := 0
	for _, a := range atoms {
		ok, err := w.Add(a)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func (w *VirtualDeletionWrapper) GetPredicates() []*term.Predicate { return w.inner.GetPredicates() }
func (w *VirtualDeletionWrapper) HasPredicate(p *term.Predicate) bool { return w.inner.HasPredicate(p) }
func (w *VirtualDeletionWrapper) GetAtomicPattern(p *term.Predicate) (AtomicPattern, error) {
	return w.inner.GetAtomicPattern(p)
}
func (w *VirtualDeletionWrapper) CanEvaluate(q BasicQuery) bool { return w.inner.CanEvaluate(q) }
func (w *VirtualDeletionWrapper) AcceptsPredicate(p *term.Predicate) bool {
	return w.inner.AcceptsPredicate(p)
}
func (w *VirtualDeletionWrapper) AcceptsAtom(a term.Atom) bool { return w.inner.AcceptsAtom(a) }

// Evaluate filters out virtually-removed atoms by re-checking membership
// of the projected tuple against the full atom, which requires a
// predicate-aware re-scan rather than a cheap tuple filter; only while
// nothing at all has been virtually removed does this degrade to the
// inner store's own Evaluate.
func (w *VirtualDeletionWrapper) Evaluate(q BasicQuery) (TupleIter, error) {
	w.mu.RLock()
	anyRemoved := len(w.removed) > 0
	w.mu.RUnlock()
	if !anyRemoved {
		return w.inner.Evaluate(q)
	}

	it := w.inner.Iterate()
	order := q.AnswerOrder()
	var tuples []Tuple
	for {
		a, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if a.Predicate != q.Predicate || w.isRemoved(a) {
			continue
		}
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

// Iterate skips virtually-removed atoms.
func (w *VirtualDeletionWrapper) Iterate() AtomIter {
	return &filteredAtomIter{inner: w.inner.Iterate(), skip: w.isRemoved}
}

type filteredAtomIter struct {
	inner AtomIter
	skip  func(term.Atom) bool
}

func (f *filteredAtomIter) Next() (term.Atom, bool, error) {
	for {
		a, ok, err := f.inner.Next()
		if err != nil || !ok {
			return term.Atom{}, ok, err
		}
		if !f.skip(a) {
			return a, true, nil
		}
	}
}

func (w *VirtualDeletionWrapper) Constants() []*term.Constant { return w.inner.Constants() }
func (w *VirtualDeletionWrapper) Variables() []*term.Variable { return w.inner.Variables() }
func (w *VirtualDeletionWrapper) Terms() []term.Term           { return w.inner.Terms() }

// ConcreteDeletions drains the virtual set into real removals against the
// underlying store, returning the atoms actually removed.
func (w *VirtualDeletionWrapper) ConcreteDeletions() ([]term.Atom, error) {
	w.mu.Lock()
	pending := make([]term.Atom, 0, len(w.removed))
	for _, a := range w.removed {
		pending = append(pending, a)
	}
	w.removed = make(map[string]term.Atom)
	w.mu.Unlock()

	for _, a := range pending {
		if err := w.inner.Remove(a); err != nil {
			return nil, err
		}
	}
	return pending, nil
}
