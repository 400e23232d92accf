package chase

import (
	"sync"

	"github.com/dbchase/chasecore/internal/eval"
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/subst"
	"github.com/dbchase/chasecore/internal/term"
)

// TriggerChecker decides whether a candidate (rule, substitution) trigger
// should actually fire. Checkers are stateful
// across the whole chase run (the Oblivious family memoizes what has
// already fired).
type TriggerChecker interface {
	ShouldFire(r *formula.Rule, sub *subst.Substitution, target store.MaterializedData) bool
}

// AlwaysTrueChecker fires unconditionally. Only safe for datalog rule
// bases (no existentials) combined with a step or fact limit, since
// nothing here stops the same trigger from firing every step.
type AlwaysTrueChecker struct{}

func (AlwaysTrueChecker) ShouldFire(r *formula.Rule, sub *subst.Substitution, target store.MaterializedData) bool {
	return true
}

// ObliviousChecker fires a trigger iff (rule, normalized substitution) has
// not fired before in this chase run.
type ObliviousChecker struct {
	mu   sync.Mutex
	seen map[*formula.Rule]map[string]struct{}
}

func NewObliviousChecker() *ObliviousChecker {
	return &ObliviousChecker{seen: make(map[*formula.Rule]map[string]struct{})}
}

func (c *ObliviousChecker) ShouldFire(r *formula.Rule, sub *subst.Substitution, target store.MaterializedData) bool {
	key := sub.Normalize().Key()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[r] == nil {
		c.seen[r] = make(map[string]struct{})
	}
	if _, fired := c.seen[r][key]; fired {
		return false
	}
	c.seen[r][key] = struct{}{}
	return true
}

// SemiObliviousChecker fires iff (rule, substitution restricted to the
// frontier) has not fired before — coarser-grained than Oblivious since
// it ignores bindings of body-only variables.
type SemiObliviousChecker struct {
	mu   sync.Mutex
	seen map[*formula.Rule]map[string]struct{}
}

func NewSemiObliviousChecker() *SemiObliviousChecker {
	return &SemiObliviousChecker{seen: make(map[*formula.Rule]map[string]struct{})}
}

func (c *SemiObliviousChecker) ShouldFire(r *formula.Rule, sub *subst.Substitution, target store.MaterializedData) bool {
	frontier := r.Head.FreeVariables()
	key := sub.Restrict(frontier).Normalize().Key()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[r] == nil {
		c.seen[r] = make(map[string]struct{})
	}
	if _, fired := c.seen[r][key]; fired {
		return false
	}
	c.seen[r][key] = struct{}{}
	return true
}

// RestrictedChecker fires iff the head under sub has no image in target:
// existential variables the renamer has not yet replaced may map to any
// stored term, so a head already satisfied by existing facts is skipped.
type RestrictedChecker struct{}

func (RestrictedChecker) ShouldFire(r *formula.Rule, sub *subst.Substitution, target store.MaterializedData) bool {
	atoms := headAtoms(r, sub)
	if len(atoms) == 0 {
		return true
	}
	return !isRedundant(eval.New(target), atoms)
}

func containsAtom(target store.MaterializedData, a term.Atom) bool {
	if mem, ok := target.(*store.InMemoryFactBase); ok {
		return mem.Contains(a)
	}
	if vd, ok := target.(*store.VirtualDeletionWrapper); ok {
		return vd.Contains(a)
	}
	it := target.Iterate()
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

// EquivalentChecker is RestrictedChecker plus a local homomorphism-
// equivalence test: it additionally rejects a trigger whose new atoms,
// once added, would be homomorphically redundant against the data ev
// searches (i.e. there is already a homomorphism from candidate into
// that data, so adding candidate would not change anything up to
// isomorphism). This is the most expensive checker by far; ev is
// finalized to the merged
// view by builder.Build, not at construction time, since the chasable
// data isn't known yet when FromConfig assembles policy components.
type EquivalentChecker struct {
	ev *eval.Evaluator
}

func NewEquivalentChecker(ev *eval.Evaluator) *EquivalentChecker {
	return &EquivalentChecker{ev: ev}
}

// SetEvaluator replaces the evaluator the redundancy test runs against.
// builder.Build calls this once the chasable data is known.
func (c *EquivalentChecker) SetEvaluator(ev *eval.Evaluator) {
	c.ev = ev
}

func (c *EquivalentChecker) ShouldFire(r *formula.Rule, sub *subst.Substitution, target store.MaterializedData) bool {
	newAtoms := headAtoms(r, sub)
	var pending []term.Atom
	for _, a := range newAtoms {
		if !containsAtom(target, a) {
			pending = append(pending, a)
		}
	}
	if len(pending) == 0 {
		return false
	}
	return !isRedundant(c.ev, pending)
}

// isRedundant reports whether candidate already has a homomorphic image
// in the data ev searches: a conjunctive join over candidate's atoms,
// with every variable they mention (including existentials the renamer
// hasn't touched yet) left unbound as a wildcard, succeeds iff some
// witness for the whole candidate already exists — the actual
// homomorphism test, not a per-atom membership check.
func isRedundant(ev *eval.Evaluator, candidate []term.Atom) bool {
	found := false
	_ = ev.JoinAtoms(candidate, subst.New(), func(*subst.Substitution) bool {
		found = true
		return false
	})
	return found
}

// MultiChecker is the logical AND of its component checkers: a trigger
// fires only if every component agrees.
type MultiChecker struct {
	Checkers []TriggerChecker
}

func NewMultiChecker(checkers ...TriggerChecker) *MultiChecker {
	return &MultiChecker{Checkers: checkers}
}

func (c *MultiChecker) ShouldFire(r *formula.Rule, sub *subst.Substitution, target store.MaterializedData) bool {
	for _, checker := range c.Checkers {
		if !checker.ShouldFire(r, sub, target) {
			return false
		}
	}
	return true
}
