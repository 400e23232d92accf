// Package subst implements the substitution engine: a partial mapping
// from variables to terms, its application to terms/atoms, composition,
// and normalization.
package subst

import (
	"sort"

	"github.com/dbchase/chasecore/internal/term"
)

// Substitution is a partial mapping from Variable to Term. It never maps
// a variable to itself — Extend, FromMap, Compose and Normalize all
// silently drop such bindings instead of storing them.
type Substitution struct {
	bindings map[*term.Variable]term.Term
}

// New returns the empty substitution.
func New() *Substitution {
	return &Substitution{bindings: make(map[*term.Variable]term.Term)}
}

// FromMap builds a Substitution from a ready map, stripping identity
// entries (v -> v).
func FromMap(m map[*term.Variable]term.Term) *Substitution {
	s := New()
	for v, t := range m {
		s.set(v, t)
	}
	return s
}

func (s *Substitution) set(v *term.Variable, t term.Term) {
	if tv, ok := t.(*term.Variable); ok && tv == v {
		return
	}
	s.bindings[v] = t
}

// Copy returns an independent shallow copy.
func (s *Substitution) Copy() *Substitution {
	cp := make(map[*term.Variable]term.Term, len(s.bindings))
	for k, v := range s.bindings {
		cp[k] = v
	}
	return &Substitution{bindings: cp}
}

// Get looks up the direct image of v, without recursing through chained
// bindings (callers wanting the fully-applied value should use Apply).
func (s *Substitution) Get(v *term.Variable) (term.Term, bool) {
	t, ok := s.bindings[v]
	return t, ok
}

// Extend returns a new Substitution with v bound to t added. If v is
// already bound to a different term, the new binding replaces it (the
// homomorphism engine is responsible for consistency checks before
// calling Extend — see eval's join matching).
func (s *Substitution) Extend(v *term.Variable, t term.Term) *Substitution {
	cp := s.Copy()
	cp.set(v, t)
	return cp
}

// Domain returns the bound variables, in a deterministic (sorted by
// name) order so callers get reproducible iteration.
func (s *Substitution) Domain() []*term.Variable {
	vars := make([]*term.Variable, 0, len(s.bindings))
	for v := range s.bindings {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name() < vars[j].Name() })
	return vars
}

// Len reports the number of bindings.
func (s *Substitution) Len() int { return len(s.bindings) }

// Apply rewrites a term by replacing each free variable in the
// substitution's domain with its image. Function terms recurse
// structurally. Terms that are neither variables nor
// function terms containing variables are returned unchanged.
func (s *Substitution) Apply(t term.Term) term.Term {
	switch v := t.(type) {
	case *term.Variable:
		if img, ok := s.bindings[v]; ok {
			return img
		}
		return t
	case *term.FunctionTerm:
		args := v.Args()
		newArgs := make([]term.Term, len(args))
		changed := false
		for i, a := range args {
			na := s.Apply(a)
			newArgs[i] = na
			if na != a {
				changed = true
			}
		}
		if !changed {
			return t
		}
		if v.Evaluable() {
			return term.NewEvaluableFunctionTerm(v.Name(), newArgs...)
		}
		return term.NewLogicalFunctionTerm(v.Name(), newArgs...)
	default:
		return t
	}
}

// ApplyAtom rewrites every term of an atom.
func (s *Substitution) ApplyAtom(a term.Atom) term.Atom {
	newTerms := make([]term.Term, len(a.Terms))
	for i, t := range a.Terms {
		newTerms[i] = s.Apply(t)
	}
	return term.Atom{Predicate: a.Predicate, Terms: newTerms}
}

// ApplyAtoms rewrites a slice of atoms.
func (s *Substitution) ApplyAtoms(atoms []term.Atom) []term.Atom {
	out := make([]term.Atom, len(atoms))
	for i, a := range atoms {
		out[i] = s.ApplyAtom(a)
	}
	return out
}

// Compose builds sigma such that for every variable v,
// sigma(v) = a(b(v)): apply b first, then a. Entries of a not shadowed by
// b are carried over. Identity entries are stripped.
func Compose(a, b *Substitution) *Substitution {
	out := New()
	for v, t := range b.bindings {
		out.set(v, a.Apply(t))
	}
	for v, t := range a.bindings {
		if _, shadowed := b.bindings[v]; !shadowed {
			out.set(v, t)
		}
	}
	return out
}

// Normalize returns a canonical form with no identity entries. Since Extend
// and Compose already refuse identity entries, Normalize is idempotent by
// construction; it exists as an explicit operation because callers (e.g.
// after composing several substitutions) may want to force the invariant
// without tracking whether it already held.
func (s *Substitution) Normalize() *Substitution {
	out := New()
	for v, t := range s.bindings {
		out.set(v, t)
	}
	return out
}

// Restrict returns the substitution with domain limited to vars.
func (s *Substitution) Restrict(vars map[*term.Variable]struct{}) *Substitution {
	out := New()
	for v := range vars {
		if t, ok := s.bindings[v]; ok {
			out.set(v, t)
		}
	}
	return out
}

// Equal reports whether two substitutions have identical bindings.
func (s *Substitution) Equal(o *Substitution) bool {
	if len(s.bindings) != len(o.bindings) {
		return false
	}
	for v, t := range s.bindings {
		ot, ok := o.bindings[v]
		if !ok || ot.Identifier() != t.Identifier() {
			return false
		}
	}
	return true
}

// Key returns a stable string encoding the substitution, suitable for use
// as a cache key by pseudo-skolem renamers.
func (s *Substitution) Key() string {
	vars := s.Domain()
	key := ""
	for _, v := range vars {
		key += v.Name() + "=" + s.bindings[v].Identifier() + ";"
	}
	return key
}
