package term

import (
	"strconv"
	"strings"

	"github.com/dbchase/chasecore/internal/chaseerr"
)

// Atom is a predicate applied to a tuple of terms whose length matches
// the predicate's arity. Equality and hash are structural over
// (predicate, terms) — see Equals and Key.
type Atom struct {
	Predicate *Predicate
	Terms     []Term
}

// NewAtom validates arity and builds an Atom. Arity mismatch is an
// AtomValidationError, eager and fatal.
func NewAtom(pred *Predicate, terms ...Term) (Atom, error) {
	if len(terms) != pred.Arity() {
		return Atom{}, chaseerr.NewAtomValidationError(pred.String(),
			"arity mismatch: predicate expects "+strconv.Itoa(pred.Arity())+" terms, got "+strconv.Itoa(len(terms)))
	}
	return Atom{Predicate: pred, Terms: terms}, nil
}

// MustAtom is NewAtom that panics on error; reserved for call sites
// building atoms from already-validated internal data (e.g. applying a
// substitution to an existing, valid atom never changes its arity).
func MustAtom(pred *Predicate, terms ...Term) Atom {
	a, err := NewAtom(pred, terms...)
	if err != nil {
		panic(err)
	}
	return a
}

// IsGround reports whether every term of the atom is ground.
func (a Atom) IsGround() bool {
	for _, t := range a.Terms {
		if !t.IsGround() {
			return false
		}
	}
	return true
}

// Variables returns the set of distinct free variables appearing in a,
// recursing into function-term arguments.
func (a Atom) Variables() map[*Variable]struct{} {
	vars := make(map[*Variable]struct{})
	for _, t := range a.Terms {
		collectVariables(t, vars)
	}
	return vars
}

func collectVariables(t Term, out map[*Variable]struct{}) {
	switch v := t.(type) {
	case *Variable:
		out[v] = struct{}{}
	case *FunctionTerm:
		for _, arg := range v.Args() {
			collectVariables(arg, out)
		}
	}
}

// Key returns a stable string key suitable for use as a map key / hash,
// derived structurally from (predicate, terms).
func (a Atom) Key() string {
	var b strings.Builder
	b.WriteString(a.Predicate.String())
	b.WriteByte('(')
	for i, t := range a.Terms {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.Identifier())
	}
	b.WriteByte(')')
	return b.String()
}

// Equals reports structural equality over (predicate, terms).
func (a Atom) Equals(o Atom) bool {
	return a.Key() == o.Key()
}

func (a Atom) String() string {
	parts := make([]string, len(a.Terms))
	for i, t := range a.Terms {
		parts[i] = t.String()
	}
	return a.Predicate.Name() + "(" + strings.Join(parts, ", ") + ")"
}

