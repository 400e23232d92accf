// Package formula implements the Formula sum type (Atom, Conjunction,
// Disjunction, Negation, Existential, Universal), and the Rule/RuleBase
// types built over it.
package formula

import (
	"fmt"

	"github.com/dbchase/chasecore/internal/term"
)

// Kind tags the closed set of formula variants.
type Kind int

const (
	KindAtom Kind = iota
	KindConjunction
	KindDisjunction
	KindNegation
	KindExistential
	KindUniversal
)

// Formula is the closed sum type dispatched by the evaluator (internal/eval)
// via a type switch, never a vtable hierarchy.
type Formula interface {
	Kind() Kind
	// FreeVariables returns the variables with at least one free
	// occurrence in the formula.
	FreeVariables() map[*term.Variable]struct{}
	// BoundVariables returns the variables bound by an enclosing
	// quantifier within the formula.
	BoundVariables() map[*term.Variable]struct{}
	// Atoms returns every atom reachable without crossing a Negation.
	Atoms() []term.Atom
	String() string
}

// AtomFormula wraps a single atom as a Formula.
type AtomFormula struct {
	Atom term.Atom
}

func (f AtomFormula) Kind() Kind { return KindAtom }
func (f AtomFormula) FreeVariables() map[*term.Variable]struct{} {
	return f.Atom.Variables()
}
func (f AtomFormula) BoundVariables() map[*term.Variable]struct{} {
	return map[*term.Variable]struct{}{}
}
func (f AtomFormula) Atoms() []term.Atom { return []term.Atom{f.Atom} }
func (f AtomFormula) String() string     { return f.Atom.String() }

// ConjunctionFormula is the logical AND of Left and Right.
type ConjunctionFormula struct {
	Left, Right Formula
}

func (f ConjunctionFormula) Kind() Kind { return KindConjunction }
func (f ConjunctionFormula) FreeVariables() map[*term.Variable]struct{} {
	return union(f.Left.FreeVariables(), f.Right.FreeVariables())
}
func (f ConjunctionFormula) BoundVariables() map[*term.Variable]struct{} {
	return union(f.Left.BoundVariables(), f.Right.BoundVariables())
}
func (f ConjunctionFormula) Atoms() []term.Atom {
	return append(f.Left.Atoms(), f.Right.Atoms()...)
}
func (f ConjunctionFormula) String() string {
	return fmt.Sprintf("(%s ∧ %s)", f.Left, f.Right)
}

// DisjunctionFormula is the logical OR of Left and Right.
type DisjunctionFormula struct {
	Left, Right Formula
}

func (f DisjunctionFormula) Kind() Kind { return KindDisjunction }
func (f DisjunctionFormula) FreeVariables() map[*term.Variable]struct{} {
	return union(f.Left.FreeVariables(), f.Right.FreeVariables())
}
func (f DisjunctionFormula) BoundVariables() map[*term.Variable]struct{} {
	return union(f.Left.BoundVariables(), f.Right.BoundVariables())
}
func (f DisjunctionFormula) Atoms() []term.Atom {
	return append(f.Left.Atoms(), f.Right.Atoms()...)
}
func (f DisjunctionFormula) String() string {
	return fmt.Sprintf("(%s ∨ %s)", f.Left, f.Right)
}

// NegationFormula is the logical NOT of Inner. Atoms() does not recurse
// into Inner: negated atoms are not reachable without crossing negation.
type NegationFormula struct {
	Inner Formula
}

func (f NegationFormula) Kind() Kind { return KindNegation }
func (f NegationFormula) FreeVariables() map[*term.Variable]struct{} {
	return f.Inner.FreeVariables()
}
func (f NegationFormula) BoundVariables() map[*term.Variable]struct{} {
	return f.Inner.BoundVariables()
}
func (f NegationFormula) Atoms() []term.Atom { return nil }
func (f NegationFormula) String() string     { return fmt.Sprintf("¬%s", f.Inner) }

// ExistentialFormula is ∃Var. Inner.
type ExistentialFormula struct {
	Var   *term.Variable
	Inner Formula
}

func (f ExistentialFormula) Kind() Kind { return KindExistential }
func (f ExistentialFormula) FreeVariables() map[*term.Variable]struct{} {
	fv := copySet(f.Inner.FreeVariables())
	delete(fv, f.Var)
	return fv
}
func (f ExistentialFormula) BoundVariables() map[*term.Variable]struct{} {
	bv := copySet(f.Inner.BoundVariables())
	bv[f.Var] = struct{}{}
	return bv
}
func (f ExistentialFormula) Atoms() []term.Atom { return f.Inner.Atoms() }
func (f ExistentialFormula) String() string {
	return fmt.Sprintf("∃%s.%s", f.Var.Name(), f.Inner)
}

// UniversalFormula is ∀Var. Inner. Nothing in this repository builds one;
// the evaluator implements it as ¬∃Var.¬Inner.
type UniversalFormula struct {
	Var   *term.Variable
	Inner Formula
}

func (f UniversalFormula) Kind() Kind { return KindUniversal }
func (f UniversalFormula) FreeVariables() map[*term.Variable]struct{} {
	fv := copySet(f.Inner.FreeVariables())
	delete(fv, f.Var)
	return fv
}
func (f UniversalFormula) BoundVariables() map[*term.Variable]struct{} {
	bv := copySet(f.Inner.BoundVariables())
	bv[f.Var] = struct{}{}
	return bv
}
func (f UniversalFormula) Atoms() []term.Atom { return f.Inner.Atoms() }
func (f UniversalFormula) String() string {
	return fmt.Sprintf("∀%s.%s", f.Var.Name(), f.Inner)
}

func union(a, b map[*term.Variable]struct{}) map[*term.Variable]struct{} {
	out := copySet(a)
	for v := range b {
		out[v] = struct{}{}
	}
	return out
}

func copySet(a map[*term.Variable]struct{}) map[*term.Variable]struct{} {
	out := make(map[*term.Variable]struct{}, len(a))
	for v := range a {
		out[v] = struct{}{}
	}
	return out
}

// Conjoin folds a list of formulas into a right-leaning ConjunctionFormula
// chain. An empty list is not valid; callers needing "true" should handle
// that case explicitly (an empty conjunctive-query body, for instance, is
// represented at the eval layer, not here — eval.Evaluator.JoinAtoms
// yields its seed substitution for an empty atom list).
func Conjoin(fs []Formula) Formula {
	if len(fs) == 0 {
		panic("formula: Conjoin called with no formulas")
	}
	out := fs[len(fs)-1]
	for i := len(fs) - 2; i >= 0; i-- {
		out = ConjunctionFormula{Left: fs[i], Right: out}
	}
	return out
}
