// Package mangleio converts ground atoms between this engine's term model
// and github.com/google/mangle/ast, so the saturated, existential-free
// fragment of a chase result can be cross-checked against a real third-party
// Datalog engine. Only ground atoms
// round-trip: a labeled null (Variable, BlankNode) or a function term has no
// faithful mangle representation and is rejected rather than silently
// coerced into a string.
//
// The conversion sticks to the ast.Atom{Predicate, Args} /
// ast.Constant{Type, Symbol, NumValue} shapes mangle's own factstore
// produces and consumes.
package mangleio

import (
	"fmt"
	"strconv"

	"github.com/google/mangle/ast"

	"github.com/dbchase/chasecore/internal/chaseerr"
	"github.com/dbchase/chasecore/internal/term"
)

// ToMangleAtom converts a ground term.Atom into an ast.Atom. It returns an
// UnsupportedOperationError if a is not ground or carries a term kind that
// has no mangle counterpart (function terms, blank nodes).
func ToMangleAtom(a term.Atom) (ast.Atom, error) {
	if !a.IsGround() {
		return ast.Atom{}, chaseerr.NewUnsupportedOperationError("mangleio.ToMangleAtom",
			fmt.Sprintf("atom %s is not ground: only fully ground atoms can cross into mangle", a))
	}

	args := make([]ast.BaseTerm, len(a.Terms))
	for i, t := range a.Terms {
		mt, err := toMangleTerm(t)
		if err != nil {
			return ast.Atom{}, err
		}
		args[i] = mt
	}

	sym := ast.PredicateSym{Symbol: a.Predicate.Name(), Arity: a.Predicate.Arity()}
	return ast.Atom{Predicate: sym, Args: args}, nil
}

func toMangleTerm(t term.Term) (ast.BaseTerm, error) {
	switch v := t.(type) {
	case *term.Constant:
		return mangleConstantFromString(v.Identifier()), nil
	case *term.Literal:
		return mangleConstantFromLiteral(v), nil
	default:
		return nil, chaseerr.NewUnsupportedOperationError("mangleio.ToMangleAtom",
			fmt.Sprintf("term %q of kind %v has no mangle representation", t.String(), t.Kind()))
	}
}

// mangleConstantFromString builds the ast.Constant for an opaque constant
// identifier: a plain integer prints as ast.Number, everything else as
// ast.String.
func mangleConstantFromString(id string) ast.Constant {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return ast.Number(n)
	}
	return ast.String(id)
}

func mangleConstantFromLiteral(l *term.Literal) ast.Constant {
	switch l.Datatype() {
	case "xsd:integer", "xsd:int", "xsd:long":
		if n, err := strconv.ParseInt(l.Value(), 10, 64); err == nil {
			return ast.Number(n)
		}
	}
	return ast.String(l.Value())
}

// FromMangleAtom converts an ast.Atom back into a ground term.Atom, interning
// its predicate and constants through sess. Every Constant.Type variant
// mangle can emit is handled;
// an ast.Variable or ast.ApplyFn argument is rejected since mangle never
// hands back a non-ground answer atom from a query over an extensional base.
func FromMangleAtom(sess *term.Session, a ast.Atom) (term.Atom, error) {
	pred := sess.Predicate(a.Predicate.Symbol, a.Predicate.Arity)

	terms := make([]term.Term, len(a.Args))
	for i, arg := range a.Args {
		t, err := fromMangleTerm(sess, arg)
		if err != nil {
			return term.Atom{}, err
		}
		terms[i] = t
	}
	return term.NewAtom(pred, terms...)
}

func fromMangleTerm(sess *term.Session, bt ast.BaseTerm) (term.Term, error) {
	c, ok := bt.(ast.Constant)
	if !ok {
		return nil, chaseerr.NewUnsupportedOperationError("mangleio.FromMangleAtom",
			fmt.Sprintf("term %v is not ground (kind %T)", bt, bt))
	}

	switch c.Type {
	case ast.StringType, ast.NameType, ast.BytesType:
		return sess.Constant(c.Symbol), nil
	case ast.NumberType:
		return sess.Constant(strconv.FormatInt(c.NumValue, 10)), nil
	case ast.Float64Type:
		return sess.Constant(c.String()), nil
	default:
		return sess.Constant(c.String()), nil
	}
}

// ToMangleAtoms converts a slice of ground atoms, stopping at the first one
// that fails to convert.
func ToMangleAtoms(atoms []term.Atom) ([]ast.Atom, error) {
	out := make([]ast.Atom, 0, len(atoms))
	for _, a := range atoms {
		ma, err := ToMangleAtom(a)
		if err != nil {
			return nil, err
		}
		out = append(out, ma)
	}
	return out, nil
}
