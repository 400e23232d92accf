package eval

import (
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/subst"
	"github.com/dbchase/chasecore/internal/term"
)

// Evaluator evaluates conjunctive queries and first-order formulas against
// a single store.Data (typically a ChasableData's merged view).
type Evaluator struct {
	data store.Data
	sess *term.Session
}

// New builds an Evaluator over data. Without a session, evaluable
// function terms in query atoms are matched structurally instead of being
// expanded into computed-predicate atoms; use NewWithSession when the
// query body can contain them.
func New(data store.Data) *Evaluator {
	return &Evaluator{data: data}
}

// NewWithSession builds an Evaluator over data whose prepare step can
// intern fresh variables and computed predicates in sess, enabling
// function-term expansion in the prepare step.
func NewWithSession(data store.Data, sess *term.Session) *Evaluator {
	return &Evaluator{data: data, sess: sess}
}

// Session returns the session this evaluator interns into, or nil.
func (e *Evaluator) Session() *term.Session { return e.sess }

// Data returns the store.Data this evaluator searches against, so callers
// that need to layer an auxiliary view on top (e.g. a delta-excluded view
// for semi-naive trigger computation, chase/triggercomputer.go) can build
// it from the same source rather than a narrower stand-in.
func (e *Evaluator) Data() store.Data { return e.data }

// JoinAtoms performs a backtracking homomorphism search over atoms, joining
// on shared variables, seeded by base. Before the search, evaluable
// function terms are expanded into computed-predicate atoms and equality
// atoms are resolved by eager unification.
// Each solution is reported to yield; returning false from yield stops the
// search early.
func (e *Evaluator) JoinAtoms(atoms []term.Atom, base *subst.Substitution, yield func(*subst.Substitution) bool) error {
	expanded := e.expandFunctionAtoms(atoms)
	rest, seeded, satisfiable := resolveEqualities(expanded, base)
	if !satisfiable {
		return nil
	}
	emit := yield
	if seeded != base {
		// Unification may have produced variable-to-variable bindings whose
		// image only becomes ground later in the join; flatten those chains
		// so every emitted substitution maps straight to its final image.
		emit = func(s *subst.Substitution) bool { return yield(flattenChains(s)) }
	}
	ordered := planJoin(e.data, rest, seeded)
	err := e.joinStep(ordered, 0, seeded, emit)
	if err == errStop {
		return nil
	}
	return err
}

func flattenChains(s *subst.Substitution) *subst.Substitution {
	out := subst.New()
	for _, v := range s.Domain() {
		t, _ := s.Get(v)
		for {
			nt := s.Apply(t)
			if nt.Identifier() == t.Identifier() {
				break
			}
			t = nt
		}
		out = out.Extend(v, t)
	}
	return out
}

// expandFunctionAtoms rewrites every evaluable function term appearing in
// an atom into a fresh result variable plus an explicit atom over the
// matching computed predicate, innermost first so nested
// calls chain through intermediate variables. Logical function terms are
// data and stay in place. Requires a session to intern into; without one
// the atoms pass through untouched.
func (e *Evaluator) expandFunctionAtoms(atoms []term.Atom) []term.Atom {
	if e.sess == nil {
		return atoms
	}
	out := make([]term.Atom, 0, len(atoms))
	var extra []term.Atom
	for _, a := range atoms {
		var replaced []term.Term
		for pos, t := range a.Terms {
			nt, added := e.expandTerm(t)
			if len(added) == 0 {
				continue
			}
			if replaced == nil {
				replaced = append([]term.Term(nil), a.Terms...)
			}
			replaced[pos] = nt
			extra = append(extra, added...)
		}
		if replaced != nil {
			out = append(out, term.MustAtom(a.Predicate, replaced...))
		} else {
			out = append(out, a)
		}
	}
	return append(out, extra...)
}

func (e *Evaluator) expandTerm(t term.Term) (term.Term, []term.Atom) {
	ft, ok := t.(*term.FunctionTerm)
	if !ok || !ft.Evaluable() {
		return t, nil
	}
	var extra []term.Atom
	args := make([]term.Term, len(ft.Args()))
	for i, arg := range ft.Args() {
		na, added := e.expandTerm(arg)
		args[i] = na
		extra = append(extra, added...)
	}
	result := e.sess.FreshVariable()
	pred := e.sess.Predicate(ft.Name(), len(args)+1)
	return result, append(extra, term.MustAtom(pred, append(args, term.Term(result))...))
}

// resolveEqualities strips "=" atoms out of the conjunction by eager
// substitution: a variable side is unified with the other side, two
// non-variable sides must already be the same term. The
// third return is false when a ground equality fails, meaning the whole
// conjunction has no solutions.
func resolveEqualities(atoms []term.Atom, base *subst.Substitution) ([]term.Atom, *subst.Substitution, bool) {
	sub := base
	rest := make([]term.Atom, 0, len(atoms))
	for _, a := range atoms {
		if !a.Predicate.IsEquality() {
			rest = append(rest, a)
			continue
		}
		l := sub.Apply(a.Terms[0])
		r := sub.Apply(a.Terms[1])
		lv, lIsVar := l.(*term.Variable)
		rv, rIsVar := r.(*term.Variable)
		switch {
		case lIsVar && rIsVar && lv == rv:
			// X = X holds vacuously.
		case lIsVar:
			sub = sub.Extend(lv, r)
		case rIsVar:
			sub = sub.Extend(rv, l)
		default:
			if l.Identifier() != r.Identifier() {
				return nil, nil, false
			}
		}
	}
	return rest, sub, true
}

func (e *Evaluator) joinStep(ordered []planAtom, i int, sub *subst.Substitution, yield func(*subst.Substitution) bool) error {
	if i >= len(ordered) {
		if !yield(sub) {
			return errStop
		}
		return nil
	}
	a := sub.ApplyAtom(ordered[i].atom)
	q := instantiate(a, sub)

	if !e.data.HasPredicate(a.Predicate) {
		return nil // unknown predicate contributes zero tuples, not an error
	}
	it, err := e.data.Evaluate(q)
	if err != nil {
		return err
	}
	order := q.AnswerOrder()
	for {
		row, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		extended := sub
		consistent := true
		for idx, pos := range order {
			v := q.AnswerVars[pos]
			existing, bound := extended.Get(v)
			if bound {
				if existing.Identifier() != row[idx].Identifier() {
					consistent = false
					break
				}
				continue
			}
			extended = extended.Extend(v, row[idx])
		}
		if !consistent {
			continue
		}
		if err := e.joinStep(ordered, i+1, extended, yield); err != nil {
			if err == errStop {
				return errStop
			}
			return err
		}
	}
	return nil
}

// sentinel used to unwind the recursive join search once yield asks to stop.
var errStop = stopError{}

type stopError struct{}

func (stopError) Error() string { return "eval: join stopped by consumer" }
