package store

import (
	"github.com/dbchase/chasecore/internal/term"
)

// ComputedFunction is a single registered function: Forward computes the
// output given inputs; Backward (optional) computes one missing input
// given all the others plus the output, for use when the output is bound
// but an input is not.
type ComputedFunction struct {
	Name     string
	Arity    int // number of inputs; the predicate has Arity+1 positions
	Forward  func(inputs []term.Term) (term.Term, error)
	Backward func(knownInputs map[int]term.Term, output term.Term) (missingIndex int, value term.Term, err error)
}

// ComputedPredicateSource exposes one computed predicate per registered
// function, each with an extra "result" position at the end. The set of
// recognized functions is extensible via Register.
type ComputedPredicateSource struct {
	sess      *term.Session
	functions map[*term.Predicate]*ComputedFunction
}

// NewComputedPredicateSource builds an empty registry for sess.
func NewComputedPredicateSource(sess *term.Session) *ComputedPredicateSource {
	return &ComputedPredicateSource{sess: sess, functions: make(map[*term.Predicate]*ComputedFunction)}
}

// Register adds fn as a computed predicate "name/arity+1".
func (c *ComputedPredicateSource) Register(fn *ComputedFunction) *term.Predicate {
	pred := c.sess.Predicate(fn.Name, fn.Arity+1)
	c.functions[pred] = fn
	return pred
}

// ResolveGround forward-evaluates every evaluable function term inside t
// whose arguments are ground, innermost first, so nested calls resolve
// through their intermediate results. Unknown functions, non-ground
// arguments, and evaluation failures leave the term as it was.
func (c *ComputedPredicateSource) ResolveGround(t term.Term) term.Term {
	ft, ok := t.(*term.FunctionTerm)
	if !ok {
		return t
	}
	args := make([]term.Term, len(ft.Args()))
	changed := false
	for i, a := range ft.Args() {
		na := c.ResolveGround(a)
		args[i] = na
		if na != a {
			changed = true
		}
	}
	if !ft.Evaluable() {
		if changed {
			return term.NewLogicalFunctionTerm(ft.Name(), args...)
		}
		return t
	}
	allGround := true
	for _, a := range args {
		if !a.IsGround() {
			allGround = false
			break
		}
	}
	fn := c.functions[c.sess.Predicate(ft.Name(), len(args)+1)]
	if fn == nil || !allGround {
		if changed {
			return term.NewEvaluableFunctionTerm(ft.Name(), args...)
		}
		return t
	}
	out, err := fn.Forward(args)
	if err != nil {
		if changed {
			return term.NewEvaluableFunctionTerm(ft.Name(), args...)
		}
		return t
	}
	return out
}

func (c *ComputedPredicateSource) GetPredicates() []*term.Predicate {
	out := make([]*term.Predicate, 0, len(c.functions))
	for p := range c.functions {
		out = append(out, p)
	}
	return out
}

func (c *ComputedPredicateSource) HasPredicate(p *term.Predicate) bool {
	_, ok := c.functions[p]
	return ok
}

func (c *ComputedPredicateSource) GetAtomicPattern(p *term.Predicate) (AtomicPattern, error) {
	constraints := make([]PositionConstraint, p.Arity())
	for i := range constraints {
		constraints[i] = Unconstrained
	}
	return AtomicPattern{Predicate: p, Constraints: constraints}, nil
}

func (c *ComputedPredicateSource) CanEvaluate(q BasicQuery) bool {
	_, ok := c.functions[q.Predicate]
	return ok
}

// Evaluate runs the function forward when all inputs are ground (acting
// as a filter if the result is bound too), or backward when the result is
// ground and exactly one input is missing. Any other shape, or a
// function evaluation failure, yields zero tuples rather than an error.
func (c *ComputedPredicateSource) Evaluate(q BasicQuery) (TupleIter, error) {
	fn, ok := c.functions[q.Predicate]
	if !ok {
		return EmptyTupleIter{}, nil
	}
	resultPos := fn.Arity
	resultTerm, boundResult := q.BoundPositions[resultPos]

	inputs := make([]term.Term, fn.Arity)
	allGround := true
	for i := 0; i < fn.Arity; i++ {
		t, bound := q.BoundPositions[i]
		if !bound {
			allGround = false
			break
		}
		inputs[i] = t
	}

	if allGround {
		out, err := fn.Forward(inputs)
		if err != nil {
			return EmptyTupleIter{}, nil
		}
		if boundResult {
			if out.Identifier() != resultTerm.Identifier() {
				return EmptyTupleIter{}, nil
			}
			return NewSliceTupleIter([]Tuple{{}}), nil
		}
		order := q.AnswerOrder()
		row := make(Tuple, len(order))
		for i, pos := range order {
			if pos == resultPos {
				row[i] = out
			} else {
				row[i] = inputs[pos]
			}
		}
		return NewSliceTupleIter([]Tuple{row}), nil
	}

	if boundResult && fn.Backward != nil {
		known := make(map[int]term.Term)
		missing := -1
		for i := 0; i < fn.Arity; i++ {
			if t, bound := q.BoundPositions[i]; bound {
				known[i] = t
			} else if missing == -1 {
				missing = i
			} else {
				return EmptyTupleIter{}, nil // more than one unknown input
			}
		}
		idx, value, err := fn.Backward(known, resultTerm)
		if err != nil || idx != missing {
			return EmptyTupleIter{}, nil
		}
		order := q.AnswerOrder()
		row := make(Tuple, len(order))
		for i, pos := range order {
			if pos == missing {
				row[i] = value
			}
		}
		return NewSliceTupleIter([]Tuple{row}), nil
	}
	return EmptyTupleIter{}, nil
}
