package store

import (
	"strconv"
	"strings"

	"github.com/dbchase/chasecore/internal/term"
)

// ComparisonDataSource is the built-in Data source exposing <, <=, >, >=,
// !=. Each is arity 2 and requires both positions
// ground; evaluation never returns more than one tuple since a
// ComparisonDataSource has no answer-variable positions to speak of once
// both sides are bound — the atom either holds or it doesn't.
type ComparisonDataSource struct {
	sess   *term.Session
	policy ComparisonMode
}

// ComparisonMode selects whether comparisons compare normalized literal
// values or their raw lexical form.
type ComparisonMode int

const (
	CompareNormalized ComparisonMode = iota
	CompareLexical
)

// NewComparisonDataSource builds the comparison-predicate source for a
// session under the given policy.
func NewComparisonDataSource(sess *term.Session, mode ComparisonMode) *ComparisonDataSource {
	return &ComparisonDataSource{sess: sess, policy: mode}
}

func (c *ComparisonDataSource) comparisonPredicates() []string {
	return []string{
		term.LessThanName, term.LessEqualName,
		term.GreaterThanName, term.GreaterEqualName, term.NotEqualName,
	}
}

func (c *ComparisonDataSource) GetPredicates() []*term.Predicate {
	out := make([]*term.Predicate, 0, 5)
	for _, name := range c.comparisonPredicates() {
		out = append(out, c.sess.Predicate(name, 2))
	}
	return out
}

func (c *ComparisonDataSource) HasPredicate(p *term.Predicate) bool {
	return p.IsComparison()
}

func (c *ComparisonDataSource) GetAtomicPattern(p *term.Predicate) (AtomicPattern, error) {
	return AtomicPattern{Predicate: p, Constraints: []PositionConstraint{RequiresGround, RequiresGround}}, nil
}

func (c *ComparisonDataSource) CanEvaluate(q BasicQuery) bool {
	if !q.Predicate.IsComparison() {
		return false
	}
	_, leftBound := q.BoundPositions[0]
	_, rightBound := q.BoundPositions[1]
	return leftBound && rightBound
}

func (c *ComparisonDataSource) Evaluate(q BasicQuery) (TupleIter, error) {
	if !c.CanEvaluate(q) {
		return EmptyTupleIter{}, nil
	}
	left := q.BoundPositions[0]
	right := q.BoundPositions[1]
	ok, err := c.compare(q.Predicate.Name(), left, right)
	if err != nil || !ok {
		return EmptyTupleIter{}, nil
	}
	return NewSliceTupleIter([]Tuple{{}}), nil
}

func (c *ComparisonDataSource) compare(op string, left, right term.Term) (bool, error) {
	lk, rk := c.key(left), c.key(right)
	cmp := strings.Compare(lk, rk)
	lf, lok := tryFloat(left)
	rf, rok := tryFloat(right)
	if lok && rok {
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		default:
			cmp = 0
		}
	}
	switch op {
	case term.LessThanName:
		return cmp < 0, nil
	case term.LessEqualName:
		return cmp <= 0, nil
	case term.GreaterThanName:
		return cmp > 0, nil
	case term.GreaterEqualName:
		return cmp >= 0, nil
	case term.NotEqualName:
		return lk != rk, nil
	}
	return false, nil
}

func (c *ComparisonDataSource) key(t term.Term) string {
	if lit, ok := t.(*term.Literal); ok {
		if c.policy == CompareLexical {
			return lit.Value()
		}
		return lit.CompareKey()
	}
	return t.Identifier()
}

func tryFloat(t term.Term) (float64, bool) {
	var s string
	switch v := t.(type) {
	case *term.Literal:
		s = v.Value()
	case *term.Constant:
		s = v.Identifier()
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
