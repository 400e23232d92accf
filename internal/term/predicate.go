package term

import "fmt"

// Predicate is (name, arity), interned within a Session: equality is by
// (name, arity) and two Predicate values built for the same pair inside
// the same Session are the same pointer.
type Predicate struct {
	name  string
	arity int
}

func (p *Predicate) Name() string  { return p.name }
func (p *Predicate) Arity() int    { return p.arity }
func (p *Predicate) String() string { return fmt.Sprintf("%s/%d", p.name, p.arity) }

// Special predicate names recognized by the built-in comparison Data
// source and the join engine's equality resolution.
const (
	EqualityName    = "="
	LessThanName    = "<"
	LessEqualName   = "<="
	GreaterThanName = ">"
	GreaterEqualName = ">="
	NotEqualName    = "!="
)

// IsComparison reports whether p names one of the five built-in comparison
// operators (all arity 2).
func (p *Predicate) IsComparison() bool {
	if p.arity != 2 {
		return false
	}
	switch p.name {
	case LessThanName, LessEqualName, GreaterThanName, GreaterEqualName, NotEqualName:
		return true
	}
	return false
}

// IsEquality reports whether p is the builtin "=" predicate.
func (p *Predicate) IsEquality() bool {
	return p.arity == 2 && p.name == EqualityName
}
