package main

import (
	"fmt"

	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/term"
)

// scenario is a self-contained, named chase setup: a fresh session, a
// rule base, and seed facts, so run/watch/explain can all share the same
// built-in demos without reaching for an external rule-file parser (the
// engine's core treats text parsers as a separate collaborator's concern).
type scenario struct {
	Name        string
	Description string
	Build       func(sess *term.Session) (*formula.RuleBase, []term.Atom)
}

var scenarios = map[string]scenario{
	"ancestor":    ancestorScenario(),
	"existential": existentialScenario(),
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for n := range scenarios {
		names = append(names, n)
	}
	return names
}

// ancestorScenario derives ancestor/2 as the transitive closure of
// parent/2: ancestor(X,Y) :- parent(X,Y). ancestor(X,Z) :- parent(X,Y),
// ancestor(Y,Z). A plain datalog fixpoint, no existential variables.
func ancestorScenario() scenario {
	return scenario{
		Name:        "ancestor",
		Description: "transitive closure of parent/2 into ancestor/2",
		Build: func(sess *term.Session) (*formula.RuleBase, []term.Atom) {
			parent := sess.Predicate("parent", 2)
			ancestor := sess.Predicate("ancestor", 2)
			x, y, z := sess.Variable("X"), sess.Variable("Y"), sess.Variable("Z")

			rb := formula.NewRuleBase()

			base := formula.AtomFormula{Atom: term.MustAtom(parent, x, y)}
			headBase := formula.AtomFormula{Atom: term.MustAtom(ancestor, x, y)}
			r1, err := formula.NewRule(base, headBase, "ancestor-base")
			if err != nil {
				panic(err)
			}
			rb.AddRule(r1)

			step := formula.ConjunctionFormula{
				Left:  formula.AtomFormula{Atom: term.MustAtom(parent, x, y)},
				Right: formula.AtomFormula{Atom: term.MustAtom(ancestor, y, z)},
			}
			headStep := formula.AtomFormula{Atom: term.MustAtom(ancestor, x, z)}
			r2, err := formula.NewRule(step, headStep, "ancestor-step")
			if err != nil {
				panic(err)
			}
			rb.AddRule(r2)

			facts := []term.Atom{
				term.MustAtom(parent, sess.Constant("alice"), sess.Constant("bob")),
				term.MustAtom(parent, sess.Constant("bob"), sess.Constant("carol")),
				term.MustAtom(parent, sess.Constant("carol"), sess.Constant("dave")),
			}
			return rb, facts
		},
	}
}

// existentialScenario demonstrates existential-variable firing: every
// person has a manager, even if the manager is not already named —
// employee(X) → ∃Y. manages(Y, X). Run to a fixpoint under
// a pseudo-skolem frontier renamer, this converges because the same
// employee always yields the same fresh manager term.
func existentialScenario() scenario {
	return scenario{
		Name:        "existential",
		Description: "every employee gets a manager via an existential variable",
		Build: func(sess *term.Session) (*formula.RuleBase, []term.Atom) {
			employee := sess.Predicate("employee", 1)
			manages := sess.Predicate("manages", 2)
			x, y := sess.Variable("X"), sess.Variable("Y")

			rb := formula.NewRuleBase()
			body := formula.AtomFormula{Atom: term.MustAtom(employee, x)}
			head := formula.ExistentialFormula{
				Var:   y,
				Inner: formula.AtomFormula{Atom: term.MustAtom(manages, y, x)},
			}
			r, err := formula.NewRule(body, head, "assign-manager")
			if err != nil {
				panic(err)
			}
			rb.AddRule(r)

			facts := []term.Atom{
				term.MustAtom(employee, sess.Constant("alice")),
				term.MustAtom(employee, sess.Constant("bob")),
			}
			return rb, facts
		},
	}
}

func seedStore(target store.WritableMaterializedData, facts []term.Atom) error {
	_, err := target.AddAll(facts)
	return err
}

func mustScenario(name string) (scenario, error) {
	s, ok := scenarios[name]
	if !ok {
		return scenario{}, fmt.Errorf("unknown scenario %q (available: %v)", name, scenarioNames())
	}
	return s, nil
}
