package chase

import (
	"github.com/dbchase/chasecore/internal/eval"
	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/subst"
	"github.com/dbchase/chasecore/internal/term"
)

// TriggerComputer enumerates substitutions satisfying a rule group's
// shared body, under one of four matching disciplines.
// The returned map has one entry per rule in the group; Naive/SemiNaive/
// TwoSteps compute the join once and share it across every rule, while
// Restricted must evaluate body ∧ ¬head separately per rule.
type TriggerComputer interface {
	Compute(group *RuleGroup, ev *eval.Evaluator, full store.Data, lastStepFacts []term.Atom) (map[*formula.Rule][]*subst.Substitution, error)
}

func bodySubstitutions(ev *eval.Evaluator, body formula.Formula) ([]*subst.Substitution, error) {
	var out []*subst.Substitution
	err := ev.EvaluateFormula(body, subst.New(), func(s *subst.Substitution) bool {
		out = append(out, s)
		return true
	})
	return out, err
}

func shareAcrossGroup(group *RuleGroup, subs []*subst.Substitution) map[*formula.Rule][]*subst.Substitution {
	out := make(map[*formula.Rule][]*subst.Substitution, len(group.Rules))
	for _, r := range group.Rules {
		out[r] = subs
	}
	return out
}

// NaiveTriggerComputer evaluates the body against the full readable data,
// every step, rediscovering old triggers along with new ones (correct but
// does the most redundant work).
type NaiveTriggerComputer struct{}

func (NaiveTriggerComputer) Compute(group *RuleGroup, ev *eval.Evaluator, full store.Data, lastStepFacts []term.Atom) (map[*formula.Rule][]*subst.Substitution, error) {
	subs, err := bodySubstitutions(ev, group.Body)
	if err != nil {
		return nil, err
	}
	return shareAcrossGroup(group, subs), nil
}

// SemiNaiveTriggerComputer requires that at least one body atom match a
// fact produced in the last step before joining the rest of the body:
// for each body atom in turn (the "anchor"), seed from lastStepFacts
// alone, join the atoms that precede the anchor against the full data,
// then join the atoms that follow it against the full data with
// lastStepFacts excluded. The exclusion is what stops the same
// newly-created combination from being rediscovered once per anchor
// position.
type SemiNaiveTriggerComputer struct{}

func (SemiNaiveTriggerComputer) Compute(group *RuleGroup, ev *eval.Evaluator, full store.Data, lastStepFacts []term.Atom) (map[*formula.Rule][]*subst.Substitution, error) {
	if lastStepFacts == nil || !isPureConjunctionOfAtoms(group.Body) {
		subs, err := bodySubstitutions(ev, group.Body)
		if err != nil {
			return nil, err
		}
		return shareAcrossGroup(group, subs), nil
	}
	if len(lastStepFacts) == 0 {
		return shareAcrossGroup(group, nil), nil
	}

	subs, err := anchoredSubstitutions(group.Body, ev, lastStepFacts)
	if err != nil {
		return nil, err
	}
	return shareAcrossGroup(group, subs), nil
}

// isPureConjunctionOfAtoms reports whether f is built only from Atom and
// Conjunction nodes, the shape the anchor-per-atom join in
// anchoredSubstitutions assumes when it decomposes a body into
// body.Atoms(); bodies using negation, disjunction, or quantifiers fall
// back to a direct formula evaluation instead; so the construct-specific
// semantics those carry (e.g. negation-as-failure's range-restriction
// check, eval/formula.go) are never silently dropped.
func isPureConjunctionOfAtoms(f formula.Formula) bool {
	switch v := f.(type) {
	case formula.AtomFormula:
		return true
	case formula.ConjunctionFormula:
		return isPureConjunctionOfAtoms(v.Left) && isPureConjunctionOfAtoms(v.Right)
	default:
		return false
	}
}

// anchoredSubstitutions implements the per-atom-anchor join used by
// SemiNaive: try every body atom as the one required to have
// come from lastStepFacts, join the rest against data, and dedupe across
// anchor choices so the same trigger found through two different anchors
// is reported once.
func anchoredSubstitutions(body formula.Formula, ev *eval.Evaluator, lastStepFacts []term.Atom) ([]*subst.Substitution, error) {
	atoms := body.Atoms()
	if len(atoms) == 0 {
		return []*subst.Substitution{subst.New()}, nil
	}

	delta := snapshotData(lastStepFacts)
	deltaEv := eval.NewWithSession(delta, ev.Session())
	excludedEv := eval.NewWithSession(newExcludeAtomsData(ev.Data(), lastStepFacts), ev.Session())

	seen := make(map[string]struct{})
	var results []*subst.Substitution
	for i, anchor := range atoms {
		var seeds []*subst.Substitution
		if err := deltaEv.JoinAtoms([]term.Atom{anchor}, subst.New(), func(s *subst.Substitution) bool {
			seeds = append(seeds, s)
			return true
		}); err != nil {
			return nil, err
		}
		if len(seeds) == 0 {
			continue
		}

		partial, err := joinEachWith(ev, atoms[:i], seeds)
		if err != nil {
			return nil, err
		}
		if len(partial) == 0 {
			continue
		}
		partial, err = joinEachWith(excludedEv, atoms[i+1:], partial)
		if err != nil {
			return nil, err
		}

		for _, s := range partial {
			n := s.Normalize()
			key := n.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			results = append(results, n)
		}
	}
	return results, nil
}

// joinEachWith extends every substitution in seeds by joining atoms
// against ev, seeded by each substitution in turn. An empty atoms list
// returns seeds unchanged.
func joinEachWith(ev *eval.Evaluator, atoms []term.Atom, seeds []*subst.Substitution) ([]*subst.Substitution, error) {
	if len(atoms) == 0 {
		return seeds, nil
	}
	var out []*subst.Substitution
	for _, s := range seeds {
		if err := ev.JoinAtoms(atoms, s, func(ext *subst.Substitution) bool {
			out = append(out, ext)
			return true
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// snapshotData materializes atoms into a standalone in-memory Data source,
// the idiom NaiveCoreProcessor.homomorphicInto (chase/core.go) also uses
// for "evaluate against exactly this atom set".
func snapshotData(atoms []term.Atom) store.Data {
	snap := store.NewInMemoryFactBase()
	for _, a := range atoms {
		_, _ = snap.Add(a)
	}
	return snap
}

// excludeAtomsData wraps a store.Data, filtering out any result tuple that
// reconstructs to one of a fixed set of excluded atoms. Unlike
// VirtualDeletionWrapper (store/virtualdelete.go), which needs
// WritableMaterializedData to re-scan via Iterate, this works over any
// store.Data by reconstructing the candidate atom directly from the
// BasicQuery's bound positions and the returned tuple — the same
// reconstruction instantiate (eval/planner.go) relies on when building the
// query in the first place, since every position of a fully-instantiated
// atom is either bound or an answer variable.
type excludeAtomsData struct {
	inner    store.Data
	excluded map[string]struct{}
}

func newExcludeAtomsData(inner store.Data, atoms []term.Atom) *excludeAtomsData {
	excluded := make(map[string]struct{}, len(atoms))
	for _, a := range atoms {
		excluded[a.Key()] = struct{}{}
	}
	return &excludeAtomsData{inner: inner, excluded: excluded}
}

func (d *excludeAtomsData) GetPredicates() []*term.Predicate { return d.inner.GetPredicates() }
func (d *excludeAtomsData) HasPredicate(p *term.Predicate) bool {
	return d.inner.HasPredicate(p)
}
func (d *excludeAtomsData) GetAtomicPattern(p *term.Predicate) (store.AtomicPattern, error) {
	return d.inner.GetAtomicPattern(p)
}
func (d *excludeAtomsData) CanEvaluate(q store.BasicQuery) bool { return d.inner.CanEvaluate(q) }

func (d *excludeAtomsData) Evaluate(q store.BasicQuery) (store.TupleIter, error) {
	it, err := d.inner.Evaluate(q)
	if err != nil {
		return nil, err
	}
	order := q.AnswerOrder()
	var kept []store.Tuple
	for {
		row, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if _, excluded := d.excluded[reconstructAtom(q, order, row).Key()]; excluded {
			continue
		}
		kept = append(kept, row)
	}
	return store.NewSliceTupleIter(kept), nil
}

func reconstructAtom(q store.BasicQuery, order []int, row store.Tuple) term.Atom {
	terms := make([]term.Term, q.Predicate.Arity())
	for pos, t := range q.BoundPositions {
		terms[pos] = t
	}
	for i, pos := range order {
		terms[pos] = row[i]
	}
	return term.Atom{Predicate: q.Predicate, Terms: terms}
}

// TwoStepsTriggerComputer seeds matches the same way SemiNaive does
// (anchor a single body atom against lastStepFacts), then completes each
// seed by re-evaluating the *whole* body against the full data: unlike
// SemiNaive, the non-anchor atoms are rejoined
// against full data (not the delta-excluded view), so a seed can complete
// using other newly-created facts too.
type TwoStepsTriggerComputer struct{}

func (TwoStepsTriggerComputer) Compute(group *RuleGroup, ev *eval.Evaluator, full store.Data, lastStepFacts []term.Atom) (map[*formula.Rule][]*subst.Substitution, error) {
	if lastStepFacts == nil || !isPureConjunctionOfAtoms(group.Body) {
		subs, err := bodySubstitutions(ev, group.Body)
		if err != nil {
			return nil, err
		}
		return shareAcrossGroup(group, subs), nil
	}
	if len(lastStepFacts) == 0 {
		return shareAcrossGroup(group, nil), nil
	}

	atoms := group.Body.Atoms()
	if len(atoms) == 0 {
		return shareAcrossGroup(group, []*subst.Substitution{subst.New()}), nil
	}
	if len(atoms) == 1 {
		delta := snapshotData(lastStepFacts)
		subs, err := bodySubstitutions(eval.NewWithSession(delta, ev.Session()), group.Body)
		if err != nil {
			return nil, err
		}
		return shareAcrossGroup(group, subs), nil
	}

	delta := snapshotData(lastStepFacts)
	deltaEv := eval.NewWithSession(delta, ev.Session())

	seen := make(map[string]struct{})
	var results []*subst.Substitution
	for _, anchor := range atoms {
		var seeds []*subst.Substitution
		if err := deltaEv.JoinAtoms([]term.Atom{anchor}, subst.New(), func(s *subst.Substitution) bool {
			seeds = append(seeds, s)
			return true
		}); err != nil {
			return nil, err
		}
		for _, seed := range seeds {
			if err := ev.EvaluateFormula(group.Body, seed, func(completed *subst.Substitution) bool {
				n := completed.Normalize()
				key := n.Key()
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					results = append(results, n)
				}
				return true
			}); err != nil {
				return nil, err
			}
		}
	}
	return shareAcrossGroup(group, results), nil
}

// RestrictedTriggerComputer evaluates body ∧ ¬head directly, skipping
// triggers whose head is already satisfied, per rule in the group
// ("Restricted" on the computer side, distinct from the like-named
// trigger checker).
type RestrictedTriggerComputer struct{}

func (RestrictedTriggerComputer) Compute(group *RuleGroup, ev *eval.Evaluator, full store.Data, lastStepFacts []term.Atom) (map[*formula.Rule][]*subst.Substitution, error) {
	out := make(map[*formula.Rule][]*subst.Substitution, len(group.Rules))
	for _, r := range group.Rules {
		negatedHead := formula.NegationFormula{Inner: headConjunction(r)}
		combined := formula.ConjunctionFormula{Left: group.Body, Right: negatedHead}
		subs, err := bodySubstitutions(ev, combined)
		if err != nil {
			return nil, err
		}
		out[r] = subs
	}
	return out, nil
}

func headConjunction(r *formula.Rule) formula.Formula {
	disjuncts := r.HeadDisjuncts()
	if len(disjuncts) == 0 {
		return formula.ConjunctionFormula{}
	}
	return disjuncts[0]
}
