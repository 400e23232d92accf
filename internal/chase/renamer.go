package chase

import (
	"fmt"
	"sync"

	"github.com/dbchase/chasecore/internal/formula"
	"github.com/dbchase/chasecore/internal/subst"
	"github.com/dbchase/chasecore/internal/term"
)

// Renamer extends a body substitution with bindings for a rule's
// existential variables, under one of seven naming disciplines.
type Renamer interface {
	Rename(r *formula.Rule, bodySub *subst.Substitution, sess *term.Session) *subst.Substitution
}

// skolemKeyScope selects which part of the substitution a pseudo/true
// skolem renamer's cache is keyed on.
type skolemKeyScope int

const (
	scopeBody skolemKeyScope = iota
	scopeFrontier
	scopeFrontierByPiece
)

// FreshRenamer allocates a brand-new unique variable for every existential
// variable, every time it fires.
type FreshRenamer struct {
	sess *term.Session
}

func NewFreshRenamer(sess *term.Session) *FreshRenamer { return &FreshRenamer{sess: sess} }

func (f *FreshRenamer) Rename(r *formula.Rule, bodySub *subst.Substitution, sess *term.Session) *subst.Substitution {
	out := bodySub
	for v := range r.ExistentialVariables() {
		out = out.Extend(v, sess.FreshVariable())
	}
	return out
}

// pieceOf locates the head piece containing existential v — the maximal
// group of head atoms connected through shared existential variables,
// the same grouping pieceAtoms computes for RuleSplit — and returns a
// stable tag for it plus the frontier variables that piece actually
// mentions. A ByPiece renamer keys each piece's renaming on that
// narrower frontier, so two pieces of the same head converge or diverge
// independently.
func pieceOf(r *formula.Rule, v *term.Variable) (string, map[*term.Variable]struct{}) {
	existentials := r.ExistentialVariables()
	for di, d := range r.HeadDisjuncts() {
		for pi, piece := range pieceAtoms(d) {
			contains := false
			frontier := make(map[*term.Variable]struct{})
			for _, a := range piece {
				for pv := range a.Variables() {
					if pv == v {
						contains = true
					}
					if _, existential := existentials[pv]; !existential {
						frontier[pv] = struct{}{}
					}
				}
			}
			if contains {
				return fmt.Sprintf("piece-%d-%d", di, pi), frontier
			}
		}
	}
	return "piece-0-0", r.Head.FreeVariables()
}

func skolemKey(r *formula.Rule, bodySub *subst.Substitution, scope skolemKeyScope, existential *term.Variable) string {
	switch scope {
	case scopeFrontier:
		return bodySub.Restrict(r.Head.FreeVariables()).Normalize().Key()
	case scopeFrontierByPiece:
		tag, frontier := pieceOf(r, existential)
		return tag + "|" + bodySub.Restrict(frontier).Normalize().Key()
	default:
		return bodySub.Normalize().Key()
	}
}

// PseudoSkolemRenamer caches existential renamings keyed by scope: the
// same key always reuses the same fresh variable, giving deterministic
// convergence for the frontier-keyed scopes.
type PseudoSkolemRenamer struct {
	sess  *term.Session
	scope skolemKeyScope
	mu    sync.Mutex
	cache map[string]*term.Variable
}

func newPseudoSkolemRenamer(sess *term.Session, scope skolemKeyScope) *PseudoSkolemRenamer {
	return &PseudoSkolemRenamer{sess: sess, scope: scope, cache: make(map[string]*term.Variable)}
}

// NewBodyPseudoSkolemRenamer keys the cache on the full body substitution.
func NewBodyPseudoSkolemRenamer(sess *term.Session) *PseudoSkolemRenamer {
	return newPseudoSkolemRenamer(sess, scopeBody)
}

// NewFrontierPseudoSkolemRenamer keys the cache on the substitution
// restricted to the rule's frontier.
func NewFrontierPseudoSkolemRenamer(sess *term.Session) *PseudoSkolemRenamer {
	return newPseudoSkolemRenamer(sess, scopeFrontier)
}

// NewFrontierByPiecePseudoSkolemRenamer keys the cache on the frontier
// restricted to each head piece independently.
func NewFrontierByPiecePseudoSkolemRenamer(sess *term.Session) *PseudoSkolemRenamer {
	return newPseudoSkolemRenamer(sess, scopeFrontierByPiece)
}

func (p *PseudoSkolemRenamer) Rename(r *formula.Rule, bodySub *subst.Substitution, sess *term.Session) *subst.Substitution {
	out := bodySub
	for v := range r.ExistentialVariables() {
		key := skolemKey(r, bodySub, p.scope, v) + "#" + v.Name()
		p.mu.Lock()
		fresh, ok := p.cache[key]
		if !ok {
			fresh = sess.FreshVariable()
			p.cache[key] = fresh
		}
		p.mu.Unlock()
		out = out.Extend(v, fresh)
	}
	return out
}

// TrueSkolemRenamer behaves like PseudoSkolemRenamer but instead of
// caching a fresh opaque variable, it deterministically derives a
// LogicalFunctionTerm named after the rule's label with the key terms as
// arguments — two calls with the same key produce identical terms without
// any shared mutable cache, which is what makes a skolem-chase
// convergence proof possible.
type TrueSkolemRenamer struct {
	scope skolemKeyScope
}

func NewBodyTrueSkolemRenamer() *TrueSkolemRenamer { return &TrueSkolemRenamer{scope: scopeBody} }
func NewFrontierTrueSkolemRenamer() *TrueSkolemRenamer {
	return &TrueSkolemRenamer{scope: scopeFrontier}
}
func NewFrontierByPieceTrueSkolemRenamer() *TrueSkolemRenamer {
	return &TrueSkolemRenamer{scope: scopeFrontierByPiece}
}

func (t *TrueSkolemRenamer) Rename(r *formula.Rule, bodySub *subst.Substitution, sess *term.Session) *subst.Substitution {
	out := bodySub
	for v := range r.ExistentialVariables() {
		keyVars := t.keyVariables(r, v)
		args := make([]term.Term, 0, len(keyVars)+1)
		for _, kv := range keyVars {
			if val, ok := bodySub.Get(kv); ok {
				args = append(args, val)
			} else {
				args = append(args, kv)
			}
		}
		name := fmt.Sprintf("sk_%s_%s", labelOrAnon(r), v.Name())
		out = out.Extend(v, term.NewLogicalFunctionTerm(name, args...))
	}
	return out
}

// keyVariables picks the skolem argument list for one existential: the
// whole body's variables, the frontier, or — ByPiece — only the frontier
// variables of that existential's own head piece.
func (t *TrueSkolemRenamer) keyVariables(r *formula.Rule, existential *term.Variable) []*term.Variable {
	var set map[*term.Variable]struct{}
	switch t.scope {
	case scopeFrontierByPiece:
		_, set = pieceOf(r, existential)
	case scopeFrontier:
		set = r.Head.FreeVariables()
	default:
		set = r.Body.FreeVariables()
	}
	out := make([]*term.Variable, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return sortedVars(out)
}

func sortedVars(vars []*term.Variable) []*term.Variable {
	for i := 1; i < len(vars); i++ {
		for j := i; j > 0 && vars[j-1].Name() > vars[j].Name(); j-- {
			vars[j-1], vars[j] = vars[j], vars[j-1]
		}
	}
	return vars
}

func labelOrAnon(r *formula.Rule) string {
	if r.Label != "" {
		return r.Label
	}
	return "rule"
}
