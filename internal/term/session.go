package term

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Session owns the interning tables for Predicates and Constants, and the
// fresh-variable/fresh-blank-node counters, for one process-level chase
// run. The counters are per-session fields, each starting at zero and
// advanced atomically so they are thread-safe; nothing interning-related
// lives in package globals, so multiple independent chases can run in
// one process without sharing interning tables.
type Session struct {
	mu         sync.Mutex
	predicates map[string]*Predicate
	constants  map[string]*Constant
	variables  map[string]*Variable
	varSeq     uint64
	blankSeq   uint64
}

// NewSession creates an empty interning session.
func NewSession() *Session {
	return &Session{
		predicates: make(map[string]*Predicate),
		constants:  make(map[string]*Constant),
		variables:  make(map[string]*Variable),
	}
}

func predicateKey(name string, arity int) string {
	return fmt.Sprintf("%s/%d", name, arity)
}

// Predicate interns and returns the Predicate for (name, arity).
func (s *Session) Predicate(name string, arity int) *Predicate {
	key := predicateKey(name, arity)
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.predicates[key]; ok {
		return p
	}
	p := &Predicate{name: name, arity: arity}
	s.predicates[key] = p
	return p
}

// Constant interns and returns the Constant identified by id.
func (s *Session) Constant(id string) *Constant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.constants[id]; ok {
		return c
	}
	c := &Constant{id: id}
	s.constants[id] = c
	return c
}

// Variable interns and returns a named Variable. Two calls with the same
// name within this session return the same pointer.
func (s *Session) Variable(name string) *Variable {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.variables[name]; ok {
		return v
	}
	v := &Variable{name: name}
	s.variables[name] = v
	return v
}

// FreshVariable returns a Variable whose name is unique within this
// session (another session mints the same names). The
// counter is a simple atomic increment so concurrent appliers can mint
// fresh variables without a lock.
func (s *Session) FreshVariable() *Variable {
	n := atomic.AddUint64(&s.varSeq, 1)
	return &Variable{name: fmt.Sprintf("_G%d", n)}
}

// FreshBlankNode returns a globally-unique BlankNode. Uses a UUID suffix
// alongside the sequence number so blank node identifiers stay unique
// even across sessions that get merged (e.g. two ChasableData sources).
func (s *Session) FreshBlankNode() *BlankNode {
	n := atomic.AddUint64(&s.blankSeq, 1)
	return &BlankNode{id: fmt.Sprintf("b%d-%s", n, uuid.NewString())}
}
