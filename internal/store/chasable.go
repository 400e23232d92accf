package store

import (
	"github.com/dbchase/chasecore/internal/term"
)

// ChasableData is (writing_target, data_sources): the chase writes to
// WritingTarget, and the evaluator reads a merged view across WritingTarget
// plus every other source.
type ChasableData struct {
	WritingTarget WritableMaterializedData
	DataSources   []Data // read-only; WritingTarget is implicitly included
}

// NewChasableData builds a ChasableData over target and any additional
// read-only sources (e.g. comparison predicates, computed predicates).
func NewChasableData(target WritableMaterializedData, extra ...Data) *ChasableData {
	return &ChasableData{WritingTarget: target, DataSources: extra}
}

// MergedView returns a Data that reads across WritingTarget and every
// DataSources entry.
func (c *ChasableData) MergedView() Data {
	sources := make([]Data, 0, len(c.DataSources)+1)
	sources = append(sources, c.WritingTarget)
	sources = append(sources, c.DataSources...)
	return &mergedData{sources: sources}
}

// mergedData implements Data by fanning a BasicQuery out across all
// sources that declare the predicate, concatenating results. Unknown
// predicates across every source degrade to an empty iterator rather
// than an error.
type mergedData struct {
	sources []Data
}

func (m *mergedData) GetPredicates() []*term.Predicate {
	seen := make(map[*term.Predicate]struct{})
	var out []*term.Predicate
	for _, s := range m.sources {
		for _, p := range s.GetPredicates() {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}
	return out
}

func (m *mergedData) HasPredicate(p *term.Predicate) bool {
	for _, s := range m.sources {
		if s.HasPredicate(p) {
			return true
		}
	}
	return false
}

func (m *mergedData) GetAtomicPattern(p *term.Predicate) (AtomicPattern, error) {
	for _, s := range m.sources {
		if s.HasPredicate(p) {
			return s.GetAtomicPattern(p)
		}
	}
	constraints := make([]PositionConstraint, p.Arity())
	return AtomicPattern{Predicate: p, Constraints: constraints}, nil
}

func (m *mergedData) CanEvaluate(q BasicQuery) bool {
	for _, s := range m.sources {
		if s.HasPredicate(q.Predicate) && s.CanEvaluate(q) {
			return true
		}
	}
	return false
}

func (m *mergedData) Evaluate(q BasicQuery) (TupleIter, error) {
	var all []Tuple
	for _, s := range m.sources {
		if !s.HasPredicate(q.Predicate) {
			continue
		}
		it, err := s.Evaluate(q)
		if err != nil {
			return nil, err
		}
		for {
			t, ok, err := it.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			all = append(all, t)
		}
	}
	return NewSliceTupleIter(all), nil
}

// EstimateBound implements BoundEstimator by summing every source's
// estimate (an upper bound on the merged result size); a single "unknown"
// source makes the merged estimate unknown, so the planner treats the
// whole merged query as unestimable and schedules it late.
func (m *mergedData) EstimateBound(q BasicQuery) (int, bool) {
	total := 0
	for _, s := range m.sources {
		if !s.HasPredicate(q.Predicate) {
			continue
		}
		est, ok := s.(BoundEstimator)
		if !ok {
			return 0, false
		}
		n, known := est.EstimateBound(q)
		if !known {
			return 0, false
		}
		total += n
	}
	return total, true
}
