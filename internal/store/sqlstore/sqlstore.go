// Package sqlstore is a SQL-backed plug-in Data/Writable store,
// demonstrating a source that can delegate datalog-rule evaluation to
// its own query engine rather than relying on the chase's generic
// evaluator.
package sqlstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/dbchase/chasecore/internal/chaseerr"
	"github.com/dbchase/chasecore/internal/logging"
	"github.com/dbchase/chasecore/internal/store"
	"github.com/dbchase/chasecore/internal/term"
)

// Store is a single-table-per-predicate SQL store backed by a pure-Go
// SQLite driver. Each registered predicate gets a table "pred_<name>_<arity>"
// with columns t0..tN-1, all TEXT, storing term identifiers.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	sess    *term.Session
	tables  map[*term.Predicate]string
}

// Open creates or opens a SQLite database file at path.
func Open(sess *term.Session, path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlstore: create directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	logging.Store("opened sqlite store at %s", path)
	return &Store{db: db, sess: sess, tables: make(map[*term.Predicate]string)}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func tableName(p *term.Predicate) string {
	safe := strings.NewReplacer("/", "_", "-", "_", " ", "_").Replace(p.Name())
	return fmt.Sprintf("pred_%s_%d", safe, p.Arity())
}

// EnsurePredicate creates the backing table for p if it does not exist yet.
func (s *Store) EnsurePredicate(p *term.Predicate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[p]; ok {
		return nil
	}
	tbl := tableName(p)
	cols := make([]string, p.Arity())
	for i := range cols {
		cols[i] = fmt.Sprintf("t%d TEXT NOT NULL", i)
	}
	colNames := make([]string, p.Arity())
	for i := range colNames {
		colNames[i] = fmt.Sprintf("t%d", i)
	}
	ddl := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s, UNIQUE(%s))",
		tbl, strings.Join(cols, ", "), strings.Join(colNames, ", "),
	)
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("sqlstore: create table %s: %w", tbl, err)
	}
	s.tables[p] = tbl
	return nil
}

func (s *Store) tableFor(p *term.Predicate) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tbl, ok := s.tables[p]
	return tbl, ok
}

// Add inserts atom's term identifiers as a row. The SQL store only
// accepts ground atoms, like other persistent triple-like stores.
func (s *Store) Add(a term.Atom) (bool, error) {
	if !s.AcceptsAtom(a) {
		return false, chaseerr.NewAtomValidationError(a.String(), "sql store requires ground atoms")
	}
	if err := s.EnsurePredicate(a.Predicate); err != nil {
		return false, err
	}
	tbl, _ := s.tableFor(a.Predicate)
	placeholders := make([]string, len(a.Terms))
	args := make([]any, len(a.Terms))
	for i, t := range a.Terms {
		placeholders[i] = "?"
		args[i] = t.Identifier()
	}
	res, err := s.db.Exec(
		fmt.Sprintf("INSERT OR IGNORE INTO %s VALUES (%s)", tbl, strings.Join(placeholders, ", ")),
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("sqlstore: insert into %s: %w", tbl, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) AddAll(atoms []term.Atom) (int, error) {
	added := 0
	for _, a := range atoms {
		ok, err := s.Add(a)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func (s *Store) Remove(a term.Atom) error {
	tbl, ok := s.tableFor(a.Predicate)
	if !ok {
		return nil
	}
	where, args := equalityClause(a.Terms)
	_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s", tbl, where), args...)
	if err != nil {
		return fmt.Errorf("sqlstore: delete from %s: %w", tbl, err)
	}
	return nil
}

func (s *Store) RemoveAll(atoms []term.Atom) error {
	for _, a := range atoms {
		if err := s.Remove(a); err != nil {
			return err
		}
	}
	return nil
}

func equalityClause(terms []term.Term) (string, []any) {
	clauses := make([]string, len(terms))
	args := make([]any, len(terms))
	for i, t := range terms {
		clauses[i] = fmt.Sprintf("t%d = ?", i)
		args[i] = t.Identifier()
	}
	return strings.Join(clauses, " AND "), args
}

func (s *Store) AcceptsPredicate(p *term.Predicate) bool { return true }

func (s *Store) AcceptsAtom(a term.Atom) bool {
	for _, t := range a.Terms {
		if term.IsVariable(t) {
			return false
		}
	}
	return true
}

func (s *Store) GetPredicates() []*term.Predicate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*term.Predicate, 0, len(s.tables))
	for p := range s.tables {
		out = append(out, p)
	}
	return out
}

func (s *Store) HasPredicate(p *term.Predicate) bool {
	_, ok := s.tableFor(p)
	return ok
}

func (s *Store) GetAtomicPattern(p *term.Predicate) (store.AtomicPattern, error) {
	constraints := make([]store.PositionConstraint, p.Arity())
	for i := range constraints {
		constraints[i] = store.Unconstrained
	}
	return store.AtomicPattern{Predicate: p, Constraints: constraints}, nil
}

func (s *Store) CanEvaluate(q store.BasicQuery) bool { return s.HasPredicate(q.Predicate) }

// Evaluate translates a BasicQuery into a WHERE-bound SELECT over the
// predicate's table, projecting only the answer-variable columns.
func (s *Store) Evaluate(q store.BasicQuery) (store.TupleIter, error) {
	tbl, ok := s.tableFor(q.Predicate)
	if !ok {
		return store.EmptyTupleIter{}, nil
	}
	order := q.AnswerOrder()
	selectCols := make([]string, len(order))
	for i, pos := range order {
		selectCols[i] = fmt.Sprintf("t%d", pos)
	}
	if len(selectCols) == 0 {
		selectCols = []string{"1"}
	}
	var where []string
	var args []any
	for pos, t := range q.BoundPositions {
		where = append(where, fmt.Sprintf("t%d = ?", pos))
		args = append(args, t.Identifier())
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectCols, ", "), tbl)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query %s: %w", tbl, err)
	}
	defer rows.Close()

	var tuples []store.Tuple
	for rows.Next() {
		scanTargets := make([]any, len(order))
		raw := make([]string, len(order))
		for i := range raw {
			scanTargets[i] = &raw[i]
		}
		if len(order) == 0 {
			var discard int
			scanTargets = []any{&discard}
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("sqlstore: scan: %w", err)
		}
		row := make(store.Tuple, len(order))
		for i := range order {
			row[i] = s.sess.Constant(raw[i])
		}
		tuples = append(tuples, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return store.NewSliceTupleIter(tuples), nil
}

// EstimateBound implements store.BoundEstimator with an exact COUNT(*)
// over the predicate's table, falling back to "unknown" on any failure so the join planner
// treats this source as advisory-only in that case.
func (s *Store) EstimateBound(q store.BasicQuery) (int, bool) {
	tbl, ok := s.tableFor(q.Predicate)
	if !ok {
		return 0, false
	}
	var where []string
	var args []any
	for pos, t := range q.BoundPositions {
		where = append(where, fmt.Sprintf("t%d = ?", pos))
		args = append(args, t.Identifier())
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", tbl)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, false
	}
	return n, true
}

// Iterate walks every row of every registered predicate's table and
// reconstructs it as a ground term.Atom (store.MaterializedData).
func (s *Store) Iterate() store.AtomIter {
	s.mu.RLock()
	preds := make([]*term.Predicate, 0, len(s.tables))
	for p := range s.tables {
		preds = append(preds, p)
	}
	s.mu.RUnlock()

	var atoms []term.Atom
	for _, p := range preds {
		tbl, ok := s.tableFor(p)
		if !ok {
			continue
		}
		cols := make([]string, p.Arity())
		for i := range cols {
			cols[i] = fmt.Sprintf("t%d", i)
		}
		query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), tbl)
		rows, err := s.db.Query(query)
		if err != nil {
			continue
		}
		for rows.Next() {
			raw := make([]string, p.Arity())
			scanTargets := make([]any, len(raw))
			for i := range raw {
				scanTargets[i] = &raw[i]
			}
			if err := rows.Scan(scanTargets...); err != nil {
				continue
			}
			terms := make([]term.Term, len(raw))
			for i, v := range raw {
				terms[i] = s.sess.Constant(v)
			}
			atoms = append(atoms, term.MustAtom(p, terms...))
		}
		rows.Close()
	}
	return &sqlAtomIter{atoms: atoms}
}

type sqlAtomIter struct {
	atoms []term.Atom
	pos   int
}

func (it *sqlAtomIter) Next() (term.Atom, bool, error) {
	if it.pos >= len(it.atoms) {
		return term.Atom{}, false, nil
	}
	a := it.atoms[it.pos]
	it.pos++
	return a, true, nil
}

// Constants enumerates every distinct constant stored across all tables.
func (s *Store) Constants() []*term.Constant {
	seen := make(map[*term.Constant]struct{})
	it := s.Iterate()
	for {
		a, ok, err := it.Next()
		if err != nil || !ok {
			break
		}
		for _, t := range a.Terms {
			if c, ok := t.(*term.Constant); ok {
				seen[c] = struct{}{}
			}
		}
	}
	out := make([]*term.Constant, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	return out
}

// Variables is always empty: the SQL store only accepts ground atoms.
func (s *Store) Variables() []*term.Variable { return nil }

// Terms enumerates every distinct term stored across all tables.
func (s *Store) Terms() []term.Term {
	seen := make(map[string]term.Term)
	it := s.Iterate()
	for {
		a, ok, err := it.Next()
		if err != nil || !ok {
			break
		}
		for _, t := range a.Terms {
			seen[t.Identifier()] = t
		}
	}
	out := make([]term.Term, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	return out
}

// DatalogDelegable is implemented by sources that can evaluate a full
// conjunctive body in their own query engine rather than through the
// generic homomorphism evaluator.
type DatalogDelegable interface {
	EvaluateJoin(atoms []term.Atom, answerVars []*term.Variable) ([]map[*term.Variable]term.Term, error)
}

// EvaluateJoin implements DatalogDelegable for the common case where every
// atom in the conjunction is stored in this same SQL store: it compiles the
// whole join into one SQL statement instead of delegating atom-by-atom to
// the generic evaluator.
func (s *Store) EvaluateJoin(atoms []term.Atom, answerVars []*term.Variable) ([]map[*term.Variable]term.Term, error) {
	for _, a := range atoms {
		if !s.HasPredicate(a.Predicate) {
			return nil, chaseerr.NewUnsupportedOperationError("sqlstore.EvaluateJoin", "predicate not stored in this source: "+a.Predicate.String())
		}
	}

	var fromClauses []string
	var whereClauses []string
	var args []any
	varColumn := make(map[*term.Variable]string)

	for i, a := range atoms {
		tbl, _ := s.tableFor(a.Predicate)
		alias := fmt.Sprintf("a%d", i)
		fromClauses = append(fromClauses, fmt.Sprintf("%s AS %s", tbl, alias))
		for pos, t := range a.Terms {
			col := fmt.Sprintf("%s.t%d", alias, pos)
			switch v := t.(type) {
			case *term.Variable:
				if prior, seen := varColumn[v]; seen {
					whereClauses = append(whereClauses, fmt.Sprintf("%s = %s", prior, col))
				} else {
					varColumn[v] = col
				}
			default:
				whereClauses = append(whereClauses, fmt.Sprintf("%s = ?", col))
				args = append(args, t.Identifier())
			}
		}
	}

	selectCols := make([]string, len(answerVars))
	for i, v := range answerVars {
		col, ok := varColumn[v]
		if !ok {
			return nil, chaseerr.NewUnsupportedOperationError("sqlstore.EvaluateJoin", "answer variable does not occur in the conjunction: "+v.Name())
		}
		selectCols[i] = col
	}

	if len(selectCols) == 0 {
		// Fully ground conjunction: a boolean membership test.
		selectCols = []string{"1"}
	}
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s", strings.Join(selectCols, ", "), strings.Join(fromClauses, ", "))
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: delegated join: %w", err)
	}
	defer rows.Close()

	var results []map[*term.Variable]term.Term
	for rows.Next() {
		raw := make([]string, len(answerVars))
		scanTargets := make([]any, len(answerVars))
		for i := range raw {
			scanTargets[i] = &raw[i]
		}
		if len(answerVars) == 0 {
			var probe int
			scanTargets = []any{&probe}
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}
		binding := make(map[*term.Variable]term.Term, len(answerVars))
		for i, v := range answerVars {
			binding[v] = s.sess.Constant(raw[i])
		}
		results = append(results, binding)
	}
	return results, rows.Err()
}
