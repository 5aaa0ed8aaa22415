package query

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/roach88/formula/internal/ast"
)

// MaxStages bounds the length of a compiled stage sequence.
const MaxStages = 64

// ErrQuery is matched by every QueryError via errors.Is.
var ErrQuery = errors.New("malformed query")

// QueryError reports a stage sequence rejected by Compile.
type QueryError struct {
	Stage   int // index of the offending stage, -1 for the sequence as a whole
	Message string
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Stage < 0 {
		return fmt.Sprintf("query: %s", e.Message)
	}
	return fmt.Sprintf("query: stage %d: %s", e.Stage, e.Message)
}

// Is makes errors.Is(err, ErrQuery) hold for every QueryError.
func (e *QueryError) Is(target error) bool {
	return target == ErrQuery
}

// Query is a compiled, immutable stage sequence.
type Query struct {
	stages []Stage
}

// Compile validates stages and returns a Query.
//
// Rejected sequences:
//   - empty
//   - longer than MaxStages
//   - ending in a wildcard (nothing to match after it)
//   - containing a nil stage, a Match with no predicates, or a nil predicate
//
// Adjacent wildcards are collapsed into one.
func Compile(stages ...Stage) (*Query, error) {
	if len(stages) == 0 {
		return nil, &QueryError{Stage: -1, Message: "empty stage sequence"}
	}

	compiled := make([]Stage, 0, len(stages))
	for i, s := range stages {
		switch st := s.(type) {
		case nil:
			return nil, &QueryError{Stage: i, Message: "nil stage"}
		case Wildcard:
			if n := len(compiled); n > 0 {
				if _, prev := compiled[n-1].(Wildcard); prev {
					continue
				}
			}
		case Test:
			if len(st.Any) == 0 {
				return nil, &QueryError{Stage: i, Message: "match stage has no predicates"}
			}
			for _, p := range st.Any {
				if err := checkPredicate(p); err != nil {
					return nil, &QueryError{Stage: i, Message: err.Error()}
				}
			}
		default:
			return nil, &QueryError{Stage: i, Message: fmt.Sprintf("unknown stage type %T", s)}
		}
		compiled = append(compiled, s)
	}

	if _, ok := compiled[len(compiled)-1].(Wildcard); ok {
		return nil, &QueryError{Stage: len(stages) - 1, Message: "wildcard must be followed by a predicate"}
	}
	if len(compiled) > MaxStages {
		return nil, &QueryError{Stage: -1, Message: fmt.Sprintf("%d stages exceeds limit of %d", len(compiled), MaxStages)}
	}

	return &Query{stages: compiled}, nil
}

// MustCompile is Compile for queries fixed at build time. It panics on error.
func MustCompile(stages ...Stage) *Query {
	q, err := Compile(stages...)
	if err != nil {
		panic(err)
	}
	return q
}

func checkPredicate(p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return errors.New("nil predicate")
	case And:
		for _, sub := range pred.Predicates {
			if err := checkPredicate(sub); err != nil {
				return err
			}
		}
	}
	return nil
}

// String renders the query as slash-separated stages, e.g. "**/Find".
func (q *Query) String() string {
	parts := make([]string, len(q.stages))
	for i, s := range q.stages {
		parts[i] = s.String()
	}
	return strings.Join(parts, "/")
}

// Len returns the number of compiled stages.
func (q *Query) Len() int {
	return len(q.stages)
}

// VisitFunc receives a match and its ancestor chain (outermost first).
// The chain is only valid for the duration of the call; copy it to retain it.
// The callback must not mutate the tree.
type VisitFunc func(ancestors []ast.NodeID, match ast.NodeID)

// Walk runs the query over the subtree rooted at start. ancestors is the chain
// above start (outermost first) and is prepended to every reported chain; it
// may be nil. Matches are reported synchronously in depth-first document order.
func (q *Query) Walk(t *ast.Tree, start ast.NodeID, ancestors []ast.NodeID, visit VisitFunc) {
	w := walker{
		q:     q,
		t:     t,
		visit: visit,
		path:  append(make([]ast.NodeID, 0, len(ancestors)+8), ancestors...),
	}
	w.eval(start, 1)
}

// MatchResult is a collected query result.
type MatchResult struct {
	Ancestors []ast.NodeID
	Node      ast.NodeID
}

// FindAll collects every match under start.
func (q *Query) FindAll(t *ast.Tree, start ast.NodeID) []MatchResult {
	var out []MatchResult
	q.Walk(t, start, nil, func(ancestors []ast.NodeID, n ast.NodeID) {
		out = append(out, MatchResult{
			Ancestors: append([]ast.NodeID(nil), ancestors...),
			Node:      n,
		})
	})
	return out
}

// Nodes collects the matched nodes under start, without ancestor chains.
func (q *Query) Nodes(t *ast.Tree, start ast.NodeID) []ast.NodeID {
	var out []ast.NodeID
	q.Walk(t, start, nil, func(_ []ast.NodeID, n ast.NodeID) {
		out = append(out, n)
	})
	return out
}

// Count returns the number of matches under start.
func (q *Query) Count(t *ast.Tree, start ast.NodeID) int {
	n := 0
	q.Walk(t, start, nil, func([]ast.NodeID, ast.NodeID) { n++ })
	return n
}

// walker simulates the stage sequence as an NFA. A state set is a bitmask of
// stage indexes that the current node must be tested against.
type walker struct {
	q     *Query
	t     *ast.Tree
	visit VisitFunc
	path  []ast.NodeID
}

func (w *walker) eval(id ast.NodeID, active uint64) {
	stages := w.q.stages
	last := len(stages) - 1

	// A wildcard may skip zero levels, so it also activates its successor here.
	// Successors have higher indexes, so one ascending pass reaches a fixpoint.
	for i := 0; i <= last; i++ {
		if active&(1<<i) != 0 {
			if _, ok := stages[i].(Wildcard); ok {
				active |= 1 << (i + 1)
			}
		}
	}

	var next uint64
	matched := false
	for set := active; set != 0; set &= set - 1 {
		i := bits.TrailingZeros64(set)
		switch st := stages[i].(type) {
		case Wildcard:
			next |= 1 << i
		case Test:
			if !st.holds(w.t, id) {
				continue
			}
			if i == last {
				matched = true
			} else {
				next |= 1 << (i + 1)
			}
		}
	}

	if matched {
		w.visit(w.path[:len(w.path):len(w.path)], id)
	}
	if next == 0 {
		return
	}

	w.path = append(w.path, id)
	for _, c := range w.t.Children(id) {
		w.eval(c.ID, next)
	}
	w.path = w.path[:len(w.path)-1]
}
