package query

import (
	"fmt"
	"strings"

	"github.com/roach88/formula/internal/ast"
)

// Predicate tests a single node.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	holds(t *ast.Tree, id ast.NodeID) bool
	fmt.Stringer
}

// KindIs holds when the node has the given kind.
type KindIs struct {
	Kind ast.Kind
}

func (p KindIs) holds(t *ast.Tree, id ast.NodeID) bool {
	return t.Kind(id) == p.Kind
}

func (p KindIs) String() string {
	return string(p.Kind)
}

// RoleIs holds when the node was reached from its parent under the given role.
// RoleIs{ast.RoleNone} holds for roots.
type RoleIs struct {
	Role ast.Role
}

func (p RoleIs) holds(t *ast.Tree, id ast.NodeID) bool {
	return t.Role(id) == p.Role
}

func (p RoleIs) String() string {
	if p.Role == ast.RoleNone {
		return "@root"
	}
	return "@" + string(p.Role)
}

// And holds when every predicate holds. An empty And always holds.
type And struct {
	Predicates []Predicate
}

func (p And) holds(t *ast.Tree, id ast.NodeID) bool {
	for _, sub := range p.Predicates {
		if !sub.holds(t, id) {
			return false
		}
	}
	return true
}

func (p And) String() string {
	if len(p.Predicates) == 0 {
		return "*"
	}
	parts := make([]string, len(p.Predicates))
	for i, sub := range p.Predicates {
		parts[i] = sub.String()
	}
	return strings.Join(parts, "&")
}

// OfKind returns a predicate on node kind.
func OfKind(k ast.Kind) Predicate {
	return KindIs{Kind: k}
}

// InRole returns a predicate on the node's role under its parent.
func InRole(r ast.Role) Predicate {
	return RoleIs{Role: r}
}

// All returns the conjunction of preds.
func All(preds ...Predicate) Predicate {
	return And{Predicates: preds}
}

// Node is shorthand for All(OfKind(k), InRole(r)).
func Node(k ast.Kind, r ast.Role) Predicate {
	return And{Predicates: []Predicate{KindIs{Kind: k}, RoleIs{Role: r}}}
}

// Stage is one step of a query.
//
// This is a sealed interface - only types in this package implement it.
type Stage interface {
	stageNode()
	fmt.Stringer
}

// Wildcard skips zero or more tree levels.
type Wildcard struct{}

func (Wildcard) stageNode() {}

func (Wildcard) String() string {
	return "**"
}

// Test requires the node to satisfy at least one of Any.
// Predicates are tried in order and the first that holds decides.
type Test struct {
	Any []Predicate
}

func (Test) stageNode() {}

func (s Test) String() string {
	if len(s.Any) == 1 {
		return s.Any[0].String()
	}
	parts := make([]string, len(s.Any))
	for i, p := range s.Any {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, "|") + ")"
}

func (s Test) holds(t *ast.Tree, id ast.NodeID) bool {
	for _, p := range s.Any {
		if p.holds(t, id) {
			return true
		}
	}
	return false
}

// AnyDepth returns the wildcard stage.
func AnyDepth() Stage {
	return Wildcard{}
}

// Match returns a stage satisfied by any of preds.
func Match(preds ...Predicate) Stage {
	return Test{Any: preds}
}
