// Package query implements path queries over ast trees.
//
// A Query is an ordered sequence of stages. Each stage either skips any
// number of tree levels (AnyDepth) or tests one node (Match). Stage 0 is
// tested against the start node; a Match stage that holds hands the next
// stage to the node's children. A node that satisfies the final stage is a
// match.
//
// # Stages
//
//   - AnyDepth(): zero or more intervening levels
//   - Match(p1, p2, ...): the node satisfies at least one predicate
//
// # Predicates
//
// Predicates form a closed combinator set:
//
//   - OfKind(k): the node's kind is k
//   - InRole(r): the node hangs from its parent under role r
//   - All(p...): every predicate holds (empty = always true)
//
// Node(k, r) is shorthand for All(OfKind(k), InRole(r)).
//
// # Examples
//
// Every Find anywhere at or below the start node:
//
//	q, err := query.Compile(query.AnyDepth(), query.Match(query.OfKind(ast.KindFind)))
//
// Every Id that is a direct argument of a FuncTerm:
//
//	q, err := query.Compile(
//	    query.AnyDepth(),
//	    query.Match(query.OfKind(ast.KindFuncTerm)),
//	    query.Match(query.Node(ast.KindId, ast.RoleArgs)),
//	)
//
// # Traversal
//
// Walk visits nodes depth-first in document order. Every node is evaluated
// once against the full set of stages active at that node, so a node is
// reported at most once per walk no matter how many wildcard expansions
// reach it. Queries hold no mutable state and may be shared between
// goroutines; the tree must not be mutated during a walk.
package query
