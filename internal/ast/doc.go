// Package ast provides the arena-backed syntax tree consumed by the analysis layer.
//
// This package contains node storage and accessors only. The front end
// (internal/compiler) builds trees; the query engine and safety analyzer only
// read them. ast imports nothing internal.
//
// Key design constraints:
//   - Nodes live in a single Tree arena and are addressed by NodeID handles
//   - Every node has at most one parent; role and index are fixed at attach time
//   - Trees are immutable once built, so concurrent readers need no locking
//   - Children are always enumerated in document (insertion) order
package ast
