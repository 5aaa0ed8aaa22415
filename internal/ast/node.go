package ast

import (
	"fmt"
	"strings"
)

// NodeID is an opaque handle to a node in a Tree.
type NodeID int32

// NoNode is the zero handle. It never refers to a node.
const NoNode NodeID = 0

// Kind tags the variant of a node.
type Kind string

const (
	KindModule    Kind = "Module"
	KindRule      Kind = "Rule"
	KindBody      Kind = "Body"
	KindFind      Kind = "Find"
	KindRelConstr Kind = "RelConstr"
	KindFuncTerm  Kind = "FuncTerm"
	KindId        Kind = "Id"
	KindCnst      Kind = "Cnst"
)

// Role is the child-context tag under which a node hangs from its parent.
type Role string

const (
	RoleNone        Role = ""
	RoleRules       Role = "Rules"
	RoleHeads       Role = "Heads"
	RoleBodies      Role = "Bodies"
	RoleConstraints Role = "Constraints"
	RoleBinding     Role = "Binding"
	RoleMatch       Role = "Match"
	RoleArgs        Role = "Args"
)

// RelOp is the operator of a relational constraint.
type RelOp string

const (
	RelEq  RelOp = "="
	RelNeq RelOp = "!="
	RelLt  RelOp = "<"
	RelLe  RelOp = "<="
	RelGt  RelOp = ">"
	RelGe  RelOp = ">="
	RelTyp RelOp = ":"
)

// ValidRelOps lists the operators accepted by the front end.
var ValidRelOps = map[RelOp]bool{
	RelEq:  true,
	RelNeq: true,
	RelLt:  true,
	RelLe:  true,
	RelGt:  true,
	RelGe:  true,
	RelTyp: true,
}

// Pos is a source position. The zero value means "unknown".
type Pos struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// IsValid reports whether the position carries a line number.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Child is a parent-to-child edge.
type Child struct {
	Role  Role
	Index int
	ID    NodeID
}

type node struct {
	kind     Kind
	parent   NodeID
	role     Role
	index    int
	pos      Pos
	children []Child

	// Variant payloads. Only the fields relevant to kind are set.
	name  string // Id name, FuncTerm function, Rule/Module name
	op    RelOp  // RelConstr
	ival  int64  // Cnst
	sval  string // Cnst
	isStr bool   // Cnst holds a string
}

// Tree is an arena of nodes. Slot 0 is reserved so that NoNode is never valid.
type Tree struct {
	nodes []node
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{nodes: make([]node, 1, 64)}
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.nodes) - 1
}

// Valid reports whether id refers to a node of t.
func (t *Tree) Valid(id NodeID) bool {
	return id > NoNode && int(id) < len(t.nodes)
}

func (t *Tree) get(id NodeID) *node {
	if !t.Valid(id) {
		panic(fmt.Sprintf("ast: invalid node id %d", id))
	}
	return &t.nodes[id]
}

// Kind returns the node's kind.
func (t *Tree) Kind(id NodeID) Kind {
	return t.get(id).kind
}

// Parent returns the node's parent, or NoNode for a root.
func (t *Tree) Parent(id NodeID) NodeID {
	return t.get(id).parent
}

// Role returns the role under which the node was attached to its parent.
func (t *Tree) Role(id NodeID) Role {
	return t.get(id).role
}

// Index returns the node's position among its parent's children.
func (t *Tree) Index(id NodeID) int {
	return t.get(id).index
}

// Pos returns the node's source position.
func (t *Tree) Pos(id NodeID) Pos {
	return t.get(id).pos
}

// Children returns the node's children in document order.
// The returned slice must not be modified.
func (t *Tree) Children(id NodeID) []Child {
	return t.get(id).children
}

// ChildrenWithRole returns the children attached under role, in order.
func (t *Tree) ChildrenWithRole(id NodeID, role Role) []NodeID {
	var out []NodeID
	for _, c := range t.get(id).children {
		if c.Role == role {
			out = append(out, c.ID)
		}
	}
	return out
}

// Ancestors returns the chain from the root down to id's parent.
func (t *Tree) Ancestors(id NodeID) []NodeID {
	var chain []NodeID
	for p := t.Parent(id); p != NoNode; p = t.Parent(p) {
		chain = append(chain, p)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Name returns the identifier text of an Id, the function of a FuncTerm,
// or the label of a Rule or Module.
func (t *Tree) Name(id NodeID) string {
	return t.get(id).name
}

// Fragments returns the dot-separated parts of an Id.
func (t *Tree) Fragments(id NodeID) []string {
	n := t.get(id)
	if n.kind != KindId {
		return nil
	}
	return strings.Split(n.name, ".")
}

// IsQualified reports whether an Id is a dotted path.
func (t *Tree) IsQualified(id NodeID) bool {
	n := t.get(id)
	return n.kind == KindId && strings.Contains(n.name, ".")
}

// RootFragment returns the first fragment of an Id.
func (t *Tree) RootFragment(id NodeID) string {
	n := t.get(id)
	if i := strings.IndexByte(n.name, '.'); i >= 0 {
		return n.name[:i]
	}
	return n.name
}

// FindBinding returns the Id bound by a Find, if any.
func (t *Tree) FindBinding(id NodeID) (NodeID, bool) {
	b := t.ChildrenWithRole(id, RoleBinding)
	if len(b) == 0 {
		return NoNode, false
	}
	return b[0], true
}

// FindMatch returns the pattern of a Find.
func (t *Tree) FindMatch(id NodeID) NodeID {
	m := t.ChildrenWithRole(id, RoleMatch)
	if len(m) == 0 {
		return NoNode
	}
	return m[0]
}

// Op returns the operator of a RelConstr.
func (t *Tree) Op(id NodeID) RelOp {
	return t.get(id).op
}

// Args returns the arguments of a RelConstr or FuncTerm.
func (t *Tree) Args(id NodeID) []NodeID {
	return t.ChildrenWithRole(id, RoleArgs)
}

// IntValue returns the value of an integer Cnst.
func (t *Tree) IntValue(id NodeID) (int64, bool) {
	n := t.get(id)
	if n.kind != KindCnst || n.isStr {
		return 0, false
	}
	return n.ival, true
}

// StringValue returns the value of a string Cnst.
func (t *Tree) StringValue(id NodeID) (string, bool) {
	n := t.get(id)
	if n.kind != KindCnst || !n.isStr {
		return "", false
	}
	return n.sval, true
}

// String renders a node in a compact surface syntax, mainly for diagnostics and tests.
func (t *Tree) String(id NodeID) string {
	var b strings.Builder
	t.write(&b, id)
	return b.String()
}

func (t *Tree) write(b *strings.Builder, id NodeID) {
	n := t.get(id)
	switch n.kind {
	case KindId:
		b.WriteString(n.name)
	case KindCnst:
		if n.isStr {
			fmt.Fprintf(b, "%q", n.sval)
		} else {
			fmt.Fprintf(b, "%d", n.ival)
		}
	case KindFuncTerm:
		b.WriteString(n.name)
		b.WriteByte('(')
		t.writeList(b, t.Args(id), ", ")
		b.WriteByte(')')
	case KindRelConstr:
		args := t.Args(id)
		if len(args) == 2 {
			t.write(b, args[0])
			fmt.Fprintf(b, " %s ", n.op)
			t.write(b, args[1])
		}
	case KindFind:
		if bind, ok := t.FindBinding(id); ok {
			t.write(b, bind)
			b.WriteString(" is ")
		}
		if m := t.FindMatch(id); m != NoNode {
			t.write(b, m)
		}
	case KindBody:
		t.writeList(b, t.ChildrenWithRole(id, RoleConstraints), ", ")
	case KindRule:
		t.writeList(b, t.ChildrenWithRole(id, RoleHeads), ", ")
		b.WriteString(" :- ")
		t.writeList(b, t.ChildrenWithRole(id, RoleBodies), "; ")
		b.WriteByte('.')
	case KindModule:
		fmt.Fprintf(b, "module %s", n.name)
	}
}

func (t *Tree) writeList(b *strings.Builder, ids []NodeID, sep string) {
	for i, c := range ids {
		if i > 0 {
			b.WriteString(sep)
		}
		t.write(b, c)
	}
}
